package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirk1998/univ-erp/internal/database"
	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/pkg/errors"
)

// EnrollmentRepository reads and writes (student, section) rows. Callers
// that make capacity decisions must use a repository bound to the write
// transaction via WithTx.
type EnrollmentRepository struct {
	db database.Querier
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(db database.Querier) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *EnrollmentRepository) WithTx(tx *sql.Tx) *EnrollmentRepository {
	return &EnrollmentRepository{db: tx}
}

// Get returns the row for a pair or ErrRecordNotFound
func (r *EnrollmentRepository) Get(ctx context.Context, studentID, sectionID int) (*models.Enrollment, error) {
	query := `
        SELECT id, student_id, section_id, status, created_at, updated_at
        FROM enrollments
        WHERE student_id = ? AND section_id = ?
    `

	e := &models.Enrollment{}
	err := r.db.QueryRowContext(ctx, query, studentID, sectionID).Scan(
		&e.ID,
		&e.StudentID,
		&e.SectionID,
		&e.Status,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}

	return e, nil
}

// CountEnrolled counts ENROLLED rows for a section
func (r *EnrollmentRepository) CountEnrolled(ctx context.Context, sectionID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE section_id = ? AND status = 'ENROLLED'`,
		sectionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count enrollments: %w", err)
	}

	return count, nil
}

// Insert creates the first ENROLLED row for a pair
func (r *EnrollmentRepository) Insert(ctx context.Context, studentID, sectionID int) (*models.Enrollment, error) {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
        INSERT INTO enrollments (student_id, section_id, status, created_at, updated_at)
        VALUES (?, ?, 'ENROLLED', ?, ?)
    `, studentID, sectionID, now, now)
	if database.IsUniqueViolation(err) {
		return nil, errors.ErrAlreadyEnrolled
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert enrollment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment ID: %w", err)
	}

	return &models.Enrollment{
		ID:        int(id),
		StudentID: studentID,
		SectionID: sectionID,
		Status:    models.EnrollmentEnrolled,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Transition flips a pair from one status to another. It reports false
// when the row was not in the expected status.
func (r *EnrollmentRepository) Transition(ctx context.Context, studentID, sectionID int, from, to models.EnrollmentStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
        UPDATE enrollments
        SET status = ?, updated_at = ?
        WHERE student_id = ? AND section_id = ? AND status = ?
    `, to, time.Now().UTC(), studentID, sectionID, from)
	if err != nil {
		return false, fmt.Errorf("failed to update enrollment: %w", err)
	}

	return affectedOne(result)
}

// ListSectionIDs returns the sections a student is ENROLLED in
func (r *EnrollmentRepository) ListSectionIDs(ctx context.Context, studentID int) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT section_id FROM enrollments
        WHERE student_id = ? AND status = 'ENROLLED'
        ORDER BY section_id
    `, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enrollments: %w", err)
	}

	return ids, nil
}

// CountRows counts rows of any status for a pair
func (r *EnrollmentRepository) CountRows(ctx context.Context, studentID, sectionID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE student_id = ? AND section_id = ?`,
		studentID, sectionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count enrollment rows: %w", err)
	}

	return count, nil
}
