package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirk1998/univ-erp/internal/database"
	"github.com/amirk1998/univ-erp/internal/models"
)

// GradeRepository stores component scores and the computed final per
// enrollment.
type GradeRepository struct {
	db database.Querier
}

// NewGradeRepository creates a new grade repository
func NewGradeRepository(db database.Querier) *GradeRepository {
	return &GradeRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *GradeRepository) WithTx(tx *sql.Tx) *GradeRepository {
	return &GradeRepository{db: tx}
}

// Gradebook pivots the grades of every ENROLLED student in a section into
// one row per enrollment.
func (r *GradeRepository) Gradebook(ctx context.Context, sectionID int) ([]models.GradeRow, error) {
	query := `
        SELECT e.id, e.student_id, a.username,
               MAX(CASE WHEN g.component = 'QUIZ' THEN g.score END),
               MAX(CASE WHEN g.component = 'MIDTERM' THEN g.score END),
               MAX(CASE WHEN g.component = 'ENDSEM' THEN g.score END),
               MAX(CASE WHEN g.component = 'FINAL' THEN g.score END),
               MAX(CASE WHEN g.component = 'FINAL' THEN g.letter END)
        FROM enrollments e
        JOIN accounts a ON a.id = e.student_id
        LEFT JOIN grades g ON g.enrollment_id = e.id
        WHERE e.section_id = ? AND e.status = 'ENROLLED'
        GROUP BY e.id, e.student_id, a.username
        ORDER BY a.username
    `

	rows, err := r.db.QueryContext(ctx, query, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query gradebook: %w", err)
	}
	defer rows.Close()

	gradebook := []models.GradeRow{}
	for rows.Next() {
		var (
			row    models.GradeRow
			letter sql.NullString
		)
		if err := rows.Scan(
			&row.EnrollmentID,
			&row.StudentID,
			&row.StudentName,
			&row.Quiz,
			&row.Midterm,
			&row.Endsem,
			&row.Final,
			&letter,
		); err != nil {
			return nil, fmt.Errorf("failed to scan gradebook row: %w", err)
		}
		row.Letter = letter.String
		gradebook = append(gradebook, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate gradebook: %w", err)
	}

	return gradebook, nil
}

// StudentGrades pivots the grades of every ENROLLED section of a student
// into one row per section, ordered by course code.
func (r *GradeRepository) StudentGrades(ctx context.Context, studentID int) ([]models.StudentGrade, error) {
	query := `
        SELECT e.id, s.id, c.code, c.title,
               MAX(CASE WHEN g.component = 'QUIZ' THEN g.score END),
               MAX(CASE WHEN g.component = 'MIDTERM' THEN g.score END),
               MAX(CASE WHEN g.component = 'ENDSEM' THEN g.score END),
               MAX(CASE WHEN g.component = 'FINAL' THEN g.score END),
               MAX(CASE WHEN g.component = 'FINAL' THEN g.letter END)
        FROM enrollments e
        JOIN sections s ON s.id = e.section_id
        JOIN courses c ON c.id = s.course_id
        LEFT JOIN grades g ON g.enrollment_id = e.id
        WHERE e.student_id = ? AND e.status = 'ENROLLED'
        GROUP BY e.id, s.id, c.code, c.title
        ORDER BY c.code, s.id
    `

	rows, err := r.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query student grades: %w", err)
	}
	defer rows.Close()

	sheet := []models.StudentGrade{}
	for rows.Next() {
		var (
			row    models.StudentGrade
			letter sql.NullString
		)
		if err := rows.Scan(
			&row.EnrollmentID,
			&row.SectionID,
			&row.CourseCode,
			&row.CourseTitle,
			&row.Quiz,
			&row.Midterm,
			&row.Endsem,
			&row.Final,
			&letter,
		); err != nil {
			return nil, fmt.Errorf("failed to scan student grade: %w", err)
		}
		row.Letter = letter.String
		sheet = append(sheet, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate student grades: %w", err)
	}

	return sheet, nil
}

// UpsertScore writes one component score. letter is only stored for the
// FINAL component.
func (r *GradeRepository) UpsertScore(ctx context.Context, enrollmentID int, component string, score float64, letter string) error {
	query := `
        INSERT INTO grades (enrollment_id, component, score, letter, updated_at)
        VALUES (?, ?, ?, NULLIF(?, ''), ?)
        ON CONFLICT (enrollment_id, component) DO UPDATE SET
            score = excluded.score,
            letter = excluded.letter,
            updated_at = excluded.updated_at
    `

	if _, err := r.db.ExecContext(ctx, query, enrollmentID, component, score, letter, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save %s score: %w", component, err)
	}

	return nil
}

// EnrolledInSection reports whether enrollmentID is an ENROLLED row of sectionID
func (r *GradeRepository) EnrolledInSection(ctx context.Context, enrollmentID, sectionID int) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM enrollments WHERE id = ? AND section_id = ? AND status = 'ENROLLED'`,
		enrollmentID, sectionID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}

	return true, nil
}
