package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/amirk1998/univ-erp/internal/database"
	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/pkg/errors"
)

const sectionColumns = `s.id, s.course_id, s.instructor_id, s.day_of_week, s.start_time, s.end_time,
               s.room, s.capacity, s.semester, s.year, s.registration_deadline, s.drop_deadline`

// SectionRepository is the section catalog read model plus the admin
// writes that create courses and sections.
type SectionRepository struct {
	db database.Querier
}

// NewSectionRepository creates a new section repository
func NewSectionRepository(db database.Querier) *SectionRepository {
	return &SectionRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *SectionRepository) WithTx(tx *sql.Tx) *SectionRepository {
	return &SectionRepository{db: tx}
}

// CreateCourse inserts a course
func (r *SectionRepository) CreateCourse(ctx context.Context, course *models.Course) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO courses (code, title, credits) VALUES (?, ?, ?)`,
		course.Code, course.Title, course.Credits,
	)
	if database.IsUniqueViolation(err) {
		return errors.NewAppError(errors.ErrInvalidInput, "course code already exists", 409)
	}
	if err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get course ID: %w", err)
	}
	course.ID = int(id)

	return nil
}

// Create inserts a section
func (r *SectionRepository) Create(ctx context.Context, section *models.Section) error {
	query := `
        INSERT INTO sections (course_id, instructor_id, day_of_week, start_time, end_time,
                              room, capacity, semester, year, registration_deadline, drop_deadline)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	result, err := r.db.ExecContext(ctx, query,
		section.CourseID,
		section.InstructorID,
		section.DayOfWeek,
		section.StartTime,
		section.EndTime,
		section.Room,
		section.Capacity,
		section.Semester,
		section.Year,
		utcOrNil(section.RegistrationDeadline),
		utcOrNil(section.DropDeadline),
	)
	if err != nil {
		return fmt.Errorf("failed to create section: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get section ID: %w", err)
	}
	section.ID = int(id)

	return nil
}

// GetByID retrieves a section by ID
func (r *SectionRepository) GetByID(ctx context.Context, id int) (*models.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM sections s WHERE s.id = ?`

	section := &models.Section{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(sectionDest(section)...)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get section: %w", err)
	}

	return section, nil
}

// GetCapacity reads the current capacity of a section
func (r *SectionRepository) GetCapacity(ctx context.Context, id int) (int, error) {
	var capacity int
	err := r.db.QueryRowContext(ctx, `SELECT capacity FROM sections WHERE id = ?`, id).Scan(&capacity)
	if err == sql.ErrNoRows {
		return 0, errors.ErrSectionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get capacity: %w", err)
	}

	return capacity, nil
}

// UpdateCapacity changes the capacity. Existing enrollments are kept
// even when they exceed the new value.
func (r *SectionRepository) UpdateCapacity(ctx context.Context, id, capacity int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE sections SET capacity = ? WHERE id = ?`, capacity, id)
	if err != nil {
		return fmt.Errorf("failed to update capacity: %w", err)
	}

	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrSectionNotFound
	}

	return nil
}

// IsTaughtBy reports whether instructorID is assigned to the section
func (r *SectionRepository) IsTaughtBy(ctx context.Context, sectionID, instructorID int) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM sections WHERE id = ? AND instructor_id = ?`,
		sectionID, instructorID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check section instructor: %w", err)
	}

	return true, nil
}

// ListCatalog lists sections with live enrollment counts
func (r *SectionRepository) ListCatalog(ctx context.Context, filters models.CatalogFilters) ([]*models.CatalogEntry, error) {
	builder := sq.Select(sectionColumns,
		"c.code", "c.title", "c.credits", "a.username",
		"(SELECT COUNT(*) FROM enrollments e WHERE e.section_id = s.id AND e.status = 'ENROLLED') AS enrolled",
	).
		From("sections s").
		Join("courses c ON c.id = s.course_id").
		Join("accounts a ON a.id = s.instructor_id")

	if filters.Semester != "" {
		builder = builder.Where(sq.Eq{"s.semester": filters.Semester})
	}
	if filters.Year != 0 {
		builder = builder.Where(sq.Eq{"s.year": filters.Year})
	}
	if filters.InstructorID != 0 {
		builder = builder.Where(sq.Eq{"s.instructor_id": filters.InstructorID})
	}
	if filters.CourseCode != "" {
		builder = builder.Where(sq.Eq{"c.code": filters.CourseCode})
	}
	if filters.SectionIDs != nil {
		if len(filters.SectionIDs) == 0 {
			return []*models.CatalogEntry{}, nil
		}
		builder = builder.Where(sq.Eq{"s.id": filters.SectionIDs})
	}
	if filters.Limit <= 0 {
		filters.Limit = 500
	}
	builder = builder.OrderBy("c.code", "s.id").Limit(uint64(filters.Limit))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	defer rows.Close()

	entries := []*models.CatalogEntry{}
	for rows.Next() {
		entry := &models.CatalogEntry{}
		dest := append(sectionDest(&entry.Section),
			&entry.CourseCode,
			&entry.CourseTitle,
			&entry.Credits,
			&entry.InstructorName,
			&entry.Enrolled,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		entry.SeatsLeft = max(entry.Capacity-entry.Enrolled, 0)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate catalog: %w", err)
	}

	return entries, nil
}

func sectionDest(s *models.Section) []any {
	return []any{
		&s.ID,
		&s.CourseID,
		&s.InstructorID,
		&s.DayOfWeek,
		&s.StartTime,
		&s.EndTime,
		&s.Room,
		&s.Capacity,
		&s.Semester,
		&s.Year,
		&s.RegistrationDeadline,
		&s.DropDeadline,
	}
}
