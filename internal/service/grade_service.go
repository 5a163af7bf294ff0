package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/amirk1998/univ-erp/internal/access"
	"github.com/amirk1998/univ-erp/internal/audit"
	"github.com/amirk1998/univ-erp/internal/database"
	"github.com/amirk1998/univ-erp/internal/grading"
	"github.com/amirk1998/univ-erp/internal/logger"
	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/internal/repository"
	"github.com/amirk1998/univ-erp/pkg/errors"
	"github.com/amirk1998/univ-erp/pkg/validator"
)

type GradeService struct {
	tm          *database.TransactionManager
	sections    *repository.SectionRepository
	grades      *repository.GradeRepository
	policy      *access.Policy
	validator   *validator.Validator
	auditLogger *audit.Logger
}

// NewGradeService creates a new grade service
func NewGradeService(
	tm *database.TransactionManager,
	policy *access.Policy,
	auditLogger *audit.Logger,
) *GradeService {
	return &GradeService{
		tm:          tm,
		sections:    repository.NewSectionRepository(tm.DB()),
		grades:      repository.NewGradeRepository(tm.DB()),
		policy:      policy,
		validator:   validator.New(),
		auditLogger: auditLogger,
	}
}

// ComputeFinal fills in final scores and letters without persisting.
func (s *GradeService) ComputeFinal(rows []models.GradeRow) []models.GradeRow {
	return grading.ComputeFinal(rows)
}

// SaveScores stores the component scores of rows and, where all three are
// present, the computed final with its letter. All rows land in one
// transaction or none do.
func (s *GradeService) SaveScores(ctx context.Context, session *models.Session, sectionID int, rows []models.GradeRow) ([]models.GradeRow, error) {
	if err := s.policy.EnsureInstructorAndNotInMaintenance(ctx, session); err != nil {
		return nil, err
	}
	if err := s.ensureTeaches(ctx, session, sectionID); err != nil {
		return nil, err
	}

	for _, row := range rows {
		for _, score := range []*float64{row.Quiz, row.Midterm, row.Endsem} {
			if err := s.validator.ValidateScore(score); err != nil {
				return nil, err
			}
		}
	}

	computed := grading.ComputeFinal(rows)

	err := s.tm.Execute(ctx, func(tx *sql.Tx) error {
		grades := s.grades.WithTx(tx)

		for _, row := range computed {
			ok, err := grades.EnrolledInSection(ctx, row.EnrollmentID, sectionID)
			if err != nil {
				return err
			}
			if !ok {
				return errors.NewAppError(errors.ErrNotEnrolled,
					fmt.Sprintf("enrollment %d is not active in section %d", row.EnrollmentID, sectionID),
					http.StatusConflict)
			}

			components := []struct {
				name  string
				score *float64
			}{
				{models.ComponentQuiz, row.Quiz},
				{models.ComponentMidterm, row.Midterm},
				{models.ComponentEndsem, row.Endsem},
			}
			for _, c := range components {
				if c.score == nil {
					continue
				}
				if err := grades.UpsertScore(ctx, row.EnrollmentID, c.name, *c.score, ""); err != nil {
					return err
				}
			}

			if row.Final != nil {
				if err := grades.UpsertScore(ctx, row.EnrollmentID, models.ComponentFinal, *row.Final, row.Letter); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errors.ErrNotEnrolled) {
		err = errors.Storage("save scores", err)
	}

	userID := session.UserID()
	event := &audit.Event{
		Level:    audit.LevelInfo,
		UserID:   &userID,
		Action:   audit.ActionGradesSaved,
		Resource: fmt.Sprintf("section:%d", sectionID),
		Success:  err == nil,
		Metadata: fmt.Sprintf("rows=%d", len(rows)),
	}
	if err != nil {
		event.Level = audit.LevelWarning
		event.ErrorMsg = err.Error()
	}
	s.auditLogger.Log(event)

	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("scores saved", "section_id", sectionID, "rows", len(rows))
	return computed, nil
}

// Gradebook returns one row per ENROLLED student. Admins may read any
// section; instructors only their own.
func (s *GradeService) Gradebook(ctx context.Context, session *models.Session, sectionID int) ([]models.GradeRow, error) {
	if !session.IsAdmin() {
		if err := s.policy.EnsureInstructor(session); err != nil {
			return nil, err
		}
		if err := s.ensureTeaches(ctx, session, sectionID); err != nil {
			return nil, err
		}
	}

	rows, err := s.grades.Gradebook(ctx, sectionID)
	if err != nil {
		return nil, errors.Storage("load gradebook", err)
	}
	return rows, nil
}

// MyGrades returns the signed-in student's scores for every section they
// are ENROLLED in. Ungraded sections come back with empty components.
func (s *GradeService) MyGrades(ctx context.Context, session *models.Session) ([]models.StudentGrade, error) {
	if err := s.policy.EnsureStudent(session); err != nil {
		return nil, err
	}

	sheet, err := s.grades.StudentGrades(ctx, session.UserID())
	if err != nil {
		return nil, errors.Storage("load grades", err)
	}
	return sheet, nil
}

// ClassAverage averages the stored final scores of a section. It returns
// the number of graded students with it; the average is 0 when none are.
func (s *GradeService) ClassAverage(ctx context.Context, session *models.Session, sectionID int) (float64, int, error) {
	rows, err := s.Gradebook(ctx, session, sectionID)
	if err != nil {
		return 0, 0, err
	}

	var (
		sum   float64
		count int
	)
	for _, row := range rows {
		if row.Final != nil {
			sum += *row.Final
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return sum / float64(count), count, nil
}

func (s *GradeService) ensureTeaches(ctx context.Context, session *models.Session, sectionID int) error {
	if _, err := s.sections.GetByID(ctx, sectionID); err != nil {
		if errors.Is(err, errors.ErrSectionNotFound) {
			return err
		}
		return errors.Storage("load section", err)
	}

	ok, err := s.sections.IsTaughtBy(ctx, sectionID, session.UserID())
	if err != nil {
		return errors.Storage("check section instructor", err)
	}
	if !ok {
		return errors.AccessDenied(fmt.Sprintf("you are not assigned to section %d", sectionID))
	}
	return nil
}
