package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirk1998/univ-erp/internal/access"
	"github.com/amirk1998/univ-erp/internal/audit"
	"github.com/amirk1998/univ-erp/internal/database"
	"github.com/amirk1998/univ-erp/internal/logger"
	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/internal/repository"
	"github.com/amirk1998/univ-erp/pkg/errors"
)

// EnrollmentService is the enrollment ledger. Seat consumption happens in
// one write transaction per call, so two students racing for the last
// seat can never both succeed.
type EnrollmentService struct {
	tm          *database.TransactionManager
	sections    *repository.SectionRepository
	enrollments *repository.EnrollmentRepository
	policy      *access.Policy
	auditLogger *audit.Logger
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(
	tm *database.TransactionManager,
	policy *access.Policy,
	auditLogger *audit.Logger,
) *EnrollmentService {
	return &EnrollmentService{
		tm:          tm,
		sections:    repository.NewSectionRepository(tm.DB()),
		enrollments: repository.NewEnrollmentRepository(tm.DB()),
		policy:      policy,
		auditLogger: auditLogger,
	}
}

// Register enrolls the session's student in sectionID, reactivating a
// DROPPED row when one exists.
func (s *EnrollmentService) Register(ctx context.Context, session *models.Session, sectionID int) error {
	if err := s.policy.EnsureStudentAndNotInMaintenance(ctx, session); err != nil {
		return err
	}

	section, err := s.loadSection(ctx, sectionID)
	if err != nil {
		return err
	}

	if err := s.checkDeadline(ctx, repository.SettingRegistrationDeadline, section.RegistrationDeadline, "registration deadline"); err != nil {
		s.audit(session, audit.ActionEnroll, sectionID, err)
		return err
	}

	studentID := session.UserID()
	err = s.tm.Execute(ctx, func(tx *sql.Tx) error {
		enrollments := s.enrollments.WithTx(tx)

		existing, err := enrollments.Get(ctx, studentID, sectionID)
		switch {
		case errors.Is(err, errors.ErrRecordNotFound):
			existing = nil
		case err != nil:
			return err
		case existing.Status == models.EnrollmentEnrolled:
			return errors.ErrAlreadyEnrolled
		}

		capacity, err := s.sections.WithTx(tx).GetCapacity(ctx, sectionID)
		if err != nil {
			return err
		}
		enrolled, err := enrollments.CountEnrolled(ctx, sectionID)
		if err != nil {
			return err
		}
		if enrolled >= capacity {
			return errors.ErrSectionFull
		}

		if existing == nil {
			_, err = enrollments.Insert(ctx, studentID, sectionID)
			return err
		}

		ok, err := enrollments.Transition(ctx, studentID, sectionID, models.EnrollmentDropped, models.EnrollmentEnrolled)
		if err != nil {
			return err
		}
		if !ok {
			return errors.ErrAlreadyEnrolled
		}
		return nil
	})
	err = ledgerError("register", err)

	s.audit(session, audit.ActionEnroll, sectionID, err)
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Info("student registered", "student_id", studentID, "section_id", sectionID)
	return nil
}

// Drop flips the session's student's enrollment in sectionID to DROPPED.
func (s *EnrollmentService) Drop(ctx context.Context, session *models.Session, sectionID int) error {
	if err := s.policy.EnsureStudentAndNotInMaintenance(ctx, session); err != nil {
		return err
	}

	section, err := s.loadSection(ctx, sectionID)
	if err != nil {
		return err
	}

	if err := s.checkDeadline(ctx, repository.SettingDropDeadline, section.DropDeadline, "drop deadline"); err != nil {
		s.audit(session, audit.ActionDrop, sectionID, err)
		return err
	}

	studentID := session.UserID()
	err = s.tm.Execute(ctx, func(tx *sql.Tx) error {
		ok, err := s.enrollments.WithTx(tx).Transition(ctx, studentID, sectionID, models.EnrollmentEnrolled, models.EnrollmentDropped)
		if err != nil {
			return err
		}
		if !ok {
			return errors.ErrNotEnrolled
		}
		return nil
	})
	err = ledgerError("drop", err)

	s.audit(session, audit.ActionDrop, sectionID, err)
	if err != nil {
		return err
	}

	logger.FromContext(ctx).Info("student dropped", "student_id", studentID, "section_id", sectionID)
	return nil
}

// Catalog lists sections with seat counts. Any signed-in role may browse.
func (s *EnrollmentService) Catalog(ctx context.Context, session *models.Session, filters models.CatalogFilters) ([]*models.CatalogEntry, error) {
	if session == nil {
		return nil, errors.ErrSessionMissing
	}

	entries, err := s.sections.ListCatalog(ctx, filters)
	if err != nil {
		return nil, errors.Storage("list catalog", err)
	}
	return entries, nil
}

// MyEnrollments lists the catalog rows of the sections the student is
// currently ENROLLED in.
func (s *EnrollmentService) MyEnrollments(ctx context.Context, session *models.Session) ([]*models.CatalogEntry, error) {
	if err := s.policy.EnsureStudent(session); err != nil {
		return nil, err
	}

	ids, err := s.enrollments.ListSectionIDs(ctx, session.UserID())
	if err != nil {
		return nil, errors.Storage("list enrollments", err)
	}

	entries, err := s.sections.ListCatalog(ctx, models.CatalogFilters{SectionIDs: ids})
	if err != nil {
		return nil, errors.Storage("list catalog", err)
	}
	return entries, nil
}

// InstructorSections lists the sections taught by the session's instructor.
func (s *EnrollmentService) InstructorSections(ctx context.Context, session *models.Session) ([]*models.CatalogEntry, error) {
	if err := s.policy.EnsureInstructor(session); err != nil {
		return nil, err
	}

	entries, err := s.sections.ListCatalog(ctx, models.CatalogFilters{InstructorID: session.UserID()})
	if err != nil {
		return nil, errors.Storage("list catalog", err)
	}
	return entries, nil
}

func (s *EnrollmentService) loadSection(ctx context.Context, sectionID int) (*models.Section, error) {
	section, err := s.sections.GetByID(ctx, sectionID)
	if errors.Is(err, errors.ErrSectionNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Storage("load section", err)
	}
	return section, nil
}

// checkDeadline prefers the section's own deadline over the global setting.
func (s *EnrollmentService) checkDeadline(ctx context.Context, key string, sectionDeadline *time.Time, what string) error {
	if sectionDeadline != nil {
		return s.policy.EnsureBefore(*sectionDeadline, what)
	}
	return s.policy.EnsureBeforeDeadline(ctx, key, time.Time{})
}

func (s *EnrollmentService) audit(session *models.Session, action string, sectionID int, err error) {
	userID := session.UserID()
	event := &audit.Event{
		Level:    audit.LevelInfo,
		UserID:   &userID,
		Action:   action,
		Resource: fmt.Sprintf("section:%d", sectionID),
		Success:  err == nil,
	}
	if err != nil {
		event.Level = audit.LevelWarning
		event.ErrorMsg = err.Error()
	}
	s.auditLogger.Log(event)
}

// ledgerError passes ledger outcomes through and wraps everything else as
// a storage failure.
func ledgerError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errors.ErrAlreadyEnrolled),
		errors.Is(err, errors.ErrSectionFull),
		errors.Is(err, errors.ErrNotEnrolled),
		errors.Is(err, errors.ErrSectionNotFound):
		return err
	default:
		return errors.Storage(op, err)
	}
}
