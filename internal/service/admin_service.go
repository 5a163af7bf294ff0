package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"github.com/amirk1998/univ-erp/internal/access"
	"github.com/amirk1998/univ-erp/internal/audit"
	"github.com/amirk1998/univ-erp/internal/database"
	"github.com/amirk1998/univ-erp/internal/logger"
	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/internal/repository"
	"github.com/amirk1998/univ-erp/internal/security"
	"github.com/amirk1998/univ-erp/pkg/errors"
	"github.com/amirk1998/univ-erp/pkg/validator"
)

// AdminService holds the administrative writes. Admins bypass
// maintenance mode.
type AdminService struct {
	tm          *database.TransactionManager
	accounts    *repository.AccountRepository
	sections    *repository.SectionRepository
	settings    *repository.SettingsRepository
	hasher      *security.PasswordHasher
	validator   *validator.Validator
	policy      *access.Policy
	auditLogger *audit.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(
	tm *database.TransactionManager,
	hasher *security.PasswordHasher,
	policy *access.Policy,
	auditLogger *audit.Logger,
) *AdminService {
	return &AdminService{
		tm:          tm,
		accounts:    repository.NewAccountRepository(tm.DB()),
		sections:    repository.NewSectionRepository(tm.DB()),
		settings:    repository.NewSettingsRepository(tm.DB()),
		hasher:      hasher,
		validator:   validator.New(),
		policy:      policy,
		auditLogger: auditLogger,
	}
}

// CreateAccount creates an ACTIVE account with a hashed password
func (s *AdminService) CreateAccount(ctx context.Context, session *models.Session, req *models.CreateAccountRequest) (*models.Account, error) {
	if err := s.policy.EnsureAdmin(session); err != nil {
		return nil, err
	}

	account, err := s.createAccount(ctx, req, nil)
	if err != nil {
		return nil, err
	}

	s.record(ctx, session, "create_account", fmt.Sprintf("account:%d", account.ID), string(account.Role))
	return account, nil
}

// BootstrapAdmin creates the first ADMIN account without a session. It
// fails once any admin exists.
func (s *AdminService) BootstrapAdmin(ctx context.Context, username, password string) (*models.Account, error) {
	req := &models.CreateAccountRequest{Username: username, Password: password, Role: models.RoleAdmin}

	account, err := s.createAccount(ctx, req, func(tx *sql.Tx) error {
		n, err := s.accounts.WithTx(tx).CountByRole(ctx, models.RoleAdmin)
		if err != nil {
			return err
		}
		if n > 0 {
			return errors.NewAppError(errors.ErrUserAlreadyExists, "an admin account already exists", http.StatusConflict)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelWarning,
		UserID:   &account.ID,
		Action:   audit.ActionAdmin,
		Resource: fmt.Sprintf("account:%d", account.ID),
		Success:  true,
		Metadata: "bootstrap_admin",
	})
	logger.FromContext(ctx).Info("bootstrap admin created", "username", account.Username)
	return account, nil
}

// createAccount validates req and inserts the account. check runs inside
// the same transaction before the insert.
func (s *AdminService) createAccount(ctx context.Context, req *models.CreateAccountRequest, check func(*sql.Tx) error) (*models.Account, error) {
	req.Username = s.validator.SanitizeString(req.Username)
	if err := s.validator.ValidateUsername(req.Username); err != nil {
		return nil, err
	}
	if err := s.validator.ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	if !req.Role.Valid() {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "role must be ADMIN, INSTRUCTOR or STUDENT", http.StatusBadRequest)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		Username:     req.Username,
		Role:         req.Role,
		PasswordHash: hash,
	}
	err = s.tm.Execute(ctx, func(tx *sql.Tx) error {
		if check != nil {
			if err := check(tx); err != nil {
				return err
			}
		}
		return s.accounts.WithTx(tx).Create(ctx, account)
	})
	if errors.Is(err, errors.ErrUserAlreadyExists) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Storage("create account", err)
	}
	return account, nil
}

// UnlockAccount returns a LOCKED account to ACTIVE with a zero counter
func (s *AdminService) UnlockAccount(ctx context.Context, session *models.Session, accountID int) error {
	if err := s.policy.EnsureAdmin(session); err != nil {
		return err
	}

	err := s.tm.Execute(ctx, func(tx *sql.Tx) error {
		return s.accounts.WithTx(tx).Unlock(ctx, accountID)
	})
	if errors.Is(err, errors.ErrUserNotFound) {
		return err
	}
	if err != nil {
		return errors.Storage("unlock account", err)
	}

	s.record(ctx, session, "unlock_account", fmt.Sprintf("account:%d", accountID), "")
	return nil
}

// DeleteAccount removes an account that owns no enrollments or sections.
// It is the rollback path for an account created by mistake.
func (s *AdminService) DeleteAccount(ctx context.Context, session *models.Session, accountID int) error {
	if err := s.policy.EnsureAdmin(session); err != nil {
		return err
	}
	if accountID == session.UserID() {
		return errors.NewAppError(errors.ErrInvalidInput, "cannot delete the signed-in account", http.StatusBadRequest)
	}

	err := s.tm.Execute(ctx, func(tx *sql.Tx) error {
		return s.accounts.WithTx(tx).Delete(ctx, accountID)
	})
	switch {
	case errors.Is(err, errors.ErrUserNotFound):
		return err
	case database.IsForeignKeyViolation(err):
		return errors.NewAppError(errors.ErrInvalidInput, "account still owns enrollments or sections", http.StatusConflict)
	case err != nil:
		return errors.Storage("delete account", err)
	}

	s.record(ctx, session, "delete_account", fmt.Sprintf("account:%d", accountID), "")
	return nil
}

// MaintenanceOn reads the flag, surfacing storage errors to the admin
func (s *AdminService) MaintenanceOn(ctx context.Context, session *models.Session) (bool, error) {
	if err := s.policy.EnsureAdmin(session); err != nil {
		return false, err
	}

	raw, ok, err := s.settings.Get(ctx, repository.SettingMaintenance)
	if err != nil {
		return false, errors.Storage("read maintenance flag", err)
	}
	if !ok {
		return false, nil
	}
	on, _ := strconv.ParseBool(raw)
	return on, nil
}

// SetMaintenance turns maintenance mode on or off
func (s *AdminService) SetMaintenance(ctx context.Context, session *models.Session, on bool) error {
	return s.SetSetting(ctx, session, repository.SettingMaintenance, strconv.FormatBool(on))
}

// SetSetting stores a known global setting after validating its value.
// An empty deadline value clears the deadline.
func (s *AdminService) SetSetting(ctx context.Context, session *models.Session, key, value string) error {
	if err := s.policy.EnsureAdmin(session); err != nil {
		return err
	}

	value = s.validator.SanitizeString(value)
	switch key {
	case repository.SettingMaintenance:
		on, err := strconv.ParseBool(value)
		if err != nil {
			return errors.NewAppError(errors.ErrInvalidInput, "maintenance must be true or false", http.StatusBadRequest)
		}
		value = strconv.FormatBool(on)
	case repository.SettingRegistrationDeadline, repository.SettingDropDeadline:
		if value != "" {
			if _, err := s.policy.ParseDeadline(value); err != nil {
				return errors.NewAppError(errors.ErrInvalidInput, "deadline must be YYYY-MM-DD or an RFC 3339 timestamp", http.StatusBadRequest)
			}
		}
	default:
		return errors.NewAppError(errors.ErrInvalidInput, fmt.Sprintf("unknown setting %q", key), http.StatusBadRequest)
	}

	err := s.tm.Execute(ctx, func(tx *sql.Tx) error {
		settings := repository.NewSettingsRepository(tx)
		if value == "" {
			return settings.Delete(ctx, key)
		}
		return settings.Set(ctx, key, value)
	})
	if err != nil {
		return errors.Storage("write setting", err)
	}

	s.record(ctx, session, "set_setting", "setting:"+key, value)
	return nil
}

// CreateCourse adds a course to the catalog
func (s *AdminService) CreateCourse(ctx context.Context, session *models.Session, req *models.CreateCourseRequest) (*models.Course, error) {
	if err := s.policy.EnsureAdmin(session); err != nil {
		return nil, err
	}

	req.Code = s.validator.SanitizeString(req.Code)
	req.Title = s.validator.SanitizeString(req.Title)
	if err := s.validator.ValidateCourse(req.Code, req.Title, req.Credits); err != nil {
		return nil, err
	}

	course := &models.Course{Code: req.Code, Title: req.Title, Credits: req.Credits}
	err := s.tm.Execute(ctx, func(tx *sql.Tx) error {
		return s.sections.WithTx(tx).CreateCourse(ctx, course)
	})
	if errors.Is(err, errors.ErrInvalidInput) {
		return nil, err
	}
	if err != nil {
		return nil, errors.Storage("create course", err)
	}

	s.record(ctx, session, "create_course", fmt.Sprintf("course:%d", course.ID), course.Code)
	return course, nil
}

// CreateSection schedules a section of an existing course
func (s *AdminService) CreateSection(ctx context.Context, session *models.Session, req *models.CreateSectionRequest) (*models.Section, error) {
	if err := s.policy.EnsureAdmin(session); err != nil {
		return nil, err
	}

	if err := s.validator.ValidateMeeting(req.DayOfWeek, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateCapacity(req.Capacity); err != nil {
		return nil, err
	}

	section := &models.Section{
		CourseID:             req.CourseID,
		InstructorID:         req.InstructorID,
		DayOfWeek:            req.DayOfWeek,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
		Room:                 s.validator.SanitizeString(req.Room),
		Capacity:             req.Capacity,
		Semester:             s.validator.SanitizeString(req.Semester),
		Year:                 req.Year,
		RegistrationDeadline: req.RegistrationDeadline,
		DropDeadline:         req.DropDeadline,
	}

	err := s.tm.Execute(ctx, func(tx *sql.Tx) error {
		instructor, err := s.accounts.WithTx(tx).GetByID(ctx, req.InstructorID)
		if err != nil {
			return err
		}
		if instructor.Role != models.RoleInstructor {
			return errors.NewAppError(errors.ErrInvalidInput, "instructor_id must reference an INSTRUCTOR", http.StatusBadRequest)
		}
		return s.sections.WithTx(tx).Create(ctx, section)
	})
	switch {
	case errors.Is(err, errors.ErrInvalidInput), errors.Is(err, errors.ErrUserNotFound):
		return nil, err
	case database.IsForeignKeyViolation(err):
		return nil, errors.NewAppError(errors.ErrInvalidInput, "course does not exist", http.StatusBadRequest)
	case err != nil:
		return nil, errors.Storage("create section", err)
	}

	s.record(ctx, session, "create_section", fmt.Sprintf("section:%d", section.ID), "")
	return section, nil
}

// UpdateSectionCapacity changes a section's capacity. Students already
// enrolled beyond the new capacity keep their seats.
func (s *AdminService) UpdateSectionCapacity(ctx context.Context, session *models.Session, sectionID, capacity int) error {
	if err := s.policy.EnsureAdmin(session); err != nil {
		return err
	}
	if err := s.validator.ValidateCapacity(capacity); err != nil {
		return err
	}

	err := s.tm.Execute(ctx, func(tx *sql.Tx) error {
		return s.sections.WithTx(tx).UpdateCapacity(ctx, sectionID, capacity)
	})
	if errors.Is(err, errors.ErrSectionNotFound) {
		return err
	}
	if err != nil {
		return errors.Storage("update capacity", err)
	}

	s.record(ctx, session, "update_capacity", fmt.Sprintf("section:%d", sectionID), strconv.Itoa(capacity))
	return nil
}

func (s *AdminService) record(ctx context.Context, session *models.Session, op, resource, detail string) {
	userID := session.UserID()
	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   &userID,
		Action:   audit.ActionAdmin,
		Resource: resource,
		Success:  true,
		Metadata: op + " " + detail,
	})
	logger.FromContext(ctx).Info("admin action", "op", op, "resource", resource, "admin_id", userID)
}
