package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/amirk1998/univ-erp/internal/audit"
	"github.com/amirk1998/univ-erp/internal/database"
	"github.com/amirk1998/univ-erp/internal/logger"
	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/internal/ratelimit"
	"github.com/amirk1998/univ-erp/internal/repository"
	"github.com/amirk1998/univ-erp/internal/security"
	"github.com/amirk1998/univ-erp/pkg/errors"
	"github.com/amirk1998/univ-erp/pkg/validator"
)

type AuthService struct {
	tm          *database.TransactionManager
	accounts    *repository.AccountRepository
	hasher      *security.PasswordHasher
	validator   *validator.Validator
	rateLimiter *ratelimit.RateLimiter
	auditLogger *audit.Logger
	issuer      *SessionIssuer
}

// NewAuthService creates a new authentication service. rateLimiter and
// auditLogger may be nil.
func NewAuthService(
	tm *database.TransactionManager,
	hasher *security.PasswordHasher,
	rateLimiter *ratelimit.RateLimiter,
	auditLogger *audit.Logger,
) *AuthService {
	return &AuthService{
		tm:          tm,
		accounts:    repository.NewAccountRepository(tm.DB()),
		hasher:      hasher,
		validator:   validator.New(),
		rateLimiter: rateLimiter,
		auditLogger: auditLogger,
		issuer:      NewSessionIssuer(),
	}
}

// AttemptLogin verifies credentials and drives the lockout state machine.
// Unknown usernames and wrong passwords fail identically with
// ErrInvalidCredentials. A LOCKED account fails with ErrAccountLocked
// before its hash is checked.
func (s *AuthService) AttemptLogin(ctx context.Context, username, password string) (*models.Session, error) {
	log := logger.FromContext(ctx).With("username", username)

	if s.rateLimiter != nil {
		if err := s.rateLimiter.CheckLimit("login:" + username); err != nil {
			s.auditLogger.Log(&audit.Event{
				Level:    audit.LevelWarning,
				Action:   audit.ActionLoginRateLimited,
				Resource: "auth",
				Success:  false,
				ErrorMsg: "rate limit exceeded",
				Metadata: username,
			})
			log.Warn("login rate limited")
			return nil, err
		}
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if errors.Is(err, errors.ErrUserNotFound) {
		s.hasher.VerifyDummy(password)

		s.auditLogger.Log(&audit.Event{
			Level:    audit.LevelWarning,
			Action:   audit.ActionLogin,
			Resource: "auth",
			Success:  false,
			ErrorMsg: "unknown username",
			Metadata: username,
		})
		return nil, errors.ErrInvalidCredentials
	}
	if err != nil {
		log.Error("failed to load account", "error", err)
		return nil, errors.Storage("load account", err)
	}

	if account.IsLocked() {
		s.auditLogger.Log(&audit.Event{
			Level:    audit.LevelWarning,
			UserID:   &account.ID,
			Action:   audit.ActionLoginLocked,
			Resource: "auth",
			Success:  false,
		})
		return nil, errors.ErrAccountLocked
	}

	// bcrypt runs outside the write transaction
	valid, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		log.Error("stored password hash unusable", "error", err)
		return nil, fmt.Errorf("authentication failed: %w", err)
	}

	var (
		failures int
		status   models.AccountStatus
	)
	now := time.Now()
	err = s.tm.Execute(ctx, func(tx *sql.Tx) error {
		repo := s.accounts.WithTx(tx)
		failures, status = 0, ""

		current, err := repo.GetByID(ctx, account.ID)
		if err != nil {
			return err
		}
		if current.IsLocked() {
			return errors.ErrAccountLocked
		}

		ok := valid
		if current.PasswordHash != account.PasswordHash {
			if ok, err = s.hasher.Verify(password, current.PasswordHash); err != nil {
				return err
			}
		}

		if !ok {
			failures, status, err = repo.RecordFailedLogin(ctx, account.ID, models.MaxFailedLoginAttempts)
			return err
		}

		changed, err := repo.RecordSuccessfulLogin(ctx, account.ID, now)
		if err != nil {
			return err
		}
		if !changed {
			return errors.ErrAccountLocked
		}
		status = models.StatusActive
		return nil
	})

	switch {
	case errors.Is(err, errors.ErrAccountLocked):
		s.auditLogger.Log(&audit.Event{
			Level:    audit.LevelWarning,
			UserID:   &account.ID,
			Action:   audit.ActionLoginLocked,
			Resource: "auth",
			Success:  false,
		})
		return nil, errors.ErrAccountLocked
	case errors.Is(err, errors.ErrUserNotFound):
		return nil, errors.ErrInvalidCredentials
	case err != nil:
		log.Error("login transaction failed", "error", err)
		return nil, errors.Storage("record login", err)
	}

	if failures > 0 {
		s.auditLogger.Log(&audit.Event{
			Level:    audit.LevelWarning,
			UserID:   &account.ID,
			Action:   audit.ActionLogin,
			Resource: "auth",
			Success:  false,
			ErrorMsg: "invalid password",
		})

		if status == models.StatusLocked {
			s.auditLogger.Log(&audit.Event{
				Level:    audit.LevelCritical,
				UserID:   &account.ID,
				Action:   audit.ActionLoginLockedAuto,
				Resource: "auth",
				Success:  false,
				ErrorMsg: fmt.Sprintf("account locked after %d failed attempts", failures),
			})
			log.Warn("account locked", "failed_attempts", failures)
		}
		return nil, errors.ErrInvalidCredentials
	}

	session := s.issuer.Issue(account)

	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   &account.ID,
		Action:   audit.ActionLogin,
		Resource: "auth",
		Success:  true,
	})
	log.Info("login succeeded", "user_id", account.ID, "role", account.Role)

	return session, nil
}

// LoginAs authenticates and then requires the account to hold role. An
// empty role accepts any.
func (s *AuthService) LoginAs(ctx context.Context, req *models.LoginRequest) (*models.Session, error) {
	username := s.validator.SanitizeString(req.Username)

	session, err := s.AttemptLogin(ctx, username, req.Password)
	if err != nil {
		return nil, err
	}

	if req.Role != "" && session.Role() != req.Role {
		userID := session.UserID()
		s.auditLogger.Log(&audit.Event{
			Level:    audit.LevelWarning,
			UserID:   &userID,
			Action:   audit.ActionLoginWrongRole,
			Resource: "auth",
			Success:  false,
			Metadata: string(req.Role),
		})
		return nil, errors.NewAppError(errors.ErrInvalidCredentials, "incorrect role selected for this user", http.StatusUnauthorized)
	}

	return session, nil
}

// ChangePassword re-verifies the current password and stores a hash of
// the new one. The write only lands if the stored hash did not change in
// between.
func (s *AuthService) ChangePassword(ctx context.Context, session *models.Session, req *models.ChangePasswordRequest) error {
	if session == nil {
		return errors.ErrSessionMissing
	}
	userID := session.UserID()

	if err := s.validator.ValidatePassword(req.NewPassword); err != nil {
		return err
	}

	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return err
		}
		return errors.Storage("load account", err)
	}

	valid, err := s.hasher.Verify(req.OldPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		s.auditLogger.Log(&audit.Event{
			Level:    audit.LevelWarning,
			UserID:   &userID,
			Action:   audit.ActionPasswordChangeFailed,
			Resource: "auth",
			Success:  false,
			ErrorMsg: "current password is incorrect",
		})
		return errors.NewAppError(errors.ErrInvalidCredentials, "current password is incorrect", http.StatusUnauthorized)
	}

	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}

	var swapped bool
	err = s.tm.Execute(ctx, func(tx *sql.Tx) error {
		swapped, err = s.accounts.WithTx(tx).UpdatePasswordHash(ctx, userID, account.PasswordHash, newHash)
		return err
	})
	if err != nil {
		return errors.Storage("update password", err)
	}
	if !swapped {
		return errors.NewAppError(errors.ErrInvalidCredentials, "password was changed by another session, try again", http.StatusConflict)
	}

	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   &userID,
		Action:   audit.ActionPasswordChanged,
		Resource: "auth",
		Success:  true,
	})
	logger.FromContext(ctx).Info("password changed", "user_id", userID)

	return nil
}

// Logout records the end of a session. Adapters discard the session value.
func (s *AuthService) Logout(ctx context.Context, session *models.Session) error {
	if session == nil {
		return errors.ErrSessionMissing
	}

	userID := session.UserID()
	s.auditLogger.Log(&audit.Event{
		Level:    audit.LevelInfo,
		UserID:   &userID,
		Action:   audit.ActionLogout,
		Resource: "auth",
		Success:  true,
		Metadata: session.ID(),
	})
	logger.FromContext(ctx).Info("logout", "user_id", userID)

	return nil
}
