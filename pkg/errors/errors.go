package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Custom error types for better error handling
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrAccountLocked      = errors.New("account locked after too many failed attempts")
	ErrSessionMissing     = errors.New("no active session")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")

	// Policy errors
	ErrAccessDenied = errors.New("access denied")

	// Enrollment errors
	ErrSectionNotFound = errors.New("section not found")
	ErrDeadlinePassed  = errors.New("deadline has passed")
	ErrAlreadyEnrolled = errors.New("already enrolled in this section")
	ErrSectionFull     = errors.New("section is full")
	ErrNotEnrolled     = errors.New("not enrolled in this section")

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrWeakPassword    = errors.New("password does not meet requirements")
	ErrInvalidUsername = errors.New("invalid username format")

	// Database errors
	ErrStorage        = errors.New("storage error")
	ErrRecordNotFound = errors.New("record not found")

	// Rate limiting errors
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// AppError wraps errors with additional context
type AppError struct {
	Err     error
	Message string
	Code    int
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error
func NewAppError(err error, message string, code int) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// AccessDenied returns a policy violation carrying a human-readable reason.
func AccessDenied(reason string) *AppError {
	return NewAppError(ErrAccessDenied, reason, http.StatusForbidden)
}

// StorageError wraps an I/O or transaction failure. It matches ErrStorage
// and the underlying cause with errors.Is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage, e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// Storage wraps err as a *StorageError unless it is nil or already one.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// HTTPStatus maps an error from the core to the status code adapters report.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrSessionMissing):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccountLocked), errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrSectionNotFound), errors.Is(err, ErrUserNotFound), errors.Is(err, ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyEnrolled), errors.Is(err, ErrSectionFull),
		errors.Is(err, ErrNotEnrolled), errors.Is(err, ErrDeadlinePassed),
		errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrWeakPassword), errors.Is(err, ErrInvalidUsername):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
