package models

import (
	"time"
)

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleInstructor Role = "INSTRUCTOR"
	RoleStudent    Role = "STUDENT"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleStudent:
		return true
	}
	return false
}

// AccountStatus is persisted verbatim in accounts.status.
type AccountStatus string

const (
	StatusActive AccountStatus = "ACTIVE"
	StatusLocked AccountStatus = "LOCKED"
)

// MaxFailedLoginAttempts is the lockout threshold.
const MaxFailedLoginAttempts = 5

type Account struct {
	ID             int           `json:"id"`
	Username       string        `json:"username"`
	Role           Role          `json:"role"`
	PasswordHash   string        `json:"-"` // Never expose in JSON
	Status         AccountStatus `json:"status"`
	FailedAttempts int           `json:"failed_attempts"`
	LastLogin      *time.Time    `json:"last_login,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsLocked reports whether the account refuses logins.
func (a *Account) IsLocked() bool {
	return a.Status == StatusLocked
}

type CreateAccountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role,omitempty"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}
