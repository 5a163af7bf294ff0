package audit

import "time"

type LogLevel string

const (
	LevelInfo     LogLevel = "INFO"
	LevelWarning  LogLevel = "WARNING"
	LevelError    LogLevel = "ERROR"
	LevelCritical LogLevel = "CRITICAL"
)

// Actions recorded in the audit trail.
const (
	ActionLogin                = "LOGIN"
	ActionLoginLocked          = "LOGIN_ACCOUNT_LOCKED"
	ActionLoginLockedAuto      = "LOGIN_ACCOUNT_LOCKED_AUTO"
	ActionLoginRateLimited     = "LOGIN_RATE_LIMITED"
	ActionLoginWrongRole       = "LOGIN_WRONG_ROLE"
	ActionLogout               = "LOGOUT"
	ActionPasswordChanged      = "PASSWORD_CHANGED"
	ActionPasswordChangeFailed = "PASSWORD_CHANGE_FAILED"
	ActionEnroll               = "ENROLL"
	ActionDrop                 = "DROP"
	ActionGradesSaved          = "GRADES_SAVED"
	ActionAdmin                = "ADMIN"
	ActionFailedLoginThreshold = "FAILED_LOGIN_THRESHOLD"
)

type Event struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	UserID    *int      `json:"user_id,omitempty"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IPAddress string    `json:"ip_address,omitempty"`
	Success   bool      `json:"success"`
	ErrorMsg  string    `json:"error_msg,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
}

type QueryFilters struct {
	StartTime *time.Time
	EndTime   *time.Time
	UserID    *int
	Action    string
	Success   *bool
	Level     LogLevel
	Limit     int
}
