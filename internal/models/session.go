package models

import "time"

// Session is the in-memory proof of a successful login. Its fields are
// unexported so a Session cannot be altered after it is issued.
type Session struct {
	id       string
	userID   int
	username string
	role     Role
	issuedAt time.Time
}

// NewSession builds a session value. Only the auth service issues fresh
// sessions; adapters use it to rebuild one from a signed cookie.
func NewSession(id string, userID int, username string, role Role, issuedAt time.Time) *Session {
	return &Session{
		id:       id,
		userID:   userID,
		username: username,
		role:     role,
		issuedAt: issuedAt,
	}
}

func (s *Session) ID() string          { return s.id }
func (s *Session) UserID() int         { return s.userID }
func (s *Session) Username() string    { return s.username }
func (s *Session) Role() Role          { return s.role }
func (s *Session) IssuedAt() time.Time { return s.issuedAt }

func (s *Session) IsAdmin() bool      { return s != nil && s.role == RoleAdmin }
func (s *Session) IsInstructor() bool { return s != nil && s.role == RoleInstructor }
func (s *Session) IsStudent() bool    { return s != nil && s.role == RoleStudent }
