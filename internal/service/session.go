package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/amirk1998/univ-erp/internal/models"
)

// SessionIssuer turns an authenticated account into a session value.
type SessionIssuer struct {
	now func() time.Time
}

func NewSessionIssuer() *SessionIssuer {
	return &SessionIssuer{now: time.Now}
}

// Issue builds a fresh session for account with a random ID.
func (si *SessionIssuer) Issue(account *models.Account) *models.Session {
	return models.NewSession(
		uuid.NewString(),
		account.ID,
		account.Username,
		account.Role,
		si.now().UTC(),
	)
}
