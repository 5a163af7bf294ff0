package api

import (
	"net/http"
	"time"

	"github.com/amirk1998/univ-erp/internal/models"
)

const sessionName = "univ-erp-session"

// Cookie value keys.
const (
	keySessionID = "sid"
	keyUserID    = "uid"
	keyUsername  = "username"
	keyRole      = "role"
	keyIssuedAt  = "iat"
)

// currentSession rebuilds the session from the signed cookie. It returns
// nil when there is none or the cookie does not verify.
func (s *Server) currentSession(r *http.Request) *models.Session {
	cookie, err := s.store.Get(r, sessionName)
	if err != nil || cookie.IsNew {
		return nil
	}

	id, ok1 := cookie.Values[keySessionID].(string)
	userID, ok2 := cookie.Values[keyUserID].(int)
	username, ok3 := cookie.Values[keyUsername].(string)
	role, ok4 := cookie.Values[keyRole].(string)
	issuedAt, ok5 := cookie.Values[keyIssuedAt].(int64)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !models.Role(role).Valid() {
		return nil
	}

	return models.NewSession(id, userID, username, models.Role(role), time.Unix(issuedAt, 0).UTC())
}

func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, session *models.Session) error {
	cookie, _ := s.store.New(r, sessionName)
	cookie.Values[keySessionID] = session.ID()
	cookie.Values[keyUserID] = session.UserID()
	cookie.Values[keyUsername] = session.Username()
	cookie.Values[keyRole] = string(session.Role())
	cookie.Values[keyIssuedAt] = session.IssuedAt().Unix()
	return cookie.Save(r, w)
}

func (s *Server) clearSession(w http.ResponseWriter, r *http.Request) error {
	cookie, _ := s.store.Get(r, sessionName)
	cookie.Values = map[any]any{}
	cookie.Options.MaxAge = -1
	return cookie.Save(r, w)
}
