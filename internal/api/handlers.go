package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/amirk1998/univ-erp/internal/logger"
	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/pkg/errors"
)

type sessionResponse struct {
	SessionID string      `json:"session_id"`
	UserID    int         `json:"user_id"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := s.svc.Auth.LoginAs(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.saveSession(w, r, session); err != nil {
		writeError(w, r, errors.Storage("save session cookie", err))
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: session.ID(),
		UserID:    session.UserID(),
		Username:  session.Username(),
		Role:      session.Role(),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session := s.currentSession(r)
	if session == nil {
		writeError(w, r, errors.ErrSessionMissing)
		return
	}

	if err := s.svc.Auth.Logout(r.Context(), session); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.clearSession(w, r); err != nil {
		logger.FromContext(r.Context()).Warn("failed to clear session cookie", "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.svc.Auth.ChangePassword(r.Context(), s.currentSession(r), &req); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := models.CatalogFilters{
		Semester:   q.Get("semester"),
		CourseCode: q.Get("course"),
	}
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, errors.NewAppError(errors.ErrInvalidInput, "year must be a number", http.StatusBadRequest))
			return
		}
		filters.Year = year
	}

	entries, err := s.svc.Enrollment.Catalog(r.Context(), s.currentSession(r), filters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleMyEnrollments(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Enrollment.MyEnrollments(r.Context(), s.currentSession(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleMyGrades(w http.ResponseWriter, r *http.Request) {
	sheet, err := s.svc.Grades.MyGrades(r.Context(), s.currentSession(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sheet)
}

func (s *Server) handleMySections(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Enrollment.InstructorSections(r.Context(), s.currentSession(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	sectionID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.svc.Enrollment.Register(r.Context(), s.currentSession(r), sectionID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"section_id": sectionID})
}

func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	sectionID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.svc.Enrollment.Drop(r.Context(), s.currentSession(r), sectionID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleComputeFinal(w http.ResponseWriter, r *http.Request) {
	if s.currentSession(r) == nil {
		writeError(w, r, errors.ErrSessionMissing)
		return
	}

	var rows []models.GradeRow
	if err := decodeJSON(w, r, &rows); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Grades.ComputeFinal(rows))
}

func (s *Server) handleSaveScores(w http.ResponseWriter, r *http.Request) {
	sectionID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var rows []models.GradeRow
	if err := decodeJSON(w, r, &rows); err != nil {
		writeError(w, r, err)
		return
	}

	saved, err := s.svc.Grades.SaveScores(r.Context(), s.currentSession(r), sectionID, rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleGradebook(w http.ResponseWriter, r *http.Request) {
	sectionID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := s.svc.Grades.Gradebook(r.Context(), s.currentSession(r), sectionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleClassAverage(w http.ResponseWriter, r *http.Request) {
	sectionID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	avg, graded, err := s.svc.Grades.ClassAverage(r.Context(), s.currentSession(r), sectionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"average": avg, "graded": graded})
}

func (s *Server) handleGetMaintenance(w http.ResponseWriter, r *http.Request) {
	on, err := s.svc.Admin.MaintenanceOn(r.Context(), s.currentSession(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"on": on})
}

func (s *Server) handleSetMaintenance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		On bool `json:"on"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.svc.Admin.SetMaintenance(r.Context(), s.currentSession(r), body.On); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"on": body.On})
}

func (s *Server) handleSetSetting(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	key := mux.Vars(r)["key"]
	if err := s.svc.Admin.SetSetting(r.Context(), s.currentSession(r), key, body.Value); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	account, err := s.svc.Admin.CreateAccount(r.Context(), s.currentSession(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleUnlockAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.svc.Admin.UnlockAccount(r.Context(), s.currentSession(r), accountID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.svc.Admin.DeleteAccount(r.Context(), s.currentSession(r), accountID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCourseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	course, err := s.svc.Admin.CreateCourse(r.Context(), s.currentSession(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

func (s *Server) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	section, err := s.svc.Admin.CreateSection(r.Context(), s.currentSession(r), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, section)
}

func (s *Server) handleUpdateCapacity(w http.ResponseWriter, r *http.Request) {
	sectionID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body struct {
		Capacity int `json:"capacity"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.svc.Admin.UpdateSectionCapacity(r.Context(), s.currentSession(r), sectionID, body.Capacity); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
