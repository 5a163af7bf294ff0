// Package api exposes the ERP services over HTTP with a signed cookie
// session.
package api

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"

	"github.com/amirk1998/univ-erp/internal/logger"
	"github.com/amirk1998/univ-erp/internal/ratelimit"
	"github.com/amirk1998/univ-erp/internal/service"
)

// Services bundles the core services the handlers call.
type Services struct {
	Auth       *service.AuthService
	Enrollment *service.EnrollmentService
	Grades     *service.GradeService
	Admin      *service.AdminService

	// Limiter throttles login attempts per client address. Nil disables it.
	Limiter *ratelimit.RateLimiter
}

type Server struct {
	svc   Services
	store sessions.Store
	log   logger.Logger
}

// NewServer wires handlers to svc. store signs the session cookie.
func NewServer(svc Services, store sessions.Store, log logger.Logger) *Server {
	return &Server{svc: svc, store: store, log: log}
}

// NewCookieStore returns a cookie store signed with secret.
func NewCookieStore(secret []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((8 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.withLogger)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.Handle("/login", s.throttle(http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/password", s.handleChangePassword).Methods(http.MethodPost)

	api.HandleFunc("/sections", s.handleCatalog).Methods(http.MethodGet)
	api.HandleFunc("/me/enrollments", s.handleMyEnrollments).Methods(http.MethodGet)
	api.HandleFunc("/me/sections", s.handleMySections).Methods(http.MethodGet)
	api.HandleFunc("/me/grades", s.handleMyGrades).Methods(http.MethodGet)
	api.HandleFunc("/sections/{id:[0-9]+}/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/sections/{id:[0-9]+}/drop", s.handleDrop).Methods(http.MethodPost)

	api.HandleFunc("/grades/compute", s.handleComputeFinal).Methods(http.MethodPost)
	api.HandleFunc("/sections/{id:[0-9]+}/grades", s.handleSaveScores).Methods(http.MethodPut)
	api.HandleFunc("/sections/{id:[0-9]+}/grades", s.handleGradebook).Methods(http.MethodGet)
	api.HandleFunc("/sections/{id:[0-9]+}/average", s.handleClassAverage).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/maintenance", s.handleGetMaintenance).Methods(http.MethodGet)
	admin.HandleFunc("/maintenance", s.handleSetMaintenance).Methods(http.MethodPost)
	admin.HandleFunc("/settings/{key}", s.handleSetSetting).Methods(http.MethodPut)
	admin.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/{id:[0-9]+}/unlock", s.handleUnlockAccount).Methods(http.MethodPost)
	admin.HandleFunc("/accounts/{id:[0-9]+}", s.handleDeleteAccount).Methods(http.MethodDelete)
	admin.HandleFunc("/courses", s.handleCreateCourse).Methods(http.MethodPost)
	admin.HandleFunc("/sections", s.handleCreateSection).Methods(http.MethodPost)
	admin.HandleFunc("/sections/{id:[0-9]+}/capacity", s.handleUpdateCapacity).Methods(http.MethodPut)

	return r
}

// withLogger attaches a request-scoped logger to the request context.
func (s *Server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := s.log.With("request_id", uuid.NewString(), "method", r.Method, "path", r.URL.Path)
		ctx := logger.ContextWithLogger(r.Context(), log)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		log.Debug("request handled", "status", rec.status, "duration", time.Since(start))
	})
}

// throttle applies the per-address limiter.
func (s *Server) throttle(next http.Handler) http.Handler {
	if s.svc.Limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if err := s.svc.Limiter.CheckLimit("ip:" + host); err != nil {
			logger.FromContext(r.Context()).Warn("login throttled", "remote", host)
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
