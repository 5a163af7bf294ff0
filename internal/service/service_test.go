package service_test

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amirk1998/univ-erp/internal/access"
	"github.com/amirk1998/univ-erp/internal/audit"
	"github.com/amirk1998/univ-erp/internal/database"
	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/internal/ratelimit"
	"github.com/amirk1998/univ-erp/internal/repository"
	"github.com/amirk1998/univ-erp/internal/service"
	"github.com/amirk1998/univ-erp/internal/testutil"
)

type fixture struct {
	db       *sql.DB
	settings *repository.SettingsRepository
	audit    *audit.Logger
	auth     *service.AuthService
	enroll   *service.EnrollmentService
	grades   *service.GradeService
	admin    *service.AdminService
}

type fixtureOptions struct {
	policy  []access.Option
	limiter *ratelimit.RateLimiter
}

type fixtureOption func(*fixtureOptions)

func withClock(now time.Time) fixtureOption {
	return func(o *fixtureOptions) {
		o.policy = append(o.policy, access.WithClock(func() time.Time { return now }), access.WithLocation(time.UTC))
	}
}

func withLimiter(rl *ratelimit.RateLimiter) fixtureOption {
	return func(o *fixtureOptions) { o.limiter = rl }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	var o fixtureOptions
	for _, opt := range opts {
		opt(&o)
	}

	db := testutil.OpenDB(t)
	al, err := audit.NewLogger(testutil.Ctx(t), db, filepath.Join(t.TempDir(), "audit.log"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = al.Close() })

	tm := database.NewTransactionManager(db)
	settings := repository.NewSettingsRepository(db)
	policy := access.NewPolicy(settings, o.policy...)
	hasher := testutil.Hasher()

	return &fixture{
		db:       db,
		settings: settings,
		audit:    al,
		auth:     service.NewAuthService(tm, hasher, o.limiter, al),
		enroll:   service.NewEnrollmentService(tm, policy, al),
		grades:   service.NewGradeService(tm, policy, al),
		admin:    service.NewAdminService(tm, hasher, policy, al),
	}
}

// login signs in a fixture account created with testutil.Password.
func (f *fixture) login(t *testing.T, username string) *models.Session {
	t.Helper()
	session, err := f.auth.AttemptLogin(testutil.Ctx(t), username, testutil.Password)
	require.NoError(t, err)
	return session
}

func sessionFor(account *models.Account) *models.Session {
	return models.NewSession("test", account.ID, account.Username, account.Role, time.Now())
}

func score(v float64) *float64 { return &v }
