package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirk1998/univ-erp/internal/access"
	"github.com/amirk1998/univ-erp/internal/audit"
	"github.com/amirk1998/univ-erp/internal/config"
	"github.com/amirk1998/univ-erp/internal/database"
	"github.com/amirk1998/univ-erp/internal/logger"
	"github.com/amirk1998/univ-erp/internal/ratelimit"
	"github.com/amirk1998/univ-erp/internal/repository"
	"github.com/amirk1998/univ-erp/internal/security"
	"github.com/amirk1998/univ-erp/internal/service"
)

type Application struct {
	config       *config.Config
	db           *sql.DB
	auditLogger  *audit.Logger
	auditMonitor *audit.Monitor
	rateLimiter  *ratelimit.RateLimiter
	policy       *access.Policy

	auth       *service.AuthService
	enrollment *service.EnrollmentService
	grades     *service.GradeService
	admin      *service.AdminService
}

// initializeApplication connects to the database, migrates it and wires
// the services.
func initializeApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	db, err := database.Connect(database.Config{
		Path:          cfg.DBPath,
		EncryptionKey: cfg.DBEncryptionKey,
		BusyTimeout:   cfg.DBBusyTimeout,
		MaxOpenConns:  cfg.DBMaxOpenConns,
		MaxIdleConns:  5,
		MaxLifetime:   1 * time.Hour,
		MaxIdleTime:   10 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	auditLogger, err := audit.NewLogger(ctx, db, cfg.AuditLogPath, cfg.AuditAsyncMode)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit logger: %w", err)
	}

	tm := database.NewTransactionManager(db)
	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	rateLimiter := ratelimit.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	policy := access.NewPolicy(repository.NewSettingsRepository(db))

	logger.FromContext(ctx).Debug("application initialized", "db", cfg.DBPath, "env", cfg.Environment)

	return &Application{
		config:       cfg,
		db:           db,
		auditLogger:  auditLogger,
		auditMonitor: audit.NewMonitor(auditLogger),
		rateLimiter:  rateLimiter,
		policy:       policy,
		auth:         service.NewAuthService(tm, hasher, rateLimiter, auditLogger),
		enrollment:   service.NewEnrollmentService(tm, policy, auditLogger),
		grades:       service.NewGradeService(tm, policy, auditLogger),
		admin:        service.NewAdminService(tm, hasher, policy, auditLogger),
	}, nil
}

// cleanup flushes the audit log and closes the database.
func (app *Application) cleanup() {
	if app.auditLogger != nil {
		if err := app.auditLogger.Close(); err != nil {
			logger.GetDefault().Warn("failed to close audit logger", "error", err)
		}
	}

	if app.db != nil {
		logger.GetDefault().Debug("database pool", database.GetStats(app.db)...)
		app.db.Close()
	}
}

// startBackgroundWorkers runs the security monitor and the limiter
// cleanup until ctx is done.
func (app *Application) startBackgroundWorkers(ctx context.Context) {
	go app.rateLimiter.StartCleanupWorker(ctx, 5*time.Minute)
	go app.auditMonitor.Run(ctx, 5*time.Minute)
}
