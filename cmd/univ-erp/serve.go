package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/spf13/cobra"

	"github.com/amirk1998/univ-erp/internal/api"
	"github.com/amirk1998/univ-erp/internal/logger"
	"github.com/amirk1998/univ-erp/internal/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd returns the HTTP server command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			return withApp(cmd, func(ctx context.Context, app *Application) error {
				if addr == "" {
					addr = app.config.HTTPAddr
				}
				return app.serve(ctx, addr)
			})
		},
	}

	cmd.Flags().String("addr", "", "Listen address (defaults to HTTP_ADDR)")
	return cmd
}

func (app *Application) serve(ctx context.Context, addr string) error {
	log := logger.FromContext(ctx)

	secret := []byte(app.config.SessionSecret)
	if len(secret) == 0 {
		// Sessions will not survive a restart.
		secret = securecookie.GenerateRandomKey(32)
		log.Warn("SESSION_SECRET not set, using an ephemeral key")
	}

	ipLimiter := ratelimit.NewRateLimiter(app.config.RateLimitRPS, app.config.RateLimitBurst)
	go ipLimiter.StartCleanupWorker(ctx, 5*time.Minute)

	server := api.NewServer(api.Services{
		Auth:       app.auth,
		Enrollment: app.enrollment,
		Grades:     app.grades,
		Admin:      app.admin,
		Limiter:    ipLimiter,
	}, api.NewCookieStore(secret, app.config.Environment == "production"), log)

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	app.startBackgroundWorkers(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
