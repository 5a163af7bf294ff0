package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amirk1998/univ-erp/internal/config"
	"github.com/amirk1998/univ-erp/internal/logger"
)

// RootCmd returns the univ-erp command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "univ-erp",
		Short:         "University ERP: enrollment, grading and accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level, _ := cmd.Flags().GetString("log-level")
			json, _ := cmd.Flags().GetBool("log-json")
			logger.Setup(level, json)
		},
	}

	root.PersistentFlags().String("log-level", envOr("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	root.PersistentFlags().Bool("log-json", os.Getenv("LOG_JSON") == "true", "Emit logs as JSON")

	root.AddCommand(
		MigrateCmd(),
		ServeCmd(),
		ShellCmd(),
		AdminCmd(),
	)

	return root
}

// MigrateCmd returns the schema migration command
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, _ *Application) error {
				fmt.Fprintln(cmd.OutOrStdout(), "[OK] schema is up to date")
				return nil
			})
		},
	}
}

// withApp loads configuration, builds the application and runs fn with a
// context cancelled on SIGINT or SIGTERM.
func withApp(cmd *cobra.Command, fn func(context.Context, *Application) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ContextWithLogger(ctx, logger.GetDefault())

	app, err := initializeApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.cleanup()

	return fn(ctx, app)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
