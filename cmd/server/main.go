// Package main is the entry point for the AgriLink API server.
//
// The main package stays minimal: read configuration, build the logger,
// bring the schema up to date, and hand everything else to internal/server.
// The cmd/ directory is the Go convention for executables; the admin CLI
// lives next door in cmd/agrilinkctl.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sakif/agrilink/internal/config"
	"github.com/sakif/agrilink/internal/logging"
	"github.com/sakif/agrilink/internal/repository/sqlstore"
	"github.com/sakif/agrilink/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// === 1. CONFIGURATION ===
	// Values come from the environment, with an optional .env file for
	// local development. JWT_SECRET is the only required setting.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// === 2. LOGGING ===
	// LOG_FILE adds a rotated file next to stdout; closing flushes it.
	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	// === 3. SCHEMA ===
	// Migrations are embedded in the binary, so a fresh deploy needs no
	// extra step. Running against an up-to-date schema is a no-op.
	if err := sqlstore.Migrate(cfg.DBDriver, cfg.DatabaseURL); err != nil {
		logger.Error("migrations failed", slog.String("error", err.Error()))
		return err
	}

	// === 4. SERVE ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
