// Package commands holds the agrilinkctl sub-commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/sakif/agrilink/internal/config"
	"github.com/sakif/agrilink/internal/logging"
	"github.com/sakif/agrilink/internal/repository/sqlstore"
)

// Register adds every command group to root.
func Register(root *cobra.Command) {
	root.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	InitMigrateCommands(root)
	InitAdminCommands(root)
	InitOfferCommands(root)
}

// databaseSettings is the subset of the server config that migrations
// need. Unlike config.Load it does not insist on JWT_SECRET.
type databaseSettings struct {
	Driver string `envconfig:"DB_DRIVER" default:"sqlite"`
	URL    string `envconfig:"DATABASE_URL" default:"data/agrilink.db"`
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading .env: %w", err)
	}
	return nil
}

func readDatabaseSettings() (databaseSettings, error) {
	var s databaseSettings
	if err := loadDotEnv(); err != nil {
		return s, err
	}
	if err := envconfig.Process("", &s); err != nil {
		return s, fmt.Errorf("reading database settings: %w", err)
	}
	return s, nil
}

func setupLogger(cmd *cobra.Command) (*slog.Logger, error) {
	level, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, fmt.Errorf("invalid log-level flag: %w", err)
	}
	logger, _, err := logging.New(logging.Options{Level: level, Format: "text"})
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	return logger, nil
}

// openStore loads the full server config and opens its database. The
// schema must be migrated.
func openStore(ctx context.Context) (config.Config, *sqlstore.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	db, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, db, nil
}
