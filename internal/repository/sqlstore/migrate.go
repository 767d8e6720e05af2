package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every pending up migration. Running it against an
// up-to-date schema is a no-op.
func Migrate(driver, dsn string) error {
	return runMigrations(driver, dsn, func(m *migrate.Migrate) error { return m.Up() })
}

// MigrateDown rolls back n migrations, or all of them when n <= 0.
func MigrateDown(driver, dsn string, n int) error {
	return runMigrations(driver, dsn, func(m *migrate.Migrate) error {
		if n <= 0 {
			return m.Down()
		}
		return m.Steps(-n)
	})
}

// runMigrations uses its own *sql.DB: closing a migrate instance closes the
// database handle it was given.
func runMigrations(driver, dsn string, run func(*migrate.Migrate) error) error {
	dsn, err := prepareDSN(driver, dsn)
	if err != nil {
		return err
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("sqlstore: opening database for migrations: %w", err)
	}

	var target database.Driver
	switch driver {
	case DriverPostgres:
		target, err = postgres.WithInstance(conn, &postgres.Config{})
	default:
		target, err = migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	}
	if err != nil {
		conn.Close()
		return fmt.Errorf("sqlstore: preparing migration driver: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		target.Close()
		return fmt.Errorf("sqlstore: loading embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		src.Close()
		target.Close()
		return fmt.Errorf("sqlstore: creating migrator: %w", err)
	}
	defer m.Close()

	if err := run(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlstore: running migrations: %w", err)
	}
	return nil
}
