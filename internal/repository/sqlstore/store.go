// Package sqlstore implements the repository interfaces on top of sqlx.
//
// One code path serves both databases we run on: Postgres in production
// (lib/pq) and SQLite for local development and tests (modernc.org/sqlite,
// pure Go, no CGo). Queries are written with "?" placeholders and passed
// through Rebind, which rewrites them to "$1, $2..." for Postgres. The
// schema sticks to types both engines understand.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/sakif/agrilink/internal/repository"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// foreign keys are off by default in SQLite and the setting is per
// connection, so it goes in the DSN rather than a one-off PRAGMA.
const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

var _ repository.Store = (*DB)(nil)

// DB wraps the sqlx pool and implements repository.Store.
type DB struct {
	conn *sqlx.DB
}

// Open connects to driver/dsn and verifies the connection. It does not run
// migrations; call Migrate first.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	dsn, err := prepareDSN(driver, dsn)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite allows one writer at a time. A single connection turns
		// writer contention into queueing instead of SQLITE_BUSY errors.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: pinging %s database: %w", driver, err)
	}
	return &DB{conn: conn}, nil
}

// NewFromSQLX wraps an existing handle. Tests use it with sqlmock.
func NewFromSQLX(conn *sqlx.DB) *DB {
	return &DB{conn: conn}
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the readiness probe.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// prepareDSN validates the driver and, for SQLite, makes sure the parent
// directory exists and the connection pragmas are set.
func prepareDSN(driver, dsn string) (string, error) {
	switch driver {
	case DriverPostgres:
		return dsn, nil
	case DriverSQLite:
	default:
		return "", fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("sqlstore: creating database directory: %w", err)
		}
	}

	if strings.Contains(dsn, "_pragma=") {
		return dsn, nil
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + sqlitePragmas, nil
}

// q rebinds a "?" query for the connected driver.
func (db *DB) q(query string) string {
	return db.conn.Rebind(query)
}

// withTx runs fn inside a transaction, committing when fn returns nil.
// Inside fn every statement must go through tx: on SQLite the pool has a
// single connection and tx is holding it.
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: committing transaction: %w", err)
	}
	return nil
}

// affectedOne turns a zero-row update into NotFound.
func affectedOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: reading rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// nowUTC is the clock for every stored timestamp. SQLite compares
// timestamps as text, so they must all share one zone.
func nowUTC() time.Time {
	return time.Now().UTC()
}
