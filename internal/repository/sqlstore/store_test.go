package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/agrilink/internal/model"
)

// newTestDB migrates a throwaway SQLite file and opens it. A file rather
// than ":memory:" because the migrator runs on its own connection.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agrilink.db")
	require.NoError(t, Migrate(DriverSQLite, path))

	db, err := Open(context.Background(), DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr[T any](v T) *T { return &v }

func createTestUser(t *testing.T, db *DB, email string, ut model.UserType) *model.User {
	t.Helper()
	u := &model.User{
		Email:        ptr(email),
		PasswordHash: "hash",
		Name:         "User " + email,
		UserType:     ut,
	}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func createTestProduct(t *testing.T, db *DB, sellerID, name string) *model.Product {
	t.Helper()
	p := &model.Product{
		SellerID: sellerID,
		Name:     name,
		Category: "rice",
		Price:    1500,
		Unit:     "kg",
		Quantity: 100,
		Region:   "Yangon",
		IsActive: true,
	}
	require.NoError(t, db.CreateProduct(context.Background(), p))
	return p
}

func TestMigrate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agrilink.db")
	require.NoError(t, Migrate(DriverSQLite, path))
	require.NoError(t, Migrate(DriverSQLite, path), "second run should be a no-op")
}

func TestMigrateDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agrilink.db")
	require.NoError(t, Migrate(DriverSQLite, path))
	require.NoError(t, MigrateDown(DriverSQLite, path, 0))

	db, err := Open(context.Background(), DriverSQLite, path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	err = db.conn.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'users'`)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "whatever")
	assert.Error(t, err)
}

func TestPrepareDSN(t *testing.T) {
	dir := t.TempDir()

	got, err := prepareDSN(DriverSQLite, filepath.Join(dir, "a", "db.sqlite"))
	require.NoError(t, err)
	assert.Contains(t, got, "?_pragma=foreign_keys(1)")
	assert.DirExists(t, filepath.Join(dir, "a"))

	got, err = prepareDSN(DriverSQLite, ":memory:?cache=shared")
	require.NoError(t, err)
	assert.Contains(t, got, "&_pragma=")

	got, err = prepareDSN(DriverPostgres, "postgres://u:p@localhost/db")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/db", got)
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}
