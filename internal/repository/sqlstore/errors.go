package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/agrilink/internal/apperror"
)

// pgUniqueViolation is the SQLSTATE Postgres uses for unique_violation.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// conflictField guesses which column a unique violation was about. Both
// drivers name the column or the constraint in the message.
func conflictField(err error) string {
	msg := err.Error()
	for _, f := range []string{"email", "phone", "oauth"} {
		if strings.Contains(msg, f) {
			return f
		}
	}
	return ""
}

// translate maps driver errors onto apperror values. Anything else is
// wrapped with op for context.
func translate(err error, resource, id, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return apperror.NotFound(resource, id)
	case isUniqueViolation(err):
		field := conflictField(err)
		msg := "already exists"
		if field == "email" || field == "phone" {
			msg = field + " already registered"
		}
		e := apperror.Conflict(resource, msg)
		e.Field = field
		return e
	}
	return fmt.Errorf("sqlstore: %s: %w", op, err)
}
