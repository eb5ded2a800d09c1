package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// SQLSTATE class 23, unique_violation.
const pgUniqueViolation = "23505"

// uniqueViolationHint extracts a column/constraint hint from a driver-level
// unique violation. PostgreSQL reports SQLSTATE 23505 with the violated
// constraint name ("auth_users_email_key"); SQLite reports an extended
// constraint code with the column in the message ("UNIQUE constraint failed:
// auth_users.email"). The hint is matched by substring against the column
// names the caller cares about.
func uniqueViolationHint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			return pgErr.ConstraintName, true
		}
		return "", false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return sqliteErr.Error(), true
		}
	}

	return "", false
}

// classifyUserConflict maps a write error on the users table to the typed
// duplicate it represents, or wraps it as an opaque storage error.
func classifyUserConflict(err error) error {
	hint, ok := uniqueViolationHint(err)
	if !ok {
		return fmt.Errorf("db error: %w", err)
	}
	switch {
	case strings.Contains(hint, "email"):
		return ErrDuplicateEmail
	case strings.Contains(hint, "username"):
		return ErrDuplicateUsername
	default:
		return fmt.Errorf("db error: %w", err)
	}
}
