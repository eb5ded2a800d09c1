// Package migrate creates and evolves the authcore tables.
//
// The DDL cannot live in embedded .sql files because table names carry a
// deployment-chosen prefix and, on PostgreSQL, an optional schema. Migrations
// are therefore registered as Go functions that render the statements for the
// configured names, and goose tracks applied versions in a prefixed table of
// its own.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

// Dialect selects the DDL flavor. The values match the driver names used by
// goose.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// Options locate the tables.
type Options struct {
	Dialect Dialect
	// Schema optionally qualifies every table name. PostgreSQL only; the
	// schema itself must already exist.
	Schema string
	// Prefix is prepended to every table name, e.g. "auth_".
	Prefix string
}

func (o Options) qualify(name string) string {
	name = o.Prefix + name
	if o.Schema != "" {
		name = o.Schema + "." + name
	}
	return name
}

// Up applies every pending migration. It is safe to call on every startup.
func Up(ctx context.Context, db *sql.DB, opts Options) error {
	switch opts.Dialect {
	case DialectPostgres, DialectSQLite:
	default:
		return fmt.Errorf("migrate: unsupported dialect %q", opts.Dialect)
	}

	store, err := database.NewStore(database.Dialect(opts.Dialect), opts.qualify("migrations"))
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	provider, err := goose.NewProvider("", db, nil,
		goose.WithStore(store),
		goose.WithGoMigrations(migrations(opts)...),
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
