package migrate

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func migrations(opts Options) []*goose.Migration {
	return []*goose.Migration{
		goose.NewGoMigration(1,
			&goose.GoFunc{RunTx: execAll(opts.baseTablesUp())},
			&goose.GoFunc{RunTx: execAll(opts.baseTablesDown())},
		),
		goose.NewGoMigration(2,
			&goose.GoFunc{RunTx: execAll(opts.forceLogoutUp())},
			&goose.GoFunc{RunTx: execAll(opts.forceLogoutDown())},
		),
	}
}

func execAll(statements []string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

func (o Options) idColumn() string {
	if o.Dialect == DialectPostgres {
		return "id BIGSERIAL PRIMARY KEY"
	}
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (o Options) baseTablesUp() []string {
	users := o.qualify("users")
	confirmations := o.qualify("users_confirmations")
	resets := o.qualify("users_resets")
	remembered := o.qualify("users_remembered")
	throttling := o.qualify("users_throttling")

	return []string{
		`CREATE TABLE IF NOT EXISTS ` + users + ` (
			` + o.idColumn() + `,
			email TEXT NOT NULL UNIQUE,
			username TEXT,
			password TEXT NOT NULL,
			status SMALLINT NOT NULL DEFAULT 0,
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			resettable BOOLEAN NOT NULL DEFAULT TRUE,
			roles_mask BIGINT NOT NULL DEFAULT 0,
			registered BIGINT NOT NULL,
			last_login BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS ` + confirmations + ` (
			` + o.idColumn() + `,
			user_id BIGINT NOT NULL,
			email TEXT NOT NULL,
			selector TEXT NOT NULL UNIQUE,
			token TEXT NOT NULL,
			expires BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ` + o.Prefix + `users_confirmations_email_expires
			ON ` + confirmations + ` (email, expires)`,
		`CREATE INDEX IF NOT EXISTS ` + o.Prefix + `users_confirmations_user_id
			ON ` + confirmations + ` (user_id)`,

		`CREATE TABLE IF NOT EXISTS ` + resets + ` (
			` + o.idColumn() + `,
			user_id BIGINT NOT NULL,
			selector TEXT NOT NULL UNIQUE,
			token TEXT NOT NULL,
			expires BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ` + o.Prefix + `users_resets_user_expires
			ON ` + resets + ` (user_id, expires)`,

		`CREATE TABLE IF NOT EXISTS ` + remembered + ` (
			` + o.idColumn() + `,
			user_id BIGINT NOT NULL,
			selector TEXT NOT NULL UNIQUE,
			token TEXT NOT NULL,
			expires BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ` + o.Prefix + `users_remembered_user_id
			ON ` + remembered + ` (user_id)`,

		`CREATE TABLE IF NOT EXISTS ` + throttling + ` (
			bucket TEXT PRIMARY KEY,
			attempts INTEGER NOT NULL,
			window_start BIGINT NOT NULL,
			cooldown_until BIGINT NOT NULL
		)`,
	}
}

func (o Options) baseTablesDown() []string {
	return []string{
		`DROP TABLE IF EXISTS ` + o.qualify("users_throttling"),
		`DROP TABLE IF EXISTS ` + o.qualify("users_remembered"),
		`DROP TABLE IF EXISTS ` + o.qualify("users_resets"),
		`DROP TABLE IF EXISTS ` + o.qualify("users_confirmations"),
		`DROP TABLE IF EXISTS ` + o.qualify("users"),
	}
}

// forceLogoutUp adds the session version counter. Kept as its own migration
// so deployments created before the counter existed pick it up on upgrade.
func (o Options) forceLogoutUp() []string {
	return []string{
		`ALTER TABLE ` + o.qualify("users") + ` ADD COLUMN force_logout BIGINT NOT NULL DEFAULT 0`,
	}
}

func (o Options) forceLogoutDown() []string {
	return []string{
		`ALTER TABLE ` + o.qualify("users") + ` DROP COLUMN force_logout`,
	}
}
