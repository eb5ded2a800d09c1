package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ArrisFramework/authcore/internal/dbx"
)

// Confirmation is one outstanding email confirmation request. Email holds the
// address being confirmed, which differs from the account's current address
// while an email change is pending.
type Confirmation struct {
	ID        int64  `db:"id"`
	UserID    int64  `db:"user_id"`
	Email     string `db:"email"`
	Selector  string `db:"selector"`
	TokenHash string `db:"token"`
	Expires   int64  `db:"expires"`
}

type Confirmations struct {
	table string
}

func NewConfirmations(tables Tables) *Confirmations {
	return &Confirmations{table: tables.Confirmations}
}

func (c *Confirmations) Create(ctx context.Context, q dbx.DBTX, rec Confirmation) (int64, error) {
	query := q.Rebind("INSERT INTO " + c.table +
		" (user_id, email, selector, token, expires) VALUES (?, ?, ?, ?, ?) RETURNING id")

	var id int64
	err := q.QueryRowxContext(ctx, query,
		rec.UserID, rec.Email, rec.Selector, rec.TokenHash, rec.Expires,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (c *Confirmations) FindBySelector(ctx context.Context, q dbx.DBTX, selector string) (*Confirmation, error) {
	var rec Confirmation
	query := q.Rebind("SELECT id, user_id, email, selector, token, expires FROM " + c.table + " WHERE selector = ?")
	if err := q.GetContext(ctx, &rec, query, selector); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &rec, nil
}

// Delete removes a single row by id and reports whether it still existed.
// Callers run this inside the redeeming transaction so exactly one concurrent
// redeemer observes true.
func (c *Confirmations) Delete(ctx context.Context, q dbx.DBTX, id int64) (bool, error) {
	query := q.Rebind("DELETE FROM " + c.table + " WHERE id = ?")
	return deleteReporting(ctx, q, query, id)
}

func (c *Confirmations) DeleteAllForUser(ctx context.Context, q dbx.DBTX, userID int64) error {
	query := q.Rebind("DELETE FROM " + c.table + " WHERE user_id = ?")
	if _, err := q.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func deleteReporting(ctx context.Context, q dbx.DBTX, query string, args ...any) (bool, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
