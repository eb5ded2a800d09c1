package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ArrisFramework/authcore/internal/dbx"
)

// Remembered is one long-lived login token, typically one row per device.
type Remembered struct {
	ID        int64  `db:"id"`
	UserID    int64  `db:"user_id"`
	Selector  string `db:"selector"`
	TokenHash string `db:"token"`
	Expires   int64  `db:"expires"`
}

type RememberedTokens struct {
	table string
}

func NewRememberedTokens(tables Tables) *RememberedTokens {
	return &RememberedTokens{table: tables.Remembered}
}

func (r *RememberedTokens) Create(ctx context.Context, q dbx.DBTX, rec Remembered) (int64, error) {
	query := q.Rebind("INSERT INTO " + r.table +
		" (user_id, selector, token, expires) VALUES (?, ?, ?, ?) RETURNING id")

	var id int64
	err := q.QueryRowxContext(ctx, query,
		rec.UserID, rec.Selector, rec.TokenHash, rec.Expires,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *RememberedTokens) FindBySelector(ctx context.Context, q dbx.DBTX, selector string) (*Remembered, error) {
	var rec Remembered
	query := q.Rebind("SELECT id, user_id, selector, token, expires FROM " + r.table + " WHERE selector = ?")
	if err := q.GetContext(ctx, &rec, query, selector); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &rec, nil
}

// Rotate swaps the stored hash and expiry under the same selector after a
// successful redemption, invalidating the presented secret. The old hash
// guards the update so two concurrent redemptions of the same cookie cannot
// both win; the loser gets ErrNotFound.
func (r *RememberedTokens) Rotate(ctx context.Context, q dbx.DBTX, id int64, oldHash, newHash string, expires int64) error {
	query := q.Rebind("UPDATE " + r.table + " SET token = ?, expires = ? WHERE id = ? AND token = ?")
	res, err := q.ExecContext(ctx, query, newHash, expires, id, oldHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return oneRow(res)
}

func (r *RememberedTokens) Delete(ctx context.Context, q dbx.DBTX, id int64) (bool, error) {
	query := q.Rebind("DELETE FROM " + r.table + " WHERE id = ?")
	return deleteReporting(ctx, q, query, id)
}

func (r *RememberedTokens) DeleteBySelector(ctx context.Context, q dbx.DBTX, selector string) (bool, error) {
	query := q.Rebind("DELETE FROM " + r.table + " WHERE selector = ?")
	return deleteReporting(ctx, q, query, selector)
}

func (r *RememberedTokens) DeleteAllForUser(ctx context.Context, q dbx.DBTX, userID int64) error {
	query := q.Rebind("DELETE FROM " + r.table + " WHERE user_id = ?")
	if _, err := q.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListForUser returns the user's tokens ordered by expiry, soonest first.
func (r *RememberedTokens) ListForUser(ctx context.Context, q dbx.DBTX, userID int64) ([]Remembered, error) {
	var recs []Remembered
	query := q.Rebind("SELECT id, user_id, selector, token, expires FROM " + r.table +
		" WHERE user_id = ? ORDER BY expires ASC")
	if err := q.SelectContext(ctx, &recs, query, userID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return recs, nil
}

// CountForUser reports how many devices currently hold a token for the user.
func (r *RememberedTokens) CountForUser(ctx context.Context, q dbx.DBTX, userID int64) (int, error) {
	var n int
	query := q.Rebind("SELECT COUNT(*) FROM " + r.table + " WHERE user_id = ?")
	if err := q.GetContext(ctx, &n, query, userID); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
