package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ArrisFramework/authcore/internal/dbx"
)

// Reset is one outstanding password reset request. Issuing a new one deletes
// the user's earlier rows, so at most one is live per account.
type Reset struct {
	ID        int64  `db:"id"`
	UserID    int64  `db:"user_id"`
	Selector  string `db:"selector"`
	TokenHash string `db:"token"`
	Expires   int64  `db:"expires"`
}

type Resets struct {
	table string
}

func NewResets(tables Tables) *Resets {
	return &Resets{table: tables.Resets}
}

func (r *Resets) Create(ctx context.Context, q dbx.DBTX, rec Reset) (int64, error) {
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

func (r *Resets) FindBySelector(ctx context.Context, q dbx.DBTX, selector string) (*Reset, error) {
	var rec Reset
	query := q.Rebind("SELECT id, user_id, selector, token, expires FROM " + r.table + " WHERE selector = ?")
	if err := q.GetContext(ctx, &rec, query, selector); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &rec, nil
}

// Delete removes a single row by id and reports whether it still existed, so
// the redeeming transaction can detect a lost race.
func (r *Resets) Delete(ctx context.Context, q dbx.DBTX, id int64) (bool, error) {
	query := q.Rebind("DELETE FROM " + r.table + " WHERE id = ?")
	return deleteReporting(ctx, q, query, id)
}

func (r *Resets) DeleteAllForUser(ctx context.Context, q dbx.DBTX, userID int64) error {
	query := q.Rebind("DELETE FROM " + r.table + " WHERE user_id = ?")
	if _, err := q.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
