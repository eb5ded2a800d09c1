package throttle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ArrisFramework/authcore/internal/dbx"
)

// SQLLedger keeps buckets in the throttling table. Increments use an
// optimistic compare-and-swap on the attempts column: the row is read, the
// successor state computed, and the update applied only when the attempts
// value is still the one read. A losing writer reloads and retries.
type SQLLedger struct {
	db     dbx.DBTX
	policy Policy
	now    func() time.Time

	selectStmt string
	insertStmt string
	updateStmt string
	deleteStmt string
}

// NewSQLLedger builds a ledger over the given fully-qualified table name.
// The table name comes from trusted configuration, never from callers.
func NewSQLLedger(db dbx.DBTX, table string, policy Policy, now func() time.Time) *SQLLedger {
	if now == nil {
		now = time.Now
	}
	return &SQLLedger{
		db:     db,
		policy: policy,
		now:    now,

		selectStmt: "SELECT attempts, window_start, cooldown_until FROM " + table + " WHERE bucket = ?",
		insertStmt: "INSERT INTO " + table + " (bucket, attempts, window_start, cooldown_until) VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING",
		updateStmt: "UPDATE " + table + " SET attempts = ?, window_start = ?, cooldown_until = ? WHERE bucket = ? AND attempts = ?",
		deleteStmt: "DELETE FROM " + table + " WHERE bucket = ?",
	}
}

type throttleRow struct {
	Attempts      int   `db:"attempts"`
	WindowStart   int64 `db:"window_start"`
	CooldownUntil int64 `db:"cooldown_until"`
}

func (l *SQLLedger) Attempt(ctx context.Context, key Key) (Outcome, error) {
	bucket := key.bucket()

	for i := 0; i < maxCASRetries; i++ {
		now := l.now()

		var row throttleRow
		err := l.db.GetContext(ctx, &row, l.db.Rebind(l.selectStmt), bucket)
		if errors.Is(err, sql.ErrNoRows) {
			state := l.policy.firstAttempt(now)
			res, err := l.db.ExecContext(ctx, l.db.Rebind(l.insertStmt),
				bucket, state.Attempts, state.WindowStart, state.CooldownUntil)
			if err != nil {
				return Outcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			inserted, err := res.RowsAffected()
			if err != nil {
				return Outcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			if inserted == 0 {
				// Another writer created the bucket first; reload.
				continue
			}
			return Outcome{Allowed: true, Attempts: state.Attempts}, nil
		}
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		cooldownUntil := time.Unix(row.CooldownUntil, 0)
		if now.Before(cooldownUntil) {
			return Outcome{
				Allowed:    false,
				RetryAfter: cooldownUntil.Sub(now),
				Attempts:   row.Attempts,
			}, nil
		}

		state := l.policy.next(bucketState{
			Attempts:      row.Attempts,
			WindowStart:   row.WindowStart,
			CooldownUntil: row.CooldownUntil,
		}, now)

		res, err := l.db.ExecContext(ctx, l.db.Rebind(l.updateStmt),
			state.Attempts, state.WindowStart, state.CooldownUntil, bucket, row.Attempts)
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		updated, err := res.RowsAffected()
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if updated == 0 {
			// Lost the compare-and-swap; reload and retry.
			continue
		}

		return Outcome{Allowed: true, Attempts: state.Attempts}, nil
	}

	return Outcome{}, fmt.Errorf("%w: bucket contention", ErrUnavailable)
}

func (l *SQLLedger) Reset(ctx context.Context, key Key) error {
	if _, err := l.db.ExecContext(ctx, l.db.Rebind(l.deleteStmt), key.bucket()); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
