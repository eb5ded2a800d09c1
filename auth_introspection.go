package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/ArrisFramework/authcore/internal/store"
)

// ListRememberedLogins returns the account's outstanding remember tokens,
// soonest expiry first, one entry per device that checked "remember me".
// Only the public selector is exposed; the secret half never leaves the
// client that holds the cookie.
func (a *Auth) ListRememberedLogins(ctx context.Context, userID int64) ([]RememberedLogin, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}

	if _, err := a.users.FindByID(ctx, a.db, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownID
		}
		a.emitBackendError(ctx, "list_remembered", err)
		return nil, ErrUnavailable
	}

	recs, err := a.remembered.ListForUser(ctx, a.db, userID)
	if err != nil {
		a.emitBackendError(ctx, "list_remembered", err)
		return nil, ErrUnavailable
	}

	out := make([]RememberedLogin, len(recs))
	for i, rec := range recs {
		out[i] = RememberedLogin{
			Selector:  rec.Selector,
			ExpiresAt: time.Unix(rec.Expires, 0).UTC(),
		}
	}
	return out, nil
}

// Health probes the storage and throttle backends and reports availability
// with observed round-trip latency. It never returns an error; an unhealthy
// backend shows up as a false flag so callers can expose the result on a
// readiness endpoint as-is.
func (a *Auth) Health(ctx context.Context) HealthStatus {
	var hs HealthStatus
	if a == nil || a.db == nil {
		return hs
	}

	start := time.Now()
	err := a.db.PingContext(ctx)
	hs.DatabaseLatency = time.Since(start)
	hs.DatabaseAvailable = err == nil

	if a.redis != nil {
		start = time.Now()
		err = a.redis.Ping(ctx).Err()
		hs.ThrottleLatency = time.Since(start)
		hs.ThrottleAvailable = err == nil
		return hs
	}

	// The SQL ledger lives in the same database, so its health is the
	// database's health.
	hs.ThrottleAvailable = hs.DatabaseAvailable
	hs.ThrottleLatency = hs.DatabaseLatency
	return hs
}
