// Package throttle implements the persistent attempt ledger that guards
// sensitive operations (login, password reset, confirmation, signup) against
// brute force and enumeration probing.
//
// Every guarded operation consumes one attempt from a bucket before any
// account lookup happens. A bucket is keyed by the action name plus one
// discriminating dimension (normalized email, client IP, selector, user id).
// Attempts beyond the configured allowance put the bucket into a cooldown
// whose duration grows exponentially with the attempt count, capped at a
// maximum. A verified success resets the bucket.
//
// Ledger read/write failures are surfaced as ErrUnavailable and callers must
// abort the guarded operation (fail closed). The single exception is a reset
// after an already-granted success, which callers log and ignore.
package throttle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrUnavailable reports a ledger backend failure. Guarded operations
	// must treat it as fatal rather than proceeding unthrottled.
	ErrUnavailable = errors.New("throttle ledger unavailable")
)

// Key identifies one bucket: an action name plus the dimension being
// counted. The dimension is hashed before storage so raw emails and IP
// addresses never appear in the ledger.
type Key struct {
	Action    string
	Dimension string
}

func (k Key) bucket() string {
	sum := sha256.Sum256([]byte(k.Dimension))
	return k.Action + ":" + hex.EncodeToString(sum[:])
}

// Outcome is the result of consuming one attempt.
type Outcome struct {
	Allowed    bool
	RetryAfter time.Duration
	Attempts   int
}

// RetryAfterSeconds rounds the remaining cooldown up to whole seconds, the
// shape callers hand to clients in error payloads and Retry-After headers.
func (o Outcome) RetryAfterSeconds() int {
	if o.RetryAfter <= 0 {
		return 0
	}
	secs := int(o.RetryAfter / time.Second)
	if o.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// Policy holds the backoff tuning for a ledger. MaxAttempts is the number of
// attempts allowed per window before cooldowns start; the MaxAttempts-th
// attempt triggers the first cooldown of BaseDelay, doubling per attempt
// after that up to MaxCooldown. A bucket whose window fully elapsed restarts
// from a count of one.
type Policy struct {
	BaseDelay   time.Duration
	MaxCooldown time.Duration
	Window      time.Duration
	MaxAttempts int
}

// Backoff returns the cooldown to apply after the given attempt count. It is
// monotonically non-decreasing in count.
func (p Policy) Backoff(count int) time.Duration {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if count < maxAttempts {
		return 0
	}

	shift := count - maxAttempts
	if shift >= 30 {
		return p.MaxCooldown
	}

	delay := p.BaseDelay << uint(shift)
	if delay < 0 || delay > p.MaxCooldown {
		return p.MaxCooldown
	}
	return delay
}

// Ledger is the attempt/reset contract consumed by the facade. Both the SQL
// and the Redis implementation provide compare-and-swap increment semantics
// so concurrent attempts against one bucket never lose a count.
type Ledger interface {
	Attempt(ctx context.Context, key Key) (Outcome, error)
	Reset(ctx context.Context, key Key) error
}

// bucketState is the shared record shape persisted by both ledgers.
type bucketState struct {
	Attempts      int
	WindowStart   int64
	CooldownUntil int64
}

// next applies one attempt to the state at the given instant. It assumes the
// caller already established that no cooldown is active.
func (p Policy) next(state bucketState, now time.Time) bucketState {
	attempts := state.Attempts + 1
	windowStart := state.WindowStart

	if p.Window > 0 && now.Sub(time.Unix(windowStart, 0)) >= p.Window {
		attempts = 1
		windowStart = now.Unix()
	}

	return bucketState{
		Attempts:      attempts,
		WindowStart:   windowStart,
		CooldownUntil: now.Add(p.Backoff(attempts)).Unix(),
	}
}

// firstAttempt is the state of a bucket created by its first attempt.
func (p Policy) firstAttempt(now time.Time) bucketState {
	return bucketState{
		Attempts:      1,
		WindowStart:   now.Unix(),
		CooldownUntil: now.Add(p.Backoff(1)).Unix(),
	}
}

// Optimistic writes retry a few times before giving up; matching the token
// store consume path, four tries is enough for realistic contention.
const maxCASRetries = 4
