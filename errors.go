package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Validation failures are detected before any storage access and are
	// safe to retry with corrected input.
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidStatus   = errors.New("invalid account status")

	// Conflicts surface from uniqueness constraints. Retrying with the same
	// input cannot succeed.
	ErrUserAlreadyExists = errors.New("email address already registered")
	ErrDuplicateUsername = errors.New("username already taken")
	ErrAmbiguousUsername = errors.New("username matches multiple users")

	// Not-found failures occur after a storage lookup.
	ErrUnknownID       = errors.New("unknown user id")
	ErrUnknownEmail    = errors.New("unknown email address")
	ErrUnknownUsername = errors.New("unknown username")
	ErrUnknownRole     = errors.New("unknown role")

	// Authentication failures. Login reports ErrInvalidPassword for a wrong
	// password and ErrUnknownEmail for a missing account; the two paths are
	// kept indistinguishable in latency, not in kind.
	ErrEmailNotVerified = errors.New("email address not verified")

	// Blocked account statuses refuse login regardless of credential
	// correctness.
	ErrAccountBanned    = errors.New("account banned")
	ErrAccountLocked    = errors.New("account locked")
	ErrAccountSuspended = errors.New("account suspended")

	// Selector/token redemption. An expired pair is deleted on sight; a
	// hash mismatch keeps the row so the caller may retry under throttle.
	ErrTokenNotFound = errors.New("selector/token pair not found")
	ErrTokenExpired  = errors.New("selector/token pair expired")
	ErrTokenInvalid  = errors.New("selector/token pair invalid")

	// Session assertion verification.
	ErrSessionInvalid = errors.New("session assertion invalid")
	ErrSessionExpired = errors.New("session assertion expired")
	ErrSessionRevoked = errors.New("session assertion revoked")

	// ErrTooManyRequests is the throttle denial. Errors returned from
	// guarded operations match it via errors.Is and carry the remaining
	// cooldown as a *TooManyRequestsError.
	ErrTooManyRequests = errors.New("too many requests")

	// ErrPasswordResetDisabled reports an account whose resettable flag is
	// off, set via SetPasswordResetEnabled.
	ErrPasswordResetDisabled = errors.New("password reset disabled for this account")

	// ErrNotReady reports use of a nil or unbuilt Auth.
	ErrNotReady = errors.New("auth engine not initialized")

	// ErrUnavailable reports a storage or throttle backend failure. The
	// cause is recorded on the audit stream, never in the returned error.
	ErrUnavailable = errors.New("auth backend unavailable")
)

// TooManyRequestsError is the concrete throttle denial. It unwraps to
// [ErrTooManyRequests]; callers needing the cooldown use errors.As.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e *TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %ds", e.RetryAfterSeconds())
}

func (e *TooManyRequestsError) Unwrap() error {
	return ErrTooManyRequests
}

// RetryAfterSeconds rounds the remaining cooldown up to whole seconds, the
// shape HTTP callers put in a Retry-After header.
func (e *TooManyRequestsError) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	secs := int(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}
