package authcore

import (
	"time"

	"github.com/ArrisFramework/authcore/roles"
)

// Status is the lifecycle state of an account. It is stored as a SMALLINT and
// must not be reordered.
type Status uint8

const (
	StatusNormal Status = iota
	StatusArchived
	StatusBanned
	StatusLocked
	StatusPendingReview
	StatusSuspended
)

var statusNames = map[Status]string{
	StatusNormal:        "normal",
	StatusArchived:      "archived",
	StatusBanned:        "banned",
	StatusLocked:        "locked",
	StatusPendingReview: "pending_review",
	StatusSuspended:     "suspended",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Blocked reports whether the status refuses login regardless of credential
// correctness. Archived and pending-review accounts may still sign in.
func (s Status) Blocked() bool {
	switch s {
	case StatusBanned, StatusLocked, StatusSuspended:
		return true
	default:
		return false
	}
}

// statusBlockedError maps a blocked status to its sentinel, nil otherwise.
func statusBlockedError(s Status) error {
	switch s {
	case StatusBanned:
		return ErrAccountBanned
	case StatusLocked:
		return ErrAccountLocked
	case StatusSuspended:
		return ErrAccountSuspended
	default:
		return nil
	}
}

// SessionMode selects how much ValidateSession checks.
type SessionMode int

const (
	// ModeLocal verifies signature and expiry only. No database round-trip.
	ModeLocal SessionMode = iota
	// ModeCurrent additionally re-reads the account: it rejects assertions
	// superseded by a global logout or a blocked status, and returns the
	// account's current roles instead of the issued snapshot.
	ModeCurrent
)

// SessionAssertion is the claim set issued on login and recovered by
// ValidateSession. Roles and Status are snapshots from issue time unless the
// assertion was validated in ModeCurrent.
type SessionAssertion struct {
	UserID        int64
	Roles         roles.Mask
	Status        Status
	IssuedAt      time.Time
	ExpiresAt     time.Time
	LogoutVersion int64
}

// TokenPair is a one-time selector/token challenge for email confirmation or
// password reset. The caller delivers it to the user; the package keeps only
// a hash of Token.
type TokenPair struct {
	Selector  string
	Token     string
	ExpiresAt time.Time
}

// RegisterRequest carries the signup input.
type RegisterRequest struct {
	Email    string
	Password string

	// Username is optional and not unique unless RequireUniqueUsername is
	// set, in which case the claim is checked inside the insert transaction.
	Username              string
	RequireUniqueUsername bool
}

// RegisterResult reports the new account and the confirmation challenge the
// caller must deliver to the registered address.
type RegisterResult struct {
	UserID       int64
	Confirmation TokenPair
}

// LoginRequest carries the credential check input. Remember requests a
// long-lived token alongside the session assertion.
type LoginRequest struct {
	Email    string
	Password string
	Remember bool
}

// LoginResult is returned by Login and LoginWithRememberToken.
type LoginResult struct {
	Session SessionAssertion

	// SessionToken is the signed wire form of Session.
	SessionToken string

	// RememberToken is the opaque cookie value for the long-lived login,
	// empty unless requested. After LoginWithRememberToken it carries the
	// rotated replacement and the presented value is dead.
	RememberToken string
}

// ConfirmEmailResult reports which account was confirmed and the address now
// on it, which differs from the pre-confirmation address when the challenge
// carried an email change.
type ConfirmEmailResult struct {
	UserID int64
	Email  string
}

// RememberedLogin is the introspection view of one long-lived login. It
// carries no token material.
type RememberedLogin struct {
	Selector  string
	ExpiresAt time.Time
}

// HealthStatus is an on-demand backend probe result. When throttling runs on
// the SQL ledger the two probes hit the same backend.
type HealthStatus struct {
	DatabaseAvailable bool
	DatabaseLatency   time.Duration
	ThrottleAvailable bool
	ThrottleLatency   time.Duration
}
