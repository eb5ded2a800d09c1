package authcore

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/ArrisFramework/authcore/internal/throttle"
)

// Throttle bucket action names. Buckets are keyed by action plus one
// dimension (normalized email, client IP, selector, or user id), so a flood
// against one account never locks out an unrelated one.
const (
	actionSignup              = "signup"
	actionLogin               = "login"
	actionRememberLogin       = "remember_login"
	actionRequestReset        = "request_password_reset"
	actionResetPassword       = "reset_password"
	actionConfirmEmail        = "confirm_email"
	actionRequestConfirmation = "request_confirmation"
	actionChangeEmail         = "change_email"
	actionReconfirmPassword   = "reconfirm_password"
)

func userDim(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// throttleAttempt consumes one attempt from every named bucket before the
// guarded operation touches storage. Every bucket is charged even when an
// earlier one already denied, so parallel dimensions stay in step; the
// longest remaining cooldown wins. Empty dimensions (no client IP on the
// context) are skipped. Ledger failures fail closed.
func (a *Auth) throttleAttempt(ctx context.Context, action string, dims ...string) error {
	var (
		denied     bool
		retryAfter time.Duration
	)
	for _, dim := range dims {
		if dim == "" {
			continue
		}
		out, err := a.ledger.Attempt(ctx, throttle.Key{Action: action, Dimension: dim})
		if err != nil {
			a.emitBackendError(ctx, action, err)
			return ErrUnavailable
		}
		if !out.Allowed {
			denied = true
			if out.RetryAfter > retryAfter {
				retryAfter = out.RetryAfter
			}
		}
	}
	if denied {
		a.emitThrottleDenied(ctx, action, 0)
		return &TooManyRequestsError{RetryAfter: retryAfter}
	}
	return nil
}

// throttleReset clears buckets after a verified success. Reset failures are
// logged and swallowed: the operation already succeeded and a lingering
// bucket only costs the caller a retry later.
func (a *Auth) throttleReset(ctx context.Context, action string, dims ...string) {
	for _, dim := range dims {
		if dim == "" {
			continue
		}
		if err := a.ledger.Reset(ctx, throttle.Key{Action: action, Dimension: dim}); err != nil {
			log.Print("authcore: throttle reset failed")
		}
	}
}
