package authcore

import (
	"context"
	"errors"
	"log"

	"github.com/ArrisFramework/authcore/internal/dbx"
	"github.com/ArrisFramework/authcore/internal/store"
	"github.com/ArrisFramework/authcore/internal/token"
)

// RequestPasswordReset issues a password reset challenge for the address and
// returns it for delivery. The response is success-shaped even when the
// address matches no account: the caller gets a plausible pair that can
// never redeem, after a small random delay standing in for the skipped
// storage work. Issuing supersedes any outstanding reset for the account.
//
// An account whose resets were disabled via SetPasswordResetEnabled reports
// ErrPasswordResetDisabled.
func (a *Auth) RequestPasswordReset(ctx context.Context, email string) (*TokenPair, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if err := a.throttleAttempt(ctx, actionRequestReset, email, ip); err != nil {
		return nil, err
	}

	if !validEmail(email) {
		a.emitAudit(ctx, auditEventPasswordResetIssued, false, 0, ErrInvalidEmail, nil)
		return nil, ErrInvalidEmail
	}

	user, err := a.users.FindByEmail(ctx, a.db, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			pair, err := a.fakeTokenPair(a.config.Tokens.ResetTTL)
			if err != nil {
				a.emitBackendError(ctx, "request_password_reset", err)
				return nil, ErrUnavailable
			}
			a.metricInc(MetricPasswordResetRequested)
			a.emitAudit(ctx, auditEventPasswordResetIssued, false, 0, ErrUnknownEmail, func() map[string]string {
				return map[string]string{"email": email}
			})
			return &pair, nil
		}
		a.emitBackendError(ctx, "request_password_reset", err)
		return nil, ErrUnavailable
	}

	if !user.Resettable {
		a.emitAudit(ctx, auditEventPasswordResetIssued, false, user.ID, ErrPasswordResetDisabled, nil)
		return nil, ErrPasswordResetDisabled
	}

	var pair TokenPair
	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		p, err := a.issueReset(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		a.emitBackendError(ctx, "request_password_reset", err)
		return nil, ErrUnavailable
	}

	a.metricInc(MetricPasswordResetRequested)
	a.emitAudit(ctx, auditEventPasswordResetIssued, true, user.ID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})
	return &pair, nil
}

// ResetPassword redeems a reset challenge and installs the new password.
// Redemption is single-use: the row is deleted in the same transaction that
// writes the hash, revokes every remember token, and bumps the logout
// version, so a raced second redemption reports ErrTokenNotFound and no
// half-applied state can exist.
func (a *Auth) ResetPassword(ctx context.Context, selector, tokenStr, newPassword string) error {
	if err := a.ready(); err != nil {
		return err
	}

	ip := clientIPFromContext(ctx)
	if err := a.throttleAttempt(ctx, actionResetPassword, selector, ip); err != nil {
		return err
	}

	if err := a.validatePassword(newPassword); err != nil {
		a.metricInc(MetricPasswordResetFailure)
		a.emitAudit(ctx, auditEventPasswordReset, false, 0, err, func() map[string]string {
			return map[string]string{"reason": "new_password_policy"}
		})
		return err
	}

	sel, secret, perr := parseChallenge(selector, tokenStr)
	if perr != nil {
		a.metricInc(MetricPasswordResetFailure)
		a.emitAudit(ctx, auditEventPasswordReset, false, 0, perr, nil)
		return perr
	}

	rec, err := a.resets.FindBySelector(ctx, a.db, sel.String())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.metricInc(MetricPasswordResetFailure)
			a.emitAudit(ctx, auditEventPasswordReset, false, 0, ErrTokenNotFound, nil)
			return ErrTokenNotFound
		}
		a.emitBackendError(ctx, "reset_password", err)
		return ErrUnavailable
	}

	if rec.Expires <= a.now().Unix() {
		if _, err := a.resets.Delete(ctx, a.db, rec.ID); err != nil {
			log.Print("authcore: expired reset token cleanup failed")
		}
		a.metricInc(MetricPasswordResetFailure)
		a.emitAudit(ctx, auditEventPasswordReset, false, rec.UserID, ErrTokenExpired, nil)
		return ErrTokenExpired
	}

	// Mismatch keeps the row; retries stay subject to the throttle.
	if !token.Matches(secret, rec.TokenHash) {
		a.metricInc(MetricPasswordResetFailure)
		a.emitAudit(ctx, auditEventPasswordReset, false, rec.UserID, ErrTokenInvalid, nil)
		return ErrTokenInvalid
	}

	user, err := a.users.FindByID(ctx, a.db, rec.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.metricInc(MetricPasswordResetFailure)
			a.emitAudit(ctx, auditEventPasswordReset, false, rec.UserID, ErrTokenNotFound, nil)
			return ErrTokenNotFound
		}
		a.emitBackendError(ctx, "reset_password", err)
		return ErrUnavailable
	}
	if !user.Resettable {
		a.metricInc(MetricPasswordResetFailure)
		a.emitAudit(ctx, auditEventPasswordReset, false, user.ID, ErrPasswordResetDisabled, nil)
		return ErrPasswordResetDisabled
	}

	// Key derivation happens outside the transaction so the write lock is
	// held only for the final statements.
	hash, err := a.hasher.Hash(newPassword)
	if err != nil {
		a.metricInc(MetricPasswordResetFailure)
		a.emitBackendError(ctx, "reset_password", err)
		return ErrUnavailable
	}

	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		existed, err := a.resets.Delete(ctx, tx, rec.ID)
		if err != nil {
			return err
		}
		if !existed {
			return store.ErrNotFound
		}
		if err := a.users.UpdatePasswordHash(ctx, tx, user.ID, hash); err != nil {
			return err
		}
		if err := a.remembered.DeleteAllForUser(ctx, tx, user.ID); err != nil {
			return err
		}
		return a.users.BumpForceLogout(ctx, tx, user.ID)
	})
	if err != nil {
		a.metricInc(MetricPasswordResetFailure)
		if errors.Is(err, store.ErrNotFound) {
			// A concurrent redemption of the same challenge won.
			a.emitAudit(ctx, auditEventPasswordReset, false, user.ID, ErrTokenNotFound, nil)
			return ErrTokenNotFound
		}
		a.emitBackendError(ctx, "reset_password", err)
		return ErrUnavailable
	}

	a.throttleReset(ctx, actionResetPassword, selector, ip)

	a.metricInc(MetricPasswordResetSuccess)
	a.emitAudit(ctx, auditEventPasswordReset, true, user.ID, nil, nil)
	return nil
}

// SetPasswordResetEnabled toggles whether RequestPasswordReset and
// ResetPassword will act for the account. Disabling protects accounts whose
// mailbox may be compromised.
func (a *Auth) SetPasswordResetEnabled(ctx context.Context, userID int64, enabled bool) error {
	if err := a.ready(); err != nil {
		return err
	}

	if err := a.users.SetResettable(ctx, a.db, userID, enabled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownID
		}
		a.emitBackendError(ctx, "set_password_reset_enabled", err)
		return ErrUnavailable
	}

	a.emitAudit(ctx, auditEventResetToggled, true, userID, nil, func() map[string]string {
		if enabled {
			return map[string]string{"enabled": "true"}
		}
		return map[string]string{"enabled": "false"}
	})
	return nil
}
