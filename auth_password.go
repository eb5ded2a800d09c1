package authcore

import (
	"context"
	"errors"

	"github.com/ArrisFramework/authcore/internal/dbx"
	"github.com/ArrisFramework/authcore/internal/store"
)

// reconfirmPassword charges the reconfirmation buckets, verifies the password
// against the stored hash, and refunds the buckets when it matches. Both
// ReconfirmPassword and ChangePassword authenticate through here, so password
// probing against either shares one budget.
func (a *Auth) reconfirmPassword(ctx context.Context, userID int64, pw string) (bool, *store.User, error) {
	ip := clientIPFromContext(ctx)
	if err := a.throttleAttempt(ctx, actionReconfirmPassword, userDim(userID), ip); err != nil {
		return false, nil, err
	}

	user, err := a.users.FindByID(ctx, a.db, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil, ErrUnknownID
		}
		a.emitBackendError(ctx, "reconfirm_password", err)
		return false, nil, ErrUnavailable
	}

	ok, err := a.hasher.Verify(pw, user.PasswordHash)
	if err != nil || !ok {
		return false, user, nil
	}

	a.throttleReset(ctx, actionReconfirmPassword, userDim(userID), ip)
	return true, user, nil
}

// ReconfirmPassword re-authenticates an already signed-in user before a
// sensitive action. It reports whether the password matched; a mismatch is a
// normal false, not an error. Attempts are throttled per user and per IP.
func (a *Auth) ReconfirmPassword(ctx context.Context, userID int64, password string) (bool, error) {
	if err := a.ready(); err != nil {
		return false, err
	}

	ok, _, err := a.reconfirmPassword(ctx, userID, password)
	if err != nil {
		return false, err
	}

	a.emitAudit(ctx, auditEventReconfirmPassword, ok, userID, nil, nil)
	return ok, nil
}

// ChangePassword verifies the old password and replaces it, then revokes
// every remember token and bumps the logout version: a credential change
// ends every other session. The hash write and the revocations commit in one
// transaction.
func (a *Auth) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if err := a.ready(); err != nil {
		return err
	}

	ok, _, err := a.reconfirmPassword(ctx, userID, oldPassword)
	if err != nil {
		a.metricInc(MetricPasswordChangeFailure)
		return err
	}
	if !ok {
		a.metricInc(MetricPasswordChangeFailure)
		a.emitAudit(ctx, auditEventPasswordChange, false, userID, ErrInvalidPassword, func() map[string]string {
			return map[string]string{"reason": "old_password_mismatch"}
		})
		return ErrInvalidPassword
	}

	if err := a.validatePassword(newPassword); err != nil {
		a.metricInc(MetricPasswordChangeFailure)
		a.emitAudit(ctx, auditEventPasswordChange, false, userID, err, func() map[string]string {
			return map[string]string{"reason": "new_password_policy"}
		})
		return err
	}

	hash, err := a.hasher.Hash(newPassword)
	if err != nil {
		a.metricInc(MetricPasswordChangeFailure)
		a.emitBackendError(ctx, "change_password", err)
		return ErrUnavailable
	}

	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := a.users.UpdatePasswordHash(ctx, tx, userID, hash); err != nil {
			return err
		}
		if err := a.remembered.DeleteAllForUser(ctx, tx, userID); err != nil {
			return err
		}
		return a.users.BumpForceLogout(ctx, tx, userID)
	})
	if err != nil {
		a.metricInc(MetricPasswordChangeFailure)
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownID
		}
		a.emitBackendError(ctx, "change_password", err)
		return ErrUnavailable
	}

	a.metricInc(MetricPasswordChangeSuccess)
	a.emitAudit(ctx, auditEventPasswordChange, true, userID, nil, nil)
	return nil
}
