package authcore

import (
	"context"
	"errors"

	"github.com/ArrisFramework/authcore/internal/dbx"
	"github.com/ArrisFramework/authcore/internal/store"
)

// SetStatusByID replaces the account's status. Moving to a blocked status
// does not revoke anything by itself: outstanding session assertions stay
// verifiable in ModeLocal until they expire, and ModeCurrent starts
// reporting the block on its next storage read.
func (a *Auth) SetStatusByID(ctx context.Context, userID int64, status Status) error {
	if err := a.ready(); err != nil {
		return err
	}
	if !status.Valid() {
		return ErrInvalidStatus
	}

	if err := a.users.SetStatus(ctx, a.db, userID, uint8(status)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownID
		}
		a.emitBackendError(ctx, "set_status", err)
		return ErrUnavailable
	}

	a.metricInc(MetricStatusChanged)
	a.emitAudit(ctx, auditEventStatusChange, true, userID, nil, func() map[string]string {
		return map[string]string{"status": status.String()}
	})
	return nil
}

// DeleteUserByID removes the account and everything keyed to it: remember
// tokens, confirmation challenges, and reset challenges go in the same
// transaction as the user row, so no orphaned credential can survive the
// account.
func (a *Auth) DeleteUserByID(ctx context.Context, userID int64) error {
	if err := a.ready(); err != nil {
		return err
	}

	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := a.remembered.DeleteAllForUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := a.confirmations.DeleteAllForUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := a.resets.DeleteAllForUser(ctx, tx, userID); err != nil {
			return err
		}
		existed, err := a.users.Delete(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !existed {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownID
		}
		a.emitBackendError(ctx, "delete_user", err)
		return ErrUnavailable
	}

	a.metricInc(MetricUserDeleted)
	a.emitAudit(ctx, auditEventUserDeleted, true, userID, nil, nil)
	return nil
}
