package authcore

import (
	"context"
	"errors"
	"strconv"

	"github.com/ArrisFramework/authcore/internal/dbx"
	"github.com/ArrisFramework/authcore/internal/store"
	"github.com/ArrisFramework/authcore/internal/token"
)

// Logout revokes the remember cookie's server-side record. Session
// assertions are stateless and simply expire; dropping them is the caller's
// side of the logout. An empty cookie is a no-op, and a well-formed cookie
// whose selector is already gone still succeeds: logout is idempotent.
func (a *Auth) Logout(ctx context.Context, rememberCookie string) error {
	if err := a.ready(); err != nil {
		return err
	}

	if rememberCookie == "" {
		a.metricInc(MetricLogout)
		a.emitAudit(ctx, auditEventLogout, true, 0, nil, nil)
		return nil
	}

	selector, _, err := token.Decode(rememberCookie)
	if err != nil {
		a.emitAudit(ctx, auditEventLogout, false, 0, ErrTokenInvalid, nil)
		return ErrTokenInvalid
	}

	existed, err := a.remembered.DeleteBySelector(ctx, a.db, selector.String())
	if err != nil {
		a.emitBackendError(ctx, "logout", err)
		return ErrUnavailable
	}

	a.metricInc(MetricLogout)
	a.emitAudit(ctx, auditEventLogout, true, 0, nil, func() map[string]string {
		return map[string]string{"existed": strconv.FormatBool(existed)}
	})
	return nil
}

// LogoutEverywhere deletes every remember token the user holds and bumps the
// account's logout version, so outstanding session assertions fail the next
// ModeCurrent validation. Both happen in one transaction.
func (a *Auth) LogoutEverywhere(ctx context.Context, userID int64) error {
	if err := a.ready(); err != nil {
		return err
	}
	if userID <= 0 {
		return ErrUnknownID
	}

	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := a.remembered.DeleteAllForUser(ctx, tx, userID); err != nil {
			return err
		}
		return a.users.BumpForceLogout(ctx, tx, userID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.emitAudit(ctx, auditEventLogoutEverywhere, false, userID, ErrUnknownID, nil)
			return ErrUnknownID
		}
		a.emitBackendError(ctx, "logout_everywhere", err)
		return ErrUnavailable
	}

	a.metricInc(MetricLogoutEverywhere)
	a.emitAudit(ctx, auditEventLogoutEverywhere, true, userID, nil, nil)
	return nil
}
