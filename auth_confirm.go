package authcore

import (
	"context"
	"errors"
	"log"

	"github.com/ArrisFramework/authcore/internal/dbx"
	"github.com/ArrisFramework/authcore/internal/store"
	"github.com/ArrisFramework/authcore/internal/token"
)

// ConfirmEmail redeems a confirmation challenge and marks the stored address
// as verified. The same call finalizes an email change: the address recorded
// with the challenge is installed on the account, whatever the account held
// when the challenge was issued.
//
// Redemption is single-use. The row is deleted in the transaction that flips
// the flag, so a second redemption of the same pair reports ErrTokenNotFound.
// Other outstanding confirmations for the account are left alone.
func (a *Auth) ConfirmEmail(ctx context.Context, selector, tokenStr string) (*ConfirmEmailResult, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}

	ip := clientIPFromContext(ctx)
	if err := a.throttleAttempt(ctx, actionConfirmEmail, selector, ip); err != nil {
		return nil, err
	}

	sel, secret, perr := parseChallenge(selector, tokenStr)
	if perr != nil {
		a.metricInc(MetricEmailConfirmFailure)
		a.emitAudit(ctx, auditEventConfirmEmail, false, 0, perr, nil)
		return nil, perr
	}

	rec, err := a.confirmations.FindBySelector(ctx, a.db, sel.String())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.metricInc(MetricEmailConfirmFailure)
			a.emitAudit(ctx, auditEventConfirmEmail, false, 0, ErrTokenNotFound, nil)
			return nil, ErrTokenNotFound
		}
		a.emitBackendError(ctx, "confirm_email", err)
		return nil, ErrUnavailable
	}

	if rec.Expires <= a.now().Unix() {
		if _, err := a.confirmations.Delete(ctx, a.db, rec.ID); err != nil {
			log.Print("authcore: expired confirmation cleanup failed")
		}
		a.metricInc(MetricEmailConfirmFailure)
		a.emitAudit(ctx, auditEventConfirmEmail, false, rec.UserID, ErrTokenExpired, nil)
		return nil, ErrTokenExpired
	}

	// Mismatch keeps the row; retries stay subject to the throttle.
	if !token.Matches(secret, rec.TokenHash) {
		a.metricInc(MetricEmailConfirmFailure)
		a.emitAudit(ctx, auditEventConfirmEmail, false, rec.UserID, ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}

	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		existed, err := a.confirmations.Delete(ctx, tx, rec.ID)
		if err != nil {
			return err
		}
		if !existed {
			return store.ErrNotFound
		}
		return a.users.SetVerifiedEmail(ctx, tx, rec.UserID, rec.Email)
	})
	if err != nil {
		a.metricInc(MetricEmailConfirmFailure)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// Either a concurrent redemption won or the account is gone.
			a.emitAudit(ctx, auditEventConfirmEmail, false, rec.UserID, ErrTokenNotFound, nil)
			return nil, ErrTokenNotFound
		case errors.Is(err, store.ErrDuplicateEmail):
			// Someone else claimed the address after the challenge was issued.
			a.emitAudit(ctx, auditEventConfirmEmail, false, rec.UserID, ErrUserAlreadyExists, func() map[string]string {
				return map[string]string{"email": rec.Email}
			})
			return nil, ErrUserAlreadyExists
		default:
			a.emitBackendError(ctx, "confirm_email", err)
			return nil, ErrUnavailable
		}
	}

	a.throttleReset(ctx, actionConfirmEmail, selector, ip)

	a.metricInc(MetricEmailConfirmed)
	a.emitAudit(ctx, auditEventConfirmEmail, true, rec.UserID, nil, func() map[string]string {
		return map[string]string{"email": rec.Email}
	})
	return &ConfirmEmailResult{UserID: rec.UserID, Email: rec.Email}, nil
}

// RequestEmailConfirmation issues a fresh confirmation challenge for an
// unverified account, typically because the first one never arrived or has
// expired. Earlier challenges stay valid until they expire.
//
// The response is success-shaped whether or not the address has an
// unverified account behind it, so the endpoint cannot be used to probe
// which addresses are registered or already verified.
func (a *Auth) RequestEmailConfirmation(ctx context.Context, email string) (*TokenPair, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if err := a.throttleAttempt(ctx, actionRequestConfirmation, email, ip); err != nil {
		return nil, err
	}

	if !validEmail(email) {
		a.emitAudit(ctx, auditEventConfirmationIssued, false, 0, ErrInvalidEmail, nil)
		return nil, ErrInvalidEmail
	}

	user, err := a.users.FindByEmail(ctx, a.db, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			pair, err := a.fakeTokenPair(a.config.Tokens.ConfirmationTTL)
			if err != nil {
				a.emitBackendError(ctx, "request_confirmation", err)
				return nil, ErrUnavailable
			}
			a.metricInc(MetricConfirmationRequested)
			a.emitAudit(ctx, auditEventConfirmationIssued, false, 0, ErrUnknownEmail, func() map[string]string {
				return map[string]string{"email": email}
			})
			return &pair, nil
		}
		a.emitBackendError(ctx, "request_confirmation", err)
		return nil, ErrUnavailable
	}

	if user.Verified {
		pair, err := a.fakeTokenPair(a.config.Tokens.ConfirmationTTL)
		if err != nil {
			a.emitBackendError(ctx, "request_confirmation", err)
			return nil, ErrUnavailable
		}
		a.metricInc(MetricConfirmationRequested)
		a.emitAudit(ctx, auditEventConfirmationIssued, false, user.ID, nil, func() map[string]string {
			return map[string]string{"reason": "already_verified"}
		})
		return &pair, nil
	}

	var pair TokenPair
	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		p, err := a.issueConfirmation(ctx, tx, user.ID, user.Email)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		a.emitBackendError(ctx, "request_confirmation", err)
		return nil, ErrUnavailable
	}

	a.metricInc(MetricConfirmationRequested)
	a.emitAudit(ctx, auditEventConfirmationIssued, true, user.ID, nil, func() map[string]string {
		return map[string]string{"email": email}
	})
	return &pair, nil
}

// ChangeEmail starts moving the account to a new address. The account keeps
// its current address until the returned challenge is redeemed via
// ConfirmEmail; until then the old address still signs in.
//
// Only accounts that have verified their current address may start a change,
// and the target address must not already belong to an account. The
// uniqueness check here is advisory; the binding check happens when the
// challenge is redeemed.
func (a *Auth) ChangeEmail(ctx context.Context, userID int64, newEmail string) (*TokenPair, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}

	newEmail = normalizeEmail(newEmail)
	ip := clientIPFromContext(ctx)

	if err := a.throttleAttempt(ctx, actionChangeEmail, userDim(userID), ip); err != nil {
		return nil, err
	}

	if !validEmail(newEmail) {
		a.emitAudit(ctx, auditEventEmailChangeIssued, false, userID, ErrInvalidEmail, nil)
		return nil, ErrInvalidEmail
	}

	user, err := a.users.FindByID(ctx, a.db, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownID
		}
		a.emitBackendError(ctx, "change_email", err)
		return nil, ErrUnavailable
	}

	if !user.Verified {
		a.emitAudit(ctx, auditEventEmailChangeIssued, false, userID, ErrEmailNotVerified, nil)
		return nil, ErrEmailNotVerified
	}

	_, err = a.users.FindByEmail(ctx, a.db, newEmail)
	switch {
	case err == nil:
		a.emitAudit(ctx, auditEventEmailChangeIssued, false, userID, ErrUserAlreadyExists, func() map[string]string {
			return map[string]string{"email": newEmail}
		})
		return nil, ErrUserAlreadyExists
	case errors.Is(err, store.ErrNotFound):
		// Free to claim.
	default:
		a.emitBackendError(ctx, "change_email", err)
		return nil, ErrUnavailable
	}

	var pair TokenPair
	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		p, err := a.issueConfirmation(ctx, tx, user.ID, newEmail)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		a.emitBackendError(ctx, "change_email", err)
		return nil, ErrUnavailable
	}

	a.metricInc(MetricEmailChangeRequested)
	a.emitAudit(ctx, auditEventEmailChangeIssued, true, user.ID, nil, func() map[string]string {
		return map[string]string{"email": newEmail}
	})
	return &pair, nil
}
