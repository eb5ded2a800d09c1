package authcore

import (
	"context"
	"errors"
	"log"

	"github.com/ArrisFramework/authcore/internal/dbx"
	"github.com/ArrisFramework/authcore/internal/store"
	"github.com/ArrisFramework/authcore/internal/token"
)

// issueRememberToken writes a long-lived login row and returns the opaque
// cookie value. The raw secret exists only in the return value; the row
// keeps its hash.
func (a *Auth) issueRememberToken(ctx context.Context, q dbx.DBTX, userID int64) (string, error) {
	selector, err := token.NewSelector(a.random)
	if err != nil {
		return "", err
	}
	secret, err := token.NewSecret(a.random)
	if err != nil {
		return "", err
	}

	_, err = a.remembered.Create(ctx, q, store.Remembered{
		UserID:    userID,
		Selector:  selector.String(),
		TokenHash: token.Hash(secret),
		Expires:   a.now().Add(a.config.Tokens.RememberTTL).Unix(),
	})
	if err != nil {
		return "", err
	}

	a.metricInc(MetricRememberIssued)
	return token.Encode(selector, secret), nil
}

// redeemRememberToken validates a presented cookie and rotates its secret
// under the same selector, extending expiry. It returns the owning user id
// and the replacement cookie; the presented cookie is dead afterwards.
func (a *Auth) redeemRememberToken(ctx context.Context, cookie string) (int64, string, error) {
	selector, secret, err := token.Decode(cookie)
	if err != nil {
		return 0, "", ErrTokenInvalid
	}

	rec, err := a.remembered.FindBySelector(ctx, a.db, selector.String())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, "", ErrTokenNotFound
		}
		a.emitBackendError(ctx, "remember_login", err)
		return 0, "", ErrUnavailable
	}

	now := a.now()
	if rec.Expires <= now.Unix() {
		if _, err := a.remembered.Delete(ctx, a.db, rec.ID); err != nil {
			log.Print("authcore: expired remember token cleanup failed")
		}
		return 0, "", ErrTokenExpired
	}

	// Mismatch keeps the row: the legitimate cookie is still out there and
	// retries stay subject to the throttle.
	if !token.Matches(secret, rec.TokenHash) {
		return 0, "", ErrTokenInvalid
	}

	nextSecret, err := token.NewSecret(a.random)
	if err != nil {
		return 0, "", err
	}
	nextExpiry := now.Add(a.config.Tokens.RememberTTL).Unix()
	if err := a.remembered.Rotate(ctx, a.db, rec.ID, rec.TokenHash, token.Hash(nextSecret), nextExpiry); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// A concurrent redemption of the same cookie rotated first.
			return 0, "", ErrTokenInvalid
		}
		a.emitBackendError(ctx, "remember_login", err)
		return 0, "", ErrUnavailable
	}

	a.metricInc(MetricRememberRotated)
	return rec.UserID, token.Encode(selector, nextSecret), nil
}
