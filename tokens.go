package authcore

import (
	"context"
	"encoding/binary"
	"io"
	"time"

	"github.com/ArrisFramework/authcore/internal/dbx"
	"github.com/ArrisFramework/authcore/internal/store"
	"github.com/ArrisFramework/authcore/internal/token"
)

// issueConfirmation writes a confirmation row for the given address and
// returns the challenge. The address is the one being confirmed: the
// account's own on signup and resend, the prospective one on email change.
func (a *Auth) issueConfirmation(ctx context.Context, q dbx.DBTX, userID int64, email string) (TokenPair, error) {
	selector, err := token.NewSelector(a.random)
	if err != nil {
		return TokenPair{}, err
	}
	secret, err := token.NewSecret(a.random)
	if err != nil {
		return TokenPair{}, err
	}

	expires := a.now().Add(a.config.Tokens.ConfirmationTTL)
	_, err = a.confirmations.Create(ctx, q, store.Confirmation{
		UserID:    userID,
		Email:     email,
		Selector:  selector.String(),
		TokenHash: token.Hash(secret),
		Expires:   expires.Unix(),
	})
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		Selector:  selector.String(),
		Token:     token.EncodeSecret(secret),
		ExpiresAt: expires,
	}, nil
}

// issueReset writes a password reset row, first deleting any outstanding one
// for the user: reset challenges supersede, they never accumulate.
func (a *Auth) issueReset(ctx context.Context, q dbx.DBTX, userID int64) (TokenPair, error) {
	if err := a.resets.DeleteAllForUser(ctx, q, userID); err != nil {
		return TokenPair{}, err
	}

	selector, err := token.NewSelector(a.random)
	if err != nil {
		return TokenPair{}, err
	}
	secret, err := token.NewSecret(a.random)
	if err != nil {
		return TokenPair{}, err
	}

	expires := a.now().Add(a.config.Tokens.ResetTTL)
	_, err = a.resets.Create(ctx, q, store.Reset{
		UserID:    userID,
		Selector:  selector.String(),
		TokenHash: token.Hash(secret),
		Expires:   expires.Unix(),
	})
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		Selector:  selector.String(),
		Token:     token.EncodeSecret(secret),
		ExpiresAt: expires,
	}, nil
}

// fakeTokenPair builds a success-shaped challenge for an address that has no
// account behind it. Nothing is persisted, so the pair can never redeem; the
// enumeration delay stands in for the storage work the real path does.
func (a *Auth) fakeTokenPair(ttl time.Duration) (TokenPair, error) {
	selector, err := token.NewSelector(a.random)
	if err != nil {
		return TokenPair{}, err
	}
	secret, err := token.NewSecret(a.random)
	if err != nil {
		return TokenPair{}, err
	}

	a.enumerationDelay()

	return TokenPair{
		Selector:  selector.String(),
		Token:     token.EncodeSecret(secret),
		ExpiresAt: a.now().Add(ttl),
	}, nil
}

// enumerationDelay sleeps a random span inside the configured window.
func (a *Auth) enumerationDelay() {
	lo, hi := a.config.Security.EnumerationDelayMin, a.config.Security.EnumerationDelayMax
	if hi <= 0 {
		return
	}
	d := lo
	if span := hi - lo; span > 0 {
		var b [8]byte
		if _, err := io.ReadFull(a.random, b[:]); err == nil {
			d += time.Duration(binary.BigEndian.Uint64(b[:]) % uint64(span+1))
		}
	}
	if d > 0 {
		time.Sleep(d)
	}
}

// parseChallenge decodes the two client-presented parts of a confirmation or
// reset challenge. A selector that does not parse cannot name a row, so it
// maps to ErrTokenNotFound; a secret that does not parse cannot match one,
// so it maps to ErrTokenInvalid.
func parseChallenge(selectorStr, tokenStr string) (token.Selector, [token.SecretSize]byte, error) {
	sel, err := token.ParseSelector(selectorStr)
	if err != nil {
		return token.Selector{}, [token.SecretSize]byte{}, ErrTokenNotFound
	}
	secret, err := token.ParseSecret(tokenStr)
	if err != nil {
		return sel, secret, ErrTokenInvalid
	}
	return sel, secret, nil
}
