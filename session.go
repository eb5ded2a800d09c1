package authcore

import (
	"context"
	"errors"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/ArrisFramework/authcore/internal/store"
	"github.com/ArrisFramework/authcore/roles"
)

func (a *Auth) issueAssertion(user *store.User) (SessionAssertion, string, error) {
	token, err := a.sessions.Issue(user.ID, user.RolesMask, user.Status, user.ForceLogout)
	if err != nil {
		return SessionAssertion{}, "", err
	}

	now := a.now()
	assertion := SessionAssertion{
		UserID:        user.ID,
		Roles:         roles.FromInt64(user.RolesMask),
		Status:        Status(user.Status),
		IssuedAt:      now,
		ExpiresAt:     now.Add(a.config.Session.TTL),
		LogoutVersion: user.ForceLogout,
	}

	a.metricInc(MetricSessionIssued)
	return assertion, token, nil
}

// ValidateSession verifies a session token and returns its assertion.
//
// ModeLocal checks the signature and expiry only and never touches storage;
// it is the cheap per-request path. ModeCurrent additionally re-reads the
// user row, rejects assertions whose logout version has been superseded or
// whose account is now blocked or deleted, and returns the assertion rebuilt
// from the user's current roles and status rather than the issued snapshot.
func (a *Auth) ValidateSession(ctx context.Context, token string, mode SessionMode) (*SessionAssertion, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}

	claims, err := a.sessions.Parse(token)
	if err != nil {
		a.metricInc(MetricSessionRejected)
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionInvalid
	}

	userID, err := claims.UserID()
	if err != nil {
		a.metricInc(MetricSessionRejected)
		return nil, ErrSessionInvalid
	}

	assertion := SessionAssertion{
		UserID:        userID,
		Roles:         roles.FromInt64(claims.RolesMask),
		Status:        Status(claims.Status),
		LogoutVersion: claims.LogoutVersion,
	}
	if claims.IssuedAt != nil {
		assertion.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		assertion.ExpiresAt = claims.ExpiresAt.Time
	}

	if mode == ModeLocal {
		return &assertion, nil
	}

	user, err := a.users.FindByID(ctx, a.db, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.metricInc(MetricSessionRejected)
			return nil, ErrSessionRevoked
		}
		a.emitBackendError(ctx, "validate_session", err)
		return nil, ErrUnavailable
	}

	if user.ForceLogout != claims.LogoutVersion {
		a.metricInc(MetricSessionRejected)
		return nil, ErrSessionRevoked
	}
	if err := statusBlockedError(Status(user.Status)); err != nil {
		a.metricInc(MetricSessionRejected)
		return nil, err
	}

	// Roles revoked or granted after issuance take effect here, not at the
	// next token refresh.
	assertion.Roles = roles.FromInt64(user.RolesMask)
	assertion.Status = Status(user.Status)

	return &assertion, nil
}
