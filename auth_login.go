package authcore

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/ArrisFramework/authcore/internal/store"
)

// Login verifies the credentials and issues a session assertion. With
// Remember set it additionally issues a long-lived login cookie.
//
// The throttle buckets (login, email) and (login, IP) are each charged one
// attempt before the account is looked up; a verified password refunds them.
// An email that matches no account still pays for one full hash verification
// against a fixed dummy hash, so its latency gives away nothing.
func (a *Auth) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if a.metrics != nil && a.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { a.metrics.Observe(MetricLoginLatency, time.Since(start)) }()
	}

	email := normalizeEmail(req.Email)
	ip := clientIPFromContext(ctx)

	if err := a.throttleAttempt(ctx, actionLogin, email, ip); err != nil {
		return nil, err
	}

	meta := func() map[string]string {
		return map[string]string{"email": email}
	}

	if req.Password == "" {
		a.metricInc(MetricLoginFailure)
		a.emitAudit(ctx, auditEventLogin, false, 0, ErrInvalidPassword, withReason(meta, "empty_password"))
		return nil, ErrInvalidPassword
	}

	user, err := a.users.FindByEmail(ctx, a.db, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn one verification against the dummy hash so an unknown
			// address costs the same as a wrong password.
			_, _ = a.hasher.Verify(req.Password, a.dummyHash)
			a.metricInc(MetricLoginFailure)
			a.emitAudit(ctx, auditEventLogin, false, 0, ErrUnknownEmail, withReason(meta, "user_not_found"))
			return nil, ErrUnknownEmail
		}
		a.emitBackendError(ctx, "login", err)
		return nil, ErrUnavailable
	}

	return a.loginInternal(ctx, user, req.Password, req.Remember, email, ip, meta)
}

// LoginWithUsername is Login keyed by username instead of email address. It
// only works when usernames identify a single account: with non-unique
// usernames a multiple match reports ErrAmbiguousUsername and nothing is
// verified.
func (a *Auth) LoginWithUsername(ctx context.Context, username, password string, remember bool) (*LoginResult, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if a.metrics != nil && a.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { a.metrics.Observe(MetricLoginLatency, time.Since(start)) }()
	}

	username = strings.TrimSpace(username)
	ip := clientIPFromContext(ctx)

	if err := a.throttleAttempt(ctx, actionLogin, username, ip); err != nil {
		return nil, err
	}

	meta := func() map[string]string {
		return map[string]string{"username": username}
	}

	if password == "" {
		a.metricInc(MetricLoginFailure)
		a.emitAudit(ctx, auditEventLogin, false, 0, ErrInvalidPassword, withReason(meta, "empty_password"))
		return nil, ErrInvalidPassword
	}

	user, err := a.users.FindByUsername(ctx, a.db, username)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			_, _ = a.hasher.Verify(password, a.dummyHash)
			a.metricInc(MetricLoginFailure)
			a.emitAudit(ctx, auditEventLogin, false, 0, ErrUnknownUsername, withReason(meta, "user_not_found"))
			return nil, ErrUnknownUsername
		case errors.Is(err, store.ErrAmbiguousUsername):
			a.metricInc(MetricLoginFailure)
			a.emitAudit(ctx, auditEventLogin, false, 0, ErrAmbiguousUsername, withReason(meta, "ambiguous_username"))
			return nil, ErrAmbiguousUsername
		default:
			a.emitBackendError(ctx, "login", err)
			return nil, ErrUnavailable
		}
	}

	return a.loginInternal(ctx, user, password, remember, username, ip, meta)
}

// loginInternal runs the credential check shared by every login entry point.
// Gate order is fixed: password first, then blocked status, then pending
// verification. Status and verification state are only ever revealed to a
// caller who already proved the password.
func (a *Auth) loginInternal(
	ctx context.Context,
	user *store.User,
	password string,
	remember bool,
	dim, ip string,
	meta func() map[string]string,
) (*LoginResult, error) {
	ok, err := a.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		a.metricInc(MetricLoginFailure)
		a.emitAudit(ctx, auditEventLogin, false, user.ID, ErrInvalidPassword, withReason(meta, "password_mismatch"))
		return nil, ErrInvalidPassword
	}

	if statusErr := statusBlockedError(Status(user.Status)); statusErr != nil {
		a.metricInc(MetricLoginBlocked)
		a.emitAudit(ctx, auditEventLogin, false, user.ID, statusErr, withReason(meta, "account_status"))
		return nil, statusErr
	}

	if !user.Verified {
		// The password was right, so the buckets reset even though login is
		// refused: the legitimate owner should not stay locked out of the
		// confirmation flow.
		a.throttleReset(ctx, actionLogin, dim, ip)
		a.metricInc(MetricLoginUnverified)
		a.emitAudit(ctx, auditEventLogin, false, user.ID, ErrEmailNotVerified, withReason(meta, "pending_verification"))
		return nil, ErrEmailNotVerified
	}

	if a.config.Password.UpgradeOnLogin {
		if needs, err := a.hasher.NeedsRehash(user.PasswordHash); err == nil && needs {
			if upgraded, err := a.hasher.Hash(password); err == nil {
				// Best-effort: a failed rehash must not block the login.
				if err := a.users.UpdatePasswordHash(ctx, a.db, user.ID, upgraded); err != nil {
					log.Print("authcore: password hash upgrade failed")
				} else {
					a.metricInc(MetricPasswordRehash)
				}
			} else {
				log.Print("authcore: password hash upgrade generation failed")
			}
		}
	}

	a.throttleReset(ctx, actionLogin, dim, ip)

	if err := a.users.SetLastLogin(ctx, a.db, user.ID, a.now().Unix()); err != nil {
		log.Print("authcore: last login update failed")
	}

	assertion, signed, err := a.issueAssertion(user)
	if err != nil {
		a.metricInc(MetricLoginFailure)
		a.emitBackendError(ctx, "login", err)
		return nil, ErrUnavailable
	}

	result := &LoginResult{
		Session:      assertion,
		SessionToken: signed,
	}

	if remember {
		cookie, err := a.issueRememberToken(ctx, a.db, user.ID)
		if err != nil {
			a.metricInc(MetricLoginFailure)
			a.emitBackendError(ctx, "login", err)
			return nil, ErrUnavailable
		}
		result.RememberToken = cookie
	}

	a.metricInc(MetricLoginSuccess)
	a.emitAudit(ctx, auditEventLogin, true, user.ID, nil, meta)

	return result, nil
}

// withReason copies the base metadata and tags it with a failure reason.
func withReason(meta func() map[string]string, reason string) func() map[string]string {
	return func() map[string]string {
		m := meta()
		m["reason"] = reason
		return m
	}
}

// LoginWithRememberToken redeems a remember cookie issued by Login. On
// success the cookie's secret is rotated: the returned RememberToken replaces
// the presented one, which is dead from here on. The session assertion
// carries the account's current roles and status, not the snapshot from when
// the cookie was issued.
func (a *Auth) LoginWithRememberToken(ctx context.Context, cookie string) (*LoginResult, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}

	ip := clientIPFromContext(ctx)
	if err := a.throttleAttempt(ctx, actionRememberLogin, ip); err != nil {
		return nil, err
	}

	userID, nextCookie, err := a.redeemRememberToken(ctx, cookie)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			a.metricInc(MetricRememberLoginFailure)
			a.emitAudit(ctx, auditEventRememberLogin, false, 0, err, nil)
		}
		return nil, err
	}

	user, err := a.users.FindByID(ctx, a.db, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.metricInc(MetricRememberLoginFailure)
			a.emitAudit(ctx, auditEventRememberLogin, false, userID, ErrTokenInvalid, func() map[string]string {
				return map[string]string{"reason": "user_missing"}
			})
			return nil, ErrTokenInvalid
		}
		a.emitBackendError(ctx, "remember_login", err)
		return nil, ErrUnavailable
	}

	if statusErr := statusBlockedError(Status(user.Status)); statusErr != nil {
		a.metricInc(MetricRememberLoginFailure)
		a.emitAudit(ctx, auditEventRememberLogin, false, user.ID, statusErr, func() map[string]string {
			return map[string]string{"reason": "account_status"}
		})
		return nil, statusErr
	}
	if !user.Verified {
		a.metricInc(MetricRememberLoginFailure)
		a.emitAudit(ctx, auditEventRememberLogin, false, user.ID, ErrEmailNotVerified, func() map[string]string {
			return map[string]string{"reason": "pending_verification"}
		})
		return nil, ErrEmailNotVerified
	}

	a.throttleReset(ctx, actionRememberLogin, ip)

	if err := a.users.SetLastLogin(ctx, a.db, user.ID, a.now().Unix()); err != nil {
		log.Print("authcore: last login update failed")
	}

	assertion, signed, err := a.issueAssertion(user)
	if err != nil {
		a.metricInc(MetricRememberLoginFailure)
		a.emitBackendError(ctx, "remember_login", err)
		return nil, ErrUnavailable
	}

	a.metricInc(MetricRememberLoginSuccess)
	a.emitAudit(ctx, auditEventRememberLogin, true, user.ID, nil, nil)

	return &LoginResult{
		Session:       assertion,
		SessionToken:  signed,
		RememberToken: nextCookie,
	}, nil
}
