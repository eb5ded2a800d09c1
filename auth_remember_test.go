package authcore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ArrisFramework/authcore/roles"
)

// loginRemembered signs the user in with Remember set and returns the result.
func loginRemembered(t *testing.T, auth *Auth, email, pw string) *LoginResult {
	t.Helper()

	res, err := auth.Login(context.Background(), LoginRequest{Email: email, Password: pw, Remember: true})
	if err != nil {
		t.Fatalf("Login with remember failed: %v", err)
	}
	if res.RememberToken == "" {
		t.Fatal("expected a remember token")
	}
	return res
}

func TestRememberTokenRoundTrip(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	userID := registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	res := loginRemembered(t, auth, "a@x.com", "Passw0rd!pad")

	again, err := auth.LoginWithRememberToken(ctx, res.RememberToken)
	if err != nil {
		t.Fatalf("LoginWithRememberToken failed: %v", err)
	}
	if again.Session.UserID != userID {
		t.Fatalf("expected user %d, got %d", userID, again.Session.UserID)
	}
	if again.RememberToken == "" || again.RememberToken == res.RememberToken {
		t.Fatal("expected a rotated replacement cookie")
	}
}

func TestRememberTokenSingleCharacterMutation(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	res := loginRemembered(t, auth, "a@x.com", "Passw0rd!pad")

	// Flip the first character of the secret half.
	cookie := res.RememberToken
	pos := strings.IndexByte(cookie, '.') + 1
	replacement := byte('A')
	if cookie[pos] == replacement {
		replacement = 'B'
	}
	mutated := cookie[:pos] + string(replacement) + cookie[pos+1:]

	if _, err := auth.LoginWithRememberToken(ctx, mutated); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for mutated cookie, got %v", err)
	}

	// The original is untouched by the failed probe.
	if _, err := auth.LoginWithRememberToken(ctx, cookie); err != nil {
		t.Fatalf("expected untouched cookie to still work, got %v", err)
	}
}

func TestRememberTokenRotationKillsPresentedCookie(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	res := loginRemembered(t, auth, "a@x.com", "Passw0rd!pad")

	if _, err := auth.LoginWithRememberToken(ctx, res.RememberToken); err != nil {
		t.Fatalf("first redemption failed: %v", err)
	}

	// Replaying the consumed cookie fails: the selector survives but its
	// secret was rotated.
	if _, err := auth.LoginWithRememberToken(ctx, res.RememberToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on replay, got %v", err)
	}
}

func TestRememberTokenExpiryDeletesLazily(t *testing.T) {
	cfg := testConfig()
	auth, clock, _ := newTestAuth(t, cfg)
	ctx := context.Background()
	registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	res := loginRemembered(t, auth, "a@x.com", "Passw0rd!pad")

	clock.Advance(cfg.Tokens.RememberTTL + time.Second)

	if _, err := auth.LoginWithRememberToken(ctx, res.RememberToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	// The first presentation deleted the stale row.
	if _, err := auth.LoginWithRememberToken(ctx, res.RememberToken); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound after lazy deletion, got %v", err)
	}
}

func TestRememberTokenRotationExtendsExpiry(t *testing.T) {
	cfg := testConfig()
	auth, clock, _ := newTestAuth(t, cfg)
	ctx := context.Background()
	registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	res := loginRemembered(t, auth, "a@x.com", "Passw0rd!pad")

	// Rotate just before expiry, then move past the original deadline.
	clock.Advance(cfg.Tokens.RememberTTL - time.Minute)
	rotated, err := auth.LoginWithRememberToken(ctx, res.RememberToken)
	if err != nil {
		t.Fatalf("rotation failed: %v", err)
	}

	clock.Advance(2 * time.Minute)
	if _, err := auth.LoginWithRememberToken(ctx, rotated.RememberToken); err != nil {
		t.Fatalf("expected rotated cookie to outlive the original deadline, got %v", err)
	}
}

func TestRememberLoginCarriesCurrentRolesAndStatus(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	userID := registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	res := loginRemembered(t, auth, "a@x.com", "Passw0rd!pad")
	if res.Session.Roles != 0 {
		t.Fatalf("expected no roles at issue time, got %d", res.Session.Roles)
	}

	if err := auth.AddRoleForUserByID(ctx, userID, roles.Editor); err != nil {
		t.Fatalf("AddRoleForUserByID failed: %v", err)
	}

	// The re-issued assertion reflects the grant made after the cookie was
	// issued, not the snapshot baked into it.
	again, err := auth.LoginWithRememberToken(ctx, res.RememberToken)
	if err != nil {
		t.Fatalf("LoginWithRememberToken failed: %v", err)
	}
	if !again.Session.Roles.Has(roles.Editor) {
		t.Fatal("expected the rotated session to carry the newly granted role")
	}
}

func TestRememberLoginRejectsBlockedAccount(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	userID := registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	res := loginRemembered(t, auth, "a@x.com", "Passw0rd!pad")

	if err := auth.SetStatusByID(ctx, userID, StatusBanned); err != nil {
		t.Fatalf("SetStatusByID failed: %v", err)
	}

	if _, err := auth.LoginWithRememberToken(ctx, res.RememberToken); !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned, got %v", err)
	}
}

func TestLogoutRevokesOneDevice(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	first := loginRemembered(t, auth, "a@x.com", "Passw0rd!pad")
	second := loginRemembered(t, auth, "a@x.com", "Passw0rd!pad")

	if err := auth.Logout(ctx, first.RememberToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, err := auth.LoginWithRememberToken(ctx, first.RememberToken); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected revoked cookie to be gone, got %v", err)
	}
	// The other device's cookie is untouched.
	if _, err := auth.LoginWithRememberToken(ctx, second.RememberToken); err != nil {
		t.Fatalf("expected second device to stay signed in, got %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	res := loginRemembered(t, auth, "a@x.com", "Passw0rd!pad")

	if err := auth.Logout(ctx, res.RememberToken); err != nil {
		t.Fatalf("first Logout failed: %v", err)
	}
	if err := auth.Logout(ctx, res.RememberToken); err != nil {
		t.Fatalf("second Logout failed: %v", err)
	}
	if err := auth.Logout(ctx, ""); err != nil {
		t.Fatalf("empty-cookie Logout failed: %v", err)
	}
}

func TestLogoutEverywhere(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	userID := registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	first := loginRemembered(t, auth, "a@x.com", "Passw0rd!pad")
	second := loginRemembered(t, auth, "a@x.com", "Passw0rd!pad")

	if err := auth.LogoutEverywhere(ctx, userID); err != nil {
		t.Fatalf("LogoutEverywhere failed: %v", err)
	}

	for i, cookie := range []string{first.RememberToken, second.RememberToken} {
		if _, err := auth.LoginWithRememberToken(ctx, cookie); !errors.Is(err, ErrTokenNotFound) {
			t.Fatalf("cookie %d: expected ErrTokenNotFound, got %v", i+1, err)
		}
	}

	// Outstanding session assertions fail strict validation.
	if _, err := auth.ValidateSession(ctx, first.SessionToken, ModeCurrent); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestListRememberedLogins(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	userID := registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	first := loginRemembered(t, auth, "a@x.com", "Passw0rd!pad")
	second := loginRemembered(t, auth, "a@x.com", "Passw0rd!pad")

	logins, err := auth.ListRememberedLogins(ctx, userID)
	if err != nil {
		t.Fatalf("ListRememberedLogins failed: %v", err)
	}
	if len(logins) != 2 {
		t.Fatalf("expected 2 remembered logins, got %d", len(logins))
	}

	for _, entry := range logins {
		if entry.Selector == "" {
			t.Fatal("expected the selector on the listing")
		}
		// Only the public half is exposed.
		for _, cookie := range []string{first.RememberToken, second.RememberToken} {
			secret := cookie[strings.IndexByte(cookie, '.')+1:]
			if entry.Selector == secret || strings.Contains(entry.Selector, secret) {
				t.Fatal("listing leaked token secret material")
			}
		}
	}

	if _, err := auth.ListRememberedLogins(ctx, userID+999); !errors.Is(err, ErrUnknownID) {
		t.Fatalf("expected ErrUnknownID, got %v", err)
	}
}
