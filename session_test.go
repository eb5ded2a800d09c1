package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ArrisFramework/authcore/roles"
)

func TestValidateSessionModeLocal(t *testing.T) {
	cfg := testConfig()
	auth, clock, _ := newTestAuth(t, cfg)
	ctx := context.Background()
	userID := registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	res, err := auth.Login(ctx, LoginRequest{Email: "a@x.com", Password: "Passw0rd!pad"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	session, err := auth.ValidateSession(ctx, res.SessionToken, ModeLocal)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if session.UserID != userID {
		t.Fatalf("expected user %d, got %d", userID, session.UserID)
	}
	if session.Status != StatusNormal {
		t.Fatalf("expected normal status, got %v", session.Status)
	}

	// Garbage and tampering are rejected.
	if _, err := auth.ValidateSession(ctx, "not.a.token", ModeLocal); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
	tampered := res.SessionToken[:len(res.SessionToken)-2] + "AA"
	if tampered == res.SessionToken {
		tampered = res.SessionToken[:len(res.SessionToken)-2] + "BB"
	}
	if _, err := auth.ValidateSession(ctx, tampered, ModeLocal); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid for tampered token, got %v", err)
	}

	// Expiry is enforced without a storage read.
	clock.Advance(cfg.Session.TTL + time.Minute)
	if _, err := auth.ValidateSession(ctx, res.SessionToken, ModeLocal); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestValidateSessionModeCurrentReflectsRoleChanges(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	userID := registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	res, err := auth.Login(ctx, LoginRequest{Email: "a@x.com", Password: "Passw0rd!pad"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := auth.AddRoleForUserByID(ctx, userID, roles.Editor); err != nil {
		t.Fatalf("AddRoleForUserByID failed: %v", err)
	}

	// The issued snapshot has no roles; strict validation reads the grant.
	local, err := auth.ValidateSession(ctx, res.SessionToken, ModeLocal)
	if err != nil {
		t.Fatalf("ModeLocal failed: %v", err)
	}
	if local.Roles.Has(roles.Editor) {
		t.Fatal("expected the local snapshot to predate the grant")
	}

	current, err := auth.ValidateSession(ctx, res.SessionToken, ModeCurrent)
	if err != nil {
		t.Fatalf("ModeCurrent failed: %v", err)
	}
	if !current.Roles.Has(roles.Editor) {
		t.Fatal("expected strict validation to carry the current roles")
	}
}

func TestValidateSessionModeCurrentRejectsBlockedAccount(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	userID := registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	res, err := auth.Login(ctx, LoginRequest{Email: "a@x.com", Password: "Passw0rd!pad"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := auth.SetStatusByID(ctx, userID, StatusSuspended); err != nil {
		t.Fatalf("SetStatusByID failed: %v", err)
	}

	// The stateless check still passes; the strict one sees the block.
	if _, err := auth.ValidateSession(ctx, res.SessionToken, ModeLocal); err != nil {
		t.Fatalf("ModeLocal failed: %v", err)
	}
	if _, err := auth.ValidateSession(ctx, res.SessionToken, ModeCurrent); !errors.Is(err, ErrAccountSuspended) {
		t.Fatalf("expected ErrAccountSuspended, got %v", err)
	}
}

func TestValidateSessionModeCurrentRejectsDeletedAccount(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	userID := registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	res, err := auth.Login(ctx, LoginRequest{Email: "a@x.com", Password: "Passw0rd!pad"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := auth.DeleteUserByID(ctx, userID); err != nil {
		t.Fatalf("DeleteUserByID failed: %v", err)
	}

	if _, err := auth.ValidateSession(ctx, res.SessionToken, ModeCurrent); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	auth, _, db := newTestAuth(t, testConfig())
	ctx := context.Background()
	registerActiveUser(t, auth, "gone@x.com", "Passw0rd!pad")

	// Leave one row in every dependent table.
	res := loginRemembered(t, auth, "gone@x.com", "Passw0rd!pad")
	userID := res.Session.UserID
	if _, err := auth.ChangeEmail(ctx, userID, "next@x.com"); err != nil {
		t.Fatalf("ChangeEmail failed: %v", err)
	}
	if _, err := auth.RequestPasswordReset(ctx, "gone@x.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}

	if err := auth.DeleteUserByID(ctx, userID); err != nil {
		t.Fatalf("DeleteUserByID failed: %v", err)
	}

	for _, table := range []string{"users", "users_remembered", "users_confirmations", "users_resets"} {
		var n int
		if err := db.Get(&n, `SELECT COUNT(*) FROM `+table+` WHERE `+ownerColumn(table)+` = ?`, userID); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Fatalf("expected no %s rows after delete, found %d", table, n)
		}
	}

	if err := auth.DeleteUserByID(ctx, userID); !errors.Is(err, ErrUnknownID) {
		t.Fatalf("expected ErrUnknownID on second delete, got %v", err)
	}
}

func ownerColumn(table string) string {
	if table == "users" {
		return "id"
	}
	return "user_id"
}
