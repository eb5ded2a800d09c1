package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestChangePassword(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	userID := registerActiveUser(t, auth, "a@x.com", "old password here")

	remembered := loginRemembered(t, auth, "a@x.com", "old password here")

	if err := auth.ChangePassword(ctx, userID, "old password here", "new password here"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := auth.Login(ctx, LoginRequest{Email: "a@x.com", Password: "old password here"}); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected old password to be dead, got %v", err)
	}
	if _, err := auth.Login(ctx, LoginRequest{Email: "a@x.com", Password: "new password here"}); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}

	// A credential change ends every other session.
	if _, err := auth.LoginWithRememberToken(ctx, remembered.RememberToken); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected remember token to be revoked, got %v", err)
	}
	if _, err := auth.ValidateSession(ctx, remembered.SessionToken, ModeCurrent); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	userID := registerActiveUser(t, auth, "a@x.com", "old password here")

	err := auth.ChangePassword(ctx, userID, "not the password", "new password here")
	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	// Nothing changed.
	if _, err := auth.Login(ctx, LoginRequest{Email: "a@x.com", Password: "old password here"}); err != nil {
		t.Fatalf("expected old password to survive, got %v", err)
	}
}

func TestChangePasswordRejectsWeakReplacement(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	userID := registerActiveUser(t, auth, "a@x.com", "old password here")

	if err := auth.ChangePassword(ctx, userID, "old password here", "short"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestChangePasswordUnknownUser(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())

	err := auth.ChangePassword(context.Background(), 9001, "old password here", "new password here")
	if !errors.Is(err, ErrUnknownID) {
		t.Fatalf("expected ErrUnknownID, got %v", err)
	}
}

func TestReconfirmPassword(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	userID := registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	ok, err := auth.ReconfirmPassword(ctx, userID, "Passw0rd!pad")
	if err != nil {
		t.Fatalf("ReconfirmPassword failed: %v", err)
	}
	if !ok {
		t.Fatal("expected the correct password to reconfirm")
	}

	// A mismatch is a normal false, not an error.
	ok, err = auth.ReconfirmPassword(ctx, userID, "not the password")
	if err != nil {
		t.Fatalf("ReconfirmPassword failed: %v", err)
	}
	if ok {
		t.Fatal("expected a wrong password to fail reconfirmation")
	}
}

func TestReconfirmPasswordThrottled(t *testing.T) {
	auth, _, _ := newTestAuth(t, testConfig())
	ctx := context.Background()
	userID := registerActiveUser(t, auth, "a@x.com", "Passw0rd!pad")

	for i := 0; i < 5; i++ {
		if _, err := auth.ReconfirmPassword(ctx, userID, "wrong"); err != nil {
			t.Fatalf("attempt %d errored: %v", i+1, err)
		}
	}

	// Probing and ChangePassword share the same budget.
	if _, err := auth.ReconfirmPassword(ctx, userID, "Passw0rd!pad"); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("expected ErrTooManyRequests, got %v", err)
	}
	if err := auth.ChangePassword(ctx, userID, "Passw0rd!pad", "new password here"); !errors.Is(err, ErrTooManyRequests) {
		t.Fatalf("expected ChangePassword to share the budget, got %v", err)
	}
}
