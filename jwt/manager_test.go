package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testManager(t *testing.T, cfg Config, now func() time.Time) *Manager {
	t.Helper()
	if cfg.TTL == 0 {
		cfg.TTL = time.Hour
	}
	if cfg.Secret == nil {
		cfg.Secret = testSecret
	}
	m, err := NewManager(cfg, now)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return m
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)
	m := testManager(t, Config{Issuer: "authcore"}, func() time.Time { return issued })

	token, err := m.Issue(42, 0b101, 2, 7)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	userID, err := claims.UserID()
	if err != nil {
		t.Fatalf("UserID error: %v", err)
	}
	if userID != 42 {
		t.Errorf("user id = %d, want 42", userID)
	}
	if claims.RolesMask != 0b101 {
		t.Errorf("roles mask = %b, want 101", claims.RolesMask)
	}
	if claims.Status != 2 {
		t.Errorf("status = %d, want 2", claims.Status)
	}
	if claims.LogoutVersion != 7 {
		t.Errorf("logout version = %d, want 7", claims.LogoutVersion)
	}
	if !claims.IssuedAt.Time.Equal(issued) {
		t.Errorf("issued at = %v, want %v", claims.IssuedAt.Time, issued)
	}
}

func TestIssueRejectsInvalidUserID(t *testing.T) {
	m := testManager(t, Config{}, nil)
	if _, err := m.Issue(0, 0, 0, 0); err == nil {
		t.Fatal("expected user id 0 to be rejected")
	}
}

func TestParseExpired(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	m := testManager(t, Config{TTL: time.Hour}, func() time.Time { return current })

	token, err := m.Issue(1, 0, 0, 0)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if _, err := m.Parse(token); err != nil {
		t.Fatalf("fresh token should parse: %v", err)
	}

	current = current.Add(2 * time.Hour)
	_, err = m.Parse(token)
	if !errors.Is(err, gjwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	m := testManager(t, Config{}, nil)

	claims := SessionClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "1",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}

	if _, err := m.Parse(forged); err == nil {
		t.Fatal("expected HS512 token to be rejected")
	}
}

func TestParseRejectsTamperedSignature(t *testing.T) {
	m := testManager(t, Config{}, nil)

	token, err := m.Issue(1, 0, 0, 0)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	last := token[len(token)-1]
	flip := byte('A')
	if last == 'A' {
		flip = 'B'
	}
	if _, err := m.Parse(token[:len(token)-1] + string(flip)); err == nil {
		t.Fatal("expected tampered signature to be rejected")
	}
}

func TestParseIssuerAndAudience(t *testing.T) {
	m := testManager(t, Config{Issuer: "authcore", Audience: "api"}, nil)

	token, err := m.Issue(1, 0, 0, 0)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := m.Parse(token); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	forge := func(issuer, audience string) string {
		claims := SessionClaims{RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "1",
			Issuer:    issuer,
			Audience:  gjwt.ClaimStrings{audience},
			IssuedAt:  gjwt.NewNumericDate(time.Now()),
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
		if err != nil {
			t.Fatalf("sign forged token: %v", err)
		}
		return s
	}

	if _, err := m.Parse(forge("other", "api")); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
	if _, err := m.Parse(forge("authcore", "other-api")); err == nil {
		t.Fatal("expected wrong audience to fail")
	}
}

func TestKeyRotation(t *testing.T) {
	oldSecret := []byte(strings.Repeat("o", 32))
	newSecret := []byte(strings.Repeat("n", 32))

	older := testManager(t, Config{Secret: oldSecret, KeyID: "k1", VerifyKeys: map[string][]byte{"k1": oldSecret}}, nil)
	newer := testManager(t, Config{Secret: newSecret, KeyID: "k2", VerifyKeys: map[string][]byte{
		"k1": oldSecret,
		"k2": newSecret,
	}}, nil)

	oldToken, err := older.Issue(1, 0, 0, 0)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	newToken, err := newer.Issue(2, 0, 0, 0)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	// The rotated manager still accepts tokens signed under the old kid.
	if _, err := newer.Parse(oldToken); err != nil {
		t.Errorf("expected old-kid token to verify after rotation: %v", err)
	}
	if _, err := newer.Parse(newToken); err != nil {
		t.Errorf("expected new-kid token to verify: %v", err)
	}

	// The pre-rotation manager does not know k2.
	if _, err := older.Parse(newToken); err == nil {
		t.Error("expected unknown kid to be rejected")
	}

	// A token without any kid fails once a verify key set is configured.
	plain := testManager(t, Config{Secret: oldSecret}, nil)
	noKid, err := plain.Issue(3, 0, 0, 0)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if _, err := newer.Parse(noKid); err == nil {
		t.Error("expected kid-less token to be rejected")
	}
}

func TestParseRejectsFarFutureIssuedAt(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	m := testManager(t, Config{}, func() time.Time { return current })

	claims := SessionClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "1",
		IssuedAt:  gjwt.NewNumericDate(current.Add(time.Hour)),
		ExpiresAt: gjwt.NewNumericDate(current.Add(2 * time.Hour)),
	}}
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}

	if _, err := m.Parse(forged); err == nil {
		t.Fatal("expected far-future iat to be rejected")
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero ttl", Config{Secret: testSecret}},
		{"short secret", Config{TTL: time.Hour, Secret: []byte("short")}},
		{"excessive leeway", Config{TTL: time.Hour, Secret: testSecret, Leeway: 5 * time.Minute}},
		{"empty kid in verify keys", Config{TTL: time.Hour, Secret: testSecret, VerifyKeys: map[string][]byte{" ": testSecret}}},
		{"kid missing from verify keys", Config{TTL: time.Hour, Secret: testSecret, KeyID: "k9", VerifyKeys: map[string][]byte{"k1": testSecret}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg, nil); err == nil {
				t.Fatal("expected configuration to be rejected")
			}
		})
	}
}

func TestUserIDSubjectParsing(t *testing.T) {
	for _, sub := range []string{"", "abc", "0", "-4"} {
		claims := &SessionClaims{RegisteredClaims: gjwt.RegisteredClaims{Subject: sub}}
		if _, err := claims.UserID(); err == nil {
			t.Errorf("subject %q should not parse", sub)
		}
	}
}
