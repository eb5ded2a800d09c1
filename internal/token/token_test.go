package token

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	selector, err := NewSelector(rand.Reader)
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	secret, err := NewSecret(rand.Reader)
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}

	challenge := Encode(selector, secret)

	gotSelector, gotSecret, err := Decode(challenge)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotSelector != selector {
		t.Fatalf("selector mismatch: got %v want %v", gotSelector, selector)
	}
	if gotSecret != secret {
		t.Fatalf("secret mismatch")
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	selector, _ := NewSelector(rand.Reader)
	secret, _ := NewSecret(rand.Reader)
	valid := Encode(selector, secret)

	cases := []string{
		"",
		"nodelimiter",
		selector.String() + ".",
		"." + selector.String(),
		valid + "x",
		strings.Replace(valid, ".", "!", 1),
		valid[:len(valid)-4],
	}
	for _, c := range cases {
		if _, _, err := Decode(c); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%q): expected ErrMalformed, got %v", c, err)
		}
	}
}

func TestDeterministicWithFixedReader(t *testing.T) {
	fixed := bytes.Repeat([]byte{0xAB}, 64)

	selA, err := NewSelector(bytes.NewReader(fixed))
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	selB, err := NewSelector(bytes.NewReader(fixed))
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	if selA != selB {
		t.Fatal("selectors from the same reader bytes must match")
	}

	if _, err := NewSecret(bytes.NewReader(fixed[:10])); err == nil {
		t.Fatal("expected error when the reader runs dry")
	}
}

func TestMatches(t *testing.T) {
	secret, _ := NewSecret(rand.Reader)
	stored := Hash(secret)

	if !Matches(secret, stored) {
		t.Fatal("secret must match its own hash")
	}

	var other [SecretSize]byte
	copy(other[:], secret[:])
	other[0] ^= 0x01
	if Matches(other, stored) {
		t.Fatal("mutated secret must not match")
	}

	if Matches(secret, "not-hex") {
		t.Fatal("malformed stored hash must not match")
	}
	if Matches(secret, stored[:10]) {
		t.Fatal("truncated stored hash must not match")
	}
}
