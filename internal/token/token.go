// Package token implements the selector/secret scheme shared by remember-me,
// confirmation, and password-reset tokens.
//
// A token is issued as two parts: a public selector used as the database
// lookup key, and a random secret handed to the caller exactly once. Only the
// SHA-256 hash of the secret is ever persisted. Presented secrets are checked
// against the stored hash in constant time.
package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"strings"
)

type Selector [16]byte

const SecretSize = 32

// challengeDelimiter separates the selector from the secret in the encoded
// form handed to clients. It is not part of the base64url alphabet.
const challengeDelimiter = "."

var (
	ErrMalformed = errors.New("malformed token")
)

func NewSelector(random io.Reader) (Selector, error) {
	var sel Selector
	_, err := io.ReadFull(random, sel[:])
	return sel, err
}

func (s Selector) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSelector(selector string) (Selector, error) {
	var sel Selector

	raw, err := base64.RawURLEncoding.DecodeString(selector)
	if err != nil {
		return sel, ErrMalformed
	}
	if len(raw) != len(sel) {
		return sel, ErrMalformed
	}

	copy(sel[:], raw)
	return sel, nil
}

func NewSecret(random io.Reader) ([SecretSize]byte, error) {
	var secret [SecretSize]byte
	_, err := io.ReadFull(random, secret[:])
	return secret, err
}

// Hash returns the persisted form of a secret: lowercase hex of its SHA-256.
func Hash(secret [SecretSize]byte) string {
	sum := sha256.Sum256(secret[:])
	return hex.EncodeToString(sum[:])
}

// Matches reports whether the presented secret hashes to storedHash. The
// comparison runs in constant time over the two digests.
func Matches(presented [SecretSize]byte, storedHash string) bool {
	stored, err := hex.DecodeString(storedHash)
	if err != nil || len(stored) != sha256.Size {
		return false
	}

	sum := sha256.Sum256(presented[:])
	return subtle.ConstantTimeCompare(sum[:], stored) == 1
}

// EncodeSecret returns the client form of a bare secret.
func EncodeSecret(secret [SecretSize]byte) string {
	return base64.RawURLEncoding.EncodeToString(secret[:])
}

// ParseSecret decodes the client form of a bare secret.
func ParseSecret(s string) ([SecretSize]byte, error) {
	var secret [SecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil || len(raw) != SecretSize {
		return secret, ErrMalformed
	}

	copy(secret[:], raw)
	return secret, nil
}

// Encode builds the single opaque string handed to clients: the selector and
// the raw secret, base64url-encoded and joined by a delimiter.
func Encode(selector Selector, secret [SecretSize]byte) string {
	return selector.String() + challengeDelimiter + EncodeSecret(secret)
}

func Decode(challenge string) (Selector, [SecretSize]byte, error) {
	selectorPart, secretPart, found := strings.Cut(challenge, challengeDelimiter)
	if !found {
		return Selector{}, [SecretSize]byte{}, ErrMalformed
	}

	selector, err := ParseSelector(selectorPart)
	if err != nil {
		return Selector{}, [SecretSize]byte{}, ErrMalformed
	}

	secret, err := ParseSecret(secretPart)
	if err != nil {
		return Selector{}, secret, ErrMalformed
	}

	return selector, secret, nil
}
