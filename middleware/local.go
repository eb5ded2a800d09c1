package middleware

import (
	"net/http"

	"github.com/ArrisFramework/authcore"
)

// RequireLocal guards with [authcore.ModeLocal]: signature and expiry only,
// no storage round-trip. Revocations are not seen until the assertion
// expires.
func RequireLocal(auth *authcore.Auth) func(http.Handler) http.Handler {
	return Guard(auth, authcore.ModeLocal)
}
