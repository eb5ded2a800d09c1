package middleware

import (
	"net/http"

	"github.com/ArrisFramework/authcore"
)

// RequireCurrent guards with [authcore.ModeCurrent]: the account row is
// re-read on every request, so revocation, status blocks, and role changes
// take effect immediately at the cost of a storage round-trip.
func RequireCurrent(auth *authcore.Auth) func(http.Handler) http.Handler {
	return Guard(auth, authcore.ModeCurrent)
}
