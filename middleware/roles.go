package middleware

import (
	"net/http"

	"github.com/ArrisFramework/authcore"
	"github.com/ArrisFramework/authcore/roles"
)

// RequireRoles guards like [Guard] and additionally requires every listed
// role on the validated assertion, failing with 403 otherwise. Use
// [authcore.ModeCurrent] when grants must be honored the moment they change.
func RequireRoles(auth *authcore.Auth, mode authcore.SessionMode, required ...roles.Role) func(http.Handler) http.Handler {
	guard := Guard(auth, mode)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFromContext(r.Context())
			if !ok || !session.Roles.HasAll(required...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
