package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ArrisFramework/authcore"
)

type sessionContextKey struct{}

// SessionFromContext returns the assertion a Guard stored after validating
// the request, and false when the request never passed through one.
func SessionFromContext(ctx context.Context) (*authcore.SessionAssertion, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*authcore.SessionAssertion)
	return s, ok
}

// Guard returns middleware that requires a valid bearer session assertion on
// every request. The validated assertion is stored on the request context
// for [SessionFromContext].
//
// Requests fail with 401 when the assertion is missing, malformed, expired,
// or revoked, and with 503 when mode is [authcore.ModeCurrent] and the
// account store cannot be reached.
func Guard(auth *authcore.Auth, mode authcore.SessionMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			session, err := auth.ValidateSession(r.Context(), token, mode)
			if err != nil {
				if errors.Is(err, authcore.ErrUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
