// Package middleware adapts authcore session validation to net/http.
//
// # Guards
//
//   - [Guard] — bearer token → [authcore.Auth.ValidateSession] in the given mode.
//   - [RequireLocal] — signature-and-expiry validation, no storage round-trip.
//   - [RequireCurrent] — re-reads the account so revocations apply immediately.
//   - [RequireRoles] — [Guard] plus a role check on the validated assertion.
//
// Each guard reads the Authorization header, validates the assertion, and
// stores it on the request context for [SessionFromContext].
//
// The package translates HTTP semantics into authcore calls and nothing
// more: it never parses tokens itself and makes no authorization decision
// beyond what ValidateSession and the assertion's role set report.
package middleware
