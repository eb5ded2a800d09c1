// Package jwt issues and verifies the signed session assertions handed to
// callers after a successful login. Tokens are HS256-signed and carry the
// user id, a snapshot of roles and status, and the session version used to
// detect forced logouts.
package jwt
