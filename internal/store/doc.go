// Package store contains the SQL repositories for the five tables owned by
// the library: users, confirmations, password resets, remembered logins, and
// the throttling buckets (the latter accessed through the throttle package).
//
// # Architecture boundaries
//
// Repositories are thin: parameterized statements, row scanning, and the
// translation of driver-specific constraint violations into typed errors.
// Transaction boundaries, token comparison, and every policy decision belong
// to the facade. Each method takes a dbx.DBTX so it runs equally inside or
// outside a transaction.
//
// # What this package must NOT do
//
//   - Hash, compare, or generate secrets.
//   - Decide throttling, supersession, or cascade policy.
//   - Leak raw driver errors upward; everything is classified or wrapped.
package store
