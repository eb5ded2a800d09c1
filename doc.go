// Package authcore implements the credential and session lifecycle for
// database-backed user accounts: registration, login, remember-me tokens,
// email confirmation, password reset, bitmask roles, and the attempt
// throttling that guards all of it.
//
// The entry point is [Auth], built once at startup:
//
//	db, err := sqlx.Open("pgx", dsn)
//	...
//	auth, err := authcore.New().
//		WithConfig(cfg).
//		WithDatabase(db).
//		Build()
//
// Every operation takes a context. Handlers attach the caller's address with
// [WithClientIP] so per-IP throttle buckets and audit events see it:
//
//	ctx := authcore.WithClientIP(r.Context(), remoteIP)
//	result, err := auth.Login(ctx, authcore.LoginRequest{Email: email, Password: pw})
//
// # Architecture boundaries
//
// The package orchestrates four internal layers and owns none of their
// mechanics: internal/throttle (persistent attempt ledger), internal/store
// (row access over sqlx), internal/token (selector/secret scheme), and the
// jwt package (signed session assertions). Schema setup lives in
// internal/migrate.
//
// # What this package must NOT do
//
//   - Send email. Confirmation and reset flows hand the caller a [TokenPair]
//     to deliver.
//   - Store raw secrets. Only hashes reach the database.
//   - Expose driver-level database errors, sqlx handles, or internal stores
//     in its public API.
package authcore
