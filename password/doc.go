// Package password implements password hashing and verification with Argon2id
// defaults and a legacy bcrypt verify path.
//
// # Output format
//
// New hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Stored bcrypt hashes ($2a$/$2b$/$2y$) verify transparently so accounts
// imported from older systems keep working; [Argon2.NeedsRehash] reports true
// for them, and for PHC hashes produced with weaker parameters, so the caller
// can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, non-emptiness) is enforced by the facade before hashing.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters.
package password
