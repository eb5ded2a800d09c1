// Package roles defines the fixed set of grantable roles and the bitmask
// type carried on user records and session assertions.
//
// # Role table
//
// The role set is a static table enumerated at compile time. Bit positions
// are part of the storage format: the users table persists a [Mask] as a
// signed 64-bit integer, so roles must only ever be appended, never
// reordered or removed.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. It provides
// the conversions ([FromInt64], [Mask.Int64]) used at the storage boundary.
//
// # What this package must NOT do
//
//   - Access databases or the network.
//   - Import authcore, jwt, or the internal packages.
//   - Assign role values at runtime.
package roles
