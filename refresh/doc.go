// Package refresh implements the stateful refresh-token protocol: issuance
// with persistence, validation against the durable record, single-use
// rotation and idempotent revocation.
//
// # Token format
//
// Refresh tokens are JWTs signed with the refresh key (see package jwt)
// carrying tid and uid. tid is the primary key of a Record in a Store; uid is
// the pseudonymous identifier of the owner. The record stores the real owner
// identifier and is the source of truth for revocation and expiry.
//
// # Architecture boundaries
//
// The Store owns durability and the conditional revoke. Service composes the
// jwt.Manager, the Store and the pseudonymizer. The Engine decides how
// failures are reported to callers.
//
// # What this package must NOT do
//
//   - Delete records. Revoked records are kept for audit.
//   - Un-revoke a record.
//   - Return a refresh token whose record failed to persist.
package refresh
