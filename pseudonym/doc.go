// Package pseudonym derives stable pseudonymous identifiers from real user
// identifiers and resolves them back by recomputation.
//
// # Derivation
//
// The pseudonymous identifier is the first 128 bits of
// SHA-256(salt || realID), with both parts taken as UTF-8 text, carried as a
// [uuid.UUID]. Its canonical text form is the first 32 hex digits of the
// digest in 8-4-4-4-12 grouping.
//
// # Architecture boundaries
//
// This package owns the forward transform and the scan-based reverse lookup.
// The set of known real identifiers is supplied by the caller through
// [KnownIDs]; an optional [Index] may short-circuit the scan.
//
// # What this package must NOT do
//
//   - Persist derived identifiers.
//   - Hold locks or mutate shared state during Pseudonymize or Resolve.
//   - Import gdprAuth or any internal package.
package pseudonym
