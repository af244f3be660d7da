// Package otp implements the two-factor challenge state machine used between
// password verification and token issuance.
//
// # Lifecycle
//
// A challenge is Active from Create until exactly one terminal outcome:
// Consumed (correct code), Expired (TTL elapsed), or AttemptsExhausted
// (MaxAttempts wrong codes were recorded, the next submission fails even when
// correct). Every terminal outcome deletes the challenge.
//
// # Architecture boundaries
//
// The Manager owns code generation, hashing and policy. Persistence and the
// atomic attempt accounting belong to a [ChallengeStore]; in-process and
// Redis implementations live in internal/stores.
//
// # What this package must NOT do
//
//   - Store or log cleartext codes.
//   - Deliver codes (callers hand Issued.Code to a notification channel).
//   - Import gdprAuth or any internal package.
package otp
