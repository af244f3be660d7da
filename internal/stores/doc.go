// Package stores provides the short-lived challenge stores behind
// [otp.ChallengeStore]: an in-process map with expiry and a Redis store for
// multi-instance deployments.
//
// # Design
//
// Both stores enforce expiry at read time, so a missing or late sweep never
// affects correctness. Attempt runs under a mutex in memory and as a
// WATCH/MULTI optimistic transaction with bounded retry in Redis. Hash
// comparison is constant time.
//
// # What this package must NOT do
//
//   - Import gdprAuth or any sibling internal package.
//   - Log or expose code hashes.
package stores
