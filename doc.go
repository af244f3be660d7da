// Package gdprAuth is an identity and consent engine: password login gated by
// an emailed one-time passcode, short-lived access JWTs, rotating refresh JWTs
// backed by durable records, and registration with mandatory consents.
//
// Every token and audit record names the user by a salted, one-way pseudonym.
// The real identifier stays inside the credential store.
//
// # Architecture boundaries
//
// gdprAuth is the public surface: [Engine], [Builder], [Config] and value
// types. Challenge storage, rate limiting and audit dispatch live under
// internal/. Token signing lives in jwt, refresh record handling in refresh,
// pseudonym derivation in pseudonym.
//
// # What this package must NOT do
//
//   - Put a real user identifier into a token, an audit event or a log line.
//   - Issue tokens without a validated second-factor challenge.
//   - Import any sub-package that re-imports gdprAuth.
package gdprAuth
