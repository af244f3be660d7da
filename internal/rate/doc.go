// Package rate provides Redis fixed-window counters that throttle login
// and second-factor verification.
//
// # Window semantics
//
// INCR plus EXPIRE on the first hit of a window. Key prefixes:
//   - rl:u: login per identifier (SHA-256 of the normalized identifier)
//   - rl:i: login per client IP
//   - rv:i: OTP verification per client IP
//
// Identifiers are hashed before they become keys so Redis never holds
// usernames or email addresses.
//
// # What this package must NOT do
//
//   - Decide what a caller reports when throttled.
//   - Be imported outside the gdprAuth module.
package rate
