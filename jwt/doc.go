// Package jwt signs and verifies the two token classes: short-lived access
// tokens and long-lived refresh tokens.
//
// # Key separation
//
// Access and refresh tokens use independent key configurations. NewManager
// rejects configurations where both classes share key material, so leaking
// one key never lets an attacker mint the other class.
//
// # Claims
//
// Access tokens carry uid, iat, jti, exp, iss and aud. Refresh tokens carry
// tid, uid, iat, exp, iss and aud. The claim names are fixed for
// interoperability with existing verifiers.
//
// # What this package must NOT do
//
//   - Access Redis, SQL or any other I/O.
//   - Decide whether a refresh token is revoked (see package refresh).
package jwt
