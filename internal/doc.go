// Package internal groups the packages private to gdprAuth.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher and Sink implementations)
//   - flows: pure-function orchestration for every Engine operation
//   - httpapi: chi router and JSON handlers for the account API
//   - rate: Redis-backed login and verification throttles
//   - stores: in-memory and Redis challenge stores
//
// # What this package must NOT do
//
//   - Export types that appear in the public gdprAuth API.
//   - Be imported by any package outside the gdprAuth module.
package internal
