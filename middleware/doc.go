// Package middleware adapts gdprAuth.Engine to net/http.
//
// [RequireAccess] accepts a request only with a valid bearer access token and
// stores the pseudonymous user id in the request context. [RequestMetadata]
// copies the caller's IP, user agent and request id into the context the
// Engine reads for throttling, consent records and audit events.
//
// This package makes no authentication decisions of its own. Token checks are
// delegated to Engine.ValidateAccess.
package middleware
