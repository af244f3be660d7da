// Package audit implements async event dispatching for account activity.
//
// # Components
//
//   - [Sink]: event consumers (channel, JSON writer, slog, no-op, fan-out).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: audit record with action, category, pseudonymous user, entity, IP and trace id.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Accept or log real user identifiers. Callers pass pseudonyms.
//   - Import gdprAuth or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
