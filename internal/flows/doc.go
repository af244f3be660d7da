// Package flows contains the orchestration behind every Engine operation.
//
// Each Run function takes a typed dependency struct and returns a result
// carrying a FailureKind, so the root engine owns error mapping, metrics and
// audit while the sequencing stays testable with stub dependencies.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import gdprAuth (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through dependency fields.
package flows
