// Package notify delivers account emails: one-time passcodes and
// email-confirmation links.
//
// Senders are synchronous. Callers log delivery failures and never roll
// back the state change that triggered the message.
package notify
