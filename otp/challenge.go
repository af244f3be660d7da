package otp

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrChallengeNotFound covers unknown, consumed and expired challenges.
	ErrChallengeNotFound = errors.New("otp challenge not found or expired")
	// ErrOTPMismatch is returned when a submitted code does not match.
	ErrOTPMismatch = errors.New("otp mismatch")
	// ErrAttemptsExhausted is returned once the attempt budget is spent.
	ErrAttemptsExhausted = errors.New("otp attempts exhausted")
	// ErrStoreUnavailable wraps challenge store backend failures.
	ErrStoreUnavailable = errors.New("otp challenge store unavailable")
)

// Challenge is the transient server-side state of one pending verification.
type Challenge struct {
	ID        string
	UserID    string
	OTPHash   [32]byte
	CreatedAt time.Time
	ExpiresAt time.Time
	Attempts  int
}

// ChallengeStore persists challenges with a TTL.
//
// Attempt must be atomic per challenge ID: it loads the challenge, rejects it
// with ErrAttemptsExhausted (deleting it) when Attempts >= maxAttempts,
// deletes and returns it on a hash match, and otherwise increments Attempts,
// re-stores it with its remaining TTL and returns ErrOTPMismatch. Missing or
// expired challenges yield ErrChallengeNotFound.
type ChallengeStore interface {
	Set(ctx context.Context, c *Challenge, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Challenge, error)
	Delete(ctx context.Context, id string) (bool, error)
	Attempt(ctx context.Context, id string, submitted [32]byte, maxAttempts int) (*Challenge, error)
}
