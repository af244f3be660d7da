package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

// Config controls challenge policy.
type Config struct {
	CodeLength  int
	TTL         time.Duration
	MaxAttempts int

	// Random is the source codes are drawn from. Nil means crypto/rand.
	Random io.Reader
	// Now overrides the clock used for CreatedAt/ExpiresAt.
	Now func() time.Time
}

// DefaultConfig returns 8-symbol codes, a 5 minute TTL and 3 attempts.
func DefaultConfig() Config {
	return Config{
		CodeLength:  8,
		TTL:         5 * time.Minute,
		MaxAttempts: 3,
	}
}

// Issued is returned once by Create. Code is the only cleartext copy.
type Issued struct {
	ChallengeID string
	Code        string
	ExpiresAt   time.Time
}

// Status describes an active challenge without revealing its code.
type Status struct {
	AttemptsRemaining int
	ExpiresAt         time.Time
}

// Manager creates and validates two-factor challenges.
type Manager struct {
	store ChallengeStore
	cfg   Config
}

// NewManager validates cfg and binds it to store.
func NewManager(store ChallengeStore, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("otp manager requires a challenge store")
	}
	if cfg.CodeLength < 4 || cfg.CodeLength > 32 {
		return nil, errors.New("otp CodeLength must be in [4,32]")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("otp TTL must be > 0")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, errors.New("otp MaxAttempts must be > 0")
	}
	if cfg.Random == nil {
		cfg.Random = rand.Reader
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{store: store, cfg: cfg}, nil
}

// Create opens a challenge for userID and returns its cleartext code once.
func (m *Manager) Create(ctx context.Context, userID string) (*Issued, error) {
	if userID == "" {
		return nil, errors.New("otp challenge requires a user id")
	}

	code, err := GenerateCode(m.cfg.Random, m.cfg.CodeLength)
	if err != nil {
		return nil, err
	}

	now := m.cfg.Now()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return nil, err
	}

	c := &Challenge{
		ID:        id.String(),
		UserID:    userID,
		OTPHash:   HashCode(code),
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.TTL),
	}
	if err := m.store.Set(ctx, c, m.cfg.TTL); err != nil {
		return nil, err
	}

	return &Issued{
		ChallengeID: c.ID,
		Code:        code,
		ExpiresAt:   c.ExpiresAt,
	}, nil
}

// Validate checks code against the challenge and returns its user on success.
// code is normalized (NormalizeCode) before hashing, so surrounding spaces and
// lower case match. The alphabet is upper case only, so no entropy is lost.
//
// Failures are ErrChallengeNotFound, ErrOTPMismatch, ErrAttemptsExhausted or
// a wrapped ErrStoreUnavailable.
func (m *Manager) Validate(ctx context.Context, challengeID, code string) (string, error) {
	if challengeID == "" {
		return "", ErrChallengeNotFound
	}

	c, err := m.store.Attempt(ctx, challengeID, HashCode(code), m.cfg.MaxAttempts)
	if err != nil {
		return "", err
	}
	return c.UserID, nil
}

// Status reports the remaining attempts and expiry of an active challenge.
func (m *Manager) Status(ctx context.Context, challengeID string) (*Status, error) {
	c, err := m.store.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	remaining := m.cfg.MaxAttempts - c.Attempts
	if remaining < 0 {
		remaining = 0
	}
	return &Status{AttemptsRemaining: remaining, ExpiresAt: c.ExpiresAt}, nil
}

// Cancel removes a challenge. Cancelling an unknown challenge is not an error.
func (m *Manager) Cancel(ctx context.Context, challengeID string) error {
	_, err := m.store.Delete(ctx, challengeID)
	return err
}

// MaxAttempts returns the configured attempt budget.
func (m *Manager) MaxAttempts() int {
	return m.cfg.MaxAttempts
}

// TTL returns the configured challenge lifetime.
func (m *Manager) TTL() time.Duration {
	return m.cfg.TTL
}
