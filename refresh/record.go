package refresh

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalid is the single failure reported by Validate and Rotate.
	ErrInvalid = errors.New("refresh token invalid")
	// ErrRecordNotFound reports an unknown token id.
	ErrRecordNotFound = errors.New("refresh record not found")
	// ErrRecordExists reports a duplicate token id on Create.
	ErrRecordExists = errors.New("refresh record already exists")
	// ErrStoreUnavailable wraps backend failures.
	ErrStoreUnavailable = errors.New("refresh store unavailable")
	// ErrReissueFailed reports a rotation that revoked the presented token
	// but could not issue its replacement.
	ErrReissueFailed = errors.New("refresh token revoked without replacement")
)

// Record is the durable state of one refresh token.
type Record struct {
	TokenID   string
	OwnerID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
	RevokedAt *time.Time
}

// Active reports whether the record is unrevoked and unexpired at now.
func (r Record) Active(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}

// Store persists refresh records.
type Store interface {
	// Create inserts rec. A duplicate TokenID returns ErrRecordExists.
	Create(ctx context.Context, rec Record) error
	// Get returns the record for tokenID or ErrRecordNotFound.
	Get(ctx context.Context, tokenID string) (Record, error)
	// Revoke marks the record revoked at revokedAt if it belongs to ownerID
	// and is not already revoked. It reports whether this call performed the
	// transition.
	Revoke(ctx context.Context, tokenID, ownerID string, revokedAt time.Time) (bool, error)
}
