package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/gdprAuth/refresh"
)

// RefreshTokenStore implements refresh.Store on the refresh_tokens table.
type RefreshTokenStore struct {
	db DBTX
}

// NewRefreshTokenStore binds a RefreshTokenStore to db.
func NewRefreshTokenStore(db DBTX) *RefreshTokenStore {
	return &RefreshTokenStore{db: db}
}

func (s *RefreshTokenStore) Create(ctx context.Context, rec refresh.Record) error {
	query := `INSERT INTO refresh_tokens (token_id, user_id, issued_at, expires_at, is_revoked)
		VALUES ($1, $2, $3, $4, false)`

	_, err := s.db.ExecContext(ctx, query, rec.TokenID, rec.OwnerID, rec.IssuedAt, rec.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return refresh.ErrRecordExists
		}
		return fmt.Errorf("%w: %v", refresh.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RefreshTokenStore) Get(ctx context.Context, tokenID string) (refresh.Record, error) {
	query := `SELECT token_id, user_id, issued_at, expires_at, is_revoked, revoked_at
		FROM refresh_tokens WHERE token_id = $1`

	var (
		rec       refresh.Record
		revokedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, tokenID).Scan(
		&rec.TokenID, &rec.OwnerID, &rec.IssuedAt, &rec.ExpiresAt, &rec.Revoked, &revokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return refresh.Record{}, refresh.ErrRecordNotFound
		}
		return refresh.Record{}, fmt.Errorf("%w: %v", refresh.ErrStoreUnavailable, err)
	}
	if revokedAt.Valid {
		at := revokedAt.Time
		rec.RevokedAt = &at
	}
	return rec, nil
}

// Revoke flips is_revoked only when it is still false, so concurrent
// callers race on a single row update.
func (s *RefreshTokenStore) Revoke(ctx context.Context, tokenID, ownerID string, revokedAt time.Time) (bool, error) {
	query := `UPDATE refresh_tokens SET is_revoked = true, revoked_at = $3
		WHERE token_id = $1 AND user_id = $2 AND is_revoked = false`

	res, err := s.db.ExecContext(ctx, query, tokenID, ownerID, revokedAt)
	if err != nil {
		return false, fmt.Errorf("%w: %v", refresh.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", refresh.ErrStoreUnavailable, err)
	}
	return n == 1, nil
}
