package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/gdprAuth/jwt"
	"github.com/MrEthical07/gdprAuth/pseudonym"
	"github.com/google/uuid"
)

// OwnerResolver maps a pseudonymous uid back to the real owner id.
// *pseudonym.Resolver satisfies it.
type OwnerResolver interface {
	ResolveString(ctx context.Context, pseudo string) (string, error)
}

// Pair is an access/refresh token pair.
type Pair struct {
	AccessToken  string
	RefreshToken string
	TokenID      string
	PseudoID     string
}

// Claims is the validated state of a refresh token.
type Claims struct {
	TokenID   string
	PseudoID  string
	OwnerID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Service issues, validates, rotates and revokes refresh tokens.
type Service struct {
	tokens   *jwt.Manager
	store    Store
	pseudo   *pseudonym.Pseudonymizer
	resolver OwnerResolver
	now      func() time.Time
	newID    func() string
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithResolver makes Validate resolve uid through r and require it to match
// the record owner.
func WithResolver(r OwnerResolver) ServiceOption {
	return func(s *Service) { s.resolver = r }
}

// WithClock overrides the clock used for issuance and expiry checks.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires a Service.
func NewService(tokens *jwt.Manager, store Store, p *pseudonym.Pseudonymizer, opts ...ServiceOption) (*Service, error) {
	if tokens == nil || store == nil || p == nil {
		return nil, errors.New("refresh: token manager, store and pseudonymizer are required")
	}
	s := &Service{
		tokens: tokens,
		store:  store,
		pseudo: p,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueAccess signs an access token for the pseudonym of realID.
func (s *Service) IssueAccess(realID string) (string, error) {
	return s.tokens.CreateAccess(s.pseudo.PseudonymizeString(realID))
}

// IssueRefresh persists a new record for realID and returns the signed
// token with its id. Nothing is returned if the record cannot be stored.
func (s *Service) IssueRefresh(ctx context.Context, realID string) (string, string, error) {
	if realID == "" {
		return "", "", errors.New("refresh: owner id required")
	}

	now := s.now().UTC().Truncate(time.Second)
	rec := Record{
		TokenID:   s.newID(),
		OwnerID:   realID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokens.RefreshTTL()),
	}

	token, err := s.tokens.CreateRefresh(s.pseudo.PseudonymizeString(realID), rec.TokenID, now)
	if err != nil {
		return "", "", err
	}
	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return "", "", err
		}
		return "", "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return token, rec.TokenID, nil
}

// IssuePair issues an access token and a persisted refresh token for realID.
func (s *Service) IssuePair(ctx context.Context, realID string) (*Pair, error) {
	access, err := s.IssueAccess(realID)
	if err != nil {
		return nil, err
	}
	refresh, tid, err := s.IssueRefresh(ctx, realID)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenID:      tid,
		PseudoID:     s.pseudo.PseudonymizeString(realID),
	}, nil
}

// Validate checks the token signature and registered claims, then requires
// an active record owned by the token's subject. Every rejection is
// ErrInvalid; backend failures wrap ErrStoreUnavailable.
func (s *Service) Validate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.tokens.ParseRefresh(token)
	if err != nil {
		return nil, ErrInvalid
	}

	rec, err := s.store.Get(ctx, claims.TID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrInvalid
		}
		return nil, err
	}
	if !rec.Active(s.now()) {
		return nil, ErrInvalid
	}
	if err := s.checkOwner(ctx, claims.UID, rec.OwnerID); err != nil {
		return nil, err
	}

	return &Claims{
		TokenID:   rec.TokenID,
		PseudoID:  claims.UID,
		OwnerID:   rec.OwnerID,
		IssuedAt:  rec.IssuedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// Rotate validates token, revokes its record and issues a new pair for the
// same owner. Of concurrent rotations of one token, exactly one succeeds.
// Invalid input fails before anything is revoked. If issuing fails after the
// revoke, the old token stays revoked and the error wraps ErrReissueFailed;
// the client has to log in again.
func (s *Service) Rotate(ctx context.Context, token string) (*Pair, error) {
	claims, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	won, err := s.store.Revoke(ctx, claims.TokenID, claims.OwnerID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrInvalid
	}

	pair, err := s.IssuePair(ctx, claims.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReissueFailed, err)
	}
	return pair, nil
}

// Revoke marks tokenID revoked for ownerID. Unknown or already revoked
// records are not an error.
func (s *Service) Revoke(ctx context.Context, tokenID, ownerID string) error {
	_, err := s.store.Revoke(ctx, tokenID, ownerID, s.now().UTC())
	return err
}

// RevokeToken revokes the record behind a signed refresh token. Only the
// signature and registered claims are checked, so revoking twice succeeds.
func (s *Service) RevokeToken(ctx context.Context, token string) (string, error) {
	claims, err := s.tokens.ParseRefresh(token)
	if err != nil {
		return "", ErrInvalid
	}

	rec, err := s.store.Get(ctx, claims.TID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return claims.UID, nil
		}
		return "", err
	}
	if err := s.checkOwner(ctx, claims.UID, rec.OwnerID); err != nil {
		return "", err
	}
	return claims.UID, s.Revoke(ctx, rec.TokenID, rec.OwnerID)
}

func (s *Service) checkOwner(ctx context.Context, pseudo, owner string) error {
	if s.resolver == nil {
		if s.pseudo.PseudonymizeString(owner) != pseudo {
			return ErrInvalid
		}
		return nil
	}

	realID, err := s.resolver.ResolveString(ctx, pseudo)
	if err != nil {
		if errors.Is(err, pseudonym.ErrNotFound) {
			return ErrInvalid
		}
		return err
	}
	if realID != owner {
		return ErrInvalid
	}
	return nil
}
