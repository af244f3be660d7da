package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/gdprAuth/refresh"
)

type LogoutRevoker interface {
	RevokeToken(ctx context.Context, token string) (string, error)
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Revoker LogoutRevoker
}

// LogoutResult reports the pseudonymous owner of the revoked token.
type LogoutResult struct {
	Failure  RefreshFailureKind
	Err      error
	PseudoID string
}

// RunLogout revokes the record behind a correctly signed refresh token.
// Repeating it for an already revoked token succeeds.
func RunLogout(ctx context.Context, token string, deps LogoutDeps) LogoutResult {
	if token == "" {
		return LogoutResult{Failure: RefreshFailureInvalid, Err: refresh.ErrInvalid}
	}
	pseudo, err := deps.Revoker.RevokeToken(ctx, token)
	if err != nil {
		if errors.Is(err, refresh.ErrInvalid) {
			return LogoutResult{Failure: RefreshFailureInvalid, Err: err}
		}
		return LogoutResult{Failure: RefreshFailureStore, Err: err, PseudoID: pseudo}
	}
	return LogoutResult{PseudoID: pseudo}
}
