package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/gdprAuth/refresh"
)

// RefreshFailureKind classifies refresh and logout failures.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureInvalid
	RefreshFailureStore
)

// RefreshResult carries the rotated pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	Pair    *refresh.Pair
}

type RefreshRotator interface {
	Rotate(ctx context.Context, token string) (*refresh.Pair, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Rotator RefreshRotator
}

// RunRefresh rotates a refresh token. A token already rotated, revoked,
// expired or forged is RefreshFailureInvalid.
func RunRefresh(ctx context.Context, token string, deps RefreshDeps) RefreshResult {
	if token == "" {
		return RefreshResult{Failure: RefreshFailureInvalid, Err: refresh.ErrInvalid}
	}
	pair, err := deps.Rotator.Rotate(ctx, token)
	if err != nil {
		if errors.Is(err, refresh.ErrInvalid) {
			return RefreshResult{Failure: RefreshFailureInvalid, Err: err}
		}
		return RefreshResult{Failure: RefreshFailureStore, Err: err}
	}
	return RefreshResult{Pair: pair}
}
