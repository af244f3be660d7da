package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/gdprAuth/otp"
	"github.com/MrEthical07/gdprAuth/refresh"
)

// VerifyFailureKind classifies second-factor failures.
type VerifyFailureKind int

const (
	VerifyFailureNone VerifyFailureKind = iota
	VerifyFailureRateLimited
	VerifyFailureLimiter
	VerifyFailureNotFound
	VerifyFailureMismatch
	VerifyFailureExhausted
	VerifyFailureStore
	VerifyFailureIssue
)

// VerifyResult carries the issued pair or failure metadata.
type VerifyResult struct {
	Failure VerifyFailureKind
	Err     error
	UserID  string
	Pair    *refresh.Pair
}

type VerifyLimiter interface {
	HitVerify(ctx context.Context, ip string) error
}

type ChallengeValidator interface {
	Validate(ctx context.Context, challengeID, code string) (string, error)
}

// VerifyDeps captures verify-otp flow dependencies.
type VerifyDeps struct {
	Limiter     VerifyLimiter
	Challenges  ChallengeValidator
	IssuePair   func(ctx context.Context, userID string) (*refresh.Pair, error)
	RateLimited error
}

// RunVerifyOTP consumes a challenge and issues the first token pair.
func RunVerifyOTP(ctx context.Context, challengeID, code, ip string, deps VerifyDeps) VerifyResult {
	if deps.Limiter != nil {
		if err := deps.Limiter.HitVerify(ctx, ip); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return VerifyResult{Failure: VerifyFailureRateLimited, Err: err}
			}
			return VerifyResult{Failure: VerifyFailureLimiter, Err: err}
		}
	}

	userID, err := deps.Challenges.Validate(ctx, challengeID, code)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrOTPMismatch):
			return VerifyResult{Failure: VerifyFailureMismatch, Err: err}
		case errors.Is(err, otp.ErrAttemptsExhausted):
			return VerifyResult{Failure: VerifyFailureExhausted, Err: err}
		case errors.Is(err, otp.ErrChallengeNotFound):
			return VerifyResult{Failure: VerifyFailureNotFound, Err: err}
		default:
			return VerifyResult{Failure: VerifyFailureStore, Err: err}
		}
	}

	pair, err := deps.IssuePair(ctx, userID)
	if err != nil {
		return VerifyResult{Failure: VerifyFailureIssue, Err: err, UserID: userID}
	}
	return VerifyResult{UserID: userID, Pair: pair}
}
