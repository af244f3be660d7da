package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/gdprAuth/otp"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureLimiter
	LoginFailureUserStore
	LoginFailureCredentials
	LoginFailureUnconfirmed
	LoginFailureChallenge
)

// LoginUserRecord is the flow-local view of a credential row.
type LoginUserRecord struct {
	UserID         string
	Email          string
	PasswordHash   string
	EmailConfirmed bool
}

// LoginResult carries the opened challenge or failure metadata.
type LoginResult struct {
	Failure     LoginFailureKind
	Err         error
	UserID      string
	ChallengeID string
	ExpiresAt   time.Time
	// DeliveryErr is set when the code could not be mailed. The challenge
	// stays open.
	DeliveryErr error
}

type LoginLimiter interface {
	CheckLogin(ctx context.Context, identifier, ip string) error
	FailLogin(ctx context.Context, identifier, ip string) error
	ResetLogin(ctx context.Context, identifier string) error
}

type LoginChallenger interface {
	Create(ctx context.Context, userID string) (*otp.Issued, error)
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	FindUser       func(ctx context.Context, identifier string) (LoginUserRecord, error)
	VerifyPassword func(password, encodedHash string) (bool, error)
	// DummyHash is verified against when the identifier is unknown so both
	// branches cost one hash.
	DummyHash        string
	RequireConfirmed bool
	Limiter          LoginLimiter
	Challenges       LoginChallenger
	DeliverCode      func(ctx context.Context, email string, issued *otp.Issued) error
	Warn             func(string, ...any)
	RateLimited      error
	UserNotFound     error
}

// RunLogin checks credentials and opens a second-factor challenge.
func RunLogin(ctx context.Context, identifier, password, ip string, deps LoginDeps) LoginResult {
	if deps.Limiter != nil {
		if err := deps.Limiter.CheckLogin(ctx, identifier, ip); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err}
			}
			return LoginResult{Failure: LoginFailureLimiter, Err: err}
		}
	}

	user, err := deps.FindUser(ctx, identifier)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			if deps.DummyHash != "" {
				_, _ = deps.VerifyPassword(password, deps.DummyHash)
			}
			failLogin(ctx, identifier, ip, deps)
			return LoginResult{Failure: LoginFailureCredentials, Err: err}
		}
		return LoginResult{Failure: LoginFailureUserStore, Err: err}
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		failLogin(ctx, identifier, ip, deps)
		return LoginResult{Failure: LoginFailureCredentials, Err: err, UserID: user.UserID}
	}

	if deps.RequireConfirmed && !user.EmailConfirmed {
		return LoginResult{Failure: LoginFailureUnconfirmed, UserID: user.UserID}
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.ResetLogin(ctx, identifier); err != nil && deps.Warn != nil {
			deps.Warn("gdprAuth: login limiter reset failed: %v", err)
		}
	}

	issued, err := deps.Challenges.Create(ctx, user.UserID)
	if err != nil {
		return LoginResult{Failure: LoginFailureChallenge, Err: err, UserID: user.UserID}
	}

	res := LoginResult{
		UserID:      user.UserID,
		ChallengeID: issued.ChallengeID,
		ExpiresAt:   issued.ExpiresAt,
	}
	if deps.DeliverCode != nil {
		res.DeliveryErr = deps.DeliverCode(ctx, user.Email, issued)
	}
	return res
}

func failLogin(ctx context.Context, identifier, ip string, deps LoginDeps) {
	if deps.Limiter == nil {
		return
	}
	if err := deps.Limiter.FailLogin(ctx, identifier, ip); err != nil && deps.Warn != nil {
		deps.Warn("gdprAuth: login limiter update failed: %v", err)
	}
}
