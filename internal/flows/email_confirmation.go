package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/gdprAuth/otp"
)

// ConfirmFailureKind classifies email confirmation failures.
type ConfirmFailureKind int

const (
	ConfirmFailureNone ConfirmFailureKind = iota
	ConfirmFailureInvalid
	ConfirmFailureStore
)

// ConfirmResult reports the confirmed real user id or failure metadata.
type ConfirmResult struct {
	Failure ConfirmFailureKind
	Err     error
	UserID  string
}

// ConfirmDeps captures email confirmation dependencies.
type ConfirmDeps struct {
	Resolve      func(ctx context.Context, pseudoID string) (string, error)
	Tokens       ChallengeValidator
	ConfirmEmail func(ctx context.Context, userID string) error
	NotFound     []error
}

// SplitConfirmationToken splits "<challengeID>.<code>".
func SplitConfirmationToken(token string) (string, string, bool) {
	id, code, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || id == "" || code == "" {
		return "", "", false
	}
	return id, code, true
}

// RunConfirmEmail resolves pseudoID, consumes the token and marks the address
// confirmed. A token issued for a different user is invalid.
func RunConfirmEmail(ctx context.Context, pseudoID, token string, deps ConfirmDeps) ConfirmResult {
	id, code, ok := SplitConfirmationToken(token)
	if pseudoID == "" || !ok {
		return ConfirmResult{Failure: ConfirmFailureInvalid}
	}

	userID, err := deps.Resolve(ctx, pseudoID)
	if err != nil {
		if isAny(err, deps.NotFound) {
			return ConfirmResult{Failure: ConfirmFailureInvalid, Err: err}
		}
		return ConfirmResult{Failure: ConfirmFailureStore, Err: err}
	}

	owner, err := deps.Tokens.Validate(ctx, id, code)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrChallengeNotFound),
			errors.Is(err, otp.ErrOTPMismatch),
			errors.Is(err, otp.ErrAttemptsExhausted):
			return ConfirmResult{Failure: ConfirmFailureInvalid, Err: err}
		default:
			return ConfirmResult{Failure: ConfirmFailureStore, Err: err}
		}
	}
	if owner != userID {
		return ConfirmResult{Failure: ConfirmFailureInvalid}
	}

	if err := deps.ConfirmEmail(ctx, userID); err != nil {
		if isAny(err, deps.NotFound) {
			return ConfirmResult{Failure: ConfirmFailureInvalid, Err: err}
		}
		return ConfirmResult{Failure: ConfirmFailureStore, Err: err, UserID: userID}
	}
	return ConfirmResult{UserID: userID}
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if t != nil && errors.Is(err, t) {
			return true
		}
	}
	return false
}
