package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/gdprAuth/otp"
	"github.com/MrEthical07/gdprAuth/refresh"
)

var (
	errNotFound = errors.New("not found")
	errLimited  = errors.New("limited")
)

type stubLimiter struct {
	checkErr error
	fails    int
	resets   int
	verify   error
}

func (s *stubLimiter) CheckLogin(context.Context, string, string) error { return s.checkErr }
func (s *stubLimiter) FailLogin(context.Context, string, string) error {
	s.fails++
	return nil
}
func (s *stubLimiter) ResetLogin(context.Context, string) error {
	s.resets++
	return nil
}
func (s *stubLimiter) HitVerify(context.Context, string) error { return s.verify }

type stubChallenges struct {
	created  []string
	validate func(id, code string) (string, error)
}

func (s *stubChallenges) Create(_ context.Context, userID string) (*otp.Issued, error) {
	s.created = append(s.created, userID)
	return &otp.Issued{ChallengeID: "c-1", Code: "AB12CD34", ExpiresAt: time.Unix(100, 0)}, nil
}

func (s *stubChallenges) Validate(_ context.Context, id, code string) (string, error) {
	return s.validate(id, code)
}

func loginDeps(lim *stubLimiter, ch *stubChallenges, user LoginUserRecord) LoginDeps {
	return LoginDeps{
		FindUser: func(_ context.Context, identifier string) (LoginUserRecord, error) {
			if identifier != "alice" {
				return LoginUserRecord{}, errNotFound
			}
			return user, nil
		},
		VerifyPassword: func(password, hash string) (bool, error) {
			return password == "correct" && hash == "h", nil
		},
		DummyHash:        "dummy",
		RequireConfirmed: true,
		Limiter:          lim,
		Challenges:       ch,
		RateLimited:      errLimited,
		UserNotFound:     errNotFound,
	}
}

func TestRunLoginOpensChallengeAndDelivers(t *testing.T) {
	lim := &stubLimiter{}
	ch := &stubChallenges{}
	deps := loginDeps(lim, ch, LoginUserRecord{UserID: "u-1", Email: "a@x", PasswordHash: "h", EmailConfirmed: true})

	var sentTo, sentCode string
	deps.DeliverCode = func(_ context.Context, email string, issued *otp.Issued) error {
		sentTo, sentCode = email, issued.Code
		return errors.New("smtp down")
	}

	res := RunLogin(context.Background(), "alice", "correct", "1.2.3.4", deps)
	if res.Failure != LoginFailureNone || res.ChallengeID != "c-1" || res.UserID != "u-1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.DeliveryErr == nil {
		t.Fatal("expected delivery error to be reported, not fatal")
	}
	if sentTo != "a@x" || sentCode != "AB12CD34" {
		t.Fatalf("unexpected delivery %q %q", sentTo, sentCode)
	}
	if lim.resets != 1 || lim.fails != 0 {
		t.Fatalf("limiter resets=%d fails=%d", lim.resets, lim.fails)
	}
}

func TestRunLoginFailures(t *testing.T) {
	confirmed := LoginUserRecord{UserID: "u-1", PasswordHash: "h", EmailConfirmed: true}

	tests := []struct {
		name       string
		identifier string
		password   string
		user       LoginUserRecord
		checkErr   error
		want       LoginFailureKind
		wantFails  int
	}{
		{name: "unknown user", identifier: "bob", password: "correct", user: confirmed, want: LoginFailureCredentials, wantFails: 1},
		{name: "wrong password", identifier: "alice", password: "nope", user: confirmed, want: LoginFailureCredentials, wantFails: 1},
		{name: "unconfirmed", identifier: "alice", password: "correct", user: LoginUserRecord{UserID: "u-1", PasswordHash: "h"}, want: LoginFailureUnconfirmed},
		{name: "rate limited", identifier: "alice", password: "correct", user: confirmed, checkErr: errLimited, want: LoginFailureRateLimited},
		{name: "limiter down", identifier: "alice", password: "correct", user: confirmed, checkErr: errors.New("redis"), want: LoginFailureLimiter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lim := &stubLimiter{checkErr: tt.checkErr}
			ch := &stubChallenges{}
			res := RunLogin(context.Background(), tt.identifier, tt.password, "", loginDeps(lim, ch, tt.user))
			if res.Failure != tt.want {
				t.Fatalf("expected failure %d, got %d (%v)", tt.want, res.Failure, res.Err)
			}
			if len(ch.created) != 0 {
				t.Fatal("no challenge may be created on failure")
			}
			if lim.fails != tt.wantFails {
				t.Fatalf("expected %d failed attempts recorded, got %d", tt.wantFails, lim.fails)
			}
		})
	}
}

func TestRunLoginVerifiesDummyHashForUnknownUser(t *testing.T) {
	var hashes []string
	deps := loginDeps(nil, &stubChallenges{}, LoginUserRecord{})
	deps.Limiter = nil
	deps.VerifyPassword = func(_, hash string) (bool, error) {
		hashes = append(hashes, hash)
		return false, nil
	}

	RunLogin(context.Background(), "bob", "pw", "", deps)
	if len(hashes) != 1 || hashes[0] != "dummy" {
		t.Fatalf("expected one dummy verification, got %v", hashes)
	}
}

func TestRunVerifyOTPMapsFailures(t *testing.T) {
	tests := []struct {
		err  error
		want VerifyFailureKind
	}{
		{otp.ErrOTPMismatch, VerifyFailureMismatch},
		{otp.ErrAttemptsExhausted, VerifyFailureExhausted},
		{otp.ErrChallengeNotFound, VerifyFailureNotFound},
		{otp.ErrStoreUnavailable, VerifyFailureStore},
	}
	for _, tt := range tests {
		ch := &stubChallenges{validate: func(string, string) (string, error) { return "", tt.err }}
		res := RunVerifyOTP(context.Background(), "c-1", "x", "", VerifyDeps{
			Challenges: ch,
			IssuePair: func(context.Context, string) (*refresh.Pair, error) {
				t.Fatal("no tokens may be issued on failure")
				return nil, nil
			},
		})
		if res.Failure != tt.want {
			t.Fatalf("%v: expected %d, got %d", tt.err, tt.want, res.Failure)
		}
	}
}

func TestRunVerifyOTPIssuesPair(t *testing.T) {
	ch := &stubChallenges{validate: func(id, code string) (string, error) {
		if id == "c-1" && code == "AB12CD34" {
			return "u-1", nil
		}
		return "", otp.ErrOTPMismatch
	}}
	res := RunVerifyOTP(context.Background(), "c-1", "AB12CD34", "", VerifyDeps{
		Limiter:     &stubLimiter{},
		Challenges:  ch,
		RateLimited: errLimited,
		IssuePair: func(_ context.Context, userID string) (*refresh.Pair, error) {
			return &refresh.Pair{AccessToken: "a-" + userID, RefreshToken: "r"}, nil
		},
	})
	if res.Failure != VerifyFailureNone || res.Pair.AccessToken != "a-u-1" {
		t.Fatalf("unexpected result: %+v", res)
	}

	res = RunVerifyOTP(context.Background(), "c-1", "AB12CD34", "", VerifyDeps{
		Limiter:     &stubLimiter{verify: errLimited},
		Challenges:  ch,
		RateLimited: errLimited,
	})
	if res.Failure != VerifyFailureRateLimited {
		t.Fatalf("expected rate limit, got %+v", res)
	}
}

type stubRotator struct{ err error }

func (s stubRotator) Rotate(context.Context, string) (*refresh.Pair, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &refresh.Pair{AccessToken: "a"}, nil
}

func (s stubRotator) RevokeToken(context.Context, string) (string, error) {
	return "pseudo", s.err
}

func TestRunRefreshAndLogoutClassifyErrors(t *testing.T) {
	ctx := context.Background()
	if res := RunRefresh(ctx, "", RefreshDeps{Rotator: stubRotator{}}); res.Failure != RefreshFailureInvalid {
		t.Fatalf("empty token: %+v", res)
	}
	if res := RunRefresh(ctx, "t", RefreshDeps{Rotator: stubRotator{err: refresh.ErrInvalid}}); res.Failure != RefreshFailureInvalid {
		t.Fatalf("invalid: %+v", res)
	}
	if res := RunRefresh(ctx, "t", RefreshDeps{Rotator: stubRotator{err: refresh.ErrStoreUnavailable}}); res.Failure != RefreshFailureStore {
		t.Fatalf("store: %+v", res)
	}
	if res := RunLogout(ctx, "t", LogoutDeps{Revoker: stubRotator{}}); res.Failure != RefreshFailureNone || res.PseudoID != "pseudo" {
		t.Fatalf("logout: %+v", res)
	}
	if res := RunLogout(ctx, "t", LogoutDeps{Revoker: stubRotator{err: refresh.ErrInvalid}}); res.Failure != RefreshFailureInvalid {
		t.Fatalf("logout invalid: %+v", res)
	}
}
