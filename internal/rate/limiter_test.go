package rate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLoginBudgetPerIdentifier(t *testing.T) {
	l, _ := newLimiter(t, Config{MaxLoginAttempts: 3, LoginWindow: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "alice", ""); err != nil {
			t.Fatalf("attempt %d: unexpected %v", i+1, err)
		}
		_ = l.FailLogin(ctx, "alice", "")
	}
	if err := l.CheckLogin(ctx, "Alice ", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited for normalized identifier, got %v", err)
	}
	if err := l.CheckLogin(ctx, "bob", ""); err != nil {
		t.Fatalf("expected other identifier unaffected, got %v", err)
	}

	if err := l.ResetLogin(ctx, "alice"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("expected reset to clear budget, got %v", err)
	}
}

func TestLoginWindowExpires(t *testing.T) {
	l, mr := newLimiter(t, Config{MaxLoginAttempts: 1, LoginWindow: time.Minute})
	ctx := context.Background()

	_ = l.FailLogin(ctx, "alice", "")
	if err := l.CheckLogin(ctx, "alice", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limited, got %v", err)
	}
	mr.FastForward(61 * time.Second)
	if err := l.CheckLogin(ctx, "alice", ""); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestLoginIPThrottle(t *testing.T) {
	l, _ := newLimiter(t, Config{EnableIPThrottle: true, MaxLoginAttempts: 2, LoginWindow: time.Minute})
	ctx := context.Background()

	_ = l.FailLogin(ctx, "a", "10.0.0.1")
	_ = l.FailLogin(ctx, "b", "10.0.0.1")
	if err := l.CheckLogin(ctx, "c", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP throttle, got %v", err)
	}
}

func TestIdentifierNotStoredInClear(t *testing.T) {
	l, mr := newLimiter(t, Config{MaxLoginAttempts: 5, LoginWindow: time.Minute})
	_ = l.FailLogin(context.Background(), "alice@example.com", "")

	for _, k := range mr.Keys() {
		if strings.Contains(k, "alice") {
			t.Fatalf("identifier leaked into key %q", k)
		}
	}
	n, err := l.LoginAttempts(context.Background(), "alice@example.com")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 attempt, got %d %v", n, err)
	}
}

func TestHitVerify(t *testing.T) {
	l, _ := newLimiter(t, Config{MaxVerifyPerIP: 2, VerifyWindow: time.Minute})
	ctx := context.Background()

	if err := l.HitVerify(ctx, "10.0.0.9"); err != nil {
		t.Fatal(err)
	}
	if err := l.HitVerify(ctx, "10.0.0.9"); err != nil {
		t.Fatal(err)
	}
	if err := l.HitVerify(ctx, "10.0.0.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.HitVerify(ctx, ""); err != nil {
		t.Fatalf("empty ip must be ignored, got %v", err)
	}
}

func TestRedisDown(t *testing.T) {
	l, mr := newLimiter(t, Config{MaxLoginAttempts: 1, LoginWindow: time.Minute})
	mr.Close()
	if err := l.CheckLogin(context.Background(), "x", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
