package rate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter budgets. A zero Max disables that counter.
type Config struct {
	EnableIPThrottle bool
	MaxLoginAttempts int
	LoginWindow      time.Duration
	MaxVerifyPerIP   int
	VerifyWindow     time.Duration
}

// Limiter enforces login and verification budgets with Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a Limiter backed by redisClient.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: redisClient, config: cfg}
}

// CheckLogin returns ErrRateLimited when the identifier or IP has used up
// its failed-login budget.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(identifier, ip) {
		if err := l.check(ctx, key, l.config.MaxLoginAttempts); err != nil {
			return err
		}
	}
	return nil
}

// FailLogin counts a failed login for the identifier and IP.
func (l *Limiter) FailLogin(ctx context.Context, identifier, ip string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	limited := false
	for _, key := range l.loginKeys(identifier, ip) {
		n, err := l.hit(ctx, key, l.config.LoginWindow)
		if err != nil {
			return err
		}
		if n > int64(l.config.MaxLoginAttempts) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the identifier counter after a successful login. The IP
// counter is left to expire.
func (l *Limiter) ResetLogin(ctx context.Context, identifier string) error {
	if l == nil || l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.redis.Del(ctx, identifierKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// HitVerify counts one OTP verification from ip and reports whether the
// window is exhausted.
func (l *Limiter) HitVerify(ctx context.Context, ip string) error {
	if l == nil || l.config.MaxVerifyPerIP <= 0 || ip == "" {
		return nil
	}
	n, err := l.hit(ctx, "rv:i:"+ip, l.config.VerifyWindow)
	if err != nil {
		return err
	}
	if n > int64(l.config.MaxVerifyPerIP) {
		return ErrRateLimited
	}
	return nil
}

// LoginAttempts returns the failed-login counter for identifier.
func (l *Limiter) LoginAttempts(ctx context.Context, identifier string) (int, error) {
	n, err := l.redis.Get(ctx, identifierKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(max(n, 0)), nil
}

func (l *Limiter) loginKeys(identifier, ip string) []string {
	keys := []string{identifierKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, "rl:i:"+ip)
	}
	return keys
}

func identifierKey(identifier string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(identifier))))
	return "rl:u:" + hex.EncodeToString(sum[:16])
}

func (l *Limiter) check(ctx context.Context, key string, limit int) error {
	n, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n >= int64(limit) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// first hit opens the window
	if n == 1 {
		if err := l.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return n, nil
}
