package gdprAuth

import (
	"context"
	"time"
)

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	// RedisConfigured is false when the Engine runs on in-memory stores.
	RedisConfigured bool
	RedisAvailable  bool
	RedisLatency    time.Duration
	// UserStoreAvailable is only checked when the UserProvider has a
	// Ping(ctx) error method; otherwise it is reported as true.
	UserStoreAvailable bool
}

// Healthy reports whether every configured backend answered.
func (h HealthStatus) Healthy() bool {
	return (!h.RedisConfigured || h.RedisAvailable) && h.UserStoreAvailable
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health pings Redis and, when supported, the user store.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || !e.flows.Initialized() {
		return HealthStatus{}
	}

	status := HealthStatus{UserStoreAvailable: true}
	if e.redis != nil {
		status.RedisConfigured = true
		start := time.Now()
		err := e.redis.Ping(ctx).Err()
		status.RedisLatency = time.Since(start)
		status.RedisAvailable = err == nil
		if err != nil {
			e.warn("gdprAuth: redis health check failed: %v", err)
		}
	}
	if p, ok := e.userProvider.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			status.UserStoreAvailable = false
			e.warn("gdprAuth: user store health check failed: %v", err)
		}
	}
	return status
}

// LoginAttempts returns the failed-login count currently held for
// identifier. Without Redis there is no throttle and the count is zero.
func (e *Engine) LoginAttempts(ctx context.Context, identifier string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if e.rateLimiter == nil || identifier == "" {
		return 0, nil
	}
	n, err := e.rateLimiter.LoginAttempts(ctx, identifier)
	if err != nil {
		return 0, wrapUnavailable(ErrRateLimiterUnavailable, err)
	}
	return n, nil
}
