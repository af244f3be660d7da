package stores

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/MrEthical07/gdprAuth/otp"
)

// MemoryChallengeStore keeps challenges in process memory.
type MemoryChallengeStore struct {
	mu      sync.Mutex
	entries map[string]otp.Challenge
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// MemoryOption configures a MemoryChallengeStore.
type MemoryOption func(*MemoryChallengeStore)

// WithClock overrides the store clock.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryChallengeStore) {
		s.now = now
	}
}

// NewMemoryChallengeStore returns an empty store. A positive sweepInterval
// starts a goroutine that purges expired entries until Close.
func NewMemoryChallengeStore(sweepInterval time.Duration, opts ...MemoryOption) *MemoryChallengeStore {
	s := &MemoryChallengeStore{
		entries: make(map[string]otp.Challenge),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if sweepInterval > 0 {
		s.wg.Add(1)
		go s.sweepLoop(sweepInterval)
	}
	return s
}

func (s *MemoryChallengeStore) Set(_ context.Context, c *otp.Challenge, ttl time.Duration) error {
	if c == nil || c.ID == "" {
		return otp.ErrChallengeNotFound
	}
	stored := *c
	stored.ExpiresAt = s.now().Add(ttl)

	s.mu.Lock()
	s.entries[c.ID] = stored
	s.mu.Unlock()
	return nil
}

func (s *MemoryChallengeStore) Get(_ context.Context, id string) (*otp.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.liveLocked(id)
	if !ok {
		return nil, otp.ErrChallengeNotFound
	}
	return &c, nil
}

func (s *MemoryChallengeStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.liveLocked(id)
	delete(s.entries, id)
	return ok, nil
}

func (s *MemoryChallengeStore) Attempt(
	_ context.Context,
	id string,
	submitted [32]byte,
	maxAttempts int,
) (*otp.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.liveLocked(id)
	if !ok {
		return nil, otp.ErrChallengeNotFound
	}
	if c.Attempts >= maxAttempts {
		delete(s.entries, id)
		return nil, otp.ErrAttemptsExhausted
	}
	if subtle.ConstantTimeCompare(c.OTPHash[:], submitted[:]) == 1 {
		delete(s.entries, id)
		return &c, nil
	}

	// expiry is unchanged, so the remaining TTL carries over
	c.Attempts++
	s.entries[id] = c
	return nil, otp.ErrOTPMismatch
}

// Len returns the number of entries held, expired ones included.
func (s *MemoryChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes expired entries and returns how many were dropped.
func (s *MemoryChallengeStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, c := range s.entries {
		if !now.Before(c.ExpiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Close stops the sweep goroutine. It is safe to call more than once.
func (s *MemoryChallengeStore) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
}

func (s *MemoryChallengeStore) liveLocked(id string) (otp.Challenge, bool) {
	c, ok := s.entries[id]
	if !ok {
		return otp.Challenge{}, false
	}
	if !s.now().Before(c.ExpiresAt) {
		delete(s.entries, id)
		return otp.Challenge{}, false
	}
	return c, true
}

func (s *MemoryChallengeStore) sweepLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}
