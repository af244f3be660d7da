package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	gdprAuth "github.com/MrEthical07/gdprAuth"
	"github.com/MrEthical07/gdprAuth/notify"
	"github.com/MrEthical07/gdprAuth/password"
	"github.com/MrEthical07/gdprAuth/storage/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const loadPassword = "load-test-password"

// zeroReader makes every passcode "AAAAAAAA".
type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

type chainState struct {
	pseudo  string
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		users       = flag.Int("users", 10000, "number of users to seed")
		chains      = flag.Int("chains", 256, "number of logged-in token chains")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		useIndex    = flag.Bool("index", false, "resolve pseudonyms through the stored index instead of scanning")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *chains <= 0 || *chains > *users || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, chains, concurrency, and ops must be > 0 and chains <= users")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := gdprAuth.DefaultConfig()
	cfg.JWT.AccessKey = []byte("loadtest-access-secret-0123456789")
	cfg.JWT.RefreshKey = []byte("loadtest-refresh-secret-012345678")
	cfg.JWT.Issuer = "gdprauth-loadtest"
	cfg.JWT.Audience = "gdprauth-loadtest"
	cfg.Pseudonym.Salt = "loadtest-pseudonym-salt"
	cfg.Pseudonym.UseIndex = *useIndex
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Security.MaxLoginAttempts = 1 << 20
	cfg.Audit.Enabled = false
	cfg.Metrics.EnableLatencyHistograms = true

	store := memory.NewUserStore()
	engine, err := gdprAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(store).
		WithSender(notify.SenderFunc(func(context.Context, string, string, string) error { return nil })).
		WithRandom(zeroReader{}).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	if err := seedUsers(ctx, store, engine, *users); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	states, err := openChains(ctx, engine, *chains)
	if err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(states, *ops, *concurrency, 7919, func(s *chainState) error {
		_, err := engine.ValidateAccess(s.access)
		return err
	})
	refreshStats := runPhase(states, *ops, *concurrency, 6151, func(s *chainState) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		pair, err := engine.Refresh(ctx, s.refresh)
		if err != nil {
			return err
		}
		s.access, s.refresh = pair.AccessToken, pair.RefreshToken
		return nil
	})
	resolveStats := runPhase(states, *ops, *concurrency, 4349, func(s *chainState) error {
		_, err := engine.Profile(ctx, s.pseudo)
		return err
	})

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
	printStats("resolve", resolveStats)
}

func seedUsers(ctx context.Context, store *memory.UserStore, engine *gdprAuth.Engine, n int) error {
	hasher, err := password.NewArgon2(password.Config{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
		MinPasswordBytes: 1, MaxPasswordBytes: 1024,
	})
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(loadPassword)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%08x-0000-4000-8000-%012x", i, i)
		if _, err := store.CreateUser(ctx, gdprAuth.CreateUserInput{
			UserID:       id,
			PseudoID:     engine.Pseudonymize(id),
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@loadtest.invalid", i),
			PasswordHash: hash,
			FirstName:    "Load",
			LastName:     "Test",
			CreatedAt:    now,
		}); err != nil {
			return err
		}
		if err := store.ConfirmEmail(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func openChains(ctx context.Context, engine *gdprAuth.Engine, n int) ([]chainState, error) {
	states := make([]chainState, n)
	for i := range states {
		ch, err := engine.Login(ctx, fmt.Sprintf("user%d", i), loadPassword)
		if err != nil {
			return nil, err
		}
		pair, err := engine.VerifyOTP(ctx, ch.ChallengeID, "AAAAAAAA")
		if err != nil {
			return nil, err
		}
		res, err := engine.ValidateAccess(pair.AccessToken)
		if err != nil {
			return nil, err
		}
		states[i] = chainState{pseudo: res.PseudoID, access: pair.AccessToken, refresh: pair.RefreshToken}
	}
	return states, nil
}

func runPhase(states []chainState, ops, concurrency int, seed int64, op func(*chainState) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]
				t0 := time.Now()
				err := op(state)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
