package gdprAuth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	internalaudit "github.com/MrEthical07/gdprAuth/internal/audit"
	"github.com/MrEthical07/gdprAuth/internal/flows"
	"github.com/MrEthical07/gdprAuth/internal/rate"
	"github.com/MrEthical07/gdprAuth/internal/stores"
	"github.com/MrEthical07/gdprAuth/jwt"
	"github.com/MrEthical07/gdprAuth/notify"
	"github.com/MrEthical07/gdprAuth/otp"
	"github.com/MrEthical07/gdprAuth/password"
	"github.com/MrEthical07/gdprAuth/pseudonym"
	"github.com/MrEthical07/gdprAuth/refresh"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// confirmationMaxAttempts bounds guesses against one confirmation token.
const confirmationMaxAttempts = 5

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider   UserProvider
	sender         notify.Sender
	auditSink      AuditSink
	refreshStore   refresh.Store
	challengeStore otp.ChallengeStore
	confirmStore   otp.ChallengeStore
	index          pseudonym.Index

	random io.Reader
	now    func() time.Time
	warn   func(string, ...any)

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables the Redis challenge stores and rate limiting.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the credential and consent store. Required.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithSender sets the channel codes and confirmation links are mailed through. Required.
func (b *Builder) WithSender(s notify.Sender) *Builder {
	b.sender = s
	return b
}

// WithAuditSink sets where audit events are delivered.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithRefreshStore sets the durable refresh record store. Defaults to memory.
func (b *Builder) WithRefreshStore(s refresh.Store) *Builder {
	b.refreshStore = s
	return b
}

// WithChallengeStore overrides the login challenge store.
func (b *Builder) WithChallengeStore(s otp.ChallengeStore) *Builder {
	b.challengeStore = s
	return b
}

// WithConfirmationStore overrides the email confirmation token store.
func (b *Builder) WithConfirmationStore(s otp.ChallengeStore) *Builder {
	b.confirmStore = s
	return b
}

// WithPseudonymIndex sets the index consulted when Pseudonym.UseIndex is on.
// Without it, a UserProvider that implements pseudonym.Index is used.
func (b *Builder) WithPseudonymIndex(idx pseudonym.Index) *Builder {
	b.index = idx
	return b
}

// WithRandom sets the source passcodes are drawn from.
func (b *Builder) WithRandom(r io.Reader) *Builder {
	b.random = r
	return b
}

// WithClock overrides the engine clock.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithWarnLogger sets the sink for non-fatal warnings. Defaults to log.Printf.
func (b *Builder) WithWarnLogger(fn func(string, ...any)) *Builder {
	b.warn = fn
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if b.sender == nil {
		return nil, errors.New("notification sender required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	warn := b.warn
	if warn == nil {
		warn = log.Printf
	}

	engine := &Engine{
		config:       cfg,
		userProvider: b.userProvider,
		sender:       b.sender,
		now:          now,
		warn:         warn,
		metrics:      NewMetrics(cfg.Metrics),
		redis:        b.redis,
	}

	// -------- PSEUDONYMS --------
	p, err := pseudonym.New(cfg.Pseudonym.Salt)
	if err != nil {
		return nil, errors.Join(ErrConfigurationMissing, err)
	}
	engine.pseudonymizer = p

	var resolverOpts []pseudonym.Option
	if cfg.Pseudonym.UseIndex {
		idx := b.index
		if idx == nil {
			idx, _ = b.userProvider.(pseudonym.Index)
		}
		if idx == nil {
			return nil, errors.New("pseudonym UseIndex requires a pseudonym index")
		}
		resolverOpts = append(resolverOpts, pseudonym.WithIndex(idx))
	}
	resolver, err := pseudonym.NewResolver(p, b.userProvider, resolverOpts...)
	if err != nil {
		return nil, err
	}
	engine.resolver = resolver

	// -------- TOKENS --------
	method := jwt.SigningMethod(cfg.JWT.SigningMethod)
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Access: jwt.KeyConfig{
			SigningMethod: method,
			PrivateKey:    cloneBytes(cfg.JWT.AccessKey),
			PublicKey:     cloneBytes(cfg.JWT.AccessPublicKey),
		},
		Refresh: jwt.KeyConfig{
			SigningMethod: method,
			PrivateKey:    cloneBytes(cfg.JWT.RefreshKey),
			PublicKey:     cloneBytes(cfg.JWT.RefreshPublicKey),
		},
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   cfg.JWT.Leeway,
		Now:      now,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	refreshStore := b.refreshStore
	if refreshStore == nil {
		refreshStore = refresh.NewMemoryStore()
	}
	serviceOpts := []refresh.ServiceOption{refresh.WithClock(now)}
	if cfg.Pseudonym.UseIndex {
		serviceOpts = append(serviceOpts, refresh.WithResolver(timedResolver{engine}))
	}
	tokens, err := refresh.NewService(jm, refreshStore, p, serviceOpts...)
	if err != nil {
		return nil, err
	}
	engine.tokens = tokens

	// -------- CHALLENGES --------
	loginStore, confirmStore := b.challengeStore, b.confirmStore
	if loginStore == nil {
		loginStore = engine.newChallengeStore(cfg.OTP.RedisPrefix)
	}
	if confirmStore == nil {
		confirmStore = engine.newChallengeStore(cfg.EmailConfirmation.RedisPrefix)
	}

	engine.otp, err = otp.NewManager(loginStore, otp.Config{
		CodeLength:  cfg.OTP.CodeLength,
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
		Random:      b.random,
		Now:         now,
	})
	if err != nil {
		return nil, err
	}
	engine.confirmations, err = otp.NewManager(confirmStore, otp.Config{
		CodeLength:  cfg.EmailConfirmation.TokenLength,
		TTL:         cfg.EmailConfirmation.TTL,
		MaxAttempts: confirmationMaxAttempts,
		Random:      b.random,
		Now:         now,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	ph, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MinPasswordBytes: cfg.Password.MinPasswordBytes,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph
	dummyHash, err := ph.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	// -------- LIMITS & AUDIT --------
	var limiter *rate.Limiter
	if b.redis != nil {
		limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle: cfg.Security.EnableIPThrottle,
			MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
			LoginWindow:      cfg.Security.LoginWindow,
			MaxVerifyPerIP:   cfg.Security.MaxVerifyPerIP,
			VerifyWindow:     cfg.Security.VerifyWindow,
		})
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	deps := flows.Deps{
		Login: flows.LoginDeps{
			FindUser:         engine.findLoginUser,
			VerifyPassword:   ph.Verify,
			DummyHash:        dummyHash,
			RequireConfirmed: cfg.Account.RequireEmailConfirmation,
			Challenges:       engine.otp,
			DeliverCode:      engine.deliverCode,
			Warn:             warn,
			RateLimited:      rate.ErrRateLimited,
			UserNotFound:     ErrUserNotFound,
		},
		Verify: flows.VerifyDeps{
			Challenges:  engine.otp,
			IssuePair:   tokens.IssuePair,
			RateLimited: rate.ErrRateLimited,
		},
		Refresh: flows.RefreshDeps{Rotator: tokens},
		Logout:  flows.LogoutDeps{Revoker: tokens},
		Account: flows.AccountCreateDeps{
			Now:                 now,
			NewUserID:           uuid.NewString,
			Pseudonymize:        p.PseudonymizeString,
			HashPassword:        ph.Hash,
			Exists:              engine.accountExists,
			MandatoryPolicies:   engine.mandatoryPolicies,
			CreateUser:          engine.createUser,
			DeliverConfirmation: engine.deliverConfirmation,
			AccountExists:       ErrAccountExists,
		},
		Confirm: flows.ConfirmDeps{
			Resolve:      engine.resolve,
			Tokens:       engine.confirmations,
			ConfirmEmail: b.userProvider.ConfirmEmail,
			NotFound:     []error{pseudonym.ErrNotFound, ErrUserNotFound},
		},
	}
	engine.rateLimiter = limiter
	if limiter != nil {
		deps.Login.Limiter = limiter
		deps.Verify.Limiter = limiter
	}
	if cfg.Account.SendConfirmationEmail {
		deps.Account.IssueConfirmation = engine.issueConfirmation
	}
	engine.flows = flows.New(deps)

	b.built = true

	return engine, nil
}

func (e *Engine) newChallengeStore(prefix string) otp.ChallengeStore {
	if e.redis != nil {
		return stores.NewRedisChallengeStore(e.redis, prefix, stores.WithRedisClock(e.now))
	}
	s := stores.NewMemoryChallengeStore(time.Minute, stores.WithClock(e.now))
	e.owned = append(e.owned, s)
	return s
}

// confirmationLink builds the emailed confirm-email URL.
func (e *Engine) confirmationLink(pseudoID, token string) string {
	q := url.Values{}
	q.Set("userId", pseudoID)
	q.Set("token", token)
	return e.config.EmailConfirmation.LinkBaseURL + "?" + q.Encode()
}

// timedResolver records resolve latency around the pseudonym resolver.
type timedResolver struct{ e *Engine }

func (t timedResolver) ResolveString(ctx context.Context, pseudo string) (string, error) {
	return t.e.resolve(ctx, pseudo)
}

func wrapUnavailable(sentinel, err error) error {
	return fmt.Errorf("%w: %v", sentinel, err)
}
