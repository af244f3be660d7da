package gdprAuth

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/gdprAuth/internal/audit"
	"github.com/MrEthical07/gdprAuth/internal/flows"
	"github.com/MrEthical07/gdprAuth/internal/rate"
	"github.com/MrEthical07/gdprAuth/jwt"
	"github.com/MrEthical07/gdprAuth/notify"
	"github.com/MrEthical07/gdprAuth/otp"
	"github.com/MrEthical07/gdprAuth/password"
	"github.com/MrEthical07/gdprAuth/pseudonym"
	"github.com/MrEthical07/gdprAuth/refresh"
	"github.com/redis/go-redis/v9"
)

// Engine runs login, second factor, token rotation, registration and email
// confirmation. Build one with New().Build(); it is safe for concurrent use.
//
// Every identifier an Engine returns, signs or audits is pseudonymous. Real
// user ids stay between the Engine and its UserProvider.
type Engine struct {
	config       Config
	userProvider UserProvider
	sender       notify.Sender
	redis        redis.UniversalClient

	pseudonymizer *pseudonym.Pseudonymizer
	resolver      *pseudonym.Resolver
	jwtManager    *jwt.Manager
	tokens        *refresh.Service
	otp           *otp.Manager
	confirmations *otp.Manager
	passwordHash  *password.Argon2
	rateLimiter   *rate.Limiter

	audit   *internalaudit.Dispatcher
	metrics *Metrics
	flows   flows.Service

	owned []interface{ Close() }
	now   func() time.Time
	warn  func(string, ...any)
}

// Close stops the audit dispatcher after draining it and stops any
// in-memory store sweepers the Engine created.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	for _, c := range e.owned {
		c.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns current counter and histogram values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

// Pseudonymize returns the pseudonymous id of realID.
func (e *Engine) Pseudonymize(realID string) string {
	if e == nil || e.pseudonymizer == nil {
		return ""
	}
	return e.pseudonymizer.PseudonymizeString(realID)
}

/*
====================================
LOGIN
====================================
*/

// Login verifies identifier (username or email) and password and opens a
// second-factor challenge. The code is mailed to the user; only the
// challenge id is returned. A failed delivery is logged and the challenge
// stays open.
func (e *Engine) Login(ctx context.Context, identifier, password string) (*LoginChallenge, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Login(ctx, identifier, password, clientIPFromContext(ctx))
	pseudo := ""
	if res.UserID != "" {
		pseudo = e.Pseudonymize(res.UserID)
	}

	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, AuditLogin, AuditWarning, pseudo, "", "", ErrLoginRateLimited)
		return nil, ErrLoginRateLimited
	case flows.LoginFailureLimiter:
		e.emitAudit(ctx, AuditLogin, AuditError, pseudo, "", "", ErrRateLimiterUnavailable)
		return nil, wrapUnavailable(ErrRateLimiterUnavailable, res.Err)
	case flows.LoginFailureUserStore:
		e.emitAudit(ctx, AuditLogin, AuditError, pseudo, "", "", ErrUserStoreUnavailable)
		return nil, wrapUnavailable(ErrUserStoreUnavailable, res.Err)
	case flows.LoginFailureCredentials:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, AuditLogin, AuditWarning, pseudo, "", "", ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	case flows.LoginFailureUnconfirmed:
		e.metricInc(MetricLoginUnconfirmed)
		e.emitAudit(ctx, AuditLogin, AuditWarning, pseudo, "", "", ErrEmailNotConfirmed)
		return nil, ErrEmailNotConfirmed
	default:
		e.emitAudit(ctx, AuditLogin, AuditError, pseudo, "", "", ErrChallengeStoreUnavailable)
		return nil, wrapUnavailable(ErrChallengeStoreUnavailable, res.Err)
	}

	e.metricInc(MetricLoginChallengeIssued)
	e.emitAudit(ctx, AuditCreated, AuditSuccess, pseudo, "challenge", res.ChallengeID, nil)
	return &LoginChallenge{ChallengeID: res.ChallengeID, ExpiresAt: res.ExpiresAt}, nil
}

// VerifyOTP consumes a login challenge and returns the first token pair.
// Every challenge failure is reported as ErrOTPInvalid; three wrong codes
// destroy the challenge.
func (e *Engine) VerifyOTP(ctx context.Context, challengeID, code string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.VerifyOTP(ctx, challengeID, code, clientIPFromContext(ctx))
	switch res.Failure {
	case flows.VerifyFailureNone:
	case flows.VerifyFailureRateLimited:
		e.emitAudit(ctx, AuditLogin, AuditWarning, "", "challenge", challengeID, ErrVerifyRateLimited)
		return nil, ErrVerifyRateLimited
	case flows.VerifyFailureLimiter:
		return nil, wrapUnavailable(ErrRateLimiterUnavailable, res.Err)
	case flows.VerifyFailureNotFound, flows.VerifyFailureMismatch:
		e.metricInc(MetricOTPFailure)
		e.emitAudit(ctx, AuditLogin, AuditWarning, "", "challenge", challengeID, ErrOTPInvalid)
		return nil, ErrOTPInvalid
	case flows.VerifyFailureExhausted:
		e.metricInc(MetricOTPFailure)
		e.metricInc(MetricOTPExhausted)
		e.emitAudit(ctx, AuditLogin, AuditWarning, "", "challenge", challengeID, otp.ErrAttemptsExhausted)
		return nil, ErrOTPInvalid
	case flows.VerifyFailureStore:
		e.emitAudit(ctx, AuditLogin, AuditError, "", "challenge", challengeID, ErrChallengeStoreUnavailable)
		return nil, wrapUnavailable(ErrChallengeStoreUnavailable, res.Err)
	default:
		pseudo := e.Pseudonymize(res.UserID)
		e.emitAudit(ctx, AuditLogin, AuditError, pseudo, "challenge", challengeID, ErrTokenStoreUnavailable)
		return nil, wrapUnavailable(ErrTokenStoreUnavailable, res.Err)
	}

	e.metricInc(MetricOTPSuccess)
	e.emitAudit(ctx, AuditLogin, AuditSuccess, res.Pair.PseudoID, "refresh_token", res.Pair.TokenID, nil)
	return &TokenPair{AccessToken: res.Pair.AccessToken, RefreshToken: res.Pair.RefreshToken}, nil
}

// ChallengeStatus reports the attempts left on an open challenge.
func (e *Engine) ChallengeStatus(ctx context.Context, challengeID string) (*ChallengeStatus, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	st, err := e.otp.Status(ctx, challengeID)
	if err != nil {
		if errors.Is(err, otp.ErrChallengeNotFound) {
			return nil, ErrChallengeNotFound
		}
		return nil, wrapUnavailable(ErrChallengeStoreUnavailable, err)
	}
	return &ChallengeStatus{AttemptsRemaining: st.AttemptsRemaining, ExpiresAt: st.ExpiresAt}, nil
}

// CancelChallenge deletes an open challenge. Cancelling an unknown challenge
// is not an error.
func (e *Engine) CancelChallenge(ctx context.Context, challengeID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.otp.Cancel(ctx, challengeID); err != nil {
		return wrapUnavailable(ErrChallengeStoreUnavailable, err)
	}
	e.emitAudit(ctx, AuditDeleted, AuditSuccess, "", "challenge", challengeID, nil)
	return nil
}

func (e *Engine) findLoginUser(ctx context.Context, identifier string) (flows.LoginUserRecord, error) {
	u, err := e.userProvider.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return flows.LoginUserRecord{}, err
	}
	return flows.LoginUserRecord{
		UserID:         u.UserID,
		Email:          u.Email,
		PasswordHash:   u.PasswordHash,
		EmailConfirmed: u.EmailConfirmed,
	}, nil
}

func (e *Engine) deliverCode(ctx context.Context, email string, issued *otp.Issued) error {
	body, err := notify.OTPBody(issued.Code, e.otp.TTL(), e.otp.MaxAttempts())
	if err == nil {
		err = e.sender.Send(ctx, email, notify.OTPSubject, body)
	}
	if err != nil {
		e.metricInc(MetricDeliveryFailure)
		e.warn("gdprAuth: otp delivery for challenge %s failed: %v", issued.ChallengeID, err)
		return wrapUnavailable(ErrDeliveryFailure, err)
	}
	return nil
}

/*
====================================
TOKENS
====================================
*/

// Refresh rotates a refresh token. The presented token is revoked and can
// never be rotated again; concurrent rotations of one token have a single
// winner. All rejections are ErrRefreshInvalid.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	res := e.flows.Refresh(ctx, refreshToken)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricRefreshLatency, time.Since(start))
	}

	switch res.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureInvalid:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditRefresh, AuditWarning, "", "", "", ErrRefreshInvalid)
		return nil, ErrRefreshInvalid
	default:
		if errors.Is(res.Err, refresh.ErrReissueFailed) {
			e.warn("gdprAuth: refresh token revoked but not reissued: %v", res.Err)
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditRefresh, AuditError, "", "", "", ErrTokenStoreUnavailable)
		return nil, wrapUnavailable(ErrTokenStoreUnavailable, res.Err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditRefresh, AuditSuccess, res.Pair.PseudoID, "refresh_token", res.Pair.TokenID, nil)
	return &TokenPair{AccessToken: res.Pair.AccessToken, RefreshToken: res.Pair.RefreshToken}, nil
}

// Logout revokes the record behind a refresh token. Logging out twice with
// the same token succeeds; an invalid signature is ErrRefreshInvalid.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := e.flows.Logout(ctx, refreshToken)
	switch res.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureInvalid:
		e.emitAudit(ctx, AuditLogout, AuditWarning, "", "", "", ErrRefreshInvalid)
		return ErrRefreshInvalid
	default:
		e.emitAudit(ctx, AuditLogout, AuditError, res.PseudoID, "", "", ErrTokenStoreUnavailable)
		return wrapUnavailable(ErrTokenStoreUnavailable, res.Err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, AuditLogout, AuditSuccess, res.PseudoID, "", "", nil)
	return nil
}

// ValidateAccess verifies an access token's signature, issuer, audience and
// expiry. Access tokens are stateless; nothing is looked up.
func (e *Engine) ValidateAccess(accessToken string) (*AccessResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil || claims.UID == "" {
		return nil, ErrAccessInvalid
	}
	out := &AccessResult{PseudoID: claims.UID, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

/*
====================================
PROFILE
====================================
*/

// Profile returns the account behind a pseudonymous id. It is the one read
// path that resolves a pseudonym back to a real id.
func (e *Engine) Profile(ctx context.Context, pseudoID string) (*Profile, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	realID, err := e.resolve(ctx, pseudoID)
	if err != nil {
		if errors.Is(err, pseudonym.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, wrapUnavailable(ErrUserStoreUnavailable, err)
	}
	u, err := e.userProvider.GetUserByID(ctx, realID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, wrapUnavailable(ErrUserStoreUnavailable, err)
	}

	e.emitAudit(ctx, AuditViewed, AuditSuccess, pseudoID, "user", pseudoID, nil)
	return &Profile{
		PseudoID:       pseudoID,
		Username:       u.Username,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		EmailConfirmed: u.EmailConfirmed,
		CreatedAt:      u.CreatedAt,
	}, nil
}

func (e *Engine) resolve(ctx context.Context, pseudoID string) (string, error) {
	start := time.Now()
	realID, err := e.resolver.ResolveString(ctx, pseudoID)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricResolveLatency, time.Since(start))
	}
	return realID, err
}
