package gdprAuth

import (
	"errors"
	"strings"
	"time"
)

// Config is the full engine configuration. Start from DefaultConfig and fill
// in the secrets; Build rejects a Config that fails Validate.
type Config struct {
	JWT               JWTConfig
	Pseudonym         PseudonymConfig
	OTP               OTPConfig
	EmailConfirmation EmailConfirmationConfig
	Password          PasswordConfig
	Account           AccountConfig
	Security          SecurityConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the two token classes. AccessKey and RefreshKey must differ.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"

	// HS256 secrets, or Ed25519 private keys.
	AccessKey  []byte
	RefreshKey []byte
	// Ed25519 public keys. Unused for HS256.
	AccessPublicKey  []byte
	RefreshPublicKey []byte

	Issuer   string
	Audience string
	Leeway   time.Duration
}

/*
====================================
PSEUDONYM CONFIG
====================================
*/

// PseudonymConfig controls identifier pseudonymization.
type PseudonymConfig struct {
	Salt string
	// UseIndex makes reverse lookup consult a stored pseudonym column before
	// scanning. The derivation itself never reads it.
	UseIndex bool
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls the login second factor.
type OTPConfig struct {
	CodeLength  int
	TTL         time.Duration
	MaxAttempts int
	RedisPrefix string
}

// EmailConfirmationConfig controls the single-use address confirmation token.
type EmailConfirmationConfig struct {
	TokenLength int
	TTL         time.Duration
	RedisPrefix string
	// LinkBaseURL is the confirm-email endpoint the emailed link points at.
	LinkBaseURL string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id costs and length bounds.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MinPasswordBytes int
	MaxPasswordBytes int
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls registration.
type AccountConfig struct {
	Enabled bool
	// RequireEmailConfirmation rejects logins from unconfirmed addresses.
	RequireEmailConfirmation bool
	// SendConfirmationEmail mails the confirmation link after registration.
	SendConfirmationEmail bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the Redis-backed throttles.
type SecurityConfig struct {
	EnableIPThrottle bool
	MaxLoginAttempts int
	LoginWindow      time.Duration
	MaxVerifyPerIP   int
	VerifyWindow     time.Duration
}

/*
====================================
AUDIT & METRICS
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a Config with every policy value set. Keys, issuer,
// audience and salt are left empty.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     10 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: "hs256",
			Leeway:        5 * time.Minute,
		},
		OTP: OTPConfig{
			CodeLength:  8,
			TTL:         5 * time.Minute,
			MaxAttempts: 3,
			RedisPrefix: "otp",
		},
		EmailConfirmation: EmailConfirmationConfig{
			TokenLength: 32,
			TTL:         24 * time.Hour,
			RedisPrefix: "ecf",
			LinkBaseURL: "http://localhost:8080/api/account/confirm-email",
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MinPasswordBytes: 8,
			MaxPasswordBytes: 1024,
		},
		Account: AccountConfig{
			Enabled:                  true,
			RequireEmailConfirmation: true,
			SendConfirmationEmail:    true,
		},
		Security: SecurityConfig{
			EnableIPThrottle: true,
			MaxLoginAttempts: 5,
			LoginWindow:      15 * time.Minute,
			MaxVerifyPerIP:   20,
			VerifyWindow:     5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessKey = cloneBytes(cfg.JWT.AccessKey)
	out.JWT.RefreshKey = cloneBytes(cfg.JWT.RefreshKey)
	out.JWT.AccessPublicKey = cloneBytes(cfg.JWT.AccessPublicKey)
	out.JWT.RefreshPublicKey = cloneBytes(cfg.JWT.RefreshPublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting. Missing secrets wrap
// ErrConfigurationMissing.
func (c *Config) Validate() error {
	// Secrets
	switch {
	case len(c.JWT.AccessKey) == 0:
		return missing("JWT AccessKey")
	case len(c.JWT.RefreshKey) == 0:
		return missing("JWT RefreshKey")
	case strings.TrimSpace(c.JWT.Issuer) == "":
		return missing("JWT Issuer")
	case strings.TrimSpace(c.JWT.Audience) == "":
		return missing("JWT Audience")
	case c.Pseudonym.Salt == "":
		return missing("Pseudonym Salt")
	}

	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be longer than AccessTTL")
	}
	if c.JWT.SigningMethod != "hs256" && c.JWT.SigningMethod != "ed25519" {
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.SigningMethod == "ed25519" && (len(c.JWT.AccessPublicKey) == 0 || len(c.JWT.RefreshPublicKey) == 0) {
		return errors.New("ed25519 requires AccessPublicKey and RefreshPublicKey")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 10*time.Minute {
		return errors.New("JWT Leeway must be in [0,10m]")
	}

	// OTP
	if c.OTP.CodeLength < 6 || c.OTP.CodeLength > 16 {
		return errors.New("OTP CodeLength must be between 6 and 16")
	}
	if c.OTP.TTL <= 0 || c.OTP.TTL > 15*time.Minute {
		return errors.New("OTP TTL must be in (0,15m]")
	}
	if c.OTP.MaxAttempts <= 0 || c.OTP.MaxAttempts > 10 {
		return errors.New("OTP MaxAttempts must be between 1 and 10")
	}
	if c.OTP.RedisPrefix == "" {
		return errors.New("OTP RedisPrefix must not be empty")
	}

	// Email confirmation
	if c.EmailConfirmation.TokenLength < 16 || c.EmailConfirmation.TokenLength > 32 {
		return errors.New("EmailConfirmation TokenLength must be between 16 and 32")
	}
	if c.EmailConfirmation.TTL <= 0 {
		return errors.New("EmailConfirmation TTL must be > 0")
	}
	if c.EmailConfirmation.RedisPrefix == "" || c.EmailConfirmation.RedisPrefix == c.OTP.RedisPrefix {
		return errors.New("EmailConfirmation RedisPrefix must be set and differ from OTP RedisPrefix")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinPasswordBytes < 0 || c.Password.MaxPasswordBytes < 0 ||
		(c.Password.MaxPasswordBytes > 0 && c.Password.MaxPasswordBytes < c.Password.MinPasswordBytes) {
		return errors.New("Password length bounds are invalid")
	}

	// Security
	if c.Security.MaxLoginAttempts < 0 || c.Security.MaxVerifyPerIP < 0 {
		return errors.New("Security limits must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginWindow <= 0 {
		return errors.New("Security LoginWindow must be > 0 when MaxLoginAttempts is set")
	}
	if c.Security.MaxVerifyPerIP > 0 && c.Security.VerifyWindow <= 0 {
		return errors.New("Security VerifyWindow must be > 0 when MaxVerifyPerIP is set")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

func missing(what string) error {
	return errors.Join(ErrConfigurationMissing, errors.New(what+" is required"))
}

// LintWarning is a non-fatal observation about a valid Config.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the list of warnings produced by Lint.
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
	}
	return out
}

// Lint reports settings that are valid but weaken the deployment.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if c.JWT.Leeway > 5*time.Minute {
		add("leeway_large", "JWT Leeway above 5m extends the life of expired tokens")
	}
	if c.JWT.AccessTTL > 15*time.Minute {
		add("access_ttl_long", "access tokens cannot be revoked; keep AccessTTL short")
	}
	if c.JWT.RefreshTTL > 90*24*time.Hour {
		add("refresh_ttl_long", "RefreshTTL above 90 days")
	}
	if c.JWT.SigningMethod == "hs256" && (len(c.JWT.AccessKey) < 32 || len(c.JWT.RefreshKey) < 32) {
		add("hmac_key_short", "HS256 keys shorter than 32 bytes are rejected at Build")
	}
	if len(c.Pseudonym.Salt) < 16 {
		add("salt_short", "a pseudonym salt under 16 bytes is easy to brute force")
	}
	if c.Pseudonym.UseIndex {
		add("pseudonym_stored", "UseIndex persists pseudonyms next to real identifiers")
	}
	if c.Security.MaxLoginAttempts == 0 && c.Security.MaxVerifyPerIP == 0 {
		add("rate_limits_disabled", "login and verification throttles are both disabled")
	} else if !c.Security.EnableIPThrottle {
		add("ip_throttle_disabled", "per-IP login throttle is disabled")
	}
	if !c.Account.RequireEmailConfirmation {
		add("email_confirmation_optional", "logins are accepted from unconfirmed addresses")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", "audit events are not recorded")
	}
	if c.Password.MinPasswordBytes < 8 {
		add("password_min_short", "MinPasswordBytes below 8")
	}
	return ws
}
