package gdprAuth

import "time"

// SecurityReport summarizes the effective security posture of an Engine.
// It never contains key material or the pseudonym salt.
type SecurityReport struct {
	SigningAlgorithm          string
	Issuer                    string
	Audience                  string
	AccessTTL                 time.Duration
	RefreshTTL                time.Duration
	Leeway                    time.Duration
	Argon2                    PasswordConfigReport
	OTPLength                 int
	OTPTTL                    time.Duration
	OTPMaxAttempts            int
	ConfirmationTTL           time.Duration
	PseudonymIndexEnabled     bool
	RateLimitingActive        bool
	IPThrottleActive          bool
	DistributedChallenges     bool
	RegistrationEnabled       bool
	EmailConfirmationEnforced bool
	AuditEnabled              bool
	LintCodes                 []string
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinBytes    int
}

// SecurityReport returns the posture of e, with the codes Config.Lint
// reports for its configuration.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config

	return SecurityReport{
		SigningAlgorithm: cfg.JWT.SigningMethod,
		Issuer:           cfg.JWT.Issuer,
		Audience:         cfg.JWT.Audience,
		AccessTTL:        cfg.JWT.AccessTTL,
		RefreshTTL:       cfg.JWT.RefreshTTL,
		Leeway:           cfg.JWT.Leeway,
		Argon2: PasswordConfigReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
			MinBytes:    cfg.Password.MinPasswordBytes,
		},
		OTPLength:                 cfg.OTP.CodeLength,
		OTPTTL:                    cfg.OTP.TTL,
		OTPMaxAttempts:            cfg.OTP.MaxAttempts,
		ConfirmationTTL:           cfg.EmailConfirmation.TTL,
		PseudonymIndexEnabled:     cfg.Pseudonym.UseIndex,
		RateLimitingActive:        e.rateLimiter != nil && cfg.Security.MaxLoginAttempts > 0,
		IPThrottleActive:          e.rateLimiter != nil && cfg.Security.EnableIPThrottle,
		DistributedChallenges:     e.redis != nil,
		RegistrationEnabled:       cfg.Account.Enabled,
		EmailConfirmationEnforced: cfg.Account.RequireEmailConfirmation,
		AuditEnabled:              e.audit != nil,
		LintCodes:                 cfg.Lint().Codes(),
	}
}
