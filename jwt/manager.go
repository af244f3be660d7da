package jwt

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod names a supported signature algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256 and a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

const minHMACKeyBytes = 32

var (
	// ErrTokenExpired reports an exp claim in the past (beyond leeway).
	ErrTokenExpired = jwt.ErrTokenExpired
	// ErrTokenSignatureInvalid reports a signature that does not verify.
	ErrTokenSignatureInvalid = jwt.ErrTokenSignatureInvalid
	// ErrMissingClaim reports a token without a required custom claim.
	ErrMissingClaim = errors.New("token missing required claim")
	// ErrSharedKey reports access and refresh configurations using the same key.
	ErrSharedKey = errors.New("access and refresh tokens must use distinct keys")
)

// KeyConfig is the key material for one token class.
type KeyConfig struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	KeyID         string
	VerifyKeys    map[string][]byte
}

// Config configures a Manager.
type Config struct {
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Access       KeyConfig
	Refresh      KeyConfig
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration

	// Now overrides the clock for issuance and validation.
	Now func() time.Time
}

// AccessClaims is the access token payload. The jti lives in RegisteredClaims.ID.
type AccessClaims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// RefreshClaims is the refresh token payload.
type RefreshClaims struct {
	TID string `json:"tid"`
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// Manager issues and parses access and refresh tokens.
//
// A Manager is immutable after NewManager and safe for concurrent use.
type Manager struct {
	config  Config
	access  signer
	refresh signer
}

type signer struct {
	cfg    KeyConfig
	method jwt.SigningMethod
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 10*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if strings.TrimSpace(cfg.Issuer) == "" || strings.TrimSpace(cfg.Audience) == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	access, err := newSigner("access", cfg.Access)
	if err != nil {
		return nil, err
	}
	refresh, err := newSigner("refresh", cfg.Refresh)
	if err != nil {
		return nil, err
	}
	if sharesKey(cfg.Access, cfg.Refresh) {
		return nil, ErrSharedKey
	}

	return &Manager{config: cfg, access: access, refresh: refresh}, nil
}

func newSigner(name string, kc KeyConfig) (signer, error) {
	kc.KeyID = strings.TrimSpace(kc.KeyID)

	switch kc.SigningMethod {
	case MethodHS256:
		if len(kc.PrivateKey) < minHMACKeyBytes {
			return signer{}, fmt.Errorf("%s hs256 key must be at least %d bytes", name, minHMACKeyBytes)
		}
		return signer{cfg: kc, method: jwt.SigningMethodHS256}, nil
	case MethodEd25519:
		if len(kc.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(kc.PrivateKey); err != nil {
				return signer{}, fmt.Errorf("%s: %w", name, err)
			}
		}
		if len(kc.VerifyKeys) == 0 && len(kc.PublicKey) == 0 {
			return signer{}, fmt.Errorf("%s ed25519 requires public key or verify key set", name)
		}
		if len(kc.PublicKey) > 0 {
			if _, err := parseEdPublicKey(kc.PublicKey); err != nil {
				return signer{}, fmt.Errorf("%s: %w", name, err)
			}
		}
		for kid, key := range kc.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return signer{}, fmt.Errorf("%s verify key map contains empty kid", name)
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return signer{}, fmt.Errorf("invalid %s ed25519 verify key for kid %q: %w", name, kid, err)
			}
		}
		if kc.KeyID != "" && len(kc.VerifyKeys) > 0 {
			if _, ok := kc.VerifyKeys[kc.KeyID]; !ok {
				return signer{}, fmt.Errorf("%s KeyID is not present in VerifyKeys", name)
			}
		}
		return signer{cfg: kc, method: jwt.SigningMethodEdDSA}, nil
	default:
		return signer{}, fmt.Errorf("unsupported %s signing method", name)
	}
}

func sharesKey(a, b KeyConfig) bool {
	if len(a.PrivateKey) > 0 && bytes.Equal(a.PrivateKey, b.PrivateKey) {
		return true
	}
	return len(a.PublicKey) > 0 && bytes.Equal(a.PublicKey, b.PublicKey)
}

// CreateAccess signs an access token for the pseudonymous uid.
func (j *Manager) CreateAccess(uid string) (string, error) {
	if uid == "" {
		return "", ErrMissingClaim
	}
	now := j.config.Now()

	claims := AccessClaims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.config.AccessTTL)),
			Issuer:    j.config.Issuer,
			Audience:  jwt.ClaimStrings{j.config.Audience},
		},
	}
	return j.access.sign(claims)
}

// CreateRefresh signs a refresh token for uid/tid issued at issuedAt.
func (j *Manager) CreateRefresh(uid, tid string, issuedAt time.Time) (string, error) {
	if uid == "" || tid == "" {
		return "", ErrMissingClaim
	}

	claims := RefreshClaims{
		TID: tid,
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(j.config.RefreshTTL)),
			Issuer:    j.config.Issuer,
			Audience:  jwt.ClaimStrings{j.config.Audience},
		},
	}
	return j.refresh.sign(claims)
}

// ParseAccess verifies an access token.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := j.parse(j.access, tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.UID == "" || claims.ID == "" {
		return nil, ErrMissingClaim
	}
	if err := j.checkIAT(claims.IssuedAt); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token's signature and registered claims.
// Store state is not consulted.
func (j *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := j.parse(j.refresh, tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.UID == "" || claims.TID == "" {
		return nil, ErrMissingClaim
	}
	if err := j.checkIAT(claims.IssuedAt); err != nil {
		return nil, err
	}
	return claims, nil
}

// AccessTTL returns the configured access token lifetime.
func (j *Manager) AccessTTL() time.Duration { return j.config.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (j *Manager) RefreshTTL() time.Duration { return j.config.RefreshTTL }

func (j *Manager) parse(s signer, tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(j.config.Issuer),
		jwt.WithAudience(j.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.config.Now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(s.cfg.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := s.cfg.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return s.keyBytesToVerifyKey(key)
		}

		if s.cfg.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != s.cfg.KeyID {
				return nil, errors.New("unknown kid")
			}
		}

		return s.verifyKey()
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

func (j *Manager) checkIAT(iat *jwt.NumericDate) error {
	if iat == nil {
		return ErrMissingClaim
	}
	if iat.Time.After(j.config.Now().Add(j.config.MaxFutureIAT)) {
		return errors.New("token iat too far in the future")
	}
	return nil
}

func (s signer) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(s.method, claims)
	if s.cfg.KeyID != "" {
		token.Header["kid"] = s.cfg.KeyID
	}

	signKey, err := s.signKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(signKey)
}

func (s signer) signKey() (interface{}, error) {
	switch s.cfg.SigningMethod {
	case MethodHS256:
		return s.cfg.PrivateKey, nil
	default:
		if len(s.cfg.PrivateKey) == 0 {
			return nil, errors.New("signing key not configured")
		}
		return parseEdPrivateKey(s.cfg.PrivateKey)
	}
}

func (s signer) verifyKey() (interface{}, error) {
	switch s.cfg.SigningMethod {
	case MethodHS256:
		return s.cfg.PrivateKey, nil
	default:
		return parseEdPublicKey(s.cfg.PublicKey)
	}
}

func (s signer) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch s.cfg.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
