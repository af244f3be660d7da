package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	accessKey  = []byte("access-secret-access-secret-0001")
	refreshKey = []byte("refresh-secret-refresh-secret-01")
)

func testConfig(now func() time.Time) Config {
	return Config{
		AccessTTL:  10 * time.Minute,
		RefreshTTL: 30 * 24 * time.Hour,
		Access:     KeyConfig{SigningMethod: MethodHS256, PrivateKey: accessKey},
		Refresh:    KeyConfig{SigningMethod: MethodHS256, PrivateKey: refreshKey},
		Issuer:     "gdprauth",
		Audience:   "gdprauth-clients",
		Leeway:     5 * time.Minute,
		Now:        now,
	}
}

func newTestManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(testConfig(now))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestAccessTokenCarriesUIDAndJTI(t *testing.T) {
	m := newTestManager(t, nil)

	tok, err := m.CreateAccess("a7a471b2-2b02-917d-9c4d-3baaa4360e8d")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	claims, err := m.ParseAccess(tok)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.UID != "a7a471b2-2b02-917d-9c4d-3baaa4360e8d" {
		t.Fatalf("unexpected uid %q", claims.UID)
	}
	if claims.ID == "" || claims.IssuedAt == nil {
		t.Fatal("expected jti and iat")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 10*time.Minute {
		t.Fatalf("expected 10m lifetime, got %v", got)
	}

	other, _ := m.CreateAccess("a7a471b2-2b02-917d-9c4d-3baaa4360e8d")
	otherClaims, _ := m.ParseAccess(other)
	if otherClaims.ID == claims.ID {
		t.Fatal("expected distinct jti per token")
	}
}

func TestRefreshTokenCarriesTIDAndUID(t *testing.T) {
	m := newTestManager(t, nil)
	issued := time.Now().Truncate(time.Second)

	tok, err := m.CreateRefresh("uid-1", "tid-1", issued)
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}
	claims, err := m.ParseRefresh(tok)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if claims.UID != "uid-1" || claims.TID != "tid-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !claims.IssuedAt.Time.Equal(issued) {
		t.Fatalf("expected iat %v, got %v", issued, claims.IssuedAt.Time)
	}
	if !claims.ExpiresAt.Time.Equal(issued.Add(30 * 24 * time.Hour)) {
		t.Fatalf("unexpected exp %v", claims.ExpiresAt.Time)
	}
}

func TestTokenClassesAreNotInterchangeable(t *testing.T) {
	m := newTestManager(t, nil)

	access, _ := m.CreateAccess("uid-1")
	refresh, _ := m.CreateRefresh("uid-1", "tid-1", time.Now())

	if _, err := m.ParseRefresh(access); err == nil {
		t.Fatal("expected access token to fail refresh parsing")
	}
	if _, err := m.ParseAccess(refresh); err == nil {
		t.Fatal("expected refresh token to fail access parsing")
	}
}

func TestNewManagerRejectsSharedKey(t *testing.T) {
	cfg := testConfig(nil)
	cfg.Refresh.PrivateKey = accessKey

	if _, err := NewManager(cfg); !errors.Is(err, ErrSharedKey) {
		t.Fatalf("expected ErrSharedKey, got %v", err)
	}
}

func TestNewManagerRejectsShortHMACKey(t *testing.T) {
	cfg := testConfig(nil)
	cfg.Access.PrivateKey = []byte("short")

	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected short key to be rejected")
	}
}

func TestNewManagerRejectsExcessiveLeeway(t *testing.T) {
	cfg := testConfig(nil)
	cfg.Leeway = 11 * time.Minute

	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected leeway above 10m to be rejected")
	}
}

func TestRefreshLeewayAcceptsRecentlyExpired(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	m := newTestManager(t, clock)

	tok, err := m.CreateRefresh("uid-1", "tid-1", now.Add(-30*24*time.Hour-2*time.Minute))
	if err != nil {
		t.Fatalf("create refresh: %v", err)
	}
	if _, err := m.ParseRefresh(tok); err != nil {
		t.Fatalf("expected token within leeway to parse: %v", err)
	}

	stale, _ := m.CreateRefresh("uid-1", "tid-1", now.Add(-30*24*time.Hour-6*time.Minute))
	if _, err := m.ParseRefresh(stale); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseAccessRejectsTamperedSignature(t *testing.T) {
	m := newTestManager(t, nil)
	tok, _ := m.CreateAccess("uid-1")

	parts := strings.Split(tok, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := m.ParseAccess(tampered); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}
}

func TestParseAccessRejectsWrongIssuerAndAudience(t *testing.T) {
	m := newTestManager(t, nil)

	cfg := testConfig(nil)
	cfg.Issuer = "someone-else"
	foreign, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	tok, _ := foreign.CreateAccess("uid-1")
	if _, err := m.ParseAccess(tok); err == nil {
		t.Fatal("expected wrong issuer to be rejected")
	}

	cfg = testConfig(nil)
	cfg.Audience = "other-audience"
	foreign, _ = NewManager(cfg)
	tok, _ = foreign.CreateAccess("uid-1")
	if _, err := m.ParseAccess(tok); err == nil {
		t.Fatal("expected wrong audience to be rejected")
	}
}

func TestParseAccessRejectsWrongAlgorithm(t *testing.T) {
	pub, priv := newEdKeys(t)
	cfg := testConfig(nil)
	cfg.Access = KeyConfig{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{UID: "u", RegisteredClaims: gjwt.RegisteredClaims{
		ID:        "j",
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		Issuer:    "gdprauth",
		Audience:  gjwt.ClaimStrings{"gdprauth-clients"},
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(accessKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestEd25519KeyRotationByKID(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, priv2 := newEdKeys(t)

	oldCfg := testConfig(nil)
	oldCfg.Access = KeyConfig{SigningMethod: MethodEd25519, PrivateKey: priv1, PublicKey: pub1, KeyID: "k1"}
	oldMgr, err := NewManager(oldCfg)
	if err != nil {
		t.Fatalf("old manager: %v", err)
	}
	oldToken, _ := oldMgr.CreateAccess("uid-1")

	newCfg := testConfig(nil)
	newCfg.Access = KeyConfig{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv2,
		PublicKey:     pub2,
		KeyID:         "k2",
		VerifyKeys:    map[string][]byte{"k1": pub1, "k2": pub2},
	}
	newMgr, err := NewManager(newCfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	if _, err := newMgr.ParseAccess(oldToken); err != nil {
		t.Fatalf("expected old kid to verify: %v", err)
	}
	newToken, _ := newMgr.CreateAccess("uid-1")
	if _, err := oldMgr.ParseAccess(newToken); err == nil {
		t.Fatal("expected old manager to reject unknown kid")
	}
}

func TestParseAccessRejectsFutureIAT(t *testing.T) {
	now := time.Now()
	future := newTestManager(t, func() time.Time { return now.Add(time.Hour) })
	tok, _ := future.CreateAccess("uid-1")

	m := newTestManager(t, func() time.Time { return now })
	if _, err := m.ParseAccess(tok); err == nil {
		t.Fatal("expected far-future iat to be rejected")
	}
}
