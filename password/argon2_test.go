package password

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/argon2"
)

func testConfig() Config {
	return Config{Memory: 16 * 1024, Time: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func mustHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := mustHasher(t, testConfig())

	hash, err := h.Hash("correct-horse-battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=16384,t=2,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}
	if strings.Contains(hash, "=$") || strings.HasSuffix(hash, "=") {
		t.Fatalf("expected unpadded base64: %s", hash)
	}

	for pw, want := range map[string]bool{
		"correct-horse-battery": true,
		"correct-horse-battern": false,
	} {
		ok, err := h.Verify(pw, hash)
		if err != nil {
			t.Fatalf("Verify(%q): %v", pw, err)
		}
		if ok != want {
			t.Fatalf("Verify(%q) = %v, want %v", pw, ok, want)
		}
	}
}

func TestVerifyLegacyArgon2i(t *testing.T) {
	salt := []byte("0123456789abcdef")
	key := argon2.Key([]byte("legacy-password"), salt, 3, 65536, 1, 32)
	legacy := fmt.Sprintf("$argon2i$v=19$m=65536,t=3,p=1$%s$%s",
		base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(key))

	h := mustHasher(t, testConfig())
	ok, err := h.Verify("legacy-password", legacy)
	if err != nil || !ok {
		t.Fatalf("expected legacy hash to verify, ok=%v err=%v", ok, err)
	}
	upgrade, err := h.NeedsUpgrade(legacy)
	if err != nil || !upgrade {
		t.Fatalf("expected argon2i hash to need upgrade, got %v %v", upgrade, err)
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak := mustHasher(t, Config{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	hash, err := weak.Hash("upgrade-me-please")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	if up, _ := mustHasher(t, testConfig()).NeedsUpgrade(hash); !up {
		t.Fatal("expected stronger config to request upgrade")
	}
	if up, _ := weak.NeedsUpgrade(hash); up {
		t.Fatal("expected same config not to request upgrade")
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	h := mustHasher(t, testConfig())
	good, _ := h.Hash("some-password")

	cases := map[string]string{
		"not phc":       "not-a-phc-hash",
		"wrong version": strings.Replace(good, "$v=19$", "$v=18$", 1),
		"bcrypt":        "$2a$10$abcdefghijklmnopqrstuv",
		"extra param":   strings.Replace(good, "p=1", "p=1,x=2", 1),
		"weak memory":   strings.Replace(good, "m=16384", "m=1024", 1),
	}
	for name, enc := range cases {
		if _, err := h.Verify("some-password", enc); !errors.Is(err, ErrMalformedHash) {
			t.Errorf("%s: expected ErrMalformedHash, got %v", name, err)
		}
	}
}

func TestLengthBounds(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPasswordBytes = 64
	h := mustHasher(t, cfg)

	if _, err := h.Hash(""); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := h.Hash("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("a", 65)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	exact := strings.Repeat("b", 64)
	hash, err := h.Hash(exact)
	if err != nil {
		t.Fatalf("expected max-length password accepted: %v", err)
	}
	if ok, err := h.Verify(exact, hash); err != nil || !ok {
		t.Fatalf("Verify max-length: ok=%v err=%v", ok, err)
	}
	if _, err := h.Verify(strings.Repeat("c", 65), hash); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected Verify to reject long input, got %v", err)
	}
}

func TestDefaultBoundsApplied(t *testing.T) {
	h := mustHasher(t, testConfig())
	if _, err := h.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected default max applied, got %v", err)
	}
	if _, err := h.Hash(strings.Repeat("e", DefaultMinPasswordBytes-1)); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected default min applied, got %v", err)
	}
}

func TestNewArgon2Validation(t *testing.T) {
	bad := []Config{
		{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 0, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 8, KeyLength: 32},
		{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32, MinPasswordBytes: 20, MaxPasswordBytes: 10},
	}
	for i, cfg := range bad {
		if _, err := NewArgon2(cfg); err == nil {
			t.Errorf("config %d: expected validation error", i)
		}
	}
}
