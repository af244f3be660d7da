//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"html"
	"net/url"
	"os"
	"regexp"
	"sync"
	"testing"

	gdprAuth "github.com/MrEthical07/gdprAuth"
	"github.com/MrEthical07/gdprAuth/notify"
	"github.com/MrEthical07/gdprAuth/storage/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const password = "correct-horse-battery"

// yields "AB12CD34" from the otp alphabet
type fixedReader struct {
	mu  sync.Mutex
	pos int
}

func (r *fixedReader) Read(p []byte) (int, error) {
	seq := []byte{0, 1, 27, 28, 2, 3, 29, 30}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range p {
		p[i] = seq[r.pos%len(seq)]
		r.pos++
	}
	return len(p), nil
}

var linkPattern = regexp.MustCompile(`href="([^"]+)"`)

func TestPostgresRegisterConfirmLoginRefresh(t *testing.T) {
	dsn := os.Getenv("GDPRAUTH_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("GDPRAUTH_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	policyID := uuid.NewString()
	if _, err := db.ExecContext(ctx,
		`INSERT INTO consent_policies (id, version, text, effective_date, is_mandatory, consent_type)
		 VALUES ($1, 'v1', 'privacy', now() - interval '1 hour', TRUE, $2)`,
		policyID, int16(gdprAuth.ConsentPrivacyPolicy)); err != nil {
		t.Fatalf("seed policy: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `UPDATE consent_policies SET is_mandatory = FALSE WHERE id = $1`, policyID)
	})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var (
		mu     sync.Mutex
		bodies []string
	)
	sender := notify.SenderFunc(func(_ context.Context, _, _, body string) error {
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		return nil
	})

	cfg := gdprAuth.DefaultConfig()
	cfg.JWT.AccessKey = []byte("access-secret-0123456789abcdefghij")
	cfg.JWT.RefreshKey = []byte("refresh-secret-0123456789abcdefghi")
	cfg.JWT.Issuer = "gdprauth-it"
	cfg.JWT.Audience = "gdprauth-it-clients"
	cfg.Pseudonym.Salt = "integration-pepper"
	cfg.Pseudonym.UseIndex = true
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := gdprAuth.New().
		WithConfig(cfg).
		WithUserProvider(postgres.NewUserStore(db, postgres.WithStoredPseudonyms(true))).
		WithRefreshStore(postgres.NewRefreshTokenStore(db)).
		WithRedis(rdb).
		WithSender(sender).
		WithRandom(&fixedReader{}).
		WithWarnLogger(t.Logf).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	suffix := uuid.NewString()[:8]
	username := "it-" + suffix
	res, err := engine.Register(ctx, gdprAuth.RegisterRequest{
		Username:  username,
		Email:     username + "@example.com",
		Password:  password,
		FirstName: "Integration",
		LastName:  "Test",
		Consents: []gdprAuth.ConsentAcceptance{
			{PolicyID: policyID, ConsentType: gdprAuth.ConsentPrivacyPolicy, Accepted: true},
		},
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	mu.Lock()
	m := linkPattern.FindStringSubmatch(bodies[len(bodies)-1])
	mu.Unlock()
	if m == nil {
		t.Fatal("confirmation mail carries no link")
	}
	link, err := url.Parse(html.UnescapeString(m[1]))
	if err != nil {
		t.Fatalf("bad link: %v", err)
	}
	if link.Query().Get("userId") != res.PseudoID {
		t.Fatalf("link must carry the pseudonym")
	}
	if err := engine.ConfirmEmail(ctx, res.PseudoID, link.Query().Get("token")); err != nil {
		t.Fatalf("ConfirmEmail failed: %v", err)
	}

	ch, err := engine.Login(ctx, username, password)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	pair, err := engine.VerifyOTP(ctx, ch.ChallengeID, "AB12CD34")
	if err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}

	profile, err := engine.Profile(ctx, res.PseudoID)
	if err != nil || profile.Username != username || !profile.EmailConfirmed {
		t.Fatalf("Profile: %+v err=%v", profile, err)
	}

	rotated, err := engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, gdprAuth.ErrRefreshInvalid) {
		t.Fatalf("replay must fail, got %v", err)
	}
	if err := engine.Logout(ctx, rotated.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	st := engine.Health(ctx)
	if !st.Healthy() {
		t.Fatalf("expected healthy backends: %+v", st)
	}
}
