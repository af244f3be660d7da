package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	gdprAuth "github.com/MrEthical07/gdprAuth"
	"github.com/google/uuid"
)

func TestCreateUserRejectsDuplicates(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()

	in := gdprAuth.CreateUserInput{UserID: "u1", Username: "alice", Email: "Alice@Example.com"}
	if _, err := s.CreateUser(ctx, in); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	tests := []struct {
		name string
		in   gdprAuth.CreateUserInput
	}{
		{"same id", gdprAuth.CreateUserInput{UserID: "u1", Username: "bob", Email: "bob@example.com"}},
		{"same username", gdprAuth.CreateUserInput{UserID: "u2", Username: "alice", Email: "bob@example.com"}},
		{"same email other case", gdprAuth.CreateUserInput{UserID: "u2", Username: "bob", Email: "alice@EXAMPLE.com"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.CreateUser(ctx, tc.in); !errors.Is(err, gdprAuth.ErrAccountExists) {
				t.Fatalf("expected ErrAccountExists, got %v", err)
			}
		})
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 user, got %d", s.Len())
	}
}

func TestLookupByUsernameOrEmail(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	s.PutUser(gdprAuth.UserRecord{UserID: "u1", Username: "Alice", Email: "alice@example.com"})

	for _, ident := range []string{"Alice", "ALICE@example.com"} {
		u, err := s.GetUserByIdentifier(ctx, ident)
		if err != nil || u.UserID != "u1" {
			t.Fatalf("%s: got %+v err=%v", ident, u, err)
		}
	}
	if _, err := s.GetUserByIdentifier(ctx, "alice"); !errors.Is(err, gdprAuth.ErrUserNotFound) {
		t.Fatalf("usernames match exactly, got %v", err)
	}
	if _, err := s.GetUserByID(ctx, "nope"); !errors.Is(err, gdprAuth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestConfirmEmail(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	s.PutUser(gdprAuth.UserRecord{UserID: "u1", Username: "alice", Email: "alice@example.com"})

	if err := s.ConfirmEmail(ctx, "u1"); err != nil {
		t.Fatalf("ConfirmEmail failed: %v", err)
	}
	u, _ := s.GetUserByID(ctx, "u1")
	if !u.EmailConfirmed {
		t.Fatal("email not confirmed")
	}
	if err := s.ConfirmEmail(ctx, "u2"); !errors.Is(err, gdprAuth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestEachRealIDInsertionOrderAndStop(t *testing.T) {
	s := NewUserStore()
	for _, id := range []string{"c", "a", "b"} {
		s.PutUser(gdprAuth.UserRecord{UserID: id, Username: id, Email: id + "@example.com"})
	}
	s.PutUser(gdprAuth.UserRecord{UserID: "a", Username: "a", Email: "a@example.com"})

	var seen []string
	err := s.EachRealID(context.Background(), func(id string) bool {
		seen = append(seen, id)
		return id != "a"
	})
	if err != nil {
		t.Fatalf("EachRealID failed: %v", err)
	}
	if len(seen) != 2 || seen[0] != "c" || seen[1] != "a" {
		t.Fatalf("unexpected visit order %v", seen)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.EachRealID(ctx, func(string) bool { return true }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLookupPseudonym(t *testing.T) {
	s := NewUserStore()
	pseudo := uuid.New()
	if _, err := s.CreateUser(context.Background(), gdprAuth.CreateUserInput{
		UserID: "u1", PseudoID: pseudo.String(), Username: "alice", Email: "alice@example.com",
	}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	id, ok, err := s.LookupPseudonym(context.Background(), pseudo)
	if err != nil || !ok || id != "u1" {
		t.Fatalf("got %q %v %v", id, ok, err)
	}
	if _, ok, _ := s.LookupPseudonym(context.Background(), uuid.New()); ok {
		t.Fatal("unknown pseudonym matched")
	}
}

func TestMandatoryConsentPoliciesLatestVersion(t *testing.T) {
	s := NewUserStore()
	now := time.Now()
	s.AddPolicy(gdprAuth.ConsentPolicy{ID: "privacy-v1", ConsentType: gdprAuth.ConsentPrivacyPolicy, IsMandatory: true, EffectiveDate: now.Add(-48 * time.Hour)})
	s.AddPolicy(gdprAuth.ConsentPolicy{ID: "privacy-v2", ConsentType: gdprAuth.ConsentPrivacyPolicy, IsMandatory: true, EffectiveDate: now.Add(-time.Hour)})
	s.AddPolicy(gdprAuth.ConsentPolicy{ID: "privacy-v3", ConsentType: gdprAuth.ConsentPrivacyPolicy, IsMandatory: true, EffectiveDate: now.Add(time.Hour)})
	s.AddPolicy(gdprAuth.ConsentPolicy{ID: "tos-v1", ConsentType: gdprAuth.ConsentTermsOfService, IsMandatory: true, EffectiveDate: now.Add(-72 * time.Hour)})
	s.AddPolicy(gdprAuth.ConsentPolicy{ID: "marketing-v1", ConsentType: gdprAuth.ConsentMarketing, EffectiveDate: now.Add(-72 * time.Hour)})

	got, err := s.MandatoryConsentPolicies(context.Background(), now)
	if err != nil {
		t.Fatalf("MandatoryConsentPolicies failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "tos-v1" || got[1].ID != "privacy-v2" {
		t.Fatalf("unexpected policies %+v", got)
	}
}

func TestCreateUserWithConsents(t *testing.T) {
	s := NewUserStore()
	ctx := context.Background()
	at := time.Unix(500, 0).UTC()
	consents := []gdprAuth.ConsentRecord{{PolicyID: "privacy-v1", IPAddress: "10.0.0.1"}}

	if _, err := s.CreateUserWithConsents(ctx, gdprAuth.CreateUserInput{
		UserID: "u1", Username: "alice", Email: "alice@example.com", CreatedAt: at,
	}, consents); err != nil {
		t.Fatalf("CreateUserWithConsents failed: %v", err)
	}
	got := s.Consents("u1")
	if len(got) != 1 || got[0].UserID != "u1" || !got[0].ConsentDate.Equal(at) {
		t.Fatalf("unexpected consents %+v", got)
	}

	_, err := s.CreateUserWithConsents(ctx, gdprAuth.CreateUserInput{
		UserID: "u2", Username: "alice", Email: "other@example.com",
	}, consents)
	if !errors.Is(err, gdprAuth.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if n := len(s.Consents("u2")); n != 0 || s.Len() != 1 {
		t.Fatalf("rejected create left state behind: users=%d consents=%d", s.Len(), n)
	}
}
