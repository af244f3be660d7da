package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/gdprAuth/otp"
)

var errExists = errors.New("exists")

type accountRecorder struct {
	created  []AccountCreateRecord
	consents []ConsentInput
	ip, ua   string
	mailed   []string
}

func accountDeps(r *accountRecorder, policies []MandatoryPolicy) AccountCreateDeps {
	return AccountCreateDeps{
		Now:          func() time.Time { return time.Unix(1000, 0) },
		NewUserID:    func() string { return "real-1" },
		Pseudonymize: func(id string) string { return "pseudo-" + id },
		HashPassword: func(pw string) (string, error) { return "hash:" + pw, nil },
		Exists: func(_ context.Context, username, _ string) (bool, error) {
			return username == "taken", nil
		},
		MandatoryPolicies: func(context.Context, time.Time) ([]MandatoryPolicy, error) {
			return policies, nil
		},
		CreateUser: func(_ context.Context, rec AccountCreateRecord) error {
			r.created = append(r.created, rec)
			r.consents = append(r.consents, rec.Consents...)
			r.ip, r.ua = rec.IP, rec.UserAgent
			return nil
		},
		IssueConfirmation: func(_ context.Context, userID string) (string, error) {
			return "cid.TOKEN-" + userID, nil
		},
		DeliverConfirmation: func(_ context.Context, email, pseudoID, token string) error {
			r.mailed = append(r.mailed, email+"|"+pseudoID+"|"+token)
			return errors.New("smtp down")
		},
		AccountExists: errExists,
	}
}

func validRequest() AccountCreateRequest {
	return AccountCreateRequest{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "s3cret-pass",
		FirstName: "Alice",
		LastName:  "Liddell",
		Consents: []ConsentInput{
			{PolicyID: "p-1", Accepted: true},
			{PolicyID: "p-2", Accepted: false},
		},
		IP:        "10.0.0.1",
		UserAgent: "curl",
	}
}

func TestRunCreateAccountRecordsAcceptedConsentsAndMailsLink(t *testing.T) {
	r := &accountRecorder{}
	res := RunCreateAccount(context.Background(), validRequest(), accountDeps(r, []MandatoryPolicy{{ID: "p-1"}}))

	if res.Failure != AccountCreateFailureNone {
		t.Fatalf("unexpected failure %d: %v", res.Failure, res.Err)
	}
	if res.PseudoID != "pseudo-real-1" || res.UserID != "real-1" {
		t.Fatalf("unexpected ids: %+v", res)
	}
	if len(r.created) != 1 || r.created[0].PasswordHash != "hash:s3cret-pass" || r.created[0].PseudoID != "pseudo-real-1" {
		t.Fatalf("unexpected created record: %+v", r.created)
	}
	if len(r.consents) != 1 || r.consents[0].PolicyID != "p-1" || r.ip != "10.0.0.1" || r.ua != "curl" {
		t.Fatalf("only accepted consents must be recorded: %+v", r.consents)
	}
	if len(r.mailed) != 1 || r.mailed[0] != "alice@example.com|pseudo-real-1|cid.TOKEN-real-1" {
		t.Fatalf("unexpected mail: %v", r.mailed)
	}
	if res.DeliveryErr == nil {
		t.Fatal("delivery failure must be reported without failing registration")
	}
}

func TestRunCreateAccountRejections(t *testing.T) {
	missingField := validRequest()
	missingField.LastName = " "
	badEmail := validRequest()
	badEmail.Email = "not-an-email"
	dup := validRequest()
	dup.Username = "taken"
	declined := validRequest()

	tests := []struct {
		name     string
		req      AccountCreateRequest
		policies []MandatoryPolicy
		want     AccountCreateFailureKind
	}{
		{"missing field", missingField, nil, AccountCreateFailureInvalid},
		{"bad email", badEmail, nil, AccountCreateFailureInvalid},
		{"duplicate", dup, nil, AccountCreateFailureDuplicate},
		{"declined mandatory", declined, []MandatoryPolicy{{ID: "p-2", Description: "Terms"}}, AccountCreateFailureConsentMissing},
		{"absent mandatory", declined, []MandatoryPolicy{{ID: "p-9"}}, AccountCreateFailureConsentMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &accountRecorder{}
			res := RunCreateAccount(context.Background(), tt.req, accountDeps(r, tt.policies))
			if res.Failure != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, res.Failure)
			}
			if len(r.created) != 0 {
				t.Fatal("no user may be created")
			}
		})
	}
}

func TestRunCreateAccountStoreDuplicateRace(t *testing.T) {
	r := &accountRecorder{}
	deps := accountDeps(r, nil)
	deps.CreateUser = func(context.Context, AccountCreateRecord) error { return errExists }

	res := RunCreateAccount(context.Background(), validRequest(), deps)
	if res.Failure != AccountCreateFailureDuplicate || !errors.Is(res.Err, errExists) {
		t.Fatalf("expected duplicate, got %+v", res)
	}
}

func TestRunCreateAccountStoreFailureWritesNothingElse(t *testing.T) {
	r := &accountRecorder{}
	deps := accountDeps(r, []MandatoryPolicy{{ID: "p-1"}})
	storeErr := errors.New("consent table down")
	deps.CreateUser = func(_ context.Context, rec AccountCreateRecord) error {
		if len(rec.Consents) != 1 || rec.Consents[0].PolicyID != "p-1" {
			t.Fatalf("consents must travel with the user row, got %+v", rec.Consents)
		}
		return storeErr
	}
	issued := false
	deps.IssueConfirmation = func(context.Context, string) (string, error) {
		issued = true
		return "", nil
	}

	res := RunCreateAccount(context.Background(), validRequest(), deps)
	if res.Failure != AccountCreateFailureUserStore || !errors.Is(res.Err, storeErr) {
		t.Fatalf("expected user store failure, got %+v", res)
	}
	if issued || len(r.mailed) != 0 {
		t.Fatal("nothing may follow a failed user write")
	}
}

func TestRunCreateAccountKeepsAccountWhenConfirmationFails(t *testing.T) {
	r := &accountRecorder{}
	deps := accountDeps(r, nil)
	challengeErr := errors.New("redis down")
	deps.IssueConfirmation = func(context.Context, string) (string, error) { return "", challengeErr }

	res := RunCreateAccount(context.Background(), validRequest(), deps)
	if res.Failure != AccountCreateFailureNone || res.PseudoID != "pseudo-real-1" {
		t.Fatalf("account must survive a confirmation failure, got %+v", res)
	}
	if !errors.Is(res.ConfirmationErr, challengeErr) {
		t.Fatalf("expected ConfirmationErr, got %v", res.ConfirmationErr)
	}
	if len(r.created) != 1 || len(r.mailed) != 0 {
		t.Fatalf("unexpected side effects: created=%d mailed=%d", len(r.created), len(r.mailed))
	}
}

func TestSplitConfirmationToken(t *testing.T) {
	id, code, ok := SplitConfirmationToken(" 01J.ABC ")
	if !ok || id != "01J" || code != "ABC" {
		t.Fatalf("unexpected split %q %q %v", id, code, ok)
	}
	for _, bad := range []string{"", "nodot", ".code", "id."} {
		if _, _, ok := SplitConfirmationToken(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestRunConfirmEmail(t *testing.T) {
	confirmed := map[string]bool{}
	deps := ConfirmDeps{
		Resolve: func(_ context.Context, pseudo string) (string, error) {
			switch pseudo {
			case "p-alice":
				return "alice", nil
			case "p-bob":
				return "bob", nil
			}
			return "", errNotFound
		},
		Tokens: &stubChallenges{validate: func(id, code string) (string, error) {
			if id == "c1" && code == "GOOD" {
				return "alice", nil
			}
			return "", otp.ErrOTPMismatch
		}},
		ConfirmEmail: func(_ context.Context, userID string) error {
			confirmed[userID] = true
			return nil
		},
		NotFound: []error{errNotFound},
	}
	ctx := context.Background()

	if res := RunConfirmEmail(ctx, "p-unknown", "c1.GOOD", deps); res.Failure != ConfirmFailureInvalid {
		t.Fatalf("unknown pseudo: %+v", res)
	}
	if res := RunConfirmEmail(ctx, "p-alice", "c1.BAD", deps); res.Failure != ConfirmFailureInvalid {
		t.Fatalf("bad token: %+v", res)
	}
	if res := RunConfirmEmail(ctx, "p-bob", "c1.GOOD", deps); res.Failure != ConfirmFailureInvalid || confirmed["bob"] {
		t.Fatalf("foreign token: %+v", res)
	}
	if res := RunConfirmEmail(ctx, "p-alice", "c1.GOOD", deps); res.Failure != ConfirmFailureNone || !confirmed["alice"] {
		t.Fatalf("valid confirmation: %+v", res)
	}
}
