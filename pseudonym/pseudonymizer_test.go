package pseudonym

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

const testRealID = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"

func TestNewRejectsEmptySalt(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrSaltMissing) {
		t.Fatalf("expected ErrSaltMissing, got %v", err)
	}
}

func TestPseudonymizeKnownVector(t *testing.T) {
	p, err := New("test-salt")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got := p.PseudonymizeString(testRealID)
	if got != "a7a471b2-2b02-917d-9c4d-3baaa4360e8d" {
		t.Fatalf("unexpected pseudonym %s", got)
	}
}

func TestPseudonymizeIsDeterministicAndSaltDependent(t *testing.T) {
	a, _ := New("test-salt")
	b, _ := New("other-salt")

	if a.Pseudonymize(testRealID) != a.Pseudonymize(testRealID) {
		t.Fatal("expected identical pseudonyms for repeated calls")
	}
	if a.Pseudonymize(testRealID) == b.Pseudonymize(testRealID) {
		t.Fatal("expected different salts to produce different pseudonyms")
	}
	if b.PseudonymizeString(testRealID) != "d343c273-c459-349b-7e93-8905e03d8553" {
		t.Fatalf("unexpected pseudonym %s", b.PseudonymizeString(testRealID))
	}
}

func TestResolveRoundTrip(t *testing.T) {
	p, _ := New("test-salt")
	ids := SliceIDs{uuid.NewString(), testRealID, uuid.NewString()}
	r, err := NewResolver(p, ids)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	for _, id := range ids {
		got, err := r.Resolve(context.Background(), p.Pseudonymize(id))
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if got != id {
			t.Fatalf("expected %s, got %s", id, got)
		}
	}
}

func TestResolveUnknown(t *testing.T) {
	p, _ := New("test-salt")
	r, _ := NewResolver(p, SliceIDs{testRealID})

	if _, err := r.Resolve(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.ResolveString(context.Background(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed input, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), uuid.Nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for nil uuid, got %v", err)
	}
}

type staticIndex map[uuid.UUID]string

func (s staticIndex) LookupPseudonym(_ context.Context, pseudo uuid.UUID) (string, bool, error) {
	id, ok := s[pseudo]
	return id, ok, nil
}

type countingIDs struct {
	ids   []string
	calls int
}

func (c *countingIDs) EachRealID(ctx context.Context, fn func(string) bool) error {
	c.calls++
	return SliceIDs(c.ids).EachRealID(ctx, fn)
}

func TestResolveUsesIndexAndVerifiesIt(t *testing.T) {
	p, _ := New("test-salt")
	pseudo := p.Pseudonymize(testRealID)

	ids := &countingIDs{ids: []string{testRealID}}
	r, _ := NewResolver(p, ids, WithIndex(staticIndex{pseudo: testRealID}))

	got, err := r.Resolve(context.Background(), pseudo)
	if err != nil || got != testRealID {
		t.Fatalf("expected index hit, got %q err=%v", got, err)
	}
	if ids.calls != 0 {
		t.Fatalf("expected no scan on verified index hit, got %d scans", ids.calls)
	}

	// A poisoned index entry must not be trusted.
	r, _ = NewResolver(p, ids, WithIndex(staticIndex{pseudo: "someone-else"}))
	got, err = r.Resolve(context.Background(), pseudo)
	if err != nil || got != testRealID {
		t.Fatalf("expected scan fallback, got %q err=%v", got, err)
	}
	if ids.calls != 1 {
		t.Fatalf("expected exactly one scan, got %d", ids.calls)
	}
}

func TestResolveConcurrentReads(t *testing.T) {
	p, _ := New("test-salt")
	ids := make(SliceIDs, 0, 64)
	for i := 0; i < 64; i++ {
		ids = append(ids, uuid.NewString())
	}
	r, _ := NewResolver(p, ids)

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			got, err := r.Resolve(context.Background(), p.Pseudonymize(id))
			if err != nil {
				errs <- err
				return
			}
			if got != id {
				errs <- errors.New("resolved to wrong id")
			}
		}(id)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent resolve failed: %v", err)
	}
}
