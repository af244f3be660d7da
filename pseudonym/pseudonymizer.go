package pseudonym

import (
	"crypto/sha256"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrSaltMissing is returned by New when no salt is configured.
	ErrSaltMissing = errors.New("pseudonymization salt is not configured")
	// ErrNotFound is returned by Resolve when no known real identifier maps to the pseudonym.
	ErrNotFound = errors.New("pseudonymous identifier not found")
)

// Pseudonymizer computes salted one-way pseudonymous identifiers.
//
// A Pseudonymizer is immutable after construction and safe for concurrent use.
type Pseudonymizer struct {
	salt []byte
}

// New returns a Pseudonymizer for salt. An empty salt is a configuration
// error and must abort startup.
func New(salt string) (*Pseudonymizer, error) {
	if salt == "" {
		return nil, ErrSaltMissing
	}
	return &Pseudonymizer{salt: []byte(salt)}, nil
}

// Pseudonymize returns truncate128(SHA-256(salt || realID)).
func (p *Pseudonymizer) Pseudonymize(realID string) uuid.UUID {
	h := sha256.New()
	h.Write(p.salt)
	h.Write([]byte(realID))

	var sum [sha256.Size]byte
	h.Sum(sum[:0])

	var id uuid.UUID
	copy(id[:], sum[:len(id)])
	return id
}

// PseudonymizeString is Pseudonymize rendered in canonical UUID text form.
func (p *Pseudonymizer) PseudonymizeString(realID string) string {
	return p.Pseudonymize(realID).String()
}

// Matches reports whether pseudo is the pseudonym of realID.
func (p *Pseudonymizer) Matches(realID string, pseudo uuid.UUID) bool {
	return p.Pseudonymize(realID) == pseudo
}
