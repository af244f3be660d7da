// Package memory provides an in-process gdprAuth.UserProvider for tests and
// the development server. Data is lost on restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	gdprAuth "github.com/MrEthical07/gdprAuth"
	"github.com/google/uuid"
)

// UserStore implements gdprAuth.UserProvider and pseudonym.Index.
type UserStore struct {
	mu       sync.RWMutex
	byID     map[string]gdprAuth.UserRecord
	order    []string
	byName   map[string]string
	byEmail  map[string]string
	byPseudo map[string]string

	policies []gdprAuth.ConsentPolicy
	consents []gdprAuth.ConsentRecord
}

// NewUserStore returns an empty store.
func NewUserStore() *UserStore {
	return &UserStore{
		byID:     make(map[string]gdprAuth.UserRecord),
		byName:   make(map[string]string),
		byEmail:  make(map[string]string),
		byPseudo: make(map[string]string),
	}
}

// PutUser inserts or replaces u. It is meant for seeding.
func (s *UserStore) PutUser(u gdprAuth.UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[u.UserID]; !ok {
		s.order = append(s.order, u.UserID)
	}
	s.byID[u.UserID] = u
	s.byName[u.Username] = u.UserID
	s.byEmail[strings.ToLower(u.Email)] = u.UserID
}

// AddPolicy registers a consent policy.
func (s *UserStore) AddPolicy(p gdprAuth.ConsentPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = append(s.policies, p)
}

// Consents returns the consents recorded for userID.
func (s *UserStore) Consents(userID string) []gdprAuth.ConsentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []gdprAuth.ConsentRecord
	for _, c := range s.consents {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of users.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// GetUserByIdentifier matches username exactly or email case-insensitively.
func (s *UserStore) GetUserByIdentifier(_ context.Context, identifier string) (gdprAuth.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[identifier]
	if !ok {
		id, ok = s.byEmail[strings.ToLower(identifier)]
	}
	if !ok {
		return gdprAuth.UserRecord{}, gdprAuth.ErrUserNotFound
	}
	return s.byID[id], nil
}

func (s *UserStore) GetUserByID(_ context.Context, userID string) (gdprAuth.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[userID]
	if !ok {
		return gdprAuth.UserRecord{}, gdprAuth.ErrUserNotFound
	}
	return u, nil
}

// CreateUser stores a user without consents.
func (s *UserStore) CreateUser(ctx context.Context, in gdprAuth.CreateUserInput) (gdprAuth.UserRecord, error) {
	return s.CreateUserWithConsents(ctx, in, nil)
}

// CreateUserWithConsents stores the user and its consents under one lock.
// Every check runs before the first write.
func (s *UserStore) CreateUserWithConsents(
	_ context.Context,
	in gdprAuth.CreateUserInput,
	consents []gdprAuth.ConsentRecord,
) (gdprAuth.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[in.UserID]; ok {
		return gdprAuth.UserRecord{}, gdprAuth.ErrAccountExists
	}
	if _, ok := s.byName[in.Username]; ok {
		return gdprAuth.UserRecord{}, gdprAuth.ErrAccountExists
	}
	if _, ok := s.byEmail[strings.ToLower(in.Email)]; ok {
		return gdprAuth.UserRecord{}, gdprAuth.ErrAccountExists
	}

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	u := gdprAuth.UserRecord{
		UserID:       in.UserID,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Address:      in.Address,
		CreatedAt:    createdAt,
	}
	s.byID[u.UserID] = u
	s.order = append(s.order, u.UserID)
	s.byName[u.Username] = u.UserID
	s.byEmail[strings.ToLower(u.Email)] = u.UserID
	if in.PseudoID != "" {
		s.byPseudo[in.PseudoID] = u.UserID
	}
	for _, c := range consents {
		c.UserID = u.UserID
		if c.ConsentDate.IsZero() {
			c.ConsentDate = createdAt
		}
		s.consents = append(s.consents, c)
	}
	return u, nil
}

func (s *UserStore) ConfirmEmail(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return gdprAuth.ErrUserNotFound
	}
	u.EmailConfirmed = true
	s.byID[userID] = u
	return nil
}

// EachRealID visits users in insertion order. fn runs without the lock held.
func (s *UserStore) EachRealID(ctx context.Context, fn func(string) bool) error {
	s.mu.RLock()
	ids := append([]string(nil), s.order...)
	s.mu.RUnlock()

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(id) {
			return nil
		}
	}
	return nil
}

// LookupPseudonym answers from the pseudonyms passed to CreateUser.
func (s *UserStore) LookupPseudonym(_ context.Context, pseudo uuid.UUID) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPseudo[pseudo.String()]
	return id, ok, nil
}

// MandatoryConsentPolicies returns mandatory policies effective at `at`. Of
// several versions of one consent type only the latest effective one counts.
func (s *UserStore) MandatoryConsentPolicies(_ context.Context, at time.Time) ([]gdprAuth.ConsentPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[gdprAuth.ConsentType]gdprAuth.ConsentPolicy)
	for _, p := range s.policies {
		if p.EffectiveDate.After(at) {
			continue
		}
		if cur, ok := latest[p.ConsentType]; !ok || p.EffectiveDate.After(cur.EffectiveDate) {
			latest[p.ConsentType] = p
		}
	}

	out := make([]gdprAuth.ConsentPolicy, 0, len(latest))
	for _, p := range latest {
		if p.IsMandatory {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EffectiveDate.Before(out[j].EffectiveDate) })
	return out, nil
}
