package refresh

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store for tests and single-node setups.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Create(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.TokenID]; ok {
		return ErrRecordExists
	}
	s.records[rec.TokenID] = rec
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, tokenID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tokenID]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	if rec.RevokedAt != nil {
		at := *rec.RevokedAt
		rec.RevokedAt = &at
	}
	return rec, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, tokenID, ownerID string, revokedAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tokenID]
	if !ok || rec.OwnerID != ownerID || rec.Revoked {
		return false, nil
	}
	rec.Revoked = true
	rec.RevokedAt = &revokedAt
	s.records[tokenID] = rec
	return true, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
