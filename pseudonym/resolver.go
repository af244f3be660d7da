package pseudonym

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// KnownIDs enumerates the real identifiers a pseudonym may resolve to.
//
// EachRealID calls fn for every known identifier until fn returns false or
// the set is exhausted.
type KnownIDs interface {
	EachRealID(ctx context.Context, fn func(realID string) bool) error
}

// Index is an optional keyed lookup from a stored pseudonym to its real
// identifier. A miss reports ok == false without an error.
type Index interface {
	LookupPseudonym(ctx context.Context, pseudo uuid.UUID) (realID string, ok bool, err error)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithIndex makes the Resolver consult idx before scanning.
func WithIndex(idx Index) Option {
	return func(r *Resolver) {
		r.index = idx
	}
}

// Resolver maps pseudonymous identifiers back to real identifiers.
type Resolver struct {
	p     *Pseudonymizer
	ids   KnownIDs
	index Index
}

// NewResolver returns a Resolver scanning ids with p.
func NewResolver(p *Pseudonymizer, ids KnownIDs, opts ...Option) (*Resolver, error) {
	if p == nil {
		return nil, ErrSaltMissing
	}
	if ids == nil {
		return nil, errors.New("pseudonym resolver requires a known id source")
	}
	r := &Resolver{p: p, ids: ids}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve returns the first real identifier whose pseudonym equals pseudo.
//
// When an Index is configured its answer is re-verified by recomputation; a
// stale or wrong index entry falls through to the scan.
func (r *Resolver) Resolve(ctx context.Context, pseudo uuid.UUID) (string, error) {
	if pseudo == uuid.Nil {
		return "", ErrNotFound
	}

	if r.index != nil {
		realID, ok, err := r.index.LookupPseudonym(ctx, pseudo)
		if err != nil {
			return "", err
		}
		if ok && r.p.Matches(realID, pseudo) {
			return realID, nil
		}
	}

	var found string
	err := r.ids.EachRealID(ctx, func(realID string) bool {
		if r.p.Matches(realID, pseudo) {
			found = realID
			return false
		}
		return true
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", ErrNotFound
	}
	return found, nil
}

// ResolveString parses pseudo as a UUID and resolves it.
func (r *Resolver) ResolveString(ctx context.Context, pseudo string) (string, error) {
	id, err := uuid.Parse(pseudo)
	if err != nil {
		return "", ErrNotFound
	}
	return r.Resolve(ctx, id)
}

// SliceIDs adapts a fixed slice of real identifiers to KnownIDs.
type SliceIDs []string

// EachRealID implements KnownIDs.
func (s SliceIDs) EachRealID(ctx context.Context, fn func(string) bool) error {
	for _, id := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(id) {
			return nil
		}
	}
	return nil
}
