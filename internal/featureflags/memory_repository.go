package featureflags

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository keeps overrides in a map. The API and worker fall back
// to it when no database is configured.
type InMemoryRepository struct {
	mu        sync.RWMutex
	overrides map[string]Flag
	now       func() time.Time
}

// NewInMemoryRepository returns a repository holding the given overrides.
func NewInMemoryRepository(overrides ...*Flag) *InMemoryRepository {
	repo := &InMemoryRepository{overrides: make(map[string]Flag), now: time.Now}
	for _, f := range overrides {
		repo.overrides[f.Key] = *f
	}
	return repo
}

// Overrides returns copies of the stored overrides.
func (r *InMemoryRepository) Overrides(context.Context) (map[string]*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Flag, len(r.overrides))
	for k, f := range r.overrides {
		out[k] = &f
	}
	return out, nil
}

// Upsert stores flags, stamping them with the current time.
func (r *InMemoryRepository) Upsert(_ context.Context, flags []*Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, f := range flags {
		f.UpdatedAt = now
		r.overrides[f.Key] = *f
	}
	return nil
}

// Delete removes the override for key.
func (r *InMemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.overrides[key]; !ok {
		return ErrFlagNotFound
	}
	delete(r.overrides, key)
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
