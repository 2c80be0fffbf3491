package featureflags

import (
	"context"
	"errors"
)

// ErrFlagNotFound is returned when no override is stored for a key.
var ErrFlagNotFound = errors.New("feature flag not found")

// Repository stores flag overrides. Keys without an override resolve to
// their Definition default in the Service.
type Repository interface {
	Overrides(ctx context.Context) (map[string]*Flag, error)

	// Upsert writes all flags or none, setting UpdatedAt on each.
	Upsert(ctx context.Context, flags []*Flag) error

	// Delete removes an override, returning ErrFlagNotFound if none exists.
	Delete(ctx context.Context, key string) error
}
