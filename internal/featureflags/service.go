package featureflags

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultCacheTTL = time.Minute

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Repository Repository
	Logger     zerolog.Logger

	// CacheTTL is how long a snapshot of the overrides is reused. Defaults
	// to one minute.
	CacheTTL time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service resolves flags as defaults overlaid with stored overrides.
type Service struct {
	repo     Repository
	logger   zerolog.Logger
	cacheTTL time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	overrides map[string]*Flag
	expires   time.Time
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		repo:     cfg.Repository,
		logger:   cfg.Logger,
		cacheTTL: cfg.CacheTTL,
		now:      cfg.Now,
	}
}

// snapshot returns the current overrides, reloading them when the cached
// copy has expired. A failed reload keeps serving the previous copy and
// retries on the next call.
func (s *Service) snapshot(ctx context.Context) map[string]*Flag {
	s.mu.RLock()
	overrides, fresh := s.overrides, s.now().Before(s.expires)
	s.mu.RUnlock()
	if fresh {
		return overrides
	}

	loaded, err := s.repo.Overrides(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("feature flag overrides unavailable, using last known values")
		return overrides
	}

	s.mu.Lock()
	s.overrides = loaded
	s.expires = s.now().Add(s.cacheTTL)
	s.mu.Unlock()
	return loaded
}

// GetFlag returns the effective flag for key, or nil if key has neither a
// definition nor an override.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if f, ok := s.snapshot(ctx)[key]; ok {
		return f
	}
	if def, ok := Lookup(key); ok {
		return &Flag{Key: key, Value: def.Default}
	}
	return nil
}

// GetAllFlags returns every defined flag with overrides applied.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	flags := DefaultFlags()
	for k, f := range s.snapshot(ctx) {
		flags[k] = f
	}
	return flags
}

// SetFlags stores overrides for all flags or none. The snapshot is dropped
// so the next read sees the new values.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	if err := s.repo.Upsert(ctx, flags); err != nil {
		return err
	}
	s.InvalidateCache()
	return nil
}

// ResetFlag drops the stored override for key so its default applies again.
// Resetting a flag that has no override is a no-op.
func (s *Service) ResetFlag(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil && !errors.Is(err, ErrFlagNotFound) {
		return err
	}
	s.InvalidateCache()
	return nil
}

// InvalidateCache forces the next read to reload overrides.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.expires = time.Time{}
	s.mu.Unlock()
}

// IsEnabled reports whether a boolean flag is on. Unknown keys are off.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

// IsAIAdviceEnabled reports whether reports may request AI recommendations.
func (s *Service) IsAIAdviceEnabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagAIAdvice)
}

// IsRoomInsightsEnabled reports whether leaderboard insights may be generated.
func (s *Service) IsRoomInsightsEnabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagRoomInsights)
}

// IsCachedOnlyAirQuality reports whether air quality must come from cache.
func (s *Service) IsCachedOnlyAirQuality(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagCachedOnlyAirQuality)
}

// AreSubmissionsDisabled reports whether leaderboard submissions are paused.
func (s *Service) AreSubmissionsDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableSubmissions)
}

// SubmissionCooldown returns the minimum time between two submissions.
// Negative values mean no cooldown.
func (s *Service) SubmissionCooldown(ctx context.Context) time.Duration {
	hours := s.GetFlag(ctx, FlagSubmissionCooldownHours).Float64Value(DefaultSubmissionCooldownHours)
	return time.Duration(max(hours, 0) * float64(time.Hour))
}

// BatchLimit returns the maximum number of questionnaires per batch request.
func (s *Service) BatchLimit(ctx context.Context) int {
	if limit := s.GetFlag(ctx, FlagBatchLimit).IntValue(DefaultBatchLimit); limit > 0 {
		return limit
	}
	return DefaultBatchLimit
}
