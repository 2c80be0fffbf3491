package airquality

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lungbuddy/lungbuddy/internal/cache"
)

// Provider defines the interface for geocoding and pollution data providers.
type Provider interface {
	// Name identifies the provider.
	Name() string

	// Geocode resolves a free-text place name to at most limit locations.
	Geocode(ctx context.Context, query string, limit int) ([]Location, error)

	// CurrentPollution fetches current pollution for a coordinate.
	CurrentPollution(ctx context.Context, lat, lon float64) (*Pollution, error)
}

// FlagSource reports whether lookups must be served from cache only.
type FlagSource interface {
	IsCachedOnlyAirQuality(ctx context.Context) bool
}

// Suggestion limits.
const (
	MinSuggestQueryLength = 2
	SuggestLimit          = 5
)

// ServiceConfig holds configuration for the air quality service.
type ServiceConfig struct {
	// Provider is the geocoding and pollution data provider.
	Provider Provider

	// Cache stores readings (default: in-memory).
	Cache cache.KVStore

	// Flags switches the service to cached-only mode when set.
	Flags FlagSource

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long a reading is considered fresh (default: 30 minutes).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving stale readings on provider errors (default: 6 hours).
	StaleIfErrorTTL time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service provides air quality lookups with caching.
type Service struct {
	provider        Provider
	cache           cache.KVStore
	flags           FlagSource
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration
	now             func() time.Time
}

// NewService creates a new air quality service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Minute
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 6 * time.Hour
	}
	if staleIfErrorTTL < cacheTTL {
		staleIfErrorTTL = cacheTTL
	}

	store := cfg.Cache
	if store == nil {
		store = cache.NewMemoryStore()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		provider:        cfg.Provider,
		cache:           store,
		flags:           cfg.Flags,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
		now:             now,
	}
}

// NormalizeCity lower-cases a city name and collapses whitespace.
func NormalizeCity(city string) string {
	return strings.Join(strings.Fields(strings.ToLower(city)), " ")
}

// Lookup returns the current AQI for a city. Fresh cached readings are
// returned without contacting the provider.
func (s *Service) Lookup(ctx context.Context, city string) (*Reading, error) {
	key := NormalizeCity(city)
	if key == "" {
		return nil, ErrInvalidCity
	}

	return s.lookup(ctx, "aqi:city:"+key, func(ctx context.Context) (*Reading, error) {
		locations, err := s.provider.Geocode(ctx, city, 1)
		if err != nil {
			return nil, err
		}
		if len(locations) == 0 {
			return nil, ErrCityNotFound
		}
		return s.fetch(ctx, key, locations[0])
	})
}

// LookupAt returns the current AQI for a coordinate, typically one picked
// from Suggest.
func (s *Service) LookupAt(ctx context.Context, lat, lon float64) (*Reading, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrNoData)
	}

	key := fmt.Sprintf("aqi:geo:%.2f,%.2f", lat, lon)
	return s.lookup(ctx, key, func(ctx context.Context) (*Reading, error) {
		return s.fetch(ctx, fmt.Sprintf("%.4f,%.4f", lat, lon), Location{Lat: lat, Lon: lon})
	})
}

// Refresh fetches a city from the provider regardless of the cached state.
func (s *Service) Refresh(ctx context.Context, city string) (*Reading, error) {
	key := NormalizeCity(city)
	if key == "" {
		return nil, ErrInvalidCity
	}

	locations, err := s.provider.Geocode(ctx, city, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if len(locations) == 0 {
		return nil, ErrCityNotFound
	}

	reading, err := s.fetch(ctx, key, locations[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	s.store(ctx, "aqi:city:"+key, reading)
	return reading, nil
}

// Suggest returns up to SuggestLimit places matching a partial query.
// Queries shorter than MinSuggestQueryLength return no suggestions.
func (s *Service) Suggest(ctx context.Context, query string) ([]Location, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinSuggestQueryLength {
		return []Location{}, nil
	}

	locations, err := s.provider.Geocode(ctx, query, SuggestLimit)
	if err != nil {
		s.logger.Warn().Err(err).Str("query", query).Msg("city suggestion lookup failed")
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if locations == nil {
		locations = []Location{}
	}
	return locations, nil
}

// Invalidate drops the cached reading for a city.
func (s *Service) Invalidate(ctx context.Context, city string) error {
	return s.cache.Delete(ctx, "aqi:city:"+NormalizeCity(city))
}

func (s *Service) lookup(ctx context.Context, key string, fetch func(context.Context) (*Reading, error)) (*Reading, error) {
	cached := s.cached(ctx, key)
	if cached != nil && s.now().Before(cached.FetchedAt.Add(s.cacheTTL)) {
		return cached, nil
	}

	if s.flags != nil && s.flags.IsCachedOnlyAirQuality(ctx) {
		if cached != nil {
			cached.Stale = true
			return cached, nil
		}
		return nil, ErrNoCachedData
	}

	reading, err := fetch(ctx)
	if err != nil {
		if errors.Is(err, ErrCityNotFound) {
			return nil, err
		}

		s.logger.Error().Err(err).Str("key", key).Msg("failed to fetch air quality")

		if cached != nil && s.now().Before(cached.FetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", cached.FetchedAt).
				Str("key", key).
				Msg("serving stale air quality data due to provider error")
			cached.Stale = true
			return cached, nil
		}

		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	s.store(ctx, key, reading)

	s.logger.Info().
		Str("key", key).
		Int("aqi", reading.AQI).
		Str("source", string(reading.Source)).
		Msg("air quality refreshed")

	return reading, nil
}

func (s *Service) fetch(ctx context.Context, query string, loc Location) (*Reading, error) {
	pollution, err := s.provider.CurrentPollution(ctx, loc.Lat, loc.Lon)
	if err != nil {
		return nil, err
	}

	aqi, source := FromPollution(pollution)
	return &Reading{
		Query:     query,
		Location:  loc,
		AQI:       aqi,
		Category:  Category(aqi),
		Source:    source,
		PM25:      pollution.PM25,
		Index:     pollution.Index,
		Provider:  s.provider.Name(),
		FetchedAt: s.now(),
	}, nil
}

func (s *Service) cached(ctx context.Context, key string) *Reading {
	var reading Reading
	if err := cache.GetJSON(ctx, s.cache, key, &reading); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("key", key).Msg("air quality cache read failed")
		}
		return nil
	}
	return &reading
}

func (s *Service) store(ctx context.Context, key string, reading *Reading) {
	if err := cache.SetJSON(ctx, s.cache, key, reading, s.staleIfErrorTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("air quality cache write failed")
	}
}
