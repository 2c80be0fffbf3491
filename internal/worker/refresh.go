package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lungbuddy/lungbuddy/internal/airquality"
)

// AQIRefresher fetches a city's air quality and stores it in the cache.
type AQIRefresher interface {
	Refresh(ctx context.Context, city string) (*airquality.Reading, error)
}

// RefreshJob warms the AQI cache for a set of cities.
type RefreshJob struct {
	config    Config
	logger    zerolog.Logger
	refresher AQIRefresher
	metrics   *Metrics

	stats *RefreshStats
}

// RefreshStats tracks refresh job statistics across runs.
type RefreshStats struct {
	mu sync.RWMutex

	TotalRuns         int64
	SuccessfulRefresh int64
	FailedRefreshes   int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	TotalDuration       time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config    Config
	Logger    zerolog.Logger
	Refresher AQIRefresher
	Metrics   *Metrics
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	defaults := DefaultConfig()
	if len(config.AQICities) == 0 {
		config.AQICities = defaults.AQICities
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &RefreshJob{
		config:    config,
		logger:    cfg.Logger,
		refresher: cfg.Refresher,
		metrics:   cfg.Metrics,
		stats:     &RefreshStats{},
	}
}

// Cities returns the cities the job refreshes by default.
func (j *RefreshJob) Cities() []string {
	return append([]string(nil), j.config.AQICities...)
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalCities int
	Successful  int
	Failed      int
	Cities      []CityResult
}

// CityResult is the outcome of refreshing one city.
type CityResult struct {
	City     string        `json:"city"`
	AQI      int           `json:"aqi,omitempty"`
	Category string        `json:"category,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the city was refreshed.
func (r CityResult) OK() bool {
	return r.Error == ""
}

// Run refreshes every configured city.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	return j.RunCities(ctx, j.config.AQICities)
}

// RunCities refreshes the given cities with bounded concurrency. Results keep
// the order of cities.
func (j *RefreshJob) RunCities(ctx context.Context, cities []string) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{
		StartTime:   startTime,
		TotalCities: len(cities),
		Cities:      make([]CityResult, len(cities)),
	}

	j.logger.Info().
		Int("total_cities", result.TotalCities).
		Int("concurrency", j.config.Concurrency).
		Msg("starting aqi refresh job")

	type task struct {
		index int
		city  string
	}

	tasks := make(chan task, len(cities))
	for i, city := range cities {
		tasks <- task{index: i, city: city}
	}
	close(tasks)

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				if ctx.Err() != nil {
					result.Cities[t.index] = CityResult{City: t.city, Error: ctx.Err().Error()}
					continue
				}
				result.Cities[t.index] = j.refreshCity(ctx, t.city)
			}
		}()
	}
	wg.Wait()

	for _, cr := range result.Cities {
		if cr.OK() {
			result.Successful++
		} else {
			result.Failed++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateStats(result)
	j.metrics.ObserveRefresh(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("aqi refresh job completed")

	return result
}

func (j *RefreshJob) refreshCity(ctx context.Context, city string) CityResult {
	start := time.Now()
	res := CityResult{City: city}

	if j.refresher == nil {
		res.Error = "air quality service not configured"
		return res
	}

	cityCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	reading, err := j.refresher.Refresh(cityCtx, city)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		j.logger.Warn().Err(err).Str("city", city).Msg("aqi refresh failed")
		return res
	}

	res.AQI = reading.AQI
	res.Category = reading.Category
	j.logger.Debug().
		Str("city", city).
		Int("aqi", reading.AQI).
		Dur("duration", res.Duration).
		Msg("aqi refreshed")
	return res
}

func (j *RefreshJob) updateStats(result *RefreshResult) {
	j.stats.mu.Lock()
	defer j.stats.mu.Unlock()

	j.stats.TotalRuns++
	j.stats.SuccessfulRefresh += int64(result.Successful)
	j.stats.FailedRefreshes += int64(result.Failed)
	j.stats.LastRefreshAt = result.EndTime
	j.stats.LastRefreshDuration = result.Duration
	j.stats.TotalDuration += result.Duration
}

// GetStats returns a copy of the current statistics.
func (j *RefreshJob) GetStats() RefreshStats {
	j.stats.mu.RLock()
	defer j.stats.mu.RUnlock()

	return RefreshStats{
		TotalRuns:           j.stats.TotalRuns,
		SuccessfulRefresh:   j.stats.SuccessfulRefresh,
		FailedRefreshes:     j.stats.FailedRefreshes,
		LastRefreshAt:       j.stats.LastRefreshAt,
		LastRefreshDuration: j.stats.LastRefreshDuration,
		TotalDuration:       j.stats.TotalDuration,
	}
}

// StatsSnapshot returns a snapshot of the current statistics as a map.
func (j *RefreshJob) StatsSnapshot() map[string]interface{} {
	s := j.GetStats()
	return map[string]interface{}{
		"total_runs":            s.TotalRuns,
		"successful_refreshes":  s.SuccessfulRefresh,
		"failed_refreshes":      s.FailedRefreshes,
		"last_refresh_at":       s.LastRefreshAt,
		"last_refresh_duration": s.LastRefreshDuration.String(),
		"total_duration":        s.TotalDuration.String(),
	}
}
