// Package resilience wraps calls to upstream providers (air quality, LLM)
// with a circuit breaker, per-attempt timeouts and exponential retries.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Trip thresholds used by DefaultReadyToTrip.
const (
	DefaultTripMinRequests  = 5
	DefaultTripFailureRatio = 0.5
)

// CircuitBreakerConfig configures a provider circuit breaker.
type CircuitBreakerConfig struct {
	Name string

	// MaxRequests is the number of probes let through while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts periodically. Zero never clears.
	Interval time.Duration

	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration

	// ReadyToTrip decides when a closed circuit opens. Nil uses DefaultReadyToTrip.
	ReadyToTrip func(counts gobreaker.Counts) bool

	// OnStateChange is called after every transition, after the transition
	// has been logged.
	OnStateChange func(name string, from, to gobreaker.State)

	// Logger receives one line per state transition.
	Logger zerolog.Logger
}

// DefaultCircuitBreakerConfig opens after half of at least five calls fail
// and probes again a minute later.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: DefaultReadyToTrip,
		Logger:      zerolog.Nop(),
	}
}

// DefaultReadyToTrip trips on a failure ratio of DefaultTripFailureRatio
// once DefaultTripMinRequests calls have been counted.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	return TripOnFailureRatio(DefaultTripMinRequests, DefaultTripFailureRatio)(counts)
}

// TripOnFailureRatio builds a ReadyToTrip that waits for minRequests calls
// and then trips when failures reach ratio.
func TripOnFailureRatio(minRequests uint32, ratio float64) func(gobreaker.Counts) bool {
	return func(counts gobreaker.Counts) bool {
		if counts.Requests == 0 || counts.Requests < minRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

// NewCircuitBreaker builds a typed gobreaker from cfg.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	readyToTrip := cfg.ReadyToTrip
	if readyToTrip == nil {
		readyToTrip = DefaultReadyToTrip
	}

	logger := cfg.Logger
	notify := cfg.OnStateChange

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: readyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			event := logger.Info()
			if to == gobreaker.StateOpen {
				event = logger.Warn()
			}
			event.
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit changed state")

			if notify != nil {
				notify(name, from, to)
			}
		},
	})
}
