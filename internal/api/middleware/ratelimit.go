package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig is a fixed request budget per sliding window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// PerMinute returns a budget of n requests per minute.
func PerMinute(n int) RateLimitConfig {
	return RateLimitConfig{RequestLimit: n, WindowLength: time.Minute}
}

// Budgets by route class.
var (
	// AuthRateLimit covers guest token issuance.
	AuthRateLimit = PerMinute(10)

	// ExpensiveRateLimit covers batch assessments and reports.
	ExpensiveRateLimit = PerMinute(30)

	// AIRateLimit covers routes that may call the language model.
	AIRateLimit = PerMinute(10)

	// StandardRateLimit covers everything else.
	StandardRateLimit = PerMinute(100)
)

// RateLimitByIP limits by client IP (X-Forwarded-For aware).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return rateLimit(cfg, httprate.KeyByRealIP)
}

// RateLimitByUser limits by authenticated user, falling back to the client
// IP for anonymous requests. It must run after Auth.
func RateLimitByUser(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return rateLimit(cfg, func(r *http.Request) (string, error) {
		if userID := GetUserID(r.Context()); userID != "" {
			return "user:" + userID, nil
		}
		return httprate.KeyByRealIP(r)
	})
}

func rateLimit(cfg RateLimitConfig, key httprate.KeyFunc) func(http.Handler) http.Handler {
	// httprate does not expose the window reset, so clients are told to
	// wait a full window.
	retryAfter := strconv.Itoa(max(1, int(cfg.WindowLength.Seconds())))

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			writeProblem(w, r, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
		}),
	)
}
