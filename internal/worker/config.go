// Package worker provides background job processing for LungBuddy.
package worker

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration for the worker jobs.
type Config struct {
	// AQICities are the cities whose air quality is kept warm in the cache.
	// If empty, uses DefaultAQICities.
	AQICities []string

	// AQISchedule is the cron spec for the AQI warm-up.
	// Default: "@every 30m"
	AQISchedule string

	// Concurrency is the number of concurrent city refreshes.
	// Default: 3
	Concurrency int

	// Timeout bounds each city refresh.
	// Default: 30 seconds
	Timeout time.Duration

	// ProjectID and Subscription identify the Pub/Sub job subscription.
	// The subscriber is disabled when either is empty.
	ProjectID    string
	Subscription string
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		AQICities:   DefaultAQICities(),
		AQISchedule: "@every 30m",
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultAQICities returns the cities warmed when none are configured.
func DefaultAQICities() []string {
	return []string{
		"Delhi",
		"Mumbai",
		"Beijing",
		"London",
		"New York",
		"Los Angeles",
		"Paris",
		"Tokyo",
	}
}

// ConfigFromEnv creates a worker configuration from environment variables.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if cities := parseList(os.Getenv("WORKER_AQI_CITIES")); len(cities) > 0 {
		cfg.AQICities = cities
	}
	cfg.AQISchedule = getEnvOrDefault("WORKER_AQI_SCHEDULE", cfg.AQISchedule)

	if n, err := strconv.Atoi(os.Getenv("WORKER_CONCURRENCY")); err == nil && n > 0 {
		cfg.Concurrency = n
	}
	if d, err := time.ParseDuration(os.Getenv("WORKER_TIMEOUT")); err == nil && d > 0 {
		cfg.Timeout = d
	}

	cfg.ProjectID = os.Getenv("PUBSUB_PROJECT_ID")
	cfg.Subscription = os.Getenv("PUBSUB_SUBSCRIPTION")

	return cfg
}

// PubSubEnabled reports whether a job subscription is configured.
func (c Config) PubSubEnabled() bool {
	return c.ProjectID != "" && c.Subscription != ""
}

// parseList splits a comma-separated list, dropping blanks and duplicates.
func parseList(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		key := strings.ToLower(part)
		if part == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, part)
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
