package cache

import (
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

// Config holds cache backend configuration.
type Config struct {
	// Backend is "memory" or "redis" (default: memory).
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// ConfigFromEnv creates a Config from environment variables. Redis is
// selected whenever REDIS_ADDR is set.
func ConfigFromEnv() Config {
	cfg := Config{
		Backend:       "memory",
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:     getEnvOrDefault("REDIS_KEY_PREFIX", "lungbuddy:"),
	}
	if cfg.RedisAddr != "" {
		cfg.Backend = "redis"
	}
	if db, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		cfg.RedisDB = db
	}
	return cfg
}

// New builds the store selected by cfg.
func New(cfg Config, logger zerolog.Logger) KVStore {
	if cfg.Backend == "redis" && cfg.RedisAddr != "" {
		logger.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("using redis cache")
		return NewRedisStore(NewRedisClient(cfg), cfg.KeyPrefix)
	}
	logger.Info().Msg("using in-memory cache")
	return NewMemoryStore()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
