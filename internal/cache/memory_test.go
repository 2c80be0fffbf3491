package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lungbuddy/lungbuddy/internal/cache"
)

func TestMemoryStore_GetSet(t *testing.T) {
	store := cache.NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, store.Set(ctx, "k", "v", 0))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.NoError(t, store.Delete(ctx, "k"))
}

func TestMemoryStore_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := cache.NewMemoryStoreWithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

	now = now.Add(59 * time.Second)
	_, err := store.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.Equal(t, 0, store.Len())
}

func TestJSONHelpers(t *testing.T) {
	store := cache.NewMemoryStore()
	ctx := context.Background()

	type payload struct {
		City string `json:"city"`
		AQI  int    `json:"aqi"`
	}

	require.NoError(t, cache.SetJSON(ctx, store, "aqi:paris", payload{City: "Paris", AQI: 42}, time.Hour))

	var got payload
	require.NoError(t, cache.GetJSON(ctx, store, "aqi:paris", &got))
	assert.Equal(t, payload{City: "Paris", AQI: 42}, got)

	require.NoError(t, store.Set(ctx, "broken", "{", 0))
	assert.Error(t, cache.GetJSON(ctx, store, "broken", &got))
	assert.ErrorIs(t, cache.GetJSON(ctx, store, "nope", &got), cache.ErrCacheMiss)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	cfg := cache.ConfigFromEnv()
	assert.Equal(t, "memory", cfg.Backend)
	assert.IsType(t, &cache.MemoryStore{}, cache.New(cfg, zerolog.Nop()))

	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	cfg = cache.ConfigFromEnv()
	assert.Equal(t, "redis", cfg.Backend)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "lungbuddy:", cfg.KeyPrefix)

	store := cache.New(cfg, zerolog.Nop())
	assert.IsType(t, &cache.RedisStore{}, store)
	require.NoError(t, store.(*cache.RedisStore).Close())
}
