package featureflags_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lungbuddy/lungbuddy/internal/featureflags"
)

// countingRepo wraps a repository, counting reloads and optionally failing.
type countingRepo struct {
	*featureflags.InMemoryRepository
	loads atomic.Int32
	fail  atomic.Bool
}

func (r *countingRepo) Overrides(ctx context.Context) (map[string]*featureflags.Flag, error) {
	r.loads.Add(1)
	if r.fail.Load() {
		return nil, errors.New("connection refused")
	}
	return r.InMemoryRepository.Overrides(ctx)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newService(t *testing.T, overrides ...*featureflags.Flag) (*featureflags.Service, *countingRepo, *clock) {
	t.Helper()
	repo := &countingRepo{InMemoryRepository: featureflags.NewInMemoryRepository(overrides...)}
	clk := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc := featureflags.NewService(featureflags.ServiceConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
		CacheTTL:   time.Minute,
		Now:        clk.now,
	})
	return svc, repo, clk
}

func TestService_Defaults(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	assert.True(t, svc.IsAIAdviceEnabled(ctx))
	assert.True(t, svc.IsRoomInsightsEnabled(ctx))
	assert.False(t, svc.IsCachedOnlyAirQuality(ctx))
	assert.False(t, svc.AreSubmissionsDisabled(ctx))
	assert.Equal(t, 24*time.Hour, svc.SubmissionCooldown(ctx))
	assert.Equal(t, featureflags.DefaultBatchLimit, svc.BatchLimit(ctx))

	assert.Nil(t, svc.GetFlag(ctx, "no_such_flag"))
	assert.False(t, svc.IsEnabled(ctx, "no_such_flag"))
	assert.Len(t, svc.GetAllFlags(ctx), len(featureflags.DefaultFlags()))
}

func TestService_OverridesApply(t *testing.T) {
	svc, _, _ := newService(t,
		&featureflags.Flag{Key: featureflags.FlagAIAdvice, Value: false},
		&featureflags.Flag{Key: featureflags.FlagSubmissionCooldownHours, Value: 1.5},
	)
	ctx := context.Background()

	assert.False(t, svc.IsAIAdviceEnabled(ctx))
	assert.Equal(t, 90*time.Minute, svc.SubmissionCooldown(ctx))

	all := svc.GetAllFlags(ctx)
	assert.Equal(t, false, all[featureflags.FlagAIAdvice].Value)
	assert.Equal(t, true, all[featureflags.FlagRoomInsights].Value)
}

func TestService_NumericFlagBounds(t *testing.T) {
	tests := []struct {
		name     string
		cooldown float64
		batch    float64
		wantCool time.Duration
		wantMax  int
	}{
		{"negative cooldown means none", -3, 50, 0, 50},
		{"zero batch falls back", 12, 0, 12 * time.Hour, featureflags.DefaultBatchLimit},
		{"fractional batch truncates", 0, 10.9, 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newService(t,
				&featureflags.Flag{Key: featureflags.FlagSubmissionCooldownHours, Value: tt.cooldown},
				&featureflags.Flag{Key: featureflags.FlagBatchLimit, Value: tt.batch},
			)
			assert.Equal(t, tt.wantCool, svc.SubmissionCooldown(context.Background()))
			assert.Equal(t, tt.wantMax, svc.BatchLimit(context.Background()))
		})
	}
}

func TestService_SnapshotReuse(t *testing.T) {
	svc, repo, clk := newService(t)
	ctx := context.Background()

	svc.IsAIAdviceEnabled(ctx)
	svc.BatchLimit(ctx)
	svc.GetAllFlags(ctx)
	assert.Equal(t, int32(1), repo.loads.Load())

	clk.advance(2 * time.Minute)
	svc.IsAIAdviceEnabled(ctx)
	assert.Equal(t, int32(2), repo.loads.Load())

	svc.InvalidateCache()
	svc.IsAIAdviceEnabled(ctx)
	assert.Equal(t, int32(3), repo.loads.Load())
}

func TestService_SetFlagsVisibleImmediately(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	require.False(t, svc.AreSubmissionsDisabled(ctx))

	flags := []*featureflags.Flag{
		{Key: featureflags.FlagDisableSubmissions, Value: true},
		{Key: featureflags.FlagCachedOnlyAirQuality, Value: true},
	}
	require.NoError(t, svc.SetFlags(ctx, flags))

	assert.True(t, svc.AreSubmissionsDisabled(ctx))
	assert.True(t, svc.IsCachedOnlyAirQuality(ctx))
	assert.False(t, flags[0].UpdatedAt.IsZero())
}

func TestService_ResetFlag(t *testing.T) {
	svc, _, _ := newService(t, &featureflags.Flag{Key: featureflags.FlagDisableSubmissions, Value: true})
	ctx := context.Background()
	require.True(t, svc.AreSubmissionsDisabled(ctx))

	require.NoError(t, svc.ResetFlag(ctx, featureflags.FlagDisableSubmissions))
	assert.False(t, svc.AreSubmissionsDisabled(ctx))

	// No override left; resetting again is a no-op.
	assert.NoError(t, svc.ResetFlag(ctx, featureflags.FlagDisableSubmissions))
}

func TestService_RepositoryFailure(t *testing.T) {
	svc, repo, clk := newService(t, &featureflags.Flag{Key: featureflags.FlagAIAdvice, Value: false})
	ctx := context.Background()
	require.False(t, svc.IsAIAdviceEnabled(ctx))

	repo.fail.Store(true)
	clk.advance(2 * time.Minute)
	assert.False(t, svc.IsAIAdviceEnabled(ctx), "last known overrides keep applying")

	cold, coldRepo, _ := newService(t, &featureflags.Flag{Key: featureflags.FlagAIAdvice, Value: false})
	coldRepo.fail.Store(true)
	assert.True(t, cold.IsAIAdviceEnabled(ctx), "defaults apply before the first load")
	cold.IsAIAdviceEnabled(ctx)
	assert.Equal(t, int32(2), coldRepo.loads.Load(), "failed loads are retried")
}

func TestFlagUpdate_Validate(t *testing.T) {
	tests := []struct {
		name    string
		update  featureflags.FlagUpdate
		wantErr error
	}{
		{"bool", featureflags.FlagUpdate{Key: featureflags.FlagAIAdvice, Value: false}, nil},
		{"number", featureflags.FlagUpdate{Key: featureflags.FlagBatchLimit, Value: 20.0}, nil},
		{"unknown key", featureflags.FlagUpdate{Key: "dark_mode", Value: true}, featureflags.ErrUnknownFlag},
		{"string for bool", featureflags.FlagUpdate{Key: featureflags.FlagAIAdvice, Value: "yes"}, featureflags.ErrInvalidFlagValue},
		{"bool for number", featureflags.FlagUpdate{Key: featureflags.FlagBatchLimit, Value: true}, featureflags.ErrInvalidFlagValue},
		{"null", featureflags.FlagUpdate{Key: featureflags.FlagAIAdvice}, featureflags.ErrInvalidFlagValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.update.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFlag_Accessors(t *testing.T) {
	var missing *featureflags.Flag
	assert.True(t, missing.BoolValue(true))
	assert.Equal(t, 7, missing.IntValue(7))
	assert.InDelta(t, 2.5, missing.Float64Value(2.5), 0)

	num := &featureflags.Flag{Value: 3.0}
	assert.True(t, num.BoolValue(false))
	assert.Equal(t, 3, num.IntValue(0))

	str := &featureflags.Flag{Value: "on"}
	assert.False(t, str.BoolValue(false))
	assert.Equal(t, 5, str.IntValue(5))
}

func TestInMemoryRepository_Delete(t *testing.T) {
	repo := featureflags.NewInMemoryRepository(&featureflags.Flag{Key: featureflags.FlagAIAdvice, Value: false})
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, featureflags.FlagAIAdvice))
	assert.ErrorIs(t, repo.Delete(ctx, featureflags.FlagAIAdvice), featureflags.ErrFlagNotFound)

	overrides, err := repo.Overrides(ctx)
	require.NoError(t, err)
	assert.Empty(t, overrides)
}
