package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lungbuddy/lungbuddy/internal/advice"
	"github.com/lungbuddy/lungbuddy/internal/events"
	"github.com/lungbuddy/lungbuddy/internal/leaderboard"
	"github.com/lungbuddy/lungbuddy/internal/worker"
)

type fakeStandings struct {
	standings []leaderboard.Standing
	err       error
	rooms     []string
}

func (f *fakeStandings) Standings(_ context.Context, roomID string) ([]leaderboard.Standing, error) {
	f.rooms = append(f.rooms, roomID)
	return f.standings, f.err
}

type fakeInsights struct {
	err         error
	refreshed   []string
	invalidated []string
}

func (f *fakeInsights) RefreshRoomInsights(_ context.Context, roomID string, _ []leaderboard.Standing) (*advice.RoomInsights, error) {
	f.refreshed = append(f.refreshed, roomID)
	if f.err != nil {
		return nil, f.err
	}
	return &advice.RoomInsights{RoomID: roomID, Insights: []advice.Insight{{Name: "Sam", Tip: "Keep going"}}}, nil
}

func (f *fakeInsights) InvalidateRoomInsights(_ context.Context, roomID string) error {
	f.invalidated = append(f.invalidated, roomID)
	return nil
}

func envelope(t *testing.T, eventType string, payload any) []byte {
	t.Helper()
	env, err := events.NewEnvelope(eventType, payload, time.Now())
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return data
}

type dispatcherEnv struct {
	dispatcher *worker.Dispatcher
	refresher  *fakeRefresher
	standings  *fakeStandings
	insights   *fakeInsights
	registry   *prometheus.Registry
}

func newDispatcherEnv(t *testing.T) *dispatcherEnv {
	t.Helper()

	env := &dispatcherEnv{
		refresher: &fakeRefresher{failures: map[string]error{}},
		standings: &fakeStandings{standings: []leaderboard.Standing{{Rank: 1, Member: &leaderboard.Member{UserID: "u1"}}}},
		insights:  &fakeInsights{},
		registry:  prometheus.NewRegistry(),
	}
	metrics := worker.NewMetrics(env.registry)

	env.dispatcher = worker.NewDispatcher(worker.DispatcherConfig{
		RefreshJob: worker.NewRefreshJob(worker.RefreshJobConfig{
			Config:    worker.Config{AQICities: []string{"Delhi", "London"}, Concurrency: 2, Timeout: time.Second},
			Logger:    zerolog.Nop(),
			Refresher: env.refresher,
			Metrics:   metrics,
		}),
		InsightsJob: worker.NewInsightsJob(env.standings, env.insights, zerolog.Nop()),
		Metrics:     metrics,
		Logger:      zerolog.Nop(),
	})
	return env
}

func TestJobScoreSubmitted(t *testing.T) {
	assert.Equal(t, "score_submitted", worker.JobScoreSubmitted)
}

func TestDispatcher_AQIRefresh(t *testing.T) {
	env := newDispatcherEnv(t)

	ack := env.dispatcher.Process(context.Background(), envelope(t, "aqi.refresh", nil))

	assert.True(t, ack)
	assert.ElementsMatch(t, []string{"Delhi", "London"}, env.refresher.Calls())
}

func TestDispatcher_AQIRefresh_PayloadCities(t *testing.T) {
	env := newDispatcherEnv(t)

	ack := env.dispatcher.Process(context.Background(),
		envelope(t, "aqi.refresh", worker.AQIRefreshPayload{Cities: []string{"Tokyo"}}))

	assert.True(t, ack)
	assert.Equal(t, []string{"Tokyo"}, env.refresher.Calls())
}

func TestDispatcher_AQIRefresh_MostlyFailedNacks(t *testing.T) {
	env := newDispatcherEnv(t)
	env.refresher.failures["Delhi"] = errors.New("provider down")
	env.refresher.failures["London"] = errors.New("provider down")

	ack := env.dispatcher.Process(context.Background(), envelope(t, "aqi.refresh", nil))

	assert.False(t, ack)
}

func TestDispatcher_ScoreSubmitted(t *testing.T) {
	env := newDispatcherEnv(t)

	ack := env.dispatcher.Process(context.Background(), envelope(t, leaderboard.EventScoreSubmitted, leaderboard.ScoreSubmitted{
		RoomID:       "room-1",
		UserID:       "u1",
		SubmissionID: "sub-1",
		Score:        80,
	}))

	assert.True(t, ack)
	assert.Equal(t, []string{"room-1"}, env.standings.rooms)
	assert.Equal(t, []string{"room-1"}, env.insights.refreshed)
	assert.Empty(t, env.insights.invalidated)
}

func TestDispatcher_ScoreSubmitted_AIDisabledInvalidates(t *testing.T) {
	env := newDispatcherEnv(t)
	env.insights.err = advice.ErrAIDisabled

	ack := env.dispatcher.Process(context.Background(), envelope(t, leaderboard.EventScoreSubmitted, leaderboard.ScoreSubmitted{RoomID: "room-1"}))

	assert.True(t, ack)
	assert.Equal(t, []string{"room-1"}, env.insights.invalidated)
}

func TestDispatcher_ScoreSubmitted_GeneratorFailureNacks(t *testing.T) {
	env := newDispatcherEnv(t)
	env.insights.err = errors.New("groq: 503")

	ack := env.dispatcher.Process(context.Background(), envelope(t, leaderboard.EventScoreSubmitted, leaderboard.ScoreSubmitted{RoomID: "room-1"}))

	assert.False(t, ack)
}

func TestDispatcher_ScoreSubmitted_RoomGoneAcks(t *testing.T) {
	env := newDispatcherEnv(t)
	env.standings.err = leaderboard.ErrRoomNotFound

	ack := env.dispatcher.Process(context.Background(), envelope(t, leaderboard.EventScoreSubmitted, leaderboard.ScoreSubmitted{RoomID: "gone"}))

	assert.True(t, ack)
	assert.Empty(t, env.insights.refreshed)
}

func TestDispatcher_ScoreSubmitted_MissingRoomNacks(t *testing.T) {
	env := newDispatcherEnv(t)

	ack := env.dispatcher.Process(context.Background(), envelope(t, leaderboard.EventScoreSubmitted, leaderboard.ScoreSubmitted{}))

	assert.False(t, ack)
}

func TestDispatcher_HealthCheck(t *testing.T) {
	env := newDispatcherEnv(t)

	assert.True(t, env.dispatcher.Process(context.Background(), envelope(t, "health.check", nil)))
	assert.Equal(t, []string{"Delhi"}, env.refresher.Calls())

	env.refresher.failures["Delhi"] = errors.New("provider down")
	assert.False(t, env.dispatcher.Process(context.Background(), envelope(t, "health.check", nil)))
}

func TestDispatcher_UnknownJobAcks(t *testing.T) {
	env := newDispatcherEnv(t)

	ack := env.dispatcher.Process(context.Background(), []byte(`{"job_type":"provider_refresh"}`))

	assert.True(t, ack)
	err := env.dispatcher.Dispatch(context.Background(), events.Envelope{JobType: "provider_refresh"})
	assert.ErrorIs(t, err, worker.ErrUnknownJobType)
}

func TestDispatcher_MalformedMessageNacks(t *testing.T) {
	env := newDispatcherEnv(t)

	assert.False(t, env.dispatcher.Process(context.Background(), []byte(`not json`)))
}

func TestDispatcher_JobMetrics(t *testing.T) {
	env := newDispatcherEnv(t)

	env.dispatcher.Process(context.Background(), envelope(t, "health.check", nil))
	env.dispatcher.Process(context.Background(), []byte(`{"job_type":"nope"}`))

	expected := `
# HELP lungbuddy_worker_jobs_total Pub/Sub jobs handled by job type and outcome.
# TYPE lungbuddy_worker_jobs_total counter
lungbuddy_worker_jobs_total{job_type="health_check",outcome="success"} 1
lungbuddy_worker_jobs_total{job_type="unknown",outcome="ignored"} 1
`
	require.NoError(t, testutil.GatherAndCompare(env.registry, strings.NewReader(expected), "lungbuddy_worker_jobs_total"))
}
