package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/lungbuddy/lungbuddy/internal/events"
	"github.com/lungbuddy/lungbuddy/internal/leaderboard"
)

// Job types dispatched by the worker.
const (
	JobAQIRefresh  = "aqi_refresh"
	JobHealthCheck = "health_check"
)

// JobScoreSubmitted is the job type of leaderboard score events.
var JobScoreSubmitted = events.JobType(leaderboard.EventScoreSubmitted)

// ErrUnknownJobType is returned for messages no handler accepts.
var ErrUnknownJobType = errors.New("unknown job type")

// AQIRefreshPayload optionally narrows an aqi_refresh job to some cities.
type AQIRefreshPayload struct {
	Cities []string `json:"cities,omitempty"`
}

// Dispatcher routes job envelopes to their handlers.
type Dispatcher struct {
	refreshJob  *RefreshJob
	insightsJob *InsightsJob
	metrics     *Metrics
	logger      zerolog.Logger
}

// DispatcherConfig holds configuration for the Dispatcher.
type DispatcherConfig struct {
	RefreshJob  *RefreshJob
	InsightsJob *InsightsJob
	Metrics     *Metrics
	Logger      zerolog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		refreshJob:  cfg.RefreshJob,
		insightsJob: cfg.InsightsJob,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// Process decodes and runs one message body. It reports whether the message
// should be acknowledged: successes and unknown job types are acked so they
// are not redelivered, failures are nacked for retry.
func (d *Dispatcher) Process(ctx context.Context, data []byte) bool {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		d.logger.Error().Err(err).Msg("failed to parse message")
		d.metrics.ObserveJob("invalid", "failure")
		return false
	}

	logger := d.logger.With().
		Str("job_type", env.JobType).
		Str("event_id", env.EventID).
		Logger()

	start := time.Now()
	err := d.Dispatch(ctx, env)
	switch {
	case errors.Is(err, ErrUnknownJobType):
		logger.Warn().Msg("unknown job type")
		d.metrics.ObserveJob("unknown", "ignored")
		return true
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		d.metrics.ObserveJob(env.JobType, "failure")
		return false
	}

	logger.Info().Dur("duration", time.Since(start)).Msg("job completed successfully")
	d.metrics.ObserveJob(env.JobType, "success")
	return true
}

// Dispatch runs the handler for an envelope's job type.
func (d *Dispatcher) Dispatch(ctx context.Context, env events.Envelope) error {
	switch env.JobType {
	case JobAQIRefresh:
		return d.handleAQIRefresh(ctx, env.Payload)
	case JobScoreSubmitted:
		return d.handleScoreSubmitted(ctx, env.Payload)
	case JobHealthCheck:
		return d.handleHealthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, env.JobType)
	}
}

func (d *Dispatcher) handleAQIRefresh(ctx context.Context, payload json.RawMessage) error {
	if d.refreshJob == nil {
		return errors.New("aqi refresh job not configured")
	}

	var p AQIRefreshPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decoding aqi refresh payload: %w", err)
		}
	}

	cities := p.Cities
	if len(cities) == 0 {
		cities = d.refreshJob.Cities()
	}
	result := d.refreshJob.RunCities(ctx, cities)

	// Consider it successful if at least half succeeded.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.TotalCities)
	}
	return nil
}

func (d *Dispatcher) handleScoreSubmitted(ctx context.Context, payload json.RawMessage) error {
	if d.insightsJob == nil {
		return errors.New("insights job not configured")
	}

	var event leaderboard.ScoreSubmitted
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decoding score submitted payload: %w", err)
	}
	return d.insightsJob.HandleScoreSubmitted(ctx, event)
}

func (d *Dispatcher) handleHealthCheck(ctx context.Context) error {
	if d.refreshJob == nil {
		return nil
	}

	cities := d.refreshJob.Cities()
	if len(cities) == 0 {
		return nil
	}

	// A single city is enough to verify provider connectivity.
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result := d.refreshJob.RunCities(ctx, cities[:1])
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %s", result.Cities[0].Error)
	}
	return nil
}

// PubSubHandler receives job messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.logger.Debug().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Msg("received pubsub message")

		if h.dispatcher.Process(ctx, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}
