package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// sendFunc publishes one message and waits for the server id.
type sendFunc func(ctx context.Context, msg *pubsub.Message) (string, error)

// PubSubPublisher publishes events to a Pub/Sub topic.
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	send      sendFunc
	topic     string
	timeout   time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// PubSubConfig holds configuration for the publisher.
type PubSubConfig struct {
	ProjectID string
	Topic     string

	// Timeout bounds each publish call. Default: 10 seconds.
	Timeout time.Duration

	Logger zerolog.Logger
}

// NewPubSubPublisher creates a Pub/Sub client and a publisher for the topic.
func NewPubSubPublisher(ctx context.Context, cfg PubSubConfig) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	publisher := client.Publisher(cfg.Topic)

	p := newPublisher(func(ctx context.Context, msg *pubsub.Message) (string, error) {
		return publisher.Publish(ctx, msg).Get(ctx)
	}, cfg)
	p.client = client
	p.publisher = publisher
	return p, nil
}

func newPublisher(send sendFunc, cfg PubSubConfig) *PubSubPublisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &PubSubPublisher{
		send:    send,
		topic:   cfg.Topic,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

// Publish sends an event and waits until the server acknowledges it.
func (p *PubSubPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	env, err := NewEnvelope(eventType, payload, p.now())
	if err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	id, err := p.send(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{AttrEventType: eventType},
	})
	if err != nil {
		return fmt.Errorf("publishing %s to %s: %w", eventType, p.topic, err)
	}

	p.logger.Debug().
		Str("event_type", eventType).
		Str("event_id", env.EventID).
		Str("message_id", id).
		Msg("event published")

	return nil
}

// Close flushes pending messages and closes the client.
func (p *PubSubPublisher) Close() error {
	if p.publisher != nil {
		p.publisher.Stop()
	}
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
