// Package events publishes domain events to Google Cloud Pub/Sub.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AttrEventType is the message attribute carrying the dotted event type.
const AttrEventType = "event_type"

// Envelope is the JSON body of every published message. JobType is the
// underscore form of the event type so the worker can dispatch on it.
type Envelope struct {
	JobType    string          `json:"job_type"`
	EventID    string          `json:"event_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// JobType converts an event type such as "score.submitted" into the job type
// used on the wire ("score_submitted").
func JobType(eventType string) string {
	return strings.ReplaceAll(eventType, ".", "_")
}

// NewEnvelope wraps a payload for publishing.
func NewEnvelope(eventType string, payload any, now time.Time) (Envelope, error) {
	env := Envelope{
		JobType:    JobType(eventType),
		EventID:    "evt_" + uuid.New().String()[:22],
		OccurredAt: now.UTC(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("encoding %s payload: %w", eventType, err)
		}
		env.Payload = data
	}

	return env, nil
}

// LogPublisher logs events instead of sending them. It is used when Pub/Sub
// is not configured.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a publisher that only logs.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event at debug level.
func (p *LogPublisher) Publish(_ context.Context, eventType string, payload any) error {
	p.logger.Debug().
		Str("event_type", eventType).
		Interface("payload", payload).
		Msg("event not published: pubsub disabled")
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error {
	return nil
}
