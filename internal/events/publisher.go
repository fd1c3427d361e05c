package events

import (
	"context"
	"time"

	"hermes/internal/adapters/kafka"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// InvocationEvent is the lifecycle record emitted for every finished
// invocation. Error carries only the classified message, never secrets.
type InvocationEvent struct {
	Type             string    `json:"type"`
	InvocationID     string    `json:"invocation_id"`
	ActionID         string    `json:"action_id"`
	RecordModel      string    `json:"record_model"`
	RecordID         string    `json:"record_id"`
	Provider         string    `json:"provider,omitempty"`
	Model            string    `json:"model,omitempty"`
	PromptTokens     int       `json:"prompt_tokens,omitempty"`
	CompletionTokens int       `json:"completion_tokens,omitempty"`
	CostUSD          float64   `json:"cost_usd,omitempty"`
	Attempts         int       `json:"attempts"`
	DurationMs       int64     `json:"duration_ms"`
	Error            string    `json:"error,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Publisher emits invocation lifecycle events.
type Publisher interface {
	PublishInvocation(ctx context.Context, event InvocationEvent) error
}

// KafkaPublisher publishes events to Kafka.
type KafkaPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewKafkaPublisher creates a Kafka-backed event publisher.
func NewKafkaPublisher(producer *kafka.Producer, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		log:      log,
	}
}

// PublishInvocation publishes one lifecycle event, keyed by invocation ID
// so consumers can dedupe.
func (p *KafkaPublisher) PublishInvocation(ctx context.Context, event InvocationEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := p.producer.Publish(ctx, TopicInvocationEvents, event.InvocationID, event); err != nil {
		p.log.Errorw("failed to publish invocation event",
			"type", event.Type,
			"invocation_id", event.InvocationID,
			"error", err,
		)
		return errors.Wrap(err, "send to kafka")
	}

	p.log.Debugw("invocation event published",
		"type", event.Type,
		"invocation_id", event.InvocationID,
	)
	return nil
}

// NoopPublisher drops all events. Used when Kafka is not configured.
type NoopPublisher struct{}

// NewNoopPublisher creates a publisher that discards events.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// PublishInvocation discards the event.
func (p *NoopPublisher) PublishInvocation(_ context.Context, _ InvocationEvent) error {
	return nil
}
