package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"rinkside/pkg/config"
	"rinkside/pkg/model"
	"time"

	"github.com/segmentio/kafka-go"
)

// Decision kinds published to the decision topic.
const (
	KindEventCreated   = "event.created"
	KindEventUpdated   = "event.updated"
	KindEventCancelled = "event.cancelled"
	KindSeriesEdited   = "series.edited"
	KindSeriesDeleted  = "series.deleted"
)

// Decision is what the core decided must be communicated. Delivery fan-out
// (email/push/chat) is a downstream consumer's job.
type Decision struct {
	Kind           string           `json:"kind"`
	EventID        string           `json:"event_id"`
	SeriesID       string           `json:"series_id,omitempty"`
	OrganizationID string           `json:"organization_id"`
	Title          string           `json:"title"`
	Window         model.TimeWindow `json:"window"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

// Notifier publishes scheduling decisions. Implementations are best-effort:
// callers log publish failures and never fail the booking because of them.
type Notifier interface {
	Publish(ctx context.Context, decision Decision) error
}

// KafkaNotifier writes decisions to a Kafka topic, keyed by event ID so one
// event's decisions stay ordered within a partition.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(cfg *config.Config) (*KafkaNotifier, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.KafkaDecisionTopic == "" {
		return nil, fmt.Errorf("decision topic cannot be empty")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaDecisionTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(msg string, args ...any) {}),
	}

	return &KafkaNotifier{writer: writer}, nil
}

func (n *KafkaNotifier) Publish(ctx context.Context, decision Decision) error {
	if decision.OccurredAt.IsZero() {
		decision.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(decision.EventID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(decision.Kind)},
		},
	}

	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish decision: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// Nop drops every decision. Used when no brokers are configured and in tests.
type Nop struct{}

func (Nop) Publish(context.Context, Decision) error { return nil }
