package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/config"
	"github.com/temcen/vocabimg/pkg/models"
)

const (
	CollectionEventsTopic = "image-collection-events"
	publishTimeout        = 10 * time.Second
)

// Envelope is the message value written for each event.
type Envelope struct {
	EventID uuid.UUID              `json:"event_id"`
	Event   models.CollectionEvent `json:"event"`
	SentAt  time.Time              `json:"sent_at"`
}

// Writer is the part of *kafka.Writer the bus needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventBus publishes collection events keyed by item id so every event of
// one item lands on the same partition.
type EventBus struct {
	writer Writer
	topic  string
	logger *logrus.Logger
}

func NewEventBus(cfg config.KafkaConfig, logger *logrus.Logger) *EventBus {
	topic := cfg.Topic
	if topic == "" {
		topic = CollectionEventsTopic
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}
	return NewEventBusWithWriter(writer, topic, logger)
}

func NewEventBusWithWriter(writer Writer, topic string, logger *logrus.Logger) *EventBus {
	return &EventBus{writer: writer, topic: topic, logger: logger}
}

func (b *EventBus) Publish(ctx context.Context, event models.CollectionEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	envelope := Envelope{EventID: uuid.New(), Event: event, SentAt: time.Now()}

	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ItemID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(envelope.EventID.String())},
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "category_id", Value: []byte(event.CategoryID)},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write event to Kafka: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"event_id":   envelope.EventID,
		"event_type": event.Type,
		"item_id":    event.ItemID,
		"topic":      b.topic,
	}).Debug("Collection event published")
	return nil
}

func (b *EventBus) Close() error {
	if err := b.writer.Close(); err != nil {
		return fmt.Errorf("failed to close event writer: %w", err)
	}
	return nil
}

// NopPublisher drops every event. It is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, models.CollectionEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
