package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/flightdeck/backend/internal/domain/shared"
)

// KafkaConfig holds the connection settings shared by publishers and
// subscriptions.
type KafkaConfig struct {
	Brokers     []string
	StartOffset string        // earliest (default) or latest
	MaxWait     time.Duration // max time the reader waits for a batch
}

// KafkaPublisher writes change events to one topic. The Hash balancer keyed
// by EntityID keeps all events for one entity on one partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher for the given topic.
func NewKafkaPublisher(cfg KafkaConfig, topic string, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, event shared.ChangeEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.EventID, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.EntityID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to write event %s: %w", event.EventID, err)
	}

	p.logger.Debug("event published",
		zap.String("topic", p.writer.Topic),
		zap.String("event_id", event.EventID.String()),
		zap.String("event_type", event.EventType),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaSubscription consumes one topic for one consumer group with manual
// offset commits: FetchMessage hands out messages without committing, and the
// Delivery's Ack commits them. Unacked messages are redelivered to the group
// after a rebalance or restart.
type KafkaSubscription struct {
	reader *kafka.Reader
	topic  string
}

// NewKafkaSubscription creates a subscription for topic/groupID.
func NewKafkaSubscription(cfg KafkaConfig, topic, groupID string) *KafkaSubscription {
	startOffset := kafka.FirstOffset
	if strings.EqualFold(strings.TrimSpace(cfg.StartOffset), "latest") {
		startOffset = kafka.LastOffset
	}

	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = time.Second
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     maxWait,
		StartOffset: startOffset,
		Dialer: &kafka.Dialer{
			Timeout: 10 * time.Second,
		},
	})
	return &KafkaSubscription{reader: r, topic: topic}
}

// Fetch implements Subscription.
func (s *KafkaSubscription) Fetch(ctx context.Context) (*Delivery, error) {
	msg, err := s.reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message from %s: %w", s.topic, err)
	}

	return NewDelivery(s.topic, msg.Key, msg.Value, func(ackCtx context.Context) error {
		return s.reader.CommitMessages(ackCtx, msg)
	}), nil
}

// Close closes the underlying reader.
func (s *KafkaSubscription) Close() error {
	return s.reader.Close()
}

// Compile-time interface checks
var (
	_ Publisher    = (*KafkaPublisher)(nil)
	_ Subscription = (*KafkaSubscription)(nil)
)
