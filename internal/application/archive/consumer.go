package archive

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/flightdeck/backend/internal/domain/shared"
	"github.com/flightdeck/backend/internal/infrastructure/eventbus"
	"github.com/flightdeck/backend/internal/infrastructure/telemetry"
)

const ackTimeout = 5 * time.Second

// Consumer drains flight change events into the ledger. Like every consumer
// on the bus it acknowledges unconditionally: duplicates, transform failures
// and persistence failures are all terminal for the delivery. The dropped
// counters are the only trace a failed record leaves, so they are not
// optional in production wiring.
type Consumer struct {
	sub     eventbus.Subscription
	ledger  *Ledger
	metrics *telemetry.ConsumerMetrics
	logger  *zap.Logger
}

// ConsumerOption is a functional option for Consumer
type ConsumerOption func(*Consumer)

// WithConsumerMetrics attaches consumer metrics to the consumer.
func WithConsumerMetrics(metrics *telemetry.ConsumerMetrics) ConsumerOption {
	return func(c *Consumer) {
		c.metrics = metrics
	}
}

// NewConsumer creates a consumer feeding the ledger from sub.
func NewConsumer(sub eventbus.Subscription, ledger *Ledger, logger *zap.Logger, opts ...ConsumerOption) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Consumer{
		sub:    sub,
		ledger: ledger,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		delivery, err := c.sub.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return err
		}
		if err := c.handle(ctx, delivery); err != nil {
			return err
		}
	}
}

// handle ingests one delivery and always acks it.
func (c *Consumer) handle(ctx context.Context, delivery *eventbus.Delivery) error {
	var event shared.ChangeEvent
	if err := json.Unmarshal(delivery.Value, &event); err != nil {
		c.logger.Warn("dropping undecodable flight event",
			zap.String("topic", delivery.Topic),
			zap.Error(err))
		c.recordDropped(ctx, delivery.Topic, "malformed")
		return c.ack(ctx, delivery)
	}
	if err := event.Validate(); err != nil {
		c.logger.Warn("dropping invalid flight event envelope",
			zap.String("topic", delivery.Topic),
			zap.Error(err))
		c.recordDropped(ctx, delivery.Topic, "malformed")
		return c.ack(ctx, delivery)
	}

	outcome, err := c.ledger.Ingest(ctx, event)
	if err != nil {
		c.logger.Error("dropping flight event after persistence failure",
			zap.String("topic", delivery.Topic),
			zap.String("event_id", event.EventID.String()),
			zap.Error(err))
		c.recordDropped(ctx, delivery.Topic, "persist_failed")
		return c.ack(ctx, delivery)
	}

	switch outcome {
	case OutcomePersisted:
		if c.metrics != nil {
			c.metrics.RecordProcessed(ctx, delivery.Topic, event.EventType)
		}
	case OutcomeDuplicate:
		if c.metrics != nil {
			c.metrics.RecordDuplicate(ctx, delivery.Topic)
		}
	case OutcomeTransformError:
		c.recordDropped(ctx, delivery.Topic, "transform_failed")
	}

	return c.ack(ctx, delivery)
}

func (c *Consumer) ack(ctx context.Context, delivery *eventbus.Delivery) error {
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := delivery.Ack(ackCtx); err != nil {
		c.logger.Warn("failed to ack delivery",
			zap.String("topic", delivery.Topic),
			zap.Error(err))
	}
	return nil
}

func (c *Consumer) recordDropped(ctx context.Context, topic, reason string) {
	if c.metrics != nil {
		c.metrics.RecordDropped(ctx, topic, reason)
	}
}
