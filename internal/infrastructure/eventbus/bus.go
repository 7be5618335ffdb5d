// Package eventbus abstracts the durable, topic-addressed publish/subscribe
// channel the platform's services communicate over. Delivery is at-least-once
// with explicit acknowledgment: a consumer that crashes before acking a
// message receives it again after restart, so every consumer must be
// idempotent.
package eventbus

import (
	"context"

	"github.com/flightdeck/backend/internal/domain/shared"
)

// Publisher enqueues change events for all current and future subscribers of
// its topic.
type Publisher interface {
	// Publish encodes and enqueues the event. Events carrying the same
	// EntityID are routed to the same partition so per-entity order is a
	// property of the bus configuration, not something consumers assume.
	Publish(ctx context.Context, event shared.ChangeEvent) error
	Close() error
}

// Delivery is one consumed message together with its acknowledgment token.
// Value is the raw message body; consumers parse it themselves so a body that
// fails to parse can still be acknowledged.
type Delivery struct {
	Topic string
	Key   []byte
	Value []byte

	ack func(ctx context.Context) error
}

// NewDelivery wraps a raw message and its commit function. Exposed for bus
// implementations; consumers only call Ack.
func NewDelivery(topic string, key, value []byte, ack func(ctx context.Context) error) *Delivery {
	return &Delivery{Topic: topic, Key: key, Value: value, ack: ack}
}

// Ack commits the consumer group's position past this message, preventing
// redelivery. Not acking leaves the message eligible for redelivery.
func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Subscription yields messages from one topic for one consumer group, one at
// a time.
type Subscription interface {
	// Fetch blocks until a message is available or ctx is done.
	Fetch(ctx context.Context) (*Delivery, error)
	Close() error
}
