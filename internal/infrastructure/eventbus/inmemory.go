package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/flightdeck/backend/internal/domain/shared"
)

// InMemoryBus implements the bus contracts in process memory with the same
// observable semantics as the Kafka implementation: per-group committed
// offsets, and redelivery of unacknowledged messages when a group
// re-subscribes. Used by tests and local development.
type InMemoryBus struct {
	mu        sync.Mutex
	topics    map[string][]storedMessage
	committed map[string]int // topic/group -> committed offset
	waiters   map[string][]chan struct{}
}

type storedMessage struct {
	key   []byte
	value []byte
}

// NewInMemoryBus creates an empty bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		topics:    make(map[string][]storedMessage),
		committed: make(map[string]int),
		waiters:   make(map[string][]chan struct{}),
	}
}

// PublishRaw appends an arbitrary message body to a topic. Tests use this to
// inject malformed payloads.
func (b *InMemoryBus) PublishRaw(topic string, key, value []byte) {
	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], storedMessage{key: key, value: value})
	waiters := b.waiters[topic]
	b.waiters[topic] = nil
	b.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

// Publisher returns a Publisher bound to one topic.
func (b *InMemoryBus) Publisher(topic string) Publisher {
	return &inMemoryPublisher{bus: b, topic: topic}
}

// Subscribe returns a Subscription for topic/groupID starting at the group's
// committed offset.
func (b *InMemoryBus) Subscribe(topic, groupID string) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := topic + "/" + groupID
	return &inMemorySubscription{
		bus:    b,
		topic:  topic,
		group:  key,
		cursor: b.committed[key],
	}
}

type inMemoryPublisher struct {
	bus   *InMemoryBus
	topic string
}

func (p *inMemoryPublisher) Publish(_ context.Context, event shared.ChangeEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.EventID, err)
	}
	p.bus.PublishRaw(p.topic, []byte(event.EntityID), value)
	return nil
}

func (p *inMemoryPublisher) Close() error { return nil }

type inMemorySubscription struct {
	bus    *InMemoryBus
	topic  string
	group  string
	cursor int
	closed bool
	mu     sync.Mutex
}

// Fetch returns the next message after the subscription's cursor, blocking
// until one is published or ctx is done. The cursor advances on fetch; the
// committed offset advances only on Ack, so unacked messages are seen again
// by the next subscription of the same group.
func (s *inMemorySubscription) Fetch(ctx context.Context) (*Delivery, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, fmt.Errorf("subscription closed")
		}
		s.mu.Unlock()

		s.bus.mu.Lock()
		messages := s.bus.topics[s.topic]
		if s.cursor < len(messages) {
			msg := messages[s.cursor]
			offset := s.cursor
			s.cursor++
			s.bus.mu.Unlock()

			return NewDelivery(s.topic, msg.key, msg.value, func(context.Context) error {
				s.bus.mu.Lock()
				defer s.bus.mu.Unlock()
				if next := offset + 1; next > s.bus.committed[s.group] {
					s.bus.committed[s.group] = next
				}
				return nil
			}), nil
		}

		// Nothing available: register a waiter and block.
		wait := make(chan struct{})
		s.bus.waiters[s.topic] = append(s.bus.waiters[s.topic], wait)
		s.bus.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

func (s *inMemorySubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Compile-time interface checks
var (
	_ Publisher    = (*inMemoryPublisher)(nil)
	_ Subscription = (*inMemorySubscription)(nil)
)
