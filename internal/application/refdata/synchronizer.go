package refdata

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/flightdeck/backend/internal/domain/reference"
	"github.com/flightdeck/backend/internal/domain/shared"
	"github.com/flightdeck/backend/internal/infrastructure/eventbus"
	"github.com/flightdeck/backend/internal/infrastructure/telemetry"
)

// ackTimeout bounds the commit call for a message handled right as the
// consumer is shutting down.
const ackTimeout = 5 * time.Second

// Synchronizer applies reference change events to the snapshot cache.
//
// Every delivery is acknowledged, including ones that fail to parse or
// transform: retrying cannot fix a malformed body, and not acking would wedge
// the partition behind it. Skipped events are logged and counted; the dropped
// counter is where they stay visible.
type Synchronizer struct {
	sub     eventbus.Subscription
	cache   reference.SnapshotCache
	codecs  *reference.CodecRegistry
	metrics *telemetry.ConsumerMetrics
	logger  *zap.Logger
}

// SynchronizerOption is a functional option for Synchronizer
type SynchronizerOption func(*Synchronizer)

// WithSynchronizerMetrics attaches consumer metrics to the synchronizer.
func WithSynchronizerMetrics(metrics *telemetry.ConsumerMetrics) SynchronizerOption {
	return func(s *Synchronizer) {
		s.metrics = metrics
	}
}

// NewSynchronizer creates a synchronizer consuming from sub into cache.
func NewSynchronizer(sub eventbus.Subscription, cache reference.SnapshotCache, codecs *reference.CodecRegistry, logger *zap.Logger, opts ...SynchronizerOption) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Synchronizer{
		sub:    sub,
		cache:  cache,
		codecs: codecs,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run consumes until ctx is canceled. It returns ctx.Err() on shutdown and a
// non-context error only when the subscription itself fails.
func (s *Synchronizer) Run(ctx context.Context) error {
	for {
		delivery, err := s.sub.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return err
		}
		s.handle(ctx, delivery)
	}
}

// handle applies one delivery and always acknowledges it.
func (s *Synchronizer) handle(ctx context.Context, delivery *eventbus.Delivery) {
	eventType, dropReason := s.apply(ctx, delivery)

	if dropReason != "" {
		if s.metrics != nil {
			s.metrics.RecordDropped(ctx, delivery.Topic, dropReason)
		}
	} else if s.metrics != nil {
		s.metrics.RecordProcessed(ctx, delivery.Topic, eventType)
	}

	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := delivery.Ack(ackCtx); err != nil {
		// The message will be redelivered; applying it again is harmless.
		s.logger.Warn("failed to ack delivery",
			zap.String("topic", delivery.Topic),
			zap.Error(err))
	}
}

// apply mutates the cache for one delivery. It returns the event type and, if
// the event was skipped, the reason.
func (s *Synchronizer) apply(ctx context.Context, delivery *eventbus.Delivery) (eventType, dropReason string) {
	var event shared.ChangeEvent
	if err := json.Unmarshal(delivery.Value, &event); err != nil {
		s.logger.Warn("dropping undecodable event",
			zap.String("topic", delivery.Topic),
			zap.Error(err))
		return "", "malformed"
	}
	if err := event.Validate(); err != nil {
		s.logger.Warn("dropping invalid event envelope",
			zap.String("topic", delivery.Topic),
			zap.Error(err))
		return event.EventType, "malformed"
	}

	entityType, err := reference.ParseEntityType(event.EntityType)
	if err != nil {
		s.logger.Warn("dropping event for unknown entity type",
			zap.String("event_id", event.EventID.String()),
			zap.String("entity_type", event.EntityType))
		return event.EventType, "unknown_entity_type"
	}

	action, err := event.Action()
	if err != nil {
		s.logger.Warn("dropping unroutable event",
			zap.String("event_id", event.EventID.String()),
			zap.String("event_type", event.EventType))
		return event.EventType, "unroutable"
	}

	if action == shared.ActionDeleted {
		if err := s.cache.Evict(ctx, entityType, event.EntityID); err != nil {
			s.logger.Error("failed to evict snapshot",
				zap.String("event_id", event.EventID.String()),
				zap.Error(err))
			return event.EventType, "cache_error"
		}
		return event.EventType, ""
	}

	codec, err := s.codecs.Codec(entityType)
	if err != nil {
		s.logger.Warn("dropping event with no registered codec",
			zap.String("event_id", event.EventID.String()),
			zap.String("entity_type", string(entityType)))
		return event.EventType, "no_codec"
	}

	data, err := codec.Parse(event.Payload)
	if err != nil {
		s.logger.Warn("dropping event with untransformable payload",
			zap.String("event_id", event.EventID.String()),
			zap.String("entity_type", string(entityType)),
			zap.Error(err))
		return event.EventType, "transform_failed"
	}

	snapshot := reference.Snapshot{
		EntityType: entityType,
		EntityID:   event.EntityID,
		Data:       data,
		CachedAt:   time.Now().UTC(),
	}
	if err := s.cache.Put(ctx, snapshot); err != nil {
		s.logger.Error("failed to cache snapshot",
			zap.String("event_id", event.EventID.String()),
			zap.Error(err))
		return event.EventType, "cache_error"
	}

	s.logger.Debug("applied change event",
		zap.String("event_id", event.EventID.String()),
		zap.String("event_type", event.EventType),
		zap.String("entity_id", event.EntityID))
	return event.EventType, ""
}
