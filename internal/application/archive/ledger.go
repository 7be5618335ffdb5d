// Package archive implements the ingestion ledger: the archiver's durable,
// deduplicated record of every flight change event.
package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/flightdeck/backend/internal/domain/flight"
	"github.com/flightdeck/backend/internal/domain/shared"
	"github.com/flightdeck/backend/internal/infrastructure/persistence/models"
)

// Outcome is the result of ingesting one event.
type Outcome string

const (
	// OutcomePersisted means a new ledger row was written.
	OutcomePersisted Outcome = "persisted"
	// OutcomeDuplicate means the event was already in the ledger.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeTransformError means the payload could not be normalized.
	OutcomeTransformError Outcome = "transform_error"
)

// RecordRepository is the ledger's persistence port.
type RecordRepository interface {
	Insert(ctx context.Context, record *models.IngestionRecord) (bool, error)
}

// Ledger normalizes flight events and writes them to the ingestion store
// exactly once per event ID.
//
// Dedup is layered: the idempotency store answers cheaply for recently seen
// IDs, and the store's unique index on event_id is the authoritative guard
// that holds even when the fast path has lost state.
type Ledger struct {
	repo   RecordRepository
	dedup  shared.IdempotencyStore
	config shared.IdempotencyConfig
	logger *zap.Logger
}

// LedgerOption is a functional option for Ledger
type LedgerOption func(*Ledger)

// WithDedupConfig overrides the fast-path dedup configuration.
func WithDedupConfig(config shared.IdempotencyConfig) LedgerOption {
	return func(l *Ledger) {
		l.config = config
	}
}

// NewLedger creates a ledger writing through repo, with dedup as the
// fast-path duplicate filter.
func NewLedger(repo RecordRepository, dedup shared.IdempotencyStore, logger *zap.Logger, opts ...LedgerOption) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		repo:   repo,
		dedup:  dedup,
		config: shared.DefaultIdempotencyConfig(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Ingest records one flight change event.
//
// Re-delivery of an already recorded event returns OutcomeDuplicate without a
// second row. A payload that cannot be normalized returns
// OutcomeTransformError with a nil error: the event is unrecoverable, so the
// caller should acknowledge it rather than retry.
func (l *Ledger) Ingest(ctx context.Context, event shared.ChangeEvent) (Outcome, error) {
	eventID := event.EventID.String()

	if l.config.Enabled && l.dedup != nil {
		seen, err := l.dedup.IsProcessed(ctx, eventID)
		if err != nil {
			// The unique index still protects us; degrade to the slow path.
			l.logger.Warn("dedup fast path unavailable",
				zap.String("event_id", eventID),
				zap.Error(err))
		} else if seen {
			l.logger.Debug("duplicate event recognized by fast path",
				zap.String("event_id", eventID))
			return OutcomeDuplicate, nil
		}
	}

	record, err := l.normalize(event)
	if err != nil {
		l.logger.Warn("dropping untransformable flight event",
			zap.String("event_id", eventID),
			zap.String("event_type", event.EventType),
			zap.Error(err))
		return OutcomeTransformError, nil
	}

	created, err := l.repo.Insert(ctx, record)
	if err != nil {
		return "", fmt.Errorf("failed to persist ingestion record: %w", err)
	}

	if l.config.Enabled && l.dedup != nil {
		if _, err := l.dedup.MarkProcessed(ctx, eventID, l.config.TTL); err != nil {
			l.logger.Warn("failed to mark event in dedup fast path",
				zap.String("event_id", eventID),
				zap.Error(err))
		}
	}

	if !created {
		return OutcomeDuplicate, nil
	}
	return OutcomePersisted, nil
}

// normalize flattens the event payload into a ledger row. Date fields accept
// both wire encodings; a date that fails to parse is recorded as NULL, not an
// ingestion failure.
func (l *Ledger) normalize(event shared.ChangeEvent) (*models.IngestionRecord, error) {
	var payload flight.Event
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedEvent, err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("%w: payload missing flight id", shared.ErrMalformedEvent)
	}

	record := &models.IngestionRecord{
		EventID:      event.EventID.String(),
		EventType:    event.EventType,
		FlightID:     payload.ID,
		FlightNumber: payload.FlightNumber,
		Status:       payload.Status,
		Fare:         payload.Fare,
		Currency:     payload.Currency,
		RawPayload:   string(event.Payload),
		OccurredAt:   event.OccurredAt.UTC(),
	}

	if departure, ok := payload.DepartureTime.Time(); ok {
		record.Departure = &departure
	}
	if arrival, ok := payload.ArrivalTime.Time(); ok {
		record.Arrival = &arrival
	}

	if payload.Airline != nil {
		record.AirlineID = payload.Airline.ID
		record.AirlineName = payload.Airline.Name
	}
	if payload.Aircraft != nil {
		record.AircraftID = payload.Aircraft.ID
		record.AircraftModel = payload.Aircraft.Model
	}
	if payload.Origin != nil {
		record.OriginID = payload.Origin.ID
		record.OriginName = payload.Origin.Name
	}
	if payload.Destination != nil {
		record.DestinationID = payload.Destination.ID
		record.DestName = payload.Destination.Name
	}

	return record, nil
}

// Close releases the fast-path dedup store.
func (l *Ledger) Close() error {
	if l.dedup == nil {
		return nil
	}
	return l.dedup.Close()
}
