package shared

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChangeAction is the mutation a change event carries.
type ChangeAction string

const (
	ActionCreated       ChangeAction = "CREATED"
	ActionUpdated       ChangeAction = "UPDATED"
	ActionDeleted       ChangeAction = "DELETED"
	ActionStatusChanged ChangeAction = "STATUS_CHANGED"
)

// ChangeEvent is the envelope published for every entity mutation in the
// platform. The registry (system of record) assigns EventID once; consumers
// must treat re-delivery of the same EventID as a no-op.
// Payload is kept as raw JSON produced by the originating service.
type ChangeEvent struct {
	EventID       uuid.UUID       `json:"eventId"`
	EventType     string          `json:"eventType"`
	EntityType    string          `json:"entityType"`
	EntityID      string          `json:"entityId"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
	SchemaVersion string          `json:"version,omitempty"`
}

// NewChangeEvent builds an envelope with a fresh event ID.
func NewChangeEvent(eventType, entityType, entityID string, payload json.RawMessage) ChangeEvent {
	return ChangeEvent{
		EventID:       uuid.New(),
		EventType:     eventType,
		EntityType:    entityType,
		EntityID:      entityID,
		Payload:       payload,
		OccurredAt:    time.Now().UTC(),
		SchemaVersion: "1",
	}
}

// Validate checks the envelope fields every consumer depends on.
func (e *ChangeEvent) Validate() error {
	if e.EventID == uuid.Nil {
		return fmt.Errorf("%w: missing eventId", ErrMalformedEvent)
	}
	if e.EventType == "" {
		return fmt.Errorf("%w: missing eventType", ErrMalformedEvent)
	}
	if e.EntityType == "" {
		return fmt.Errorf("%w: missing entityType", ErrMalformedEvent)
	}
	if e.EntityID == "" {
		return fmt.Errorf("%w: missing entityId", ErrMalformedEvent)
	}
	return nil
}

// Action extracts the mutation kind from the event type.
// Event types follow the `<ENTITY>_<ACTION>` convention, e.g. AIRPORT_UPDATED
// or FLIGHT_STATUS_CHANGED.
func (e *ChangeEvent) Action() (ChangeAction, error) {
	idx := strings.Index(e.EventType, "_")
	if idx < 0 || idx == len(e.EventType)-1 {
		return "", fmt.Errorf("%w: unroutable event type %q", ErrMalformedEvent, e.EventType)
	}
	switch action := ChangeAction(e.EventType[idx+1:]); action {
	case ActionCreated, ActionUpdated, ActionDeleted, ActionStatusChanged:
		return action, nil
	default:
		return "", fmt.Errorf("%w: unroutable event type %q", ErrMalformedEvent, e.EventType)
	}
}
