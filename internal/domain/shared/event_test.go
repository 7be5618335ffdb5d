package shared

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeEvent_Validate(t *testing.T) {
	valid := NewChangeEvent("AIRPORT_UPDATED", "AIRPORT", "LHR", json.RawMessage(`{}`))
	require.NoError(t, valid.Validate())

	t.Run("missing fields are rejected", func(t *testing.T) {
		cases := map[string]func(e *ChangeEvent){
			"eventId":    func(e *ChangeEvent) { e.EventID = uuid.Nil },
			"eventType":  func(e *ChangeEvent) { e.EventType = "" },
			"entityType": func(e *ChangeEvent) { e.EntityType = "" },
			"entityId":   func(e *ChangeEvent) { e.EntityID = "" },
		}
		for name, mutate := range cases {
			e := valid
			mutate(&e)
			err := e.Validate()
			require.ErrorIs(t, err, ErrMalformedEvent, name)
			assert.ErrorContains(t, err, name)
		}
	})
}

func TestChangeEvent_Action(t *testing.T) {
	t.Run("routable event types", func(t *testing.T) {
		for eventType, want := range map[string]ChangeAction{
			"AIRLINE_CREATED":       ActionCreated,
			"AIRPORT_UPDATED":       ActionUpdated,
			"AIRCRAFT_DELETED":      ActionDeleted,
			"FLIGHT_STATUS_CHANGED": ActionStatusChanged,
		} {
			e := ChangeEvent{EventType: eventType}
			got, err := e.Action()
			require.NoError(t, err, eventType)
			assert.Equal(t, want, got)
		}
	})

	t.Run("unroutable event types", func(t *testing.T) {
		for _, eventType := range []string{"", "AIRLINE", "AIRLINE_", "AIRLINE_EXPLODED"} {
			e := ChangeEvent{EventType: eventType}
			_, err := e.Action()
			assert.ErrorIs(t, err, ErrMalformedEvent, eventType)
		}
	})
}
