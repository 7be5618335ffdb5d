package reference

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightdeck/backend/internal/domain/shared"
)

func TestDefaultCodecRegistry(t *testing.T) {
	r := DefaultCodecRegistry()

	t.Run("covers the cached entity families", func(t *testing.T) {
		assert.ElementsMatch(t,
			[]EntityType{EntityAirline, EntityAirport, EntityAircraft},
			r.Types(),
		)
	})

	t.Run("unregistered type returns an error", func(t *testing.T) {
		_, err := r.Codec(EntityFlight)
		assert.ErrorIs(t, err, shared.ErrUnknownEntityType)
	})

	t.Run("airline payload round-trips", func(t *testing.T) {
		codec, err := r.Codec(EntityAirline)
		require.NoError(t, err)

		data, err := codec.Parse(json.RawMessage(`{"id":"BA","name":"British Airways","iataCode":"BA","active":true}`))
		require.NoError(t, err)

		var a Airline
		require.NoError(t, json.Unmarshal(data, &a))
		assert.Equal(t, "British Airways", a.Name)
		assert.True(t, a.Active)
	})

	t.Run("unknown fields are not preserved", func(t *testing.T) {
		codec, err := r.Codec(EntityAirport)
		require.NoError(t, err)

		data, err := codec.Parse(json.RawMessage(`{"id":"LHR","name":"Heathrow","bogus":"x"}`))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "bogus")
	})

	t.Run("invalid payloads are rejected", func(t *testing.T) {
		codec, err := r.Codec(EntityAircraft)
		require.NoError(t, err)

		for _, payload := range []json.RawMessage{nil, json.RawMessage(``), json.RawMessage(`not json`), json.RawMessage(`[1,2]`)} {
			_, err := codec.Parse(payload)
			assert.ErrorIs(t, err, shared.ErrMalformedEvent, "payload %q", payload)
		}
	})
}

func TestCodecRegistry_Register(t *testing.T) {
	r := NewCodecRegistry()
	r.Register(Codec{EntityType: EntityFlight, Parse: func(p json.RawMessage) (json.RawMessage, error) {
		return p, nil
	}})

	codec, err := r.Codec(EntityFlight)
	require.NoError(t, err)

	data, err := codec.Parse(json.RawMessage(`{"id":"f1"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"f1"}`, string(data))
}
