package reference

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/flightdeck/backend/internal/domain/shared"
)

// ParseFunc validates a raw event payload for one entity type and returns the
// canonical snapshot body to cache.
type ParseFunc func(payload json.RawMessage) (json.RawMessage, error)

// Codec bundles the per-type payload handling the synchronizer dispatches to.
// Adding a new entity family means registering a codec, not touching the
// consumer loop.
type Codec struct {
	EntityType EntityType
	Parse      ParseFunc
}

// CodecRegistry maps entity types to their codecs.
type CodecRegistry struct {
	mu     sync.RWMutex
	codecs map[EntityType]Codec
}

// NewCodecRegistry creates an empty registry.
func NewCodecRegistry() *CodecRegistry {
	return &CodecRegistry{codecs: make(map[EntityType]Codec)}
}

// Register adds or replaces the codec for a type.
func (r *CodecRegistry) Register(codec Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[codec.EntityType] = codec
}

// Codec returns the codec for a type.
func (r *CodecRegistry) Codec(t EntityType) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codec, ok := r.codecs[t]
	if !ok {
		return Codec{}, fmt.Errorf("%w: %s", shared.ErrUnknownEntityType, t)
	}
	return codec, nil
}

// Types returns all registered entity types.
func (r *CodecRegistry) Types() []EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]EntityType, 0, len(r.codecs))
	for t := range r.codecs {
		types = append(types, t)
	}
	return types
}

// DefaultCodecRegistry returns a registry covering the reference entity
// families the cache mirrors.
func DefaultCodecRegistry() *CodecRegistry {
	r := NewCodecRegistry()
	r.Register(Codec{EntityType: EntityAirline, Parse: parseAs[Airline]})
	r.Register(Codec{EntityType: EntityAirport, Parse: parseAs[Airport]})
	r.Register(Codec{EntityType: EntityAircraft, Parse: parseAs[Aircraft]})
	return r
}

// parseAs round-trips the payload through the typed snapshot, rejecting
// payloads that are not valid JSON objects for the type.
func parseAs[T any](payload json.RawMessage) (json.RawMessage, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", shared.ErrMalformedEvent)
	}
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedEvent, err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedEvent, err)
	}
	return data, nil
}
