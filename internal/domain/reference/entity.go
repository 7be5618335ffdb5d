// Package reference holds the reference-data entities owned by the registry
// service: airlines, airports and aircraft. Other services never mutate these
// directly; they observe change events and cache snapshots locally.
package reference

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/flightdeck/backend/internal/domain/shared"
)

// EntityType identifies a reference entity family.
type EntityType string

const (
	EntityAirline  EntityType = "AIRLINE"
	EntityAirport  EntityType = "AIRPORT"
	EntityAircraft EntityType = "AIRCRAFT"
	EntityFlight   EntityType = "FLIGHT"
)

// ParseEntityType normalizes and validates an entity type string.
func ParseEntityType(s string) (EntityType, error) {
	switch t := EntityType(strings.ToUpper(strings.TrimSpace(s))); t {
	case EntityAirline, EntityAirport, EntityAircraft, EntityFlight:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", shared.ErrUnknownEntityType, s)
	}
}

// Collection returns the registry's REST resource collection for the type,
// used by the fetch-through path: GET /api/v1/{collection}/{id}.
func (t EntityType) Collection() string {
	switch t {
	case EntityAirline:
		return "airlines"
	case EntityAirport:
		return "airports"
	case EntityAircraft:
		return "aircraft"
	case EntityFlight:
		return "flights"
	default:
		return strings.ToLower(string(t)) + "s"
	}
}

// Airline is the registry snapshot of an airline.
type Airline struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IATACode string `json:"iataCode,omitempty"`
	ICAOCode string `json:"icaoCode,omitempty"`
	Country  string `json:"country,omitempty"`
	Active   bool   `json:"active"`
}

// Airport is the registry snapshot of an airport.
type Airport struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	IATACode  string  `json:"iataCode,omitempty"`
	ICAOCode  string  `json:"icaoCode,omitempty"`
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Timezone  string  `json:"timezone,omitempty"`
}

// Aircraft is the registry snapshot of an aircraft.
type Aircraft struct {
	ID           string `json:"id"`
	Registration string `json:"registration"`
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	AirlineID    string `json:"airlineId,omitempty"`
	SeatCapacity int    `json:"seatCapacity,omitempty"`
}

// Snapshot is the latest known state of one entity as held by the cache.
// Data is the entity body as received from the registry or the event payload.
type Snapshot struct {
	EntityType EntityType      `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Data       json.RawMessage `json:"data"`
	CachedAt   time.Time       `json:"cachedAt"`
}
