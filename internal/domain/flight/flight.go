// Package flight models the flight-domain events consumed by the archival
// ledger. The payloads embed denormalized reference sub-objects (airline,
// aircraft, origin/destination airports) as published by the flight service;
// any of them may be absent.
package flight

import (
	"github.com/shopspring/decimal"
)

// Statuses the flight service publishes in status-change events.
const (
	StatusScheduled = "SCHEDULED"
	StatusBoarding  = "BOARDING"
	StatusDeparted  = "DEPARTED"
	StatusLanded    = "LANDED"
	StatusDelayed   = "DELAYED"
	StatusCancelled = "CANCELLED"
)

// AirlineRef is the embedded airline sub-object.
type AirlineRef struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	IATACode string `json:"iataCode,omitempty"`
}

// AirportRef is the embedded airport sub-object.
type AirportRef struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	IATACode string `json:"iataCode,omitempty"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
}

// AircraftRef is the embedded aircraft sub-object.
type AircraftRef struct {
	ID           string `json:"id"`
	Registration string `json:"registration,omitempty"`
	Model        string `json:"model,omitempty"`
}

// Event is the flight payload carried by FLIGHT_* change events.
type Event struct {
	ID            string           `json:"id"`
	FlightNumber  string           `json:"flightNumber"`
	Status        string           `json:"status,omitempty"`
	DepartureTime FlexTime         `json:"departureTime,omitempty"`
	ArrivalTime   FlexTime         `json:"arrivalTime,omitempty"`
	Fare          *decimal.Decimal `json:"fare,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	Airline       *AirlineRef      `json:"airline,omitempty"`
	Aircraft      *AircraftRef     `json:"aircraft,omitempty"`
	Origin        *AirportRef      `json:"originAirport,omitempty"`
	Destination   *AirportRef      `json:"destinationAirport,omitempty"`
}
