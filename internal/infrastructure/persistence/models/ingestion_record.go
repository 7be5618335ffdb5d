// Package models contains the GORM persistence models. They are kept separate
// from the domain types so schema concerns never leak into the domain layer.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// IngestionRecord is the durable ledger row written for each flight change
// event. The unique index on EventID is the authoritative dedup guard: the
// Redis fast path can lose state, this index cannot.
type IngestionRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	EventID   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_ingestion_records_event_id"`
	EventType string    `gorm:"type:varchar(64);not null;index"`
	CreatedAt time.Time `gorm:"not null"`

	// Flattened flight columns. Pointers mark fields the event may omit;
	// absence is recorded as NULL, never as a zero value.
	FlightID     string           `gorm:"type:varchar(64);not null;index"`
	FlightNumber string           `gorm:"type:varchar(16);not null"`
	Status       string           `gorm:"type:varchar(32);not null"`
	Departure    *time.Time       `gorm:"index"`
	Arrival      *time.Time       ``
	Fare         *decimal.Decimal `gorm:"type:numeric(12,2)"`
	Currency     string           `gorm:"type:varchar(8)"`

	AirlineID     string `gorm:"type:varchar(16)"`
	AirlineName   string `gorm:"type:varchar(128)"`
	AircraftID    string `gorm:"type:varchar(16)"`
	AircraftModel string `gorm:"type:varchar(128)"`
	OriginID      string `gorm:"type:varchar(16)"`
	OriginName    string `gorm:"type:varchar(128)"`
	DestinationID string `gorm:"type:varchar(16)"`
	DestName      string `gorm:"type:varchar(128)"`

	// RawPayload retains the event body exactly as received, for replay and
	// for auditing transform decisions.
	RawPayload string    `gorm:"type:jsonb"`
	OccurredAt time.Time `gorm:"not null;index"`
}

// TableName specifies the table name for IngestionRecord
func (IngestionRecord) TableName() string {
	return "ingestion_records"
}
