package archive

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/flightdeck/backend/internal/domain/shared"
	"github.com/flightdeck/backend/internal/infrastructure/cache"
	"github.com/flightdeck/backend/internal/infrastructure/persistence"
)

func setupLedgerDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.Exec(`
		CREATE TABLE ingestion_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			flight_id TEXT NOT NULL,
			flight_number TEXT NOT NULL,
			status TEXT NOT NULL,
			departure DATETIME,
			arrival DATETIME,
			fare NUMERIC,
			currency TEXT,
			airline_id TEXT,
			airline_name TEXT,
			aircraft_id TEXT,
			aircraft_model TEXT,
			origin_id TEXT,
			origin_name TEXT,
			destination_id TEXT,
			dest_name TEXT,
			raw_payload TEXT,
			occurred_at DATETIME NOT NULL,
			UNIQUE(event_id)
		)
	`).Error
	require.NoError(t, err)

	return db
}

func newTestLedger(t *testing.T) (*Ledger, *persistence.GormIngestionRecordRepository) {
	t.Helper()
	repo := persistence.NewGormIngestionRecordRepository(setupLedgerDB(t))
	dedup := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { dedup.Close() })
	return NewLedger(repo, dedup, zap.NewNop()), repo
}

func flightEvent(eventType, payload string) shared.ChangeEvent {
	var flightID struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal([]byte(payload), &flightID)
	return shared.NewChangeEvent(eventType, "FLIGHT", flightID.ID, json.RawMessage(payload))
}

func TestLedger_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("persists a full event", func(t *testing.T) {
		ledger, repo := newTestLedger(t)

		event := flightEvent("FLIGHT_CREATED", `{
			"id": "FL-100",
			"flightNumber": "BA117",
			"status": "SCHEDULED",
			"departureTime": "2026-03-14T09:30:00Z",
			"arrivalTime": [2026, 3, 14, 17, 45],
			"fare": 450.50,
			"currency": "USD",
			"airline": {"id": "BA", "name": "British Airways"},
			"aircraft": {"id": "G-XLEA", "model": "A380"},
			"originAirport": {"id": "LHR", "name": "Heathrow"},
			"destinationAirport": {"id": "JFK", "name": "JFK"}
		}`)

		outcome, err := ledger.Ingest(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, OutcomePersisted, outcome)

		record, err := repo.FindByEventID(ctx, event.EventID.String())
		require.NoError(t, err)
		assert.Equal(t, "FL-100", record.FlightID)
		assert.Equal(t, "BA117", record.FlightNumber)
		assert.Equal(t, "SCHEDULED", record.Status)
		require.NotNil(t, record.Departure)
		assert.Equal(t, time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC), record.Departure.UTC())
		require.NotNil(t, record.Arrival)
		assert.Equal(t, time.Date(2026, 3, 14, 17, 45, 0, 0, time.UTC), record.Arrival.UTC())
		require.NotNil(t, record.Fare)
		assert.Equal(t, "450.5", record.Fare.String())
		assert.Equal(t, "BA", record.AirlineID)
		assert.Equal(t, "A380", record.AircraftModel)
		assert.Equal(t, "LHR", record.OriginID)
		assert.Equal(t, "JFK", record.DestinationID)
		assert.NotEmpty(t, record.RawPayload)
	})

	t.Run("both date encodings normalize to the same instant", func(t *testing.T) {
		ledger, repo := newTestLedger(t)

		stringForm := flightEvent("FLIGHT_CREATED", `{"id":"FL-A","flightNumber":"X1","departureTime":"2026-05-01T08:00:00Z"}`)
		arrayForm := flightEvent("FLIGHT_CREATED", `{"id":"FL-B","flightNumber":"X2","departureTime":[2026,5,1,8,0]}`)

		_, err := ledger.Ingest(ctx, stringForm)
		require.NoError(t, err)
		_, err = ledger.Ingest(ctx, arrayForm)
		require.NoError(t, err)

		a, err := repo.FindByEventID(ctx, stringForm.EventID.String())
		require.NoError(t, err)
		b, err := repo.FindByEventID(ctx, arrayForm.EventID.String())
		require.NoError(t, err)
		require.NotNil(t, a.Departure)
		require.NotNil(t, b.Departure)
		assert.True(t, a.Departure.Equal(*b.Departure))
	})

	t.Run("malformed date is stored as NULL, not an error", func(t *testing.T) {
		ledger, repo := newTestLedger(t)

		event := flightEvent("FLIGHT_UPDATED", `{"id":"FL-BAD-DATE","flightNumber":"X3","departureTime":"not a date"}`)
		outcome, err := ledger.Ingest(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, OutcomePersisted, outcome)

		record, err := repo.FindByEventID(ctx, event.EventID.String())
		require.NoError(t, err)
		assert.Nil(t, record.Departure)
	})

	t.Run("absent sub-objects are tolerated", func(t *testing.T) {
		ledger, repo := newTestLedger(t)

		event := flightEvent("FLIGHT_STATUS_CHANGED", `{"id":"FL-MIN","flightNumber":"X4","status":"DELAYED"}`)
		outcome, err := ledger.Ingest(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, OutcomePersisted, outcome)

		record, err := repo.FindByEventID(ctx, event.EventID.String())
		require.NoError(t, err)
		assert.Empty(t, record.AirlineID)
		assert.Empty(t, record.OriginID)
		assert.Nil(t, record.Fare)
	})

	t.Run("redelivery produces exactly one row", func(t *testing.T) {
		ledger, repo := newTestLedger(t)

		event := flightEvent("FLIGHT_CREATED", `{"id":"FL-DUP","flightNumber":"X5"}`)

		outcome, err := ledger.Ingest(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, OutcomePersisted, outcome)

		outcome, err = ledger.Ingest(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, outcome)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("dedup survives a cold fast path", func(t *testing.T) {
		db := setupLedgerDB(t)
		repo := persistence.NewGormIngestionRecordRepository(db)

		event := flightEvent("FLIGHT_CREATED", `{"id":"FL-COLD","flightNumber":"X6"}`)

		first := NewLedger(repo, cache.NewInMemoryIdempotencyStore(), zap.NewNop())
		defer first.Close()
		outcome, err := first.Ingest(ctx, event)
		require.NoError(t, err)
		require.Equal(t, OutcomePersisted, outcome)

		// A restarted archiver has an empty idempotency store; the unique
		// index still catches the duplicate.
		second := NewLedger(repo, cache.NewInMemoryIdempotencyStore(), zap.NewNop())
		defer second.Close()
		outcome, err = second.Ingest(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, outcome)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("unparseable payload is a transform error, not a failure", func(t *testing.T) {
		ledger, repo := newTestLedger(t)

		event := shared.NewChangeEvent("FLIGHT_CREATED", "FLIGHT", "FL-JUNK", json.RawMessage(`"nope"`))
		outcome, err := ledger.Ingest(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, OutcomeTransformError, outcome)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("payload without flight id is a transform error", func(t *testing.T) {
		ledger, _ := newTestLedger(t)

		event := shared.NewChangeEvent("FLIGHT_CREATED", "FLIGHT", "FL-NOID", json.RawMessage(`{"flightNumber":"X7"}`))
		outcome, err := ledger.Ingest(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, OutcomeTransformError, outcome)
	})
}
