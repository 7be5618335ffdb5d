package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flightdeck/backend/internal/domain/shared"
	"github.com/flightdeck/backend/internal/infrastructure/persistence/models"
)

// GormIngestionRecordRepository persists the archival ledger using GORM.
type GormIngestionRecordRepository struct {
	db *gorm.DB
}

// NewGormIngestionRecordRepository creates a new GormIngestionRecordRepository
func NewGormIngestionRecordRepository(db *gorm.DB) *GormIngestionRecordRepository {
	return &GormIngestionRecordRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormIngestionRecordRepository) WithTx(tx *gorm.DB) *GormIngestionRecordRepository {
	return &GormIngestionRecordRepository{db: tx}
}

// Insert writes a ledger record. It returns false when a record with the same
// event ID already exists; the unique index makes the insert-or-skip atomic,
// so two consumers racing on a redelivered event produce exactly one row.
func (r *GormIngestionRecordRepository) Insert(ctx context.Context, record *models.IngestionRecord) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(record)

	if result.Error != nil {
		return false, fmt.Errorf("failed to insert ingestion record: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindByEventID returns the ledger record for an event ID.
func (r *GormIngestionRecordRepository) FindByEventID(ctx context.Context, eventID string) (*models.IngestionRecord, error) {
	var record models.IngestionRecord
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find ingestion record: %w", err)
	}
	return &record, nil
}

// FindByFlightID returns all ledger records for a flight, newest first.
func (r *GormIngestionRecordRepository) FindByFlightID(ctx context.Context, flightID string, limit int) ([]models.IngestionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var records []models.IngestionRecord
	err := r.db.WithContext(ctx).
		Where("flight_id = ?", flightID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion records: %w", err)
	}
	return records, nil
}

// Count returns the total number of ledger records.
func (r *GormIngestionRecordRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.IngestionRecord{}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count ingestion records: %w", err)
	}
	return count, nil
}
