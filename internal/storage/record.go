package storage

import (
	"context"
	"fmt"

	"github.com/iudanet/synccore/internal/models"
)

//go:generate moq -out recordstorage_mock.go . RecordStorage

// RecordStorage defines interface for storing syncable records.
// Implementations maintain the pending-sync index in the same transaction
// as the record itself.
type RecordStorage interface {
	// SaveRecord stores or replaces a record
	// Returns ErrInvalidRecord if the record has no SyncId or no clock
	SaveRecord(ctx context.Context, rec *models.Record) error

	// GetRecord retrieves a record by SyncId
	// Returns ErrRecordNotFound if record doesn't exist
	GetRecord(ctx context.Context, syncID string) (*models.Record, error)

	// ListRecords returns all records (including deleted ones) ordered by SyncId
	ListRecords(ctx context.Context) ([]*models.Record, error)

	// ListRecordsByType returns all records of the given kind ordered by SyncId
	ListRecordsByType(ctx context.Context, kind string) ([]*models.Record, error)

	// ListPending returns records with local changes not yet synchronized
	ListPending(ctx context.Context) ([]*models.Record, error)

	// CountPending returns the size of the pending-sync queue
	CountPending(ctx context.Context) (int, error)
}

// ValidateRecord checks that a record can be persisted.
func ValidateRecord(rec *models.Record) error {
	if rec == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if rec.ID == "" {
		return fmt.Errorf("%w: empty sync id", ErrInvalidRecord)
	}
	if rec.Version == nil {
		return fmt.Errorf("%w: record %s has no clock", ErrInvalidRecord, rec.ID)
	}
	return nil
}
