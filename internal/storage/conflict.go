package storage

import (
	"context"

	"github.com/iudanet/synccore/internal/models"
)

//go:generate moq -out conflictstorage_mock.go . ConflictStorage

// ConflictStorage defines interface for storing conflicts awaiting manual resolution
type ConflictStorage interface {
	// SaveConflict stores or replaces the open conflict of a record
	SaveConflict(ctx context.Context, conflict *models.Conflict) error

	// GetConflict retrieves the open conflict of a record
	// Returns ErrConflictNotFound if there is none
	GetConflict(ctx context.Context, syncID string) (*models.Conflict, error)

	// ListConflicts returns all open conflicts ordered by SyncId
	ListConflicts(ctx context.Context) ([]*models.Conflict, error)

	// DeleteConflict removes the conflict of a record
	// Returns ErrConflictNotFound if there is none
	DeleteConflict(ctx context.Context, syncID string) error
}
