package storage

import (
	"context"
	"time"
)

//go:generate moq -out metadatastorage_mock.go . MetadataStorage

// MetadataStorage defines interface for storing replica metadata
type MetadataStorage interface {
	// SaveReplicaID stores the identity of the local replica
	SaveReplicaID(ctx context.Context, replicaID string) error

	// GetReplicaID retrieves the identity of the local replica
	// Returns ErrMetadataNotFound if the replica was never initialized
	GetReplicaID(ctx context.Context) (string, error)

	// SaveLastWriteTimestamp stores the last write timestamp issued by the replica clock
	SaveLastWriteTimestamp(ctx context.Context, ts time.Time) error

	// GetLastWriteTimestamp retrieves the last issued write timestamp
	// Returns zero time if none was issued yet
	GetLastWriteTimestamp(ctx context.Context) (time.Time, error)

	// SaveLastSyncAt stores the time of the last successful exchange
	SaveLastSyncAt(ctx context.Context, ts time.Time) error

	// GetLastSyncAt retrieves the time of the last successful exchange
	// Returns zero time if no exchange has been performed yet
	GetLastSyncAt(ctx context.Context) (time.Time, error)
}

// Store is a complete local replica store.
type Store interface {
	RecordStorage
	ConflictStorage
	MetadataStorage
	Close() error
}
