package storage

import "errors"

// Common storage errors
var (
	// ErrRecordNotFound indicates that a record with the given SyncId does not exist
	ErrRecordNotFound = errors.New("record not found")

	// ErrConflictNotFound indicates that no open conflict exists for the given SyncId
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrMetadataNotFound indicates that a metadata value was never stored
	ErrMetadataNotFound = errors.New("metadata not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrStorageSealed indicates that storage is sealed and must be opened with a passphrase
	ErrStorageSealed = errors.New("storage is sealed, passphrase required")

	// ErrInvalidRecord indicates a record that cannot be stored (missing SyncId or clock)
	ErrInvalidRecord = errors.New("invalid record")
)
