package sync

import "errors"

var (
	// ErrMergeFailed marks a per-record failure; batches skip such records
	ErrMergeFailed = errors.New("merge failed")

	// ErrKindMismatch indicates two versions of one SyncId with different kinds
	ErrKindMismatch = errors.New("record kind mismatch")

	// ErrUnsupportedBundle indicates a bundle of an unknown format version
	ErrUnsupportedBundle = errors.New("unsupported bundle version")

	// ErrInvalidBundle indicates a bundle that cannot be decoded
	ErrInvalidBundle = errors.New("invalid bundle")
)
