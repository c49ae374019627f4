package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/synccore/internal/crdt"
	"github.com/iudanet/synccore/internal/storage"
	"github.com/iudanet/synccore/internal/validation"
)

// ErrReplicaNotInitialized indicates a store without a replica identity
var ErrReplicaNotInitialized = errors.New("replica is not initialized")

// InitReplica assigns an identity to a fresh store.
// An empty replicaID generates a random one. An already initialized
// store keeps its identity and the stored id is returned.
func InitReplica(ctx context.Context, metadata storage.MetadataStorage, replicaID string) (string, error) {
	existing, err := metadata.GetReplicaID(ctx)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, storage.ErrMetadataNotFound):
		return "", fmt.Errorf("failed to get replica id: %w", err)
	}

	clock := crdt.NewReplicaClock()
	if replicaID != "" {
		if err := validation.ValidateReplicaID(replicaID); err != nil {
			return "", err
		}
		clock = crdt.NewReplicaClockWithID(replicaID)
	}

	if err := metadata.SaveReplicaID(ctx, clock.ReplicaID()); err != nil {
		return "", fmt.Errorf("failed to save replica id: %w", err)
	}
	return clock.ReplicaID(), nil
}

// LoadReplicaClock restores the replica clock from metadata, so that
// timestamps keep increasing across restarts.
func LoadReplicaClock(ctx context.Context, metadata storage.MetadataStorage) (*crdt.ReplicaClock, error) {
	replicaID, err := metadata.GetReplicaID(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrMetadataNotFound) {
			return nil, ErrReplicaNotInitialized
		}
		return nil, fmt.Errorf("failed to get replica id: %w", err)
	}

	last, err := metadata.GetLastWriteTimestamp(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get last write timestamp: %w", err)
	}

	clock := crdt.NewReplicaClockWithID(replicaID)
	clock.SetLast(last)
	return clock, nil
}
