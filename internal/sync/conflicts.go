package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/synccore/internal/models"
	"github.com/iudanet/synccore/internal/storage"
)

// ResolveConflict replaces an open conflict with a single version.
// pick selects an alternative by index (see models.Conflict.Versions);
// MergeAll merges the fields of all alternatives instead.
//
// The resolved record carries the merge of all alternative clocks and of
// the local clock, incremented by the local replica, so it dominates every
// version that took part in the conflict and replaces them on other replicas.
func (s *service) ResolveConflict(ctx context.Context, syncID string, pick int) (*models.Record, error) {
	unlock := s.locks.Lock(syncID)
	defer unlock()

	conflict, err := s.store.GetConflict(ctx, syncID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}

	chosen, err := chooseVersion(conflict, pick)
	if err != nil {
		return nil, err
	}

	clock := conflict.Clock()
	local, err := s.store.GetRecord(ctx, syncID)
	switch {
	case err == nil:
		clock = clock.Merge(local.Version)
	case !errors.Is(err, storage.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to get local record: %w", err)
	}

	ts := s.clock.Now()
	resolved := chosen.WithClock(clock).Edit(s.clock.ReplicaID(), ts, nil)

	if err := s.store.SaveRecord(ctx, resolved); err != nil {
		return nil, fmt.Errorf("failed to save resolved record: %w", err)
	}
	if err := s.store.DeleteConflict(ctx, syncID); err != nil {
		return nil, fmt.Errorf("failed to delete conflict: %w", err)
	}
	if err := s.store.SaveLastWriteTimestamp(ctx, ts); err != nil {
		s.logger.Warn("Failed to save last write timestamp", "error", err)
	}
	s.refreshQueue(ctx)

	s.logger.Info("Conflict resolved",
		"sync_id", syncID,
		"pick", pick,
		"versions", conflict.Alternatives.Len(),
		"clock", resolved.Version.String())

	return resolved, nil
}

func chooseVersion(conflict *models.Conflict, pick int) (*models.Record, error) {
	if pick != MergeAll {
		return conflict.Version(pick)
	}

	versions := conflict.Versions()
	if len(versions) == 0 {
		return nil, fmt.Errorf("conflict %s has no versions", conflict.SyncID)
	}

	merged := versions[0]
	for _, v := range versions[1:] {
		merged = merged.WithLWWFields(merged.Fields.Merge(v.Fields))
	}
	return merged, nil
}
