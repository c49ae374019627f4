package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/synccore/internal/crdt"
	"github.com/iudanet/synccore/internal/models"
	"github.com/iudanet/synccore/internal/storage"
)

// Exchange performs a two-way exchange with another replica store
// 1. Pulls every version of the peer and reconciles it locally
// 2. Pushes local versions the peer does not know yet
// 3. Clears the pending flag of records the peer now has
//
// The peer store is never merged into: a version is written there only
// when it dominates the peer's copy. Records with an open conflict stay
// local until the conflict is resolved.
func (s *service) Exchange(ctx context.Context, peer storage.RecordStorage) (*Result, error) {
	defer s.metrics.ObserveDuration("exchange", time.Now())

	s.logger.Info("Starting exchange", "replica_id", s.clock.ReplicaID())

	remotes, err := peer.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get peer records: %w", err)
	}
	s.logger.Info("Collected peer versions", "count", len(remotes))

	result, err := s.ReconcileAll(ctx, remotes)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile peer records: %w", err)
	}

	pushed, err := s.push(ctx, peer, remotes)
	result.Pushed = pushed
	if err != nil {
		return result, err
	}

	// Не прерываем обмен из-за ошибки сохранения времени синхронизации
	if err := s.store.SaveLastSyncAt(ctx, s.now()); err != nil {
		s.logger.Warn("Failed to save last sync time", "error", err)
	}
	s.refreshQueue(ctx)

	s.logger.Info("Exchange completed",
		"received", result.Received,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"merged", result.Merged,
		"conflicts", result.Conflicts,
		"skipped", result.Skipped,
		"pushed", result.Pushed)

	return result, nil
}

// push writes local versions that dominate the peer's copies
func (s *service) push(ctx context.Context, peer storage.RecordStorage, remotes []*models.Record) (int, error) {
	known := make(map[string]crdt.VectorClock, len(remotes))
	for _, remote := range remotes {
		if remote != nil {
			known[remote.ID] = remote.Version
		}
	}

	conflicts, err := s.store.ListConflicts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list conflicts: %w", err)
	}
	open := make(map[string]bool, len(conflicts))
	for _, c := range conflicts {
		open[c.SyncID] = true
	}

	locals, err := s.store.ListRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get local records: %w", err)
	}

	pushed := 0
	for _, local := range locals {
		if open[local.ID] {
			s.logger.Debug("Skipping record with open conflict", "sync_id", local.ID)
			continue
		}

		ok, err := s.pushRecord(ctx, peer, local, known)
		if err != nil {
			return pushed, err
		}
		if ok {
			pushed++
		}
	}

	return pushed, nil
}

func (s *service) pushRecord(ctx context.Context, peer storage.RecordStorage, local *models.Record, known map[string]crdt.VectorClock) (bool, error) {
	unlock := s.locks.Lock(local.ID)
	defer unlock()

	// Запись могла измениться после ListRecords
	current, err := s.store.GetRecord(ctx, local.ID)
	if err != nil {
		return false, fmt.Errorf("failed to get local record: %w", err)
	}

	now := s.now()
	pushed := false

	peerClock, exists := known[current.ID]
	switch {
	case !exists || peerClock.Compare(current.Version) == crdt.Before:
		if err := peer.SaveRecord(ctx, current.MarkSynced(now)); err != nil {
			return false, fmt.Errorf("failed to push record %s: %w", current.ID, err)
		}
		pushed = true
	case peerClock.Equal(current.Version):
	default:
		// Версия пира новее или конкурентна: запись остается в очереди
		return false, nil
	}

	if current.IsPendingSync() {
		if err := s.store.SaveRecord(ctx, current.MarkSynced(now)); err != nil {
			return pushed, fmt.Errorf("failed to mark record synced: %w", err)
		}
	}
	return pushed, nil
}
