package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/synccore/internal/crdt"
	"github.com/iudanet/synccore/internal/models"
	"github.com/iudanet/synccore/internal/resolver"
	"github.com/iudanet/synccore/internal/storage"
)

// Reconcile merges one incoming version into the local replica.
// Per-record failures (invalid version, resolver errors) are wrapped in
// ErrMergeFailed; storage failures are returned as is.
func (s *service) Reconcile(ctx context.Context, remote *models.Record) (Action, error) {
	if err := storage.ValidateRecord(remote); err != nil {
		return ActionUnchanged, fmt.Errorf("%w: %w", ErrMergeFailed, err)
	}

	unlock := s.locks.Lock(remote.ID)
	defer unlock()

	defer s.metrics.ObserveDuration("reconcile", time.Now())

	local, err := s.store.GetRecord(ctx, remote.ID)
	if errors.Is(err, storage.ErrRecordNotFound) {
		if err := s.store.SaveRecord(ctx, remote.MarkSynced(s.now())); err != nil {
			s.metrics.ObserveError("save")
			return ActionUnchanged, fmt.Errorf("failed to save record: %w", err)
		}
		s.metrics.ObserveReconcile("new", resolver.Strategy(0).String())
		s.logger.Debug("Record inserted", "sync_id", remote.ID, "kind", remote.Type)
		return ActionInserted, nil
	}
	if err != nil {
		s.metrics.ObserveError("load")
		return ActionUnchanged, fmt.Errorf("failed to get local record: %w", err)
	}

	if local.Type != remote.Type {
		s.metrics.ObserveError("resolve")
		return ActionUnchanged, fmt.Errorf("%w: %s: %w (%s vs %s)", ErrMergeFailed, remote.ID, ErrKindMismatch, local.Type, remote.Type)
	}

	action, open, err := s.updateConflict(ctx, local, remote)
	if err != nil {
		return ActionUnchanged, err
	}
	if open {
		return action, nil
	}

	return s.resolve(ctx, local, remote)
}

// updateConflict adds both versions to an open conflict of the record.
// open is false when there is no open conflict (any more) and the versions
// must go through the resolver.
func (s *service) updateConflict(ctx context.Context, local, remote *models.Record) (Action, bool, error) {
	conflict, err := s.store.GetConflict(ctx, remote.ID)
	if errors.Is(err, storage.ErrConflictNotFound) {
		return ActionUnchanged, false, nil
	}
	if err != nil {
		s.metrics.ObserveError("load")
		return ActionUnchanged, false, fmt.Errorf("failed to get conflict: %w", err)
	}

	next := conflict.Add(local).Add(remote)
	if !next.Alternatives.Conflicted() {
		// Одна версия вытеснила все альтернативы: конфликт снят
		if err := s.store.DeleteConflict(ctx, remote.ID); err != nil {
			s.metrics.ObserveError("save")
			return ActionUnchanged, false, fmt.Errorf("failed to delete conflict: %w", err)
		}
		s.logger.Info("Conflict superseded", "sync_id", remote.ID)
		return ActionUnchanged, false, nil
	}

	if next.Alternatives.Len() == conflict.Alternatives.Len() && next.Clock().Equal(conflict.Clock()) {
		return ActionUnchanged, true, nil
	}

	if err := s.store.SaveConflict(ctx, next); err != nil {
		s.metrics.ObserveError("save")
		return ActionUnchanged, false, fmt.Errorf("failed to save conflict: %w", err)
	}
	s.logger.Debug("Conflict updated", "sync_id", remote.ID, "versions", next.Alternatives.Len())
	return ActionConflict, true, nil
}

func (s *service) resolve(ctx context.Context, local, remote *models.Record) (Action, error) {
	out, err := resolver.Resolve(s.resolver, local, remote, local.Version, remote.Version)
	if err != nil {
		s.metrics.ObserveError("resolve")
		return ActionUnchanged, fmt.Errorf("%w: %s: %w", ErrMergeFailed, remote.ID, err)
	}
	s.metrics.ObserveReconcile(out.Relation.String(), out.Strategy.String())

	switch {
	case out.Relation == crdt.Equal, out.Relation == crdt.After:
		return ActionUnchanged, nil

	case out.Relation == crdt.Before:
		if err := s.store.SaveRecord(ctx, remote.MarkSynced(s.now())); err != nil {
			s.metrics.ObserveError("save")
			return ActionUnchanged, fmt.Errorf("failed to save record: %w", err)
		}
		return ActionUpdated, nil

	case out.NeedsManualResolution():
		conflict := models.NewConflict(local.ID, local.Type, out.Siblings, s.now())
		if err := s.store.SaveConflict(ctx, conflict); err != nil {
			s.metrics.ObserveError("save")
			return ActionUnchanged, fmt.Errorf("failed to save conflict: %w", err)
		}
		s.metrics.ObserveConflict()
		s.logger.Info("Conflict stored for manual resolution",
			"sync_id", local.ID,
			"kind", local.Type,
			"local_clock", local.Version.String(),
			"remote_clock", remote.Version.String())
		return ActionConflict, nil

	default:
		merged := out.Value.WithClock(out.Clock)
		// Слитая версия нова для обеих реплик
		merged.Pending = true
		if err := s.store.SaveRecord(ctx, merged); err != nil {
			s.metrics.ObserveError("save")
			return ActionUnchanged, fmt.Errorf("failed to save record: %w", err)
		}
		s.logger.Debug("Concurrent versions merged",
			"sync_id", merged.ID,
			"strategy", out.Strategy.String(),
			"clock", merged.Version.String())
		return ActionMerged, nil
	}
}

// ReconcileAll merges a batch of versions on a bounded worker pool.
// Storage failures abort the batch, per-record merge failures are skipped.
func (s *service) ReconcileAll(ctx context.Context, remotes []*models.Record) (*Result, error) {
	defer s.metrics.ObserveDuration("reconcile_all", time.Now())

	res := &Result{Received: len(remotes)}
	var mu stdsync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, remote := range remotes {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			action, err := s.Reconcile(gCtx, remote)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if errors.Is(err, ErrMergeFailed) {
					s.logger.Warn("Failed to merge record", "error", err)
					res.Skipped++
					return nil
				}
				return err
			}
			res.count(action)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}
