package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/synccore/internal/models"
	"github.com/iudanet/synccore/internal/storage"
)

// SaveConflict stores or replaces the open conflict of a record
func (s *Storage) SaveConflict(ctx context.Context, conflict *models.Conflict) error {
	if conflict == nil || conflict.SyncID == "" {
		return fmt.Errorf("%w: conflict without sync id", storage.ErrInvalidRecord)
	}

	data, err := s.encode(bucketConflicts, conflict.SyncID, conflict)
	if err != nil {
		return fmt.Errorf("failed to encode conflict: %w", err)
	}

	err = s.update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketConflicts).Put([]byte(conflict.SyncID), data); err != nil {
			return fmt.Errorf("failed to save conflict: %w", err)
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetConflict retrieves the open conflict of a record
func (s *Storage) GetConflict(ctx context.Context, syncID string) (*models.Conflict, error) {
	var conflict *models.Conflict

	err := s.view(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketConflicts).Get([]byte(syncID))
		if data == nil {
			return storage.ErrConflictNotFound
		}

		conflict = &models.Conflict{}
		return s.decode(bucketConflicts, syncID, data, conflict)
	})

	if err != nil {
		if isNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}

	return conflict, nil
}

// ListConflicts returns all open conflicts ordered by SyncId
func (s *Storage) ListConflicts(ctx context.Context) ([]*models.Conflict, error) {
	var conflicts []*models.Conflict

	err := s.view(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketConflicts).ForEach(func(k, v []byte) error {
			var conflict models.Conflict
			if err := s.decode(bucketConflicts, string(k), v, &conflict); err != nil {
				return err
			}
			conflicts = append(conflicts, &conflict)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	return conflicts, nil
}

// DeleteConflict removes the conflict of a record
func (s *Storage) DeleteConflict(ctx context.Context, syncID string) error {
	err := s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketConflicts)
		if bucket.Get([]byte(syncID)) == nil {
			return storage.ErrConflictNotFound
		}
		return bucket.Delete([]byte(syncID))
	})

	if err != nil {
		if isNotFound(err) {
			return err
		}
		return fmt.Errorf("failed to delete conflict: %w", err)
	}

	return nil
}
