package boltdb

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/synccore/internal/models"
	"github.com/iudanet/synccore/internal/storage"
)

// pendingMark is the value stored in the pending index
var pendingMark = []byte{1}

// SaveRecord stores or replaces a record and updates the pending index
func (s *Storage) SaveRecord(ctx context.Context, rec *models.Record) error {
	if err := storage.ValidateRecord(rec); err != nil {
		return err
	}

	data, err := s.encode(bucketRecords, rec.ID, rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	err = s.update(func(tx *bbolt.Tx) error {
		key := []byte(rec.ID)

		if err := tx.Bucket(bucketRecords).Put(key, data); err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}

		// Индекс очереди синхронизации обновляется в той же транзакции
		pending := tx.Bucket(bucketPending)
		var indexErr error
		if rec.Pending {
			indexErr = pending.Put(key, pendingMark)
		} else {
			indexErr = pending.Delete(key)
		}
		if indexErr != nil {
			return fmt.Errorf("failed to update pending index: %w", indexErr)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// GetRecord retrieves a record by SyncId
func (s *Storage) GetRecord(ctx context.Context, syncID string) (*models.Record, error) {
	var rec *models.Record

	err := s.view(func(tx *bbolt.Tx) error {
		var err error
		rec, err = s.readRecord(tx, []byte(syncID))
		return err
	})

	if err != nil {
		if isNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return rec, nil
}

// ListRecords returns all records (including deleted ones) ordered by SyncId
func (s *Storage) ListRecords(ctx context.Context) ([]*models.Record, error) {
	return s.listRecords(func(*models.Record) bool { return true })
}

// ListRecordsByType returns all records of the given kind
func (s *Storage) ListRecordsByType(ctx context.Context, kind string) ([]*models.Record, error) {
	return s.listRecords(func(rec *models.Record) bool { return rec.Type == kind })
}

// ListPending returns records with local changes not yet synchronized
func (s *Storage) ListPending(ctx context.Context) ([]*models.Record, error) {
	var records []*models.Record

	err := s.view(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPending).ForEach(func(k, _ []byte) error {
			rec, err := s.readRecord(tx, k)
			if err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list pending records: %w", err)
	}

	return records, nil
}

// CountPending returns the size of the pending-sync queue
func (s *Storage) CountPending(ctx context.Context) (int, error) {
	var count int

	err := s.view(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketPending).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			count++
		}
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to count pending records: %w", err)
	}

	return count, nil
}

func (s *Storage) listRecords(keep func(*models.Record) bool) ([]*models.Record, error) {
	var records []*models.Record

	err := s.view(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(k, v []byte) error {
			var rec models.Record
			if err := s.decode(bucketRecords, string(k), v, &rec); err != nil {
				return err
			}
			if keep(&rec) {
				records = append(records, &rec)
			}
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return records, nil
}

func (s *Storage) readRecord(tx *bbolt.Tx, key []byte) (*models.Record, error) {
	data := tx.Bucket(bucketRecords).Get(key)
	if data == nil {
		return nil, storage.ErrRecordNotFound
	}

	rec := &models.Record{}
	if err := s.decode(bucketRecords, string(key), data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
