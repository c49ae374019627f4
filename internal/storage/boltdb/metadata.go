package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/synccore/internal/storage"
)

const (
	keyReplicaID  = "replica_id"
	keyLastWrite  = "last_write_timestamp"
	keyLastSyncAt = "last_sync_at"
	keySealSalt   = "seal_salt"
	keySealCheck  = "seal_check"
)

// SaveReplicaID stores the identity of the local replica
func (s *Storage) SaveReplicaID(ctx context.Context, replicaID string) error {
	if err := s.putMeta(keyReplicaID, []byte(replicaID)); err != nil {
		return fmt.Errorf("failed to save replica id: %w", err)
	}
	return nil
}

// GetReplicaID retrieves the identity of the local replica
func (s *Storage) GetReplicaID(ctx context.Context) (string, error) {
	value, err := s.getMeta(keyReplicaID)
	if err != nil {
		return "", fmt.Errorf("failed to get replica id: %w", err)
	}
	if value == nil {
		return "", storage.ErrMetadataNotFound
	}
	return string(value), nil
}

// SaveLastWriteTimestamp stores the last write timestamp issued by the replica clock
func (s *Storage) SaveLastWriteTimestamp(ctx context.Context, ts time.Time) error {
	return s.putTime(keyLastWrite, ts)
}

// GetLastWriteTimestamp retrieves the last issued write timestamp
func (s *Storage) GetLastWriteTimestamp(ctx context.Context) (time.Time, error) {
	return s.getTime(keyLastWrite)
}

// SaveLastSyncAt stores the time of the last successful exchange
func (s *Storage) SaveLastSyncAt(ctx context.Context, ts time.Time) error {
	return s.putTime(keyLastSyncAt, ts)
}

// GetLastSyncAt retrieves the time of the last successful exchange
func (s *Storage) GetLastSyncAt(ctx context.Context) (time.Time, error) {
	return s.getTime(keyLastSyncAt)
}

// putTime сохраняет время как UnixNano (int64 big endian); нулевое время удаляет ключ
func (s *Storage) putTime(key string, ts time.Time) error {
	if ts.IsZero() {
		return s.putMeta(key, nil)
	}

	// Конвертируем int64 в bytes
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, uint64(ts.UnixNano()))

	if err := s.putMeta(key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *Storage) getTime(key string) (time.Time, error) {
	value, err := s.getMeta(key)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if len(value) != 8 {
		// Значение не сохранялось
		return time.Time{}, nil
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(value))).UTC(), nil
}

// putMeta сохраняет значение в metadata bucket; nil удаляет ключ
func (s *Storage) putMeta(key string, value []byte) error {
	return s.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if value == nil {
			return bucket.Delete([]byte(key))
		}
		return bucket.Put([]byte(key), value)
	})
}

// getMeta возвращает копию значения или nil, если ключа нет
func (s *Storage) getMeta(key string) ([]byte, error) {
	var value []byte

	err := s.view(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMetadata).Get([]byte(key)); v != nil {
			value = append([]byte{}, v...)
		}
		return nil
	})

	return value, err
}
