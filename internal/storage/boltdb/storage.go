// Package boltdb implements the local replica store on top of bbolt.
//
// Records, the pending-sync index, open conflicts and replica metadata live in
// separate buckets of a single file. A record and its pending index entry are
// always written in the same transaction. When opened with a passphrase,
// record and conflict values are sealed with AES-GCM.
package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/synccore/internal/crypto"
	"github.com/iudanet/synccore/internal/storage"
)

var (
	// BoltDB bucket names
	bucketRecords   = []byte("records")
	bucketPending   = []byte("pending")
	bucketConflicts = []byte("conflicts")
	bucketMetadata  = []byte("metadata")
)

// sealCheckValue is sealed into metadata to verify the passphrase on open
var sealCheckValue = []byte("synccore-seal-check")

// Storage represents BoltDB storage implementation for a local replica
type Storage struct {
	db     *bbolt.DB
	sealer *crypto.Sealer
}

var _ storage.Store = (*Storage)(nil)

// New opens an unsealed store. dbPath is the path to the BoltDB database file.
// Returns ErrStorageSealed if the file was created with a passphrase.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	s, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	salt, err := s.getMeta(keySealSalt)
	if err != nil {
		s.Close()
		return nil, err
	}
	if salt != nil {
		s.Close()
		return nil, storage.ErrStorageSealed
	}

	return s, nil
}

// NewSealed opens a store whose records are sealed with a key derived from passphrase.
// A new file is initialized with a random salt; an existing one must have
// been created with the same passphrase.
func NewSealed(ctx context.Context, dbPath, passphrase string) (*Storage, error) {
	s, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := s.initSealer(passphrase); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func open(dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Sealed reports whether stored values are encrypted
func (s *Storage) Sealed() bool {
	return s.sealer != nil
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketPending, bucketConflicts, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// initSealer загружает или создает соль и проверяет парольную фразу
func (s *Storage) initSealer(passphrase string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMetadata)

		salt := meta.Get([]byte(keySealSalt))
		fresh := salt == nil
		if fresh {
			// Нельзя запечатать файл, в котором уже есть открытые записи
			if k, _ := tx.Bucket(bucketRecords).Cursor().First(); k != nil {
				return fmt.Errorf("cannot seal storage with existing unsealed records")
			}

			var err error
			salt, err = crypto.GenerateSalt()
			if err != nil {
				return err
			}
		}

		sealer, err := crypto.NewPassphraseSealer(passphrase, salt)
		if err != nil {
			return fmt.Errorf("failed to create sealer: %w", err)
		}

		if fresh {
			check, err := sealer.Seal(sealCheckValue, []byte(keySealCheck))
			if err != nil {
				return fmt.Errorf("failed to seal check value: %w", err)
			}
			if err := meta.Put([]byte(keySealSalt), salt); err != nil {
				return fmt.Errorf("failed to save salt: %w", err)
			}
			if err := meta.Put([]byte(keySealCheck), check); err != nil {
				return fmt.Errorf("failed to save seal check: %w", err)
			}
		} else {
			check := meta.Get([]byte(keySealCheck))
			if _, err := sealer.Open(check, []byte(keySealCheck)); err != nil {
				return fmt.Errorf("wrong passphrase: %w", err)
			}
		}

		s.sealer = sealer
		return nil
	})
}

// encode сериализует значение и запечатывает его, если хранилище зашифровано.
// aad привязывает шифртекст к bucket и ключу.
func (s *Storage) encode(bucket []byte, key string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	if s.sealer == nil {
		return data, nil
	}
	return s.sealer.Seal(data, additionalData(bucket, key))
}

func (s *Storage) decode(bucket []byte, key string, data []byte, v any) error {
	if s.sealer != nil {
		plain, err := s.sealer.Open(data, additionalData(bucket, key))
		if err != nil {
			return fmt.Errorf("failed to open %s/%s: %w", bucket, key, err)
		}
		data = plain
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s/%s: %w", bucket, key, err)
	}
	return nil
}

func additionalData(bucket []byte, key string) []byte {
	aad := make([]byte, 0, len(bucket)+1+len(key))
	aad = append(aad, bucket...)
	aad = append(aad, '/')
	return append(aad, key...)
}

func (s *Storage) view(fn func(tx *bbolt.Tx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.View(fn)
}

func (s *Storage) update(fn func(tx *bbolt.Tx) error) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	return s.db.Update(fn)
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrRecordNotFound) ||
		errors.Is(err, storage.ErrConflictNotFound) ||
		errors.Is(err, storage.ErrMetadataNotFound)
}
