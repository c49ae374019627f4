package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iudanet/synccore/internal/crdt"
	"github.com/iudanet/synccore/internal/models"
	"github.com/iudanet/synccore/internal/storage"
	"github.com/iudanet/synccore/internal/validation"
)

var (
	// ErrRecordDeleted indicates an operation on a record marked as deleted
	ErrRecordDeleted = errors.New("record is deleted")

	// ErrNoChanges indicates an edit without any field
	ErrNoChanges = errors.New("no fields to change")

	// ErrReservedField indicates a direct write to a field managed by the service
	ErrReservedField = errors.New("field is reserved")
)

// Service определяет интерфейс локального редактирования записей.
// Каждая правка увеличивает счетчик реплики в векторном таймстемпе записи
// и ставит запись в очередь на синхронизацию.
type Service interface {
	Create(ctx context.Context, kind string, fields map[string]crdt.FieldValue) (*models.Record, error)
	Update(ctx context.Context, syncID string, fields map[string]crdt.FieldValue) (*models.Record, error)
	Delete(ctx context.Context, syncID string) (*models.Record, error)
	Get(ctx context.Context, syncID string) (*models.Record, error)
	List(ctx context.Context, kind string) ([]*models.Record, error)
}

// service handles local edits of one replica
type service struct {
	records  storage.RecordStorage
	metadata storage.MetadataStorage
	clock    *crdt.ReplicaClock
	locks    *storage.RecordLocker
	logger   *slog.Logger
}

// NewService creates a new data service.
// locks must be the locker shared with the sync service of the same replica;
// nil gives the service a private one.
func NewService(records storage.RecordStorage, metadata storage.MetadataStorage, clock *crdt.ReplicaClock, locks *storage.RecordLocker, logger *slog.Logger) Service {
	if locks == nil {
		locks = storage.NewRecordLocker()
	}
	return &service{
		records:  records,
		metadata: metadata,
		clock:    clock,
		locks:    locks,
		logger:   logger,
	}
}

// Create adds a new record of the given kind
func (s *service) Create(ctx context.Context, kind string, fields map[string]crdt.FieldValue) (*models.Record, error) {
	if err := validation.ValidateKind(kind); err != nil {
		return nil, err
	}
	if err := validateChanges(fields); err != nil {
		return nil, err
	}

	return s.apply(ctx, models.NewRecord(kind), fields)
}

// Update writes the given fields on top of an existing record
func (s *service) Update(ctx context.Context, syncID string, fields map[string]crdt.FieldValue) (*models.Record, error) {
	if err := validateChanges(fields); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(syncID)
	defer unlock()

	rec, err := s.Get(ctx, syncID)
	if err != nil {
		return nil, err
	}

	return s.apply(ctx, rec, fields)
}

// Delete marks a record as deleted (soft delete)
func (s *service) Delete(ctx context.Context, syncID string) (*models.Record, error) {
	unlock := s.locks.Lock(syncID)
	defer unlock()

	rec, err := s.Get(ctx, syncID)
	if err != nil {
		return nil, err
	}

	return s.apply(ctx, rec, map[string]crdt.FieldValue{models.FieldDeleted: crdt.Bool(true)})
}

// Get returns a live record by SyncId
func (s *service) Get(ctx context.Context, syncID string) (*models.Record, error) {
	if err := validation.ValidateSyncID(syncID); err != nil {
		return nil, err
	}

	rec, err := s.records.GetRecord(ctx, syncID)
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if rec.IsDeleted() {
		return nil, fmt.Errorf("%s: %w", syncID, ErrRecordDeleted)
	}

	return rec, nil
}

// List returns live records; an empty kind lists every kind
func (s *service) List(ctx context.Context, kind string) ([]*models.Record, error) {
	var (
		records []*models.Record
		err     error
	)
	if kind == "" {
		records, err = s.records.ListRecords(ctx)
	} else {
		records, err = s.records.ListRecordsByType(ctx, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	live := make([]*models.Record, 0, len(records))
	for _, rec := range records {
		if !rec.IsDeleted() {
			live = append(live, rec)
		}
	}
	return live, nil
}

func (s *service) apply(ctx context.Context, rec *models.Record, fields map[string]crdt.FieldValue) (*models.Record, error) {
	ts := s.clock.Now()
	edited := rec.Edit(s.clock.ReplicaID(), ts, fields)

	if err := s.records.SaveRecord(ctx, edited); err != nil {
		return nil, fmt.Errorf("failed to save record: %w", err)
	}

	// Не прерываем правку из-за ошибки сохранения метки
	if err := s.metadata.SaveLastWriteTimestamp(ctx, ts); err != nil {
		s.logger.Warn("Failed to save last write timestamp", "error", err)
	}

	s.logger.Debug("Record edited",
		"sync_id", edited.ID,
		"kind", edited.Type,
		"fields", len(fields),
		"clock", edited.Version.String())

	return edited, nil
}

func validateChanges(fields map[string]crdt.FieldValue) error {
	if len(fields) == 0 {
		return ErrNoChanges
	}
	for name, value := range fields {
		if name == models.FieldDeleted {
			return fmt.Errorf("%s: %w", name, ErrReservedField)
		}
		if err := validation.ValidateFieldName(name); err != nil {
			return err
		}
		if text, ok := value.AsText(); ok {
			if err := validation.ValidateText(text); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	return nil
}
