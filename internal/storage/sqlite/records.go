package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/synccore/internal/models"
	"github.com/iudanet/synccore/internal/storage"
)

var _ storage.RecordStorage = (*Storage)(nil)

const selectRecord = `
	SELECT sync_id, kind, clock, fields, pending, synced_at
	FROM records
`

// SaveRecord stores or replaces a record
func (s *Storage) SaveRecord(ctx context.Context, rec *models.Record) error {
	if err := storage.ValidateRecord(rec); err != nil {
		return err
	}

	clock, err := json.Marshal(rec.Version)
	if err != nil {
		return fmt.Errorf("failed to marshal clock: %w", err)
	}

	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields: %w", err)
	}

	updatedAt, _ := rec.WriteStamp()

	query := `
		INSERT INTO records (
			sync_id, kind, clock, fields, pending, deleted, synced_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (sync_id) DO UPDATE SET
			kind = excluded.kind,
			clock = excluded.clock,
			fields = excluded.fields,
			pending = excluded.pending,
			deleted = excluded.deleted,
			synced_at = excluded.synced_at,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID,
		rec.Type,
		string(clock),
		string(fields),
		boolToInt(rec.Pending),
		boolToInt(rec.IsDeleted()),
		formatTime(rec.SyncedAt),
		formatTime(updatedAt),
	)

	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

// GetRecord retrieves a record by SyncId
// Returns ErrRecordNotFound if record doesn't exist
func (s *Storage) GetRecord(ctx context.Context, syncID string) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+` WHERE sync_id = ?`, syncID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return rec, nil
}

// ListRecords returns all records (including deleted ones) ordered by SyncId
func (s *Storage) ListRecords(ctx context.Context) ([]*models.Record, error) {
	return s.queryRecords(ctx, selectRecord+` ORDER BY sync_id`)
}

// ListRecordsByType returns all records of the given kind ordered by SyncId
func (s *Storage) ListRecordsByType(ctx context.Context, kind string) ([]*models.Record, error) {
	return s.queryRecords(ctx, selectRecord+` WHERE kind = ? ORDER BY sync_id`, kind)
}

// ListPending returns records with changes not yet synchronized
func (s *Storage) ListPending(ctx context.Context) ([]*models.Record, error) {
	return s.queryRecords(ctx, selectRecord+` WHERE pending = 1 ORDER BY sync_id`)
}

// CountPending returns the size of the pending-sync queue
func (s *Storage) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE pending = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending records: %w", err)
	}
	return count, nil
}

// CountDeleted returns the number of records carrying a delete marker
func (s *Storage) CountDeleted(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE deleted = 1`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count deleted records: %w", err)
	}
	return count, nil
}

func (s *Storage) queryRecords(ctx context.Context, query string, args ...any) (records []*models.Record, err error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		rec      models.Record
		clock    string
		fields   string
		pending  int
		syncedAt string
	)

	if err := row.Scan(&rec.ID, &rec.Type, &clock, &fields, &pending, &syncedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(clock), &rec.Version); err != nil {
		return nil, fmt.Errorf("failed to unmarshal clock of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields of %s: %w", rec.ID, err)
	}

	ts, err := parseTime(syncedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse synced_at of %s: %w", rec.ID, err)
	}

	rec.Pending = intToBool(pending)
	rec.SyncedAt = ts
	return &rec, nil
}

// Helper functions for bool/int conversion
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}

// formatTime хранит время как RFC3339Nano в UTC, нулевое время - пустая строка
func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}
