package data

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/synccore/internal/crdt"
	"github.com/iudanet/synccore/internal/models"
	"github.com/iudanet/synccore/internal/storage"
	"github.com/iudanet/synccore/internal/validation"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	service  Service
	records  *storage.RecordStorageMock
	metadata *storage.MetadataStorageMock
	stored   map[string]*models.Record
	lastTS   time.Time
}

// newFixture создает сервис поверх in-memory моков хранилища
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{stored: make(map[string]*models.Record)}

	f.records = &storage.RecordStorageMock{
		SaveRecordFunc: func(ctx context.Context, rec *models.Record) error {
			f.stored[rec.ID] = rec
			return nil
		},
		GetRecordFunc: func(ctx context.Context, syncID string) (*models.Record, error) {
			if rec, ok := f.stored[syncID]; ok {
				return rec, nil
			}
			return nil, storage.ErrRecordNotFound
		},
		ListRecordsFunc: func(ctx context.Context) ([]*models.Record, error) {
			result := make([]*models.Record, 0, len(f.stored))
			for _, rec := range f.stored {
				result = append(result, rec)
			}
			return result, nil
		},
		ListRecordsByTypeFunc: func(ctx context.Context, kind string) ([]*models.Record, error) {
			result := make([]*models.Record, 0)
			for _, rec := range f.stored {
				if rec.Type == kind {
					result = append(result, rec)
				}
			}
			return result, nil
		},
	}

	f.metadata = &storage.MetadataStorageMock{
		SaveLastWriteTimestampFunc: func(ctx context.Context, ts time.Time) error {
			f.lastTS = ts
			return nil
		},
	}

	tick := baseTime
	clock := crdt.NewReplicaClockWithID("r1").WithTimeSource(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = NewService(f.records, f.metadata, clock, nil, logger)
	return f
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)

	rec, err := f.service.Create(context.Background(), "product", map[string]crdt.FieldValue{
		"name":  crdt.Text("tea"),
		"price": crdt.Number(10),
	})
	require.NoError(t, err)

	assert.NoError(t, validation.ValidateSyncID(rec.ID))
	assert.Equal(t, "product", rec.Type)
	assert.True(t, rec.IsPendingSync())
	assert.Equal(t, crdt.VectorClock{"r1": 1}, rec.Version)

	ts, replica := rec.WriteStamp()
	assert.Equal(t, "r1", replica)
	assert.True(t, ts.Equal(baseTime.Add(time.Second)))
	assert.True(t, f.lastTS.Equal(ts), "last write timestamp must be persisted")

	require.Len(t, f.records.SaveRecordCalls(), 1)
	assert.Same(t, rec, f.records.SaveRecordCalls()[0].Rec)
}

func TestService_Create_Invalid(t *testing.T) {
	tests := []struct {
		fields  map[string]crdt.FieldValue
		wantErr error
		name    string
		kind    string
	}{
		{name: "no fields", kind: "note", fields: nil, wantErr: ErrNoChanges},
		{name: "reserved field", kind: "note", fields: map[string]crdt.FieldValue{models.FieldDeleted: crdt.Bool(false)}, wantErr: ErrReservedField},
		{name: "bad field name", kind: "note", fields: map[string]crdt.FieldValue{"Bad Name": crdt.Null()}},
		{name: "bad kind", kind: "", fields: map[string]crdt.FieldValue{"a": crdt.Null()}},
		{name: "text too long", kind: "note", fields: map[string]crdt.FieldValue{"text": crdt.Text(strings.Repeat("x", validation.MaxTextLen+1))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.service.Create(context.Background(), tt.kind, tt.fields)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Empty(t, f.records.SaveRecordCalls())
		})
	}
}

func TestService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, "product", map[string]crdt.FieldValue{"price": crdt.Number(10)})
	require.NoError(t, err)

	updated, err := f.service.Update(ctx, created.ID, map[string]crdt.FieldValue{"price": crdt.Number(12)})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, uint64(2), updated.Version.Get("r1"))
	assert.Equal(t, crdt.After, updated.Version.Compare(created.Version))

	price, _ := crdt.Lookup[float64](updated.Fields, "price")
	assert.Equal(t, 12.0, price)
}

func TestService_Update_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Update(context.Background(), "6f1c2d3e-4b5a-4c6d-8e7f-9a0b1c2d3e4f", map[string]crdt.FieldValue{"a": crdt.Bool(true)})
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.Create(ctx, "note", map[string]crdt.FieldValue{"text": crdt.Text("hello")})
	require.NoError(t, err)

	deleted, err := f.service.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted())
	assert.True(t, deleted.IsPendingSync())

	_, err = f.service.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrRecordDeleted)

	_, err = f.service.Update(ctx, created.ID, map[string]crdt.FieldValue{"text": crdt.Text("again")})
	assert.ErrorIs(t, err, ErrRecordDeleted)

	_, err = f.service.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, ErrRecordDeleted)
}

func TestService_Get_InvalidID(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Get(context.Background(), "not-a-uuid")
	assert.Error(t, err)
	assert.Empty(t, f.records.GetRecordCalls())
}

func TestService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	note, err := f.service.Create(ctx, "note", map[string]crdt.FieldValue{"text": crdt.Text("a")})
	require.NoError(t, err)
	_, err = f.service.Create(ctx, "product", map[string]crdt.FieldValue{"price": crdt.Number(1)})
	require.NoError(t, err)
	gone, err := f.service.Create(ctx, "note", map[string]crdt.FieldValue{"text": crdt.Text("b")})
	require.NoError(t, err)
	_, err = f.service.Delete(ctx, gone.ID)
	require.NoError(t, err)

	all, err := f.service.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	notes, err := f.service.List(ctx, "note")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, note.ID, notes[0].ID)
}

func TestService_StorageErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("disk full")

	f.records.SaveRecordFunc = func(ctx context.Context, rec *models.Record) error { return boom }
	_, err := f.service.Create(ctx, "note", map[string]crdt.FieldValue{"text": crdt.Text("x")})
	assert.ErrorIs(t, err, boom)

	f.records.ListRecordsFunc = func(ctx context.Context) ([]*models.Record, error) { return nil, boom }
	_, err = f.service.List(ctx, "")
	assert.ErrorIs(t, err, boom)
}

func TestService_LastWriteTimestampFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.metadata.SaveLastWriteTimestampFunc = func(ctx context.Context, ts time.Time) error {
		return errors.New("metadata unavailable")
	}

	rec, err := f.service.Create(context.Background(), "note", map[string]crdt.FieldValue{"text": crdt.Text("x")})
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Len(t, f.records.SaveRecordCalls(), 1)
}

// Параллельные правки одной записи не теряют поля и получают разные часы
func TestService_ConcurrentUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	f.records.SaveRecordFunc = func(ctx context.Context, rec *models.Record) error {
		mu.Lock()
		defer mu.Unlock()
		f.stored[rec.ID] = rec
		return nil
	}
	f.records.GetRecordFunc = func(ctx context.Context, syncID string) (*models.Record, error) {
		mu.Lock()
		rec, ok := f.stored[syncID]
		mu.Unlock()
		if !ok {
			return nil, storage.ErrRecordNotFound
		}
		// Расширяем окно между чтением и записью
		time.Sleep(5 * time.Millisecond)
		return rec, nil
	}
	f.metadata.SaveLastWriteTimestampFunc = func(ctx context.Context, ts time.Time) error { return nil }

	rec, err := f.service.Create(ctx, "note", map[string]crdt.FieldValue{"a": crdt.Number(0)})
	require.NoError(t, err)

	fields := []string{"b", "c", "d", "e", "f", "g", "h", "i"}
	var wg sync.WaitGroup
	clocks := make([]crdt.VectorClock, len(fields))
	for i, name := range fields {
		wg.Add(1)
		go func() {
			defer wg.Done()
			edited, err := f.service.Update(ctx, rec.ID, map[string]crdt.FieldValue{name: crdt.Number(float64(i))})
			if assert.NoError(t, err) {
				clocks[i] = edited.Version
			}
		}()
	}
	wg.Wait()

	final, err := f.service.Get(ctx, rec.ID)
	require.NoError(t, err)
	for _, name := range fields {
		assert.True(t, final.Fields.Has(name), "edit of %s lost", name)
	}
	assert.Equal(t, crdt.VectorClock{"r1": uint64(len(fields) + 1)}, final.Version)

	seen := make(map[uint64]bool, len(clocks))
	for _, c := range clocks {
		assert.False(t, seen[c.Get("r1")], "two edits share clock %s", c)
		seen[c.Get("r1")] = true
	}
}

func TestService_ConcurrentDeleteAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	locks := storage.NewRecordLocker()
	tick := baseTime
	clock := crdt.NewReplicaClockWithID("r1").WithTimeSource(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})
	f.service = NewService(f.records, f.metadata, clock, locks, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec, err := f.service.Create(ctx, "note", map[string]crdt.FieldValue{"text": crdt.Text("x")})
	require.NoError(t, err)

	// Пока запись удерживает другой участник, правка ждет
	unlock := locks.Lock(rec.ID)
	done := make(chan error, 1)
	go func() {
		_, err := f.service.Delete(ctx, rec.ID)
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("delete must wait for the record lock")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	require.NoError(t, <-done)

	_, err = f.service.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrRecordDeleted)
}
