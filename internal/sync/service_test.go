package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/synccore/internal/crdt"
	"github.com/iudanet/synccore/internal/data"
	"github.com/iudanet/synccore/internal/metrics"
	"github.com/iudanet/synccore/internal/models"
	"github.com/iudanet/synccore/internal/resolver"
	"github.com/iudanet/synccore/internal/storage"
	"github.com/iudanet/synccore/internal/storage/boltdb"
)

var (
	epoch    = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	syncTime = time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
)

// replica объединяет хранилище и сервисы одной реплики для тестов
type replica struct {
	store   *boltdb.Storage
	data    data.Service
	sync    Service
	metrics *metrics.Metrics
	locks   *storage.RecordLocker
	id      string
}

func defaultConfig(t *testing.T) *resolver.Config {
	t.Helper()
	cfg := resolver.NewConfig()
	require.NoError(t, cfg.SetDefault(resolver.FieldLevelMerge))
	require.NoError(t, resolver.ConfigureKind[*models.Record](cfg, "note", resolver.KeepBoth))
	return cfg
}

// newReplica создает реплику, часы которой начинают с start и идут по секунде на запись
func newReplica(t *testing.T, id string, start time.Time, cfg *resolver.Config) *replica {
	t.Helper()
	ctx := context.Background()

	store, err := boltdb.New(ctx, filepath.Join(t.TempDir(), id+".db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	_, err = data.InitReplica(ctx, store, id)
	require.NoError(t, err)

	tick := start
	clock := crdt.NewReplicaClockWithID(id).WithTimeSource(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})

	r, err := resolver.New(cfg)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	locks := storage.NewRecordLocker()

	return &replica{
		id:      id,
		store:   store,
		metrics: m,
		locks:   locks,
		data:    data.NewService(store, store, clock, locks, logger),
		sync: NewService(store, r, clock, logger,
			WithLocker(locks),
			WithMetrics(m),
			WithWorkers(4),
			WithTimeSource(func() time.Time { return syncTime })),
	}
}

func (r *replica) get(t *testing.T, syncID string) *models.Record {
	t.Helper()
	rec, err := r.store.GetRecord(context.Background(), syncID)
	require.NoError(t, err)
	return rec
}

// share создает запись на from и доставляет ее на остальные реплики
func share(t *testing.T, from *replica, kind string, fields map[string]crdt.FieldValue, to ...*replica) *models.Record {
	t.Helper()
	ctx := context.Background()

	rec, err := from.data.Create(ctx, kind, fields)
	require.NoError(t, err)
	for _, r := range to {
		action, err := r.sync.Reconcile(ctx, rec)
		require.NoError(t, err)
		require.Equal(t, ActionInserted, action)
	}
	return rec
}

func TestReconcile_Insert(t *testing.T) {
	a := newReplica(t, "r1", epoch, defaultConfig(t))
	b := newReplica(t, "r2", epoch, defaultConfig(t))

	rec := share(t, a, "product", map[string]crdt.FieldValue{"price": crdt.Number(10)}, b)

	stored := b.get(t, rec.ID)
	assert.False(t, stored.IsPendingSync(), "received version is not a local change")
	assert.True(t, stored.LastSyncAt().Equal(syncTime))
	assert.True(t, stored.Version.Equal(rec.Version))
	assert.True(t, stored.Fields.Equal(rec.Fields))
}

func TestReconcile_Dominance(t *testing.T) {
	ctx := context.Background()
	a := newReplica(t, "r1", epoch, defaultConfig(t))
	b := newReplica(t, "r2", epoch, defaultConfig(t))

	rec := share(t, a, "product", map[string]crdt.FieldValue{"price": crdt.Number(10)}, b)
	newer, err := a.data.Update(ctx, rec.ID, map[string]crdt.FieldValue{"price": crdt.Number(11)})
	require.NoError(t, err)

	tests := []struct {
		remote *models.Record
		name   string
		want   Action
	}{
		{name: "same version", remote: rec, want: ActionUnchanged},
		{name: "newer version", remote: newer, want: ActionUpdated},
		{name: "older version after update", remote: rec, want: ActionUnchanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := b.sync.Reconcile(ctx, tt.remote)
			require.NoError(t, err)
			assert.Equal(t, tt.want, action)
		})
	}

	price, _ := crdt.Lookup[float64](b.get(t, rec.ID).Fields, "price")
	assert.Equal(t, 11.0, price)
}

func TestExchange_ConcurrentFieldMerge(t *testing.T) {
	ctx := context.Background()
	a := newReplica(t, "r1", epoch.Add(100*time.Second), defaultConfig(t))
	b := newReplica(t, "r2", epoch.Add(105*time.Second), defaultConfig(t))

	rec := share(t, a, "product", map[string]crdt.FieldValue{
		"price": crdt.Number(1),
		"name":  crdt.Text("tea"),
	}, b)

	_, err := a.data.Update(ctx, rec.ID, map[string]crdt.FieldValue{"price": crdt.Number(10)})
	require.NoError(t, err)
	_, err = b.data.Update(ctx, rec.ID, map[string]crdt.FieldValue{"price": crdt.Number(12), "name": crdt.Text("green tea")})
	require.NoError(t, err)

	result, err := a.sync.Exchange(ctx, b.store)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Received)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, 1, result.Pushed)

	left, right := a.get(t, rec.ID), b.get(t, rec.ID)

	assert.True(t, left.Version.Equal(crdt.VectorClock{"r1": 2, "r2": 1}), "got %s", left.Version)
	assert.True(t, left.Version.Equal(right.Version))
	assert.True(t, left.Fields.Equal(right.Fields), "replicas must converge")

	price, _ := crdt.Lookup[float64](left.Fields, "price")
	assert.Equal(t, 12.0, price, "later write wins per field")
	name, _ := crdt.Lookup[string](left.Fields, "name")
	assert.Equal(t, "green tea", name)

	assert.False(t, left.IsPendingSync())
	assert.False(t, right.IsPendingSync())

	lastSync, err := a.store.GetLastSyncAt(ctx)
	require.NoError(t, err)
	assert.True(t, lastSync.Equal(syncTime))

	// Повторный обмен ничего не меняет
	again, err := a.sync.Exchange(ctx, b.store)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Unchanged)
	assert.Zero(t, again.Pushed)
}

func TestExchange_DeleteAgainstConcurrentEdit(t *testing.T) {
	ctx := context.Background()
	a := newReplica(t, "r1", epoch, defaultConfig(t))
	b := newReplica(t, "r2", epoch.Add(time.Minute), defaultConfig(t))

	rec := share(t, a, "product", map[string]crdt.FieldValue{"name": crdt.Text("tea")}, b)

	_, err := a.data.Delete(ctx, rec.ID)
	require.NoError(t, err)
	_, err = b.data.Update(ctx, rec.ID, map[string]crdt.FieldValue{"name": crdt.Text("black tea")})
	require.NoError(t, err)

	_, err = b.sync.Exchange(ctx, a.store)
	require.NoError(t, err)

	for _, r := range []*replica{a, b} {
		merged := r.get(t, rec.ID)
		assert.True(t, merged.IsDeleted(), "delete survives a concurrent edit of another field")
		name, _ := crdt.Lookup[string](merged.Fields, "name")
		assert.Equal(t, "black tea", name)
	}
}

func TestExchange_KeepBothAndResolve(t *testing.T) {
	ctx := context.Background()
	a := newReplica(t, "r1", epoch, defaultConfig(t))
	b := newReplica(t, "r2", epoch, defaultConfig(t))

	rec := share(t, a, "note", map[string]crdt.FieldValue{"text": crdt.Text("draft")}, b)

	_, err := a.data.Update(ctx, rec.ID, map[string]crdt.FieldValue{"text": crdt.Text("from a")})
	require.NoError(t, err)
	_, err = b.data.Update(ctx, rec.ID, map[string]crdt.FieldValue{"text": crdt.Text("from b")})
	require.NoError(t, err)

	result, err := a.sync.Exchange(ctx, b.store)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)
	assert.Zero(t, result.Pushed, "records with open conflicts stay local")

	// Локальная версия не меняется до ручного разрешения
	text, _ := crdt.Lookup[string](a.get(t, rec.ID).Fields, "text")
	assert.Equal(t, "from a", text)

	conflict, err := a.store.GetConflict(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, conflict.Versions(), 2)

	again, err := a.sync.Exchange(ctx, b.store)
	require.NoError(t, err)
	assert.Zero(t, again.Conflicts, "known alternatives do not reopen the conflict")
	assert.Equal(t, 1, again.Unchanged)

	pick := -1
	for i, v := range conflict.Versions() {
		if s, _ := crdt.Lookup[string](v.Fields, "text"); s == "from b" {
			pick = i
		}
	}
	require.NotEqual(t, -1, pick)

	resolved, err := a.sync.ResolveConflict(ctx, rec.ID, pick)
	require.NoError(t, err)

	for _, v := range conflict.Versions() {
		assert.Equal(t, crdt.After, resolved.Version.Compare(v.Version), "resolved clock dominates every alternative")
	}
	assert.True(t, resolved.IsPendingSync())
	text, _ = crdt.Lookup[string](resolved.Fields, "text")
	assert.Equal(t, "from b", text)

	_, err = a.store.GetConflict(ctx, rec.ID)
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)

	final, err := a.sync.Exchange(ctx, b.store)
	require.NoError(t, err)
	assert.Equal(t, 1, final.Pushed)
	assert.True(t, b.get(t, rec.ID).Version.Equal(resolved.Version))
}

func TestResolveConflict_MergeAll(t *testing.T) {
	ctx := context.Background()
	a := newReplica(t, "r1", epoch, defaultConfig(t))
	b := newReplica(t, "r2", epoch.Add(time.Minute), defaultConfig(t))

	rec := share(t, a, "note", map[string]crdt.FieldValue{"text": crdt.Text("draft")}, b)

	_, err := a.data.Update(ctx, rec.ID, map[string]crdt.FieldValue{"title": crdt.Text("A")})
	require.NoError(t, err)
	_, err = b.data.Update(ctx, rec.ID, map[string]crdt.FieldValue{"text": crdt.Text("B")})
	require.NoError(t, err)

	_, err = a.sync.Reconcile(ctx, b.get(t, rec.ID))
	require.NoError(t, err)

	resolved, err := a.sync.ResolveConflict(ctx, rec.ID, MergeAll)
	require.NoError(t, err)

	title, _ := crdt.Lookup[string](resolved.Fields, "title")
	text, _ := crdt.Lookup[string](resolved.Fields, "text")
	assert.Equal(t, "A", title)
	assert.Equal(t, "B", text)
	assert.Equal(t, uint64(3), resolved.Version.Get("r1"))
	assert.Equal(t, uint64(1), resolved.Version.Get("r2"))
}

func TestResolveConflict_Errors(t *testing.T) {
	ctx := context.Background()
	a := newReplica(t, "r1", epoch, defaultConfig(t))

	_, err := a.sync.ResolveConflict(ctx, "6f1c2d3e-4b5a-4c6d-8e7f-9a0b1c2d3e4f", 0)
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)
}

func TestReconcile_ConflictSuperseded(t *testing.T) {
	ctx := context.Background()
	a := newReplica(t, "r1", epoch, defaultConfig(t))
	b := newReplica(t, "r2", epoch, defaultConfig(t))

	rec := share(t, a, "note", map[string]crdt.FieldValue{"text": crdt.Text("draft")}, b)
	_, err := a.data.Update(ctx, rec.ID, map[string]crdt.FieldValue{"text": crdt.Text("from a")})
	require.NoError(t, err)
	_, err = b.data.Update(ctx, rec.ID, map[string]crdt.FieldValue{"text": crdt.Text("from b")})
	require.NoError(t, err)

	action, err := a.sync.Reconcile(ctx, b.get(t, rec.ID))
	require.NoError(t, err)
	require.Equal(t, ActionConflict, action)

	// b разрешает конфликт у себя: его версия доминирует над обеими альтернативами
	_, err = b.sync.Reconcile(ctx, a.get(t, rec.ID))
	require.NoError(t, err)
	resolved, err := b.sync.ResolveConflict(ctx, rec.ID, 0)
	require.NoError(t, err)

	action, err = a.sync.Reconcile(ctx, resolved)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, action)

	_, err = a.store.GetConflict(ctx, rec.ID)
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)
	assert.True(t, a.get(t, rec.ID).Version.Equal(resolved.Version))
}

func TestReconcileAll_SkipsBadRecords(t *testing.T) {
	ctx := context.Background()
	a := newReplica(t, "r1", epoch, defaultConfig(t))
	b := newReplica(t, "r2", epoch, defaultConfig(t))

	existing := share(t, a, "product", map[string]crdt.FieldValue{"price": crdt.Number(1)}, b)
	fresh, err := a.data.Create(ctx, "product", map[string]crdt.FieldValue{"price": crdt.Number(2)})
	require.NoError(t, err)

	noClock := models.NewRecord("product")
	noClock.Version = nil

	otherKind := existing.Clone()
	otherKind.Type = "note"
	otherKind.Version = otherKind.Version.Increment("r1")

	result, err := b.sync.ReconcileAll(ctx, []*models.Record{fresh, noClock, otherKind, nil})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Received)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, 3, result.Skipped)

	count, err := testutil.GatherAndCount(b.metrics.Registry(), "synccore_reconcile_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "kind mismatch is counted at the resolve stage")
}

func TestReconcileAll_ConcurrentVersionsOfOneRecord(t *testing.T) {
	ctx := context.Background()
	a := newReplica(t, "r0", epoch, defaultConfig(t))

	base, err := a.data.Create(ctx, "product", map[string]crdt.FieldValue{"name": crdt.Text("tea")})
	require.NoError(t, err)

	const n = 32
	versions := make([]*models.Record, 0, n)
	for i := range n {
		replicaID := "peer-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		field := "f_" + replicaID[5:]
		versions = append(versions, base.Edit(replicaID, epoch.Add(time.Duration(i)*time.Second), map[string]crdt.FieldValue{
			field: crdt.Number(float64(i)),
		}))
	}

	result, err := a.sync.ReconcileAll(ctx, versions)
	require.NoError(t, err)
	// Первая версия доминирует над base, остальные конкурентны
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, n-1, result.Merged)
	assert.Zero(t, result.Skipped)

	merged := a.get(t, base.ID)
	assert.Equal(t, n+1, merged.Fields.Len(), "no concurrent write may be lost")
	for _, v := range versions {
		assert.Equal(t, crdt.After, merged.Version.Compare(v.Version))
	}
}

// Локальная правка и слияние одной записи не перемежаются
func TestReconcile_SerializedWithLocalEdit(t *testing.T) {
	ctx := context.Background()
	a := newReplica(t, "r1", epoch, defaultConfig(t))
	b := newReplica(t, "r2", epoch.Add(time.Minute), defaultConfig(t))

	rec := share(t, a, "product", map[string]crdt.FieldValue{"price": crdt.Number(10)}, b)
	remote, err := b.data.Update(ctx, rec.ID, map[string]crdt.FieldValue{"name": crdt.Text("tea")})
	require.NoError(t, err)

	unlock := a.locks.Lock(rec.ID)

	var wg stdsync.WaitGroup
	finished := make(chan string, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := a.data.Update(ctx, rec.ID, map[string]crdt.FieldValue{"stock": crdt.Number(3)})
		assert.NoError(t, err)
		finished <- "update"
	}()
	go func() {
		defer wg.Done()
		_, err := a.sync.Reconcile(ctx, remote)
		assert.NoError(t, err)
		finished <- "reconcile"
	}()

	select {
	case op := <-finished:
		t.Fatalf("%s ran while the record was locked", op)
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	wg.Wait()

	final := a.get(t, rec.ID)
	for _, field := range []string{"price", "name", "stock"} {
		assert.True(t, final.Fields.Has(field), "field %s lost", field)
	}
	assert.True(t, final.Version.Dominates(remote.Version))
	assert.Equal(t, uint64(2), final.Version.Get("r1"))
}

func TestReconcileAll_StorageFailureAborts(t *testing.T) {
	boom := errors.New("disk failure")
	store := &mockStore{
		RecordStorageMock: &storage.RecordStorageMock{
			GetRecordFunc: func(ctx context.Context, syncID string) (*models.Record, error) {
				return nil, boom
			},
		},
	}

	r, err := resolver.New(defaultConfig(t))
	require.NoError(t, err)
	svc := NewService(store, r, crdt.NewReplicaClockWithID("r1"), slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec := models.NewRecord("product").Edit("r2", epoch, map[string]crdt.FieldValue{"price": crdt.Number(1)})
	_, err = svc.ReconcileAll(context.Background(), []*models.Record{rec})
	assert.ErrorIs(t, err, boom)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	a := newReplica(t, "r1", epoch, defaultConfig(t))
	b := newReplica(t, "r2", epoch, defaultConfig(t))

	kept := share(t, a, "product", map[string]crdt.FieldValue{"price": crdt.Number(1)}, b)
	gone, err := a.data.Create(ctx, "product", map[string]crdt.FieldValue{"price": crdt.Number(2)})
	require.NoError(t, err)
	_, err = a.data.Delete(ctx, gone.ID)
	require.NoError(t, err)

	st, err := a.sync.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r1", st.ReplicaID)
	assert.Equal(t, 2, st.Records)
	assert.Equal(t, 1, st.Deleted)
	assert.Equal(t, 2, st.Pending)
	assert.Zero(t, st.Conflicts)
	assert.True(t, st.LastSyncAt.IsZero())

	_, err = a.sync.Exchange(ctx, b.store)
	require.NoError(t, err)

	st, err = a.sync.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Pending)
	assert.True(t, st.LastSyncAt.Equal(syncTime))
	assert.Len(t, mustList(t, b.store), 2)
	assert.False(t, a.get(t, kept.ID).IsPendingSync(), "peer already had this version")
}

func mustList(t *testing.T, s storage.RecordStorage) []*models.Record {
	t.Helper()
	records, err := s.ListRecords(context.Background())
	require.NoError(t, err)
	return records
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "inserted", ActionInserted.String())
	assert.Equal(t, "conflict", ActionConflict.String())
	assert.Equal(t, "unchanged", Action(99).String())
}

// mockStore собирает storage.Store из сгенерированных моков
type mockStore struct {
	*storage.RecordStorageMock
	*storage.ConflictStorageMock
	*storage.MetadataStorageMock
}

func (m *mockStore) Close() error { return nil }
