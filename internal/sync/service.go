// Package sync reconciles records of a local replica with versions coming
// from another replica: a peer store, a hub store or an exported bundle.
//
// Every version goes through the resolver. Versions that dominate the local
// copy replace it, concurrent versions are merged by the configured strategy
// or stored as a conflict for manual resolution. Merges of one SyncId are
// serialized; different records are reconciled in parallel.
package sync

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/iudanet/synccore/internal/crdt"
	"github.com/iudanet/synccore/internal/metrics"
	"github.com/iudanet/synccore/internal/models"
	"github.com/iudanet/synccore/internal/resolver"
	"github.com/iudanet/synccore/internal/storage"
	"github.com/iudanet/synccore/pkg/api"
)

// DefaultWorkers bounds concurrent reconciliations in ReconcileAll
const DefaultWorkers = 4

// MergeAll asks ResolveConflict to merge all alternatives field by field
const MergeAll = -1

// Service определяет интерфейс sync.Service
type Service interface {
	// Reconcile сливает одну входящую версию с локальной копией
	Reconcile(ctx context.Context, remote *models.Record) (Action, error)

	// ReconcileAll сливает пачку версий; ошибки слияния отдельных записей
	// не прерывают пачку и учитываются в Skipped
	ReconcileAll(ctx context.Context, remotes []*models.Record) (*Result, error)

	// Exchange выполняет двусторонний обмен с другим хранилищем
	Exchange(ctx context.Context, peer storage.RecordStorage) (*Result, error)

	// ResolveConflict завершает ручное разрешение конфликта выбранной версией
	ResolveConflict(ctx context.Context, syncID string, pick int) (*models.Record, error)

	// Export записывает записи реплики в bundle
	Export(ctx context.Context, w io.Writer, pendingOnly bool) (*api.Bundle, error)

	// Import применяет bundle другой реплики
	Import(ctx context.Context, r io.Reader) (*Result, error)

	// Status возвращает сводку по локальной реплике
	Status(ctx context.Context) (*Status, error)
}

// Action describes what Reconcile did with an incoming version
type Action int

const (
	// ActionUnchanged - версия уже известна локально или устарела
	ActionUnchanged Action = iota
	// ActionInserted - запись сохранена впервые
	ActionInserted
	// ActionUpdated - локальная копия заменена доминирующей версией
	ActionUpdated
	// ActionMerged - конкурентные версии слиты стратегией
	ActionMerged
	// ActionConflict - конкурентные версии сохранены для ручного разрешения
	ActionConflict
)

func (a Action) String() string {
	switch a {
	case ActionInserted:
		return "inserted"
	case ActionUpdated:
		return "updated"
	case ActionMerged:
		return "merged"
	case ActionConflict:
		return "conflict"
	default:
		return "unchanged"
	}
}

// Result contains reconciliation results
type Result struct {
	Received  int // количество полученных версий
	Inserted  int // количество новых записей
	Updated   int // количество записей, замененных доминирующей версией
	Merged    int // количество слитых конкурентных версий
	Conflicts int // количество версий, отложенных для ручного разрешения
	Unchanged int // количество уже известных версий
	Skipped   int // количество пропущенных версий (ошибки мержа)
	Pushed    int // количество отправленных версий
}

func (r *Result) count(action Action) {
	switch action {
	case ActionInserted:
		r.Inserted++
	case ActionUpdated:
		r.Updated++
	case ActionMerged:
		r.Merged++
	case ActionConflict:
		r.Conflicts++
	default:
		r.Unchanged++
	}
}

// Status summarizes the local replica
type Status struct {
	LastSyncAt time.Time
	ReplicaID  string
	Records    int
	Deleted    int
	Pending    int
	Conflicts  int
}

// Option configures the service
type Option func(*service)

// WithWorkers sets the number of concurrent reconciliations
func WithWorkers(n int) Option {
	return func(s *service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMetrics enables Prometheus collectors
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithLocker shares per-record locks with the data service of the replica,
// so local edits and merges of one record never interleave
func WithLocker(l *storage.RecordLocker) Option {
	return func(s *service) {
		if l != nil {
			s.locks = l
		}
	}
}

// WithTimeSource replaces the clock used for SyncedAt and DetectedAt (tests)
func WithTimeSource(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// service handles synchronization of one local replica
type service struct {
	store    storage.Store
	resolver *resolver.Resolver
	clock    *crdt.ReplicaClock
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
	locks    *storage.RecordLocker
	workers  int
}

// NewService creates a new sync service
func NewService(store storage.Store, r *resolver.Resolver, clock *crdt.ReplicaClock, logger *slog.Logger, opts ...Option) Service {
	s := &service{
		store:    store,
		resolver: r,
		clock:    clock,
		logger:   logger,
		now:      time.Now,
		locks:    storage.NewRecordLocker(),
		workers:  DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns a summary of the local replica
func (s *service) Status(ctx context.Context) (*Status, error) {
	records, err := s.store.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	conflicts, err := s.store.ListConflicts(ctx)
	if err != nil {
		return nil, err
	}
	lastSync, err := s.store.GetLastSyncAt(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{
		ReplicaID:  s.clock.ReplicaID(),
		LastSyncAt: lastSync,
		Records:    len(records),
		Conflicts:  len(conflicts),
	}
	for _, rec := range records {
		if rec.IsDeleted() {
			st.Deleted++
		}
		if rec.IsPendingSync() {
			st.Pending++
		}
	}

	s.metrics.SetQueue(st.Pending, st.Conflicts)
	return st, nil
}

// refreshQueue updates queue gauges; failures only affect metrics
func (s *service) refreshQueue(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	pending, err := s.store.CountPending(ctx)
	if err != nil {
		s.logger.Debug("Failed to count pending records", "error", err)
		return
	}
	conflicts, err := s.store.ListConflicts(ctx)
	if err != nil {
		s.logger.Debug("Failed to list conflicts", "error", err)
		return
	}
	s.metrics.SetQueue(pending, len(conflicts))
}
