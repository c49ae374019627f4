package models

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/synccore/internal/crdt"
	"github.com/iudanet/synccore/internal/resolver"
)

// FieldDeleted имя LWW-поля, которым помечается удаление записи.
// Удаление сливается как обычное поле: конкурентная правка не воскрешает
// запись, если флаг был записан позже.
const FieldDeleted = "is_deleted"

// Record представляет синхронизируемую запись.
// Состояние записи хранится в LWWMap, причинность отслеживается одним
// векторным таймстемпом на всю запись.
type Record struct {
	SyncedAt time.Time        `json:"synced_at"` // SyncedAt время последней успешной синхронизации
	Fields   crdt.LWWMap      `json:"fields"`    // Fields поля записи (field-level LWW)
	Version  crdt.VectorClock `json:"clock"`     // Version векторный таймстемп записи
	ID       string           `json:"sync_id"`   // ID стабильный идентификатор записи на всех репликах (UUID)
	Type     string           `json:"type"`      // Type вид записи, по нему выбирается стратегия разрешения конфликтов
	Pending  bool             `json:"pending"`   // Pending есть локальные изменения, не отправленные на другие реплики
}

var (
	_ SyncableEntity                = (*Record)(nil)
	_ resolver.Stamped              = (*Record)(nil)
	_ resolver.FieldMerger[*Record] = (*Record)(nil)
	_ resolver.Kinded               = (*Record)(nil)
)

// NewRecord создает пустую запись указанного вида с новым SyncId.
func NewRecord(kind string) *Record {
	return &Record{
		ID:      uuid.New().String(),
		Type:    kind,
		Fields:  crdt.NewLWWMap(),
		Version: crdt.NewVectorClock(),
	}
}

// SyncID возвращает идентификатор записи.
func (r *Record) SyncID() string { return r.ID }

// Clock возвращает векторный таймстемп записи.
func (r *Record) Clock() crdt.VectorClock { return r.Version }

// IsPendingSync сообщает, есть ли неотправленные локальные изменения.
func (r *Record) IsPendingSync() bool { return r.Pending }

// LastSyncAt возвращает время последней синхронизации (нулевое, если ее не было).
func (r *Record) LastSyncAt() time.Time { return r.SyncedAt }

// EntityKind возвращает вид записи.
func (r *Record) EntityKind() string { return r.Type }

// WriteStamp возвращает самую позднюю запись среди всех полей.
// Используется стратегиями LastWriterWins / FirstWriterWins.
func (r *Record) WriteStamp() (time.Time, string) {
	ts, replica, _ := r.Fields.LatestWrite()
	return ts, replica
}

// LWWFields возвращает поля записи.
func (r *Record) LWWFields() crdt.LWWMap { return r.Fields }

// WithLWWFields возвращает копию записи с замененными полями.
func (r *Record) WithLWWFields(fields crdt.LWWMap) *Record {
	cp := r.Clone()
	cp.Fields = fields
	return cp
}

// WithClock возвращает копию записи с указанным векторным таймстемпом.
func (r *Record) WithClock(clock crdt.VectorClock) *Record {
	cp := r.Clone()
	cp.Version = clock.Clone()
	return cp
}

// Edit применяет локальную правку от имени replica.
// Каждое поле записывается с таймстемпом at, счетчик реплики увеличивается
// ровно один раз, запись помечается как ожидающая синхронизации.
func (r *Record) Edit(replica string, at time.Time, changes map[string]crdt.FieldValue) *Record {
	cp := r.Clone()

	names := make([]string, 0, len(changes))
	for name := range changes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cp.Fields, _ = cp.Fields.Set(name, changes[name], at, replica)
	}

	cp.Version = cp.Version.Increment(replica)
	cp.Pending = true
	return cp
}

// Delete помечает запись удаленной (поле is_deleted = true).
func (r *Record) Delete(replica string, at time.Time) *Record {
	return r.Edit(replica, at, map[string]crdt.FieldValue{FieldDeleted: crdt.Bool(true)})
}

// IsDeleted сообщает, помечена ли запись удаленной.
func (r *Record) IsDeleted() bool {
	deleted, ok := crdt.Lookup[bool](r.Fields, FieldDeleted)
	return ok && deleted
}

// MarkSynced возвращает копию записи, отмеченную как синхронизированная в момент at.
func (r *Record) MarkSynced(at time.Time) *Record {
	cp := r.Clone()
	cp.Pending = false
	cp.SyncedAt = at.UTC()
	return cp
}

// Clone создает глубокую копию записи.
// LWWMap неизменяемая, поэтому копируется только векторный таймстемп.
func (r *Record) Clone() *Record {
	cp := *r
	if r.Version != nil {
		cp.Version = r.Version.Clone()
	}
	return &cp
}
