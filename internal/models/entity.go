package models

import (
	"time"

	"github.com/iudanet/synccore/internal/crdt"
)

// SyncableEntity контракт для сущностей, участвующих в синхронизации.
// Очередь ожидающих синхронизации записей строится по IsPendingSync.
type SyncableEntity interface {
	// SyncID стабильный идентификатор сущности, общий для всех реплик
	SyncID() string
	// Clock векторный таймстемп последней известной версии
	Clock() crdt.VectorClock
	// IsPendingSync есть локальные изменения, которые еще не отправлены
	IsPendingSync() bool
	// LastSyncAt время последней успешной синхронизации, нулевое если ее не было
	LastSyncAt() time.Time
}
