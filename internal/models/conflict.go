package models

import (
	"fmt"
	"time"

	"github.com/iudanet/synccore/internal/crdt"
)

// Conflict хранит конкурентные версии записи, ожидающие ручного разрешения
// (стратегия KeepBoth).
type Conflict struct {
	DetectedAt   time.Time                `json:"detected_at"`  // DetectedAt время обнаружения конфликта
	Alternatives crdt.MVRegister[*Record] `json:"alternatives"` // Alternatives конкурентные версии вместе с их часами
	SyncID       string                   `json:"sync_id"`      // SyncID идентификатор записи
	Kind         string                   `json:"kind"`         // Kind вид записи
}

// NewConflict создает конфликт из набора конкурентных версий.
func NewConflict(syncID, kind string, alternatives crdt.MVRegister[*Record], at time.Time) *Conflict {
	return &Conflict{
		SyncID:       syncID,
		Kind:         kind,
		Alternatives: alternatives,
		DetectedAt:   at.UTC(),
	}
}

// Versions возвращает альтернативные версии в каноническом порядке.
func (c *Conflict) Versions() []*Record {
	return c.Alternatives.Values()
}

// Version возвращает альтернативу по номеру (с нуля).
func (c *Conflict) Version(i int) (*Record, error) {
	versions := c.Versions()
	if i < 0 || i >= len(versions) {
		return nil, fmt.Errorf("conflict %s has %d versions, got index %d", c.SyncID, len(versions), i)
	}
	return versions[i], nil
}

// Clock возвращает слияние часов всех альтернатив.
// Версия, выбранная пользователем, должна доминировать над этими часами.
func (c *Conflict) Clock() crdt.VectorClock {
	return c.Alternatives.Clock()
}

// Add добавляет еще одну конкурентную версию.
// Версии, над которыми новая доминирует, вытесняются.
func (c *Conflict) Add(version *Record) *Conflict {
	cp := *c
	cp.Alternatives = c.Alternatives.Set(version, version.Clock())
	return &cp
}
