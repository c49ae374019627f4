package crdt

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// LWWRegister представляет Last-Write-Wins Register CRDT.
// Хранит победившую запись (значение, метка времени, реплика).
//
// Регистр - значение: Update и Merge возвращают новый регистр
// и не меняют ни один из входов.
type LWWRegister[T any] struct {
	Timestamp time.Time `json:"timestamp"`  // Timestamp UTC метка записи
	Value     T         `json:"value"`      // Value текущее значение
	ReplicaID string    `json:"replica_id"` // ReplicaID реплика, сделавшая запись
}

// NewLWWRegister создает регистр с начальной записью.
func NewLWWRegister[T any](value T, timestamp time.Time, replicaID string) LWWRegister[T] {
	return LWWRegister[T]{
		Value:     value,
		Timestamp: normalizeTime(timestamp),
		ReplicaID: replicaID,
	}
}

// CompareWrites задает полный порядок на записях.
// Согласно алгоритму LWW (Last-Write-Wins):
// 1. Сначала сравнивается Timestamp (более поздний выигрывает)
// 2. При равных Timestamp сравнивается ReplicaID (ординально, больший выигрывает)
// Возвращает 1, если запись a выигрывает, -1 если выигрывает b, 0 если записи идентичны.
func CompareWrites(tsA time.Time, replicaA string, tsB time.Time, replicaB string) int {
	if c := tsA.Compare(tsB); c != 0 {
		return c
	}
	// Timestamps равны - сравниваем ReplicaID для детерминизма
	return strings.Compare(replicaA, replicaB)
}

// IsZero сообщает, что в регистр еще не было записей.
func (r LWWRegister[T]) IsZero() bool {
	return r.Timestamp.IsZero() && r.ReplicaID == ""
}

// Wins сообщает, выигрывает ли запись r у записи other.
// При равных метке и реплике сравниваются JSON-представления значений,
// больший выигрывает.
func (r LWWRegister[T]) Wins(other LWWRegister[T]) bool {
	if c := CompareWrites(r.Timestamp, r.ReplicaID, other.Timestamp, other.ReplicaID); c != 0 {
		return c > 0
	}
	return compareValues(r.Value, other.Value) > 0
}

// compareValues упорядочивает значения по их JSON-представлению.
// Значения, которые не сериализуются, считаются равными.
func compareValues[T any](a, b T) int {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return 0
	}
	return bytes.Compare(ja, jb)
}

// Update применяет новую запись. Возвращает новый регистр и true,
// если входящая запись выиграла тай-брейк; иначе исходный регистр и false.
func (r LWWRegister[T]) Update(value T, timestamp time.Time, replicaID string) (LWWRegister[T], bool) {
	incoming := NewLWWRegister(value, timestamp, replicaID)
	if r.IsZero() || incoming.Wins(r) {
		return incoming, true
	}
	return r, false
}

// Merge возвращает победителя из двух регистров.
// Операция коммутативна, ассоциативна и идемпотентна.
func (r LWWRegister[T]) Merge(other LWWRegister[T]) LWWRegister[T] {
	if other.Wins(r) {
		return other
	}
	return r
}
