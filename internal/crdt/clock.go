package crdt

import (
	"slices"
	"strconv"
	"strings"
)

// CausalRelation описывает отношение частичного порядка между двумя векторными часами.
type CausalRelation int

const (
	// Equal - часы совпадают поэлементно
	Equal CausalRelation = iota
	// Before - левые часы строго предшествуют правым
	Before
	// After - левые часы строго следуют за правыми
	After
	// Concurrent - ни одни часы не доминируют (конфликт)
	Concurrent
)

// String возвращает имя отношения для логов.
func (r CausalRelation) String() string {
	switch r {
	case Equal:
		return "equal"
	case Before:
		return "before"
	case After:
		return "after"
	case Concurrent:
		return "concurrent"
	default:
		return "unknown"
	}
}

// VectorClock представляет векторные часы: replica id -> счетчик.
// Значение неизменяемое: Increment и Merge возвращают новые часы и никогда
// не меняют получателя. Отсутствующая реплика читается как 0.
//
// nil-часы означают "часы отсутствуют" и отвергаются резолвером,
// пустые часы (NewVectorClock) - валидное начальное состояние.
type VectorClock map[string]uint64

// NewVectorClock создает пустые векторные часы.
func NewVectorClock() VectorClock {
	return make(VectorClock)
}

// Get возвращает счетчик реплики, 0 для неизвестной реплики.
func (vc VectorClock) Get(replicaID string) uint64 {
	return vc[replicaID]
}

// Clone создает независимую копию часов.
func (vc VectorClock) Clone() VectorClock {
	result := make(VectorClock, len(vc))
	for id, counter := range vc {
		result[id] = counter
	}
	return result
}

// Increment возвращает новые часы, в которых счетчик replicaID увеличен на 1.
// Реплика увеличивает только собственный счетчик.
func (vc VectorClock) Increment(replicaID string) VectorClock {
	result := vc.Clone()
	result[replicaID]++
	return result
}

// Merge возвращает поэлементный максимум по объединению ключей.
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	result := vc.Clone()
	for id, counter := range other {
		if counter > result[id] {
			result[id] = counter
		}
	}
	return result
}

// Compare определяет причинное отношение vc к other.
func (vc VectorClock) Compare(other VectorClock) CausalRelation {
	vcGreater := false
	otherGreater := false

	for id, counter := range vc {
		otherCounter := other[id]
		if counter > otherCounter {
			vcGreater = true
		} else if counter < otherCounter {
			otherGreater = true
		}
	}

	// Реплики, известные только other, у vc читаются как 0
	for id, counter := range other {
		if _, ok := vc[id]; !ok && counter > 0 {
			otherGreater = true
		}
	}

	switch {
	case vcGreater && otherGreater:
		return Concurrent
	case vcGreater:
		return After
	case otherGreater:
		return Before
	default:
		return Equal
	}
}

// Equal сообщает, совпадают ли часы. Явный нулевой счетчик равен отсутствующему.
func (vc VectorClock) Equal(other VectorClock) bool {
	return vc.Compare(other) == Equal
}

// Dominates сообщает, что vc строго следует за other.
func (vc VectorClock) Dominates(other VectorClock) bool {
	return vc.Compare(other) == After
}

// Concurrent сообщает, что ни одни часы не доминируют.
func (vc VectorClock) Concurrent(other VectorClock) bool {
	return vc.Compare(other) == Concurrent
}

// Replicas возвращает отсортированный список реплик.
func (vc VectorClock) Replicas() []string {
	ids := make([]string, 0, len(vc))
	for id := range vc {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// String возвращает каноническое представление вида {r1:1, r2:3}.
func (vc VectorClock) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, id := range vc.Replicas() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(id)
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(vc[id], 10))
	}
	b.WriteByte('}')
	return b.String()
}
