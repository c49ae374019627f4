package crdt

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
)

// MVEntry - одна из конкурентных версий в MVRegister.
type MVEntry[T any] struct {
	Value T           `json:"value"`
	Clock VectorClock `json:"clock"`
}

// MVRegister представляет Multi-Value Register CRDT.
//
// В отличие от LWWRegister, регистр никогда молча не отбрасывает информацию:
// все причинно-конкурентные записи сохраняются до ручного разрешения.
// После любой операции ни одна версия не доминируется другой выжившей версией.
// Версии хранятся в каноническом порядке часов, чтобы результат слияния
// не зависел от порядка аргументов.
type MVRegister[T any] struct {
	entries []MVEntry[T]
}

// NewMVRegister создает пустой регистр.
func NewMVRegister[T any]() MVRegister[T] {
	return MVRegister[T]{}
}

// Set добавляет версию (value, clock).
// Устаревшая запись (clock Before существующей) пропускается. При равных часах
// остается версия с большим JSON-представлением значения, как и в Merge.
// Версии, доминируемые новой, удаляются.
func (r MVRegister[T]) Set(value T, clock VectorClock) MVRegister[T] {
	for _, e := range r.entries {
		switch clock.Compare(e.Clock) {
		case Before:
			return r
		case Equal:
			if compareValues(value, e.Value) <= 0 {
				return r
			}
		}
	}

	entries := make([]MVEntry[T], 0, len(r.entries)+1)
	for _, e := range r.entries {
		switch e.Clock.Compare(clock) {
		case Before, Equal:
		default:
			entries = append(entries, e)
		}
	}
	entries = append(entries, MVEntry[T]{Value: value, Clock: clock.Clone()})

	return MVRegister[T]{entries: canonicalOrder(entries)}
}

// Merge объединяет два регистра и оставляет только максимальные элементы
// причинного порядка. Из версий с равными часами сохраняется версия
// с большим JSON-представлением значения.
func (r MVRegister[T]) Merge(other MVRegister[T]) MVRegister[T] {
	union := make([]MVEntry[T], 0, len(r.entries)+len(other.entries))
	union = append(union, r.entries...)
	union = append(union, other.entries...)

	return MVRegister[T]{entries: canonicalOrder(prune(union))}
}

// Values возвращает все выжившие значения.
// Порядок не гарантируется; для детерминизма сортируйте по явному ключу.
func (r MVRegister[T]) Values() []T {
	values := make([]T, 0, len(r.entries))
	for _, e := range r.entries {
		values = append(values, e.Value)
	}
	return values
}

// Entries возвращает копию выживших версий вместе с часами.
func (r MVRegister[T]) Entries() []MVEntry[T] {
	entries := make([]MVEntry[T], len(r.entries))
	for i, e := range r.entries {
		entries[i] = MVEntry[T]{Value: e.Value, Clock: e.Clock.Clone()}
	}
	return entries
}

// Len возвращает количество выживших версий.
func (r MVRegister[T]) Len() int {
	return len(r.entries)
}

// Conflicted сообщает, что регистр содержит больше одной версии.
func (r MVRegister[T]) Conflicted() bool {
	return len(r.entries) > 1
}

// Clock возвращает слияние часов всех выживших версий.
// Запись с такими часами доминирует над всеми версиями регистра.
func (r MVRegister[T]) Clock() VectorClock {
	merged := NewVectorClock()
	for _, e := range r.entries {
		merged = merged.Merge(e.Clock)
	}
	return merged
}

// MarshalJSON сериализует регистр как массив версий.
func (r MVRegister[T]) MarshalJSON() ([]byte, error) {
	entries := r.entries
	if entries == nil {
		entries = []MVEntry[T]{}
	}
	return json.Marshal(entries)
}

// UnmarshalJSON восстанавливает регистр, повторно применяя отсечение доминируемых версий.
func (r *MVRegister[T]) UnmarshalJSON(data []byte) error {
	var entries []MVEntry[T]
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to unmarshal mv register: %w", err)
	}
	for i := range entries {
		if entries[i].Clock == nil {
			entries[i].Clock = NewVectorClock()
		}
	}
	r.entries = canonicalOrder(prune(entries))
	return nil
}

// prune удаляет доминируемые версии и дубликаты с равными часами.
func prune[T any](entries []MVEntry[T]) []MVEntry[T] {
	result := make([]MVEntry[T], 0, len(entries))
	for i, e := range entries {
		dominated := false
		for j, other := range entries {
			if i == j {
				continue
			}
			rel := e.Clock.Compare(other.Clock)
			if rel == Before || (rel == Equal && equalClockLoses(e.Value, other.Value, i, j)) {
				dominated = true
				break
			}
		}
		if !dominated {
			result = append(result, e)
		}
	}
	return result
}

// equalClockLoses решает, уступает ли версия i версии j с теми же часами.
// Одинаковые значения схлопываются в первое вхождение.
func equalClockLoses[T any](value, other T, i, j int) bool {
	if c := compareValues(value, other); c != 0 {
		return c < 0
	}
	return j < i
}

func canonicalOrder[T any](entries []MVEntry[T]) []MVEntry[T] {
	slices.SortStableFunc(entries, func(a, b MVEntry[T]) int {
		return cmp.Compare(a.Clock.String(), b.Clock.String())
	})
	return entries
}
