package crdt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// LWWMap представляет запись как набор независимых LWW регистров по полям.
//
// Конкурентные правки разных полей никогда не конфликтуют, конфликтуют
// только правки одного и того же поля. Map неизменяемая: Set и Merge
// возвращают новую Map (copy-on-write).
type LWWMap struct {
	fields map[string]LWWRegister[FieldValue]
}

// NewLWWMap создает пустую map.
func NewLWWMap() LWWMap {
	return LWWMap{fields: make(map[string]LWWRegister[FieldValue])}
}

func (m LWWMap) clone(extra int) map[string]LWWRegister[FieldValue] {
	fields := make(map[string]LWWRegister[FieldValue], len(m.fields)+extra)
	for name, reg := range m.fields {
		fields[name] = reg
	}
	return fields
}

// Set применяет запись поля. Регистр поля создается при первом использовании,
// иначе делегирует в LWWRegister.Update. Возвращает новую map и признак изменения.
func (m LWWMap) Set(field string, value FieldValue, timestamp time.Time, replicaID string) (LWWMap, bool) {
	current, exists := m.fields[field]
	if !exists {
		fields := m.clone(1)
		fields[field] = NewLWWRegister(value, timestamp, replicaID)
		return LWWMap{fields: fields}, true
	}

	updated, changed := current.Update(value, timestamp, replicaID)
	if !changed {
		return m, false
	}

	fields := m.clone(0)
	fields[field] = updated
	return LWWMap{fields: fields}, true
}

// Get возвращает текущее значение поля. false - поле ни разу не задавалось на этой реплике.
func (m LWWMap) Get(field string) (FieldValue, bool) {
	reg, ok := m.fields[field]
	if !ok {
		return FieldValue{}, false
	}
	return reg.Value, true
}

// Register возвращает регистр поля целиком (значение + метка + реплика).
func (m LWWMap) Register(field string) (LWWRegister[FieldValue], bool) {
	reg, ok := m.fields[field]
	return reg, ok
}

// Has сообщает, задано ли поле.
func (m LWWMap) Has(field string) bool {
	_, ok := m.fields[field]
	return ok
}

// Fields возвращает отсортированные имена полей.
func (m LWWMap) Fields() []string {
	names := make([]string, 0, len(m.fields))
	for name := range m.fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len возвращает количество полей.
func (m LWWMap) Len() int {
	return len(m.fields)
}

// Merge объединяет две map: объединение имен полей, каждое поле сливается
// независимо по правилу LWW, поля одной стороны переносятся без изменений.
// Результат не зависит от порядка слияния.
func (m LWWMap) Merge(other LWWMap) LWWMap {
	fields := m.clone(len(other.fields))
	for name, otherReg := range other.fields {
		existing, exists := fields[name]
		if !exists {
			fields[name] = otherReg
			continue
		}
		fields[name] = existing.Merge(otherReg)
	}
	return LWWMap{fields: fields}
}

// LatestWrite возвращает побеждающую запись среди всех полей.
// Используется как метка записи целиком (record-level LWW).
// Для пустой map возвращает нулевую метку и false.
func (m LWWMap) LatestWrite() (time.Time, string, bool) {
	var (
		latest LWWRegister[FieldValue]
		found  bool
	)
	for _, reg := range m.fields {
		if !found || reg.Wins(latest) {
			latest = reg
			found = true
		}
	}
	return latest.Timestamp, latest.ReplicaID, found
}

// Equal сравнивает содержимое двух map, включая метки и реплики.
func (m LWWMap) Equal(other LWWMap) bool {
	if len(m.fields) != len(other.fields) {
		return false
	}
	for name, reg := range m.fields {
		otherReg, ok := other.fields[name]
		if !ok {
			return false
		}
		if !reg.Timestamp.Equal(otherReg.Timestamp) ||
			reg.ReplicaID != otherReg.ReplicaID ||
			!reg.Value.Equal(otherReg.Value) {
			return false
		}
	}
	return true
}

// Values возвращает снимок значений полей.
func (m LWWMap) Values() map[string]FieldValue {
	values := make(map[string]FieldValue, len(m.fields))
	for name, reg := range m.fields {
		values[name] = reg.Value
	}
	return values
}

// MarshalJSON сериализует map как объект field -> регистр.
func (m LWWMap) MarshalJSON() ([]byte, error) {
	if m.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.fields)
}

// UnmarshalJSON восстанавливает map; метки времени сохраняются точно.
func (m *LWWMap) UnmarshalJSON(data []byte) error {
	fields := make(map[string]LWWRegister[FieldValue])
	if !bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		if err := json.Unmarshal(data, &fields); err != nil {
			return fmt.Errorf("failed to unmarshal lww map: %w", err)
		}
	}
	for name, reg := range fields {
		reg.Timestamp = normalizeTime(reg.Timestamp)
		fields[name] = reg
	}
	m.fields = fields
	return nil
}

// Lookup возвращает типизированное значение поля.
// false - поле отсутствует или имеет другой вид.
func Lookup[T float64 | string | bool | time.Time | []byte](m LWWMap, field string) (T, bool) {
	var zero T

	value, ok := m.Get(field)
	if !ok {
		return zero, false
	}

	var result any
	switch any(zero).(type) {
	case float64:
		result, ok = value.AsNumber()
	case string:
		result, ok = value.AsText()
	case bool:
		result, ok = value.AsBool()
	case time.Time:
		result, ok = value.AsTimestamp()
	case []byte:
		result, ok = value.AsBytes()
	}
	if !ok {
		return zero, false
	}

	return result.(T), true
}
