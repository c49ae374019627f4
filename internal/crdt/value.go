package crdt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FieldKind - тег варианта FieldValue.
type FieldKind uint8

// Набор вариантов закрыт: новый вид поля добавляется только здесь.
const (
	KindNull FieldKind = iota
	KindNumber
	KindText
	KindBool
	KindTimestamp
	KindBytes
)

var fieldKindNames = map[FieldKind]string{
	KindNull:      "null",
	KindNumber:    "number",
	KindText:      "text",
	KindBool:      "bool",
	KindTimestamp: "timestamp",
	KindBytes:     "bytes",
}

// String возвращает имя вида поля.
func (k FieldKind) String() string {
	if name, ok := fieldKindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseFieldKind разбирает имя вида поля.
func ParseFieldKind(name string) (FieldKind, error) {
	for kind, n := range fieldKindNames {
		if n == name {
			return kind, nil
		}
	}
	return KindNull, fmt.Errorf("unknown field kind %q", name)
}

// FieldValue - закрытый размеченный вариант значения поля записи.
// Нулевое значение FieldValue - Null.
type FieldValue struct {
	ts    time.Time
	text  string
	raw   []byte
	num   float64
	kind  FieldKind
	truth bool
}

// Null возвращает пустое значение.
func Null() FieldValue { return FieldValue{} }

// Number создает числовое значение.
func Number(v float64) FieldValue { return FieldValue{kind: KindNumber, num: v} }

// Text создает текстовое значение.
func Text(v string) FieldValue { return FieldValue{kind: KindText, text: v} }

// Bool создает логическое значение.
func Bool(v bool) FieldValue { return FieldValue{kind: KindBool, truth: v} }

// Timestamp создает значение-время (нормализуется к UTC).
func Timestamp(v time.Time) FieldValue { return FieldValue{kind: KindTimestamp, ts: normalizeTime(v)} }

// Bytes создает непрозрачное бинарное значение. Срез копируется.
func Bytes(v []byte) FieldValue {
	return FieldValue{kind: KindBytes, raw: bytes.Clone(v)}
}

// Kind возвращает тег варианта.
func (v FieldValue) Kind() FieldKind { return v.kind }

// IsNull сообщает, что значение пустое.
func (v FieldValue) IsNull() bool { return v.kind == KindNull }

// AsNumber возвращает число, если значение числовое.
func (v FieldValue) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsText возвращает строку, если значение текстовое.
func (v FieldValue) AsText() (string, bool) { return v.text, v.kind == KindText }

// AsBool возвращает логическое значение.
func (v FieldValue) AsBool() (bool, bool) { return v.truth, v.kind == KindBool }

// AsTimestamp возвращает время.
func (v FieldValue) AsTimestamp() (time.Time, bool) { return v.ts, v.kind == KindTimestamp }

// AsBytes возвращает копию бинарного значения.
func (v FieldValue) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return bytes.Clone(v.raw), true
}

// Equal сравнивает значения с учетом вида.
func (v FieldValue) Equal(other FieldValue) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == other.num
	case KindText:
		return v.text == other.text
	case KindBool:
		return v.truth == other.truth
	case KindTimestamp:
		return v.ts.Equal(other.ts)
	case KindBytes:
		return bytes.Equal(v.raw, other.raw)
	default:
		return true
	}
}

// String возвращает человекочитаемое представление.
func (v FieldValue) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindText:
		return v.text
	case KindBool:
		return strconv.FormatBool(v.truth)
	case KindTimestamp:
		return v.ts.Format(time.RFC3339Nano)
	case KindBytes:
		return fmt.Sprintf("<%d bytes>", len(v.raw))
	default:
		return "null"
	}
}

// fieldValueJSON - формат сериализации FieldValue.
type fieldValueJSON struct {
	Number    *float64   `json:"number,omitempty"`
	Text      *string    `json:"text,omitempty"`
	Bool      *bool      `json:"bool,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Kind      string     `json:"kind"`
	Bytes     []byte     `json:"bytes,omitempty"`
}

// MarshalJSON сериализует значение с явным тегом вида.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	out := fieldValueJSON{Kind: v.kind.String()}
	switch v.kind {
	case KindNumber:
		out.Number = &v.num
	case KindText:
		out.Text = &v.text
	case KindBool:
		out.Bool = &v.truth
	case KindTimestamp:
		out.Timestamp = &v.ts
	case KindBytes:
		out.Bytes = v.raw
		if out.Bytes == nil {
			out.Bytes = []byte{}
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON восстанавливает значение; вид без полезной нагрузки - ошибка.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var in fieldValueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("failed to unmarshal field value: %w", err)
	}

	kind, err := ParseFieldKind(in.Kind)
	if err != nil {
		return err
	}

	switch kind {
	case KindNull:
		*v = Null()
	case KindNumber:
		if in.Number == nil {
			return fmt.Errorf("field value of kind %s has no payload", kind)
		}
		*v = Number(*in.Number)
	case KindText:
		if in.Text == nil {
			return fmt.Errorf("field value of kind %s has no payload", kind)
		}
		*v = Text(*in.Text)
	case KindBool:
		if in.Bool == nil {
			return fmt.Errorf("field value of kind %s has no payload", kind)
		}
		*v = Bool(*in.Bool)
	case KindTimestamp:
		if in.Timestamp == nil {
			return fmt.Errorf("field value of kind %s has no payload", kind)
		}
		*v = Timestamp(*in.Timestamp)
	case KindBytes:
		*v = Bytes(in.Bytes)
	}

	return nil
}
