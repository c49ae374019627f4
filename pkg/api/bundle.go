package api

import "time"

// BundleVersion версия формата файла выгрузки
const BundleVersion = 1

// Bundle представляет переносимую выгрузку записей реплики.
// Через bundle версии попадают на реплики, у которых нет общего хранилища.
type Bundle struct {
	CreatedAt time.Time        `json:"created_at"`         // время выгрузки (UTC)
	ReplicaID string           `json:"replica_id"`         // реплика, создавшая выгрузку
	Checksum  string           `json:"checksum,omitempty"` // SHA256 (hex) от JSON массива records
	Records   []RecordEnvelope `json:"records"`            // записи вместе с удаленными
	Version   int              `json:"version"`            // версия формата
}

// RecordEnvelope представляет одну запись в выгрузке
type RecordEnvelope struct {
	Clock  map[string]uint64        `json:"clock"`   // векторный таймстемп записи
	Fields map[string]FieldEnvelope `json:"fields"`  // LWW регистры полей
	SyncID string                   `json:"sync_id"` // UUID записи
	Type   string                   `json:"type"`    // вид записи
}

// FieldEnvelope представляет LWW регистр одного поля.
// Заполнено ровно одно поле значения, соответствующее Kind.
type FieldEnvelope struct {
	Number    *float64 `json:"number,omitempty"`
	Text      *string  `json:"text,omitempty"`
	Bool      *bool    `json:"bool,omitempty"`
	Time      *string  `json:"time,omitempty"` // RFC3339Nano
	Kind      string   `json:"kind"`           // null | number | text | bool | timestamp | bytes
	Timestamp string   `json:"timestamp"`      // время записи, RFC3339Nano UTC
	ReplicaID string   `json:"replica_id"`     // реплика, сделавшая запись
	Bytes     []byte   `json:"bytes,omitempty"`
}
