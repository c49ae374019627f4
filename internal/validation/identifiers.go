package validation

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ReplicaIDPattern определяет допустимый формат идентификатора реплики
// Латинские буквы, цифры и символы _ . : -
// Длина: 1-64 символа
var ReplicaIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,64}$`)

// FieldNamePattern определяет допустимый формат имени поля записи
// Начинается с буквы, далее строчные буквы, цифры и _
var FieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// KindPattern определяет допустимый формат вида записи
var KindPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

const (
	// MaxFieldNameLen максимальная длина имени поля
	MaxFieldNameLen = 64
	// MaxKindLen максимальная длина вида записи
	MaxKindLen = 32
	// MaxTextLen максимальный размер текстового значения в байтах
	MaxTextLen = 64 * 1024
	// MinPassphraseLen минимальная длина парольной фразы
	MinPassphraseLen = 12
)

// ValidateSyncID проверяет, что SyncId является UUID
func ValidateSyncID(syncID string) error {
	if syncID == "" {
		return fmt.Errorf("sync id cannot be empty")
	}
	if _, err := uuid.Parse(syncID); err != nil {
		return fmt.Errorf("sync id must be a UUID: %w", err)
	}
	return nil
}

// ValidateReplicaID проверяет идентификатор реплики.
// Идентификатор участвует в разрешении ничьих LWW, поэтому сравнивается побайтово
// и не должен содержать пробелов и других неоднозначных символов.
func ValidateReplicaID(replicaID string) error {
	if replicaID == "" {
		return fmt.Errorf("replica id cannot be empty")
	}
	if !ReplicaIDPattern.MatchString(replicaID) {
		return fmt.Errorf("replica id can only contain letters, numbers, '_', '.', ':' and '-' (max 64)")
	}
	return nil
}

// ValidateFieldName проверяет имя поля записи
func ValidateFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if len(name) > MaxFieldNameLen {
		return fmt.Errorf("field name must not exceed %d characters", MaxFieldNameLen)
	}
	if !FieldNamePattern.MatchString(name) {
		return fmt.Errorf("field name %q must start with a letter and contain only a-z, 0-9 and '_'", name)
	}
	return nil
}

// ValidateKind проверяет вид записи
func ValidateKind(kind string) error {
	if kind == "" {
		return fmt.Errorf("kind cannot be empty")
	}
	if len(kind) > MaxKindLen {
		return fmt.Errorf("kind must not exceed %d characters", MaxKindLen)
	}
	if !KindPattern.MatchString(kind) {
		return fmt.Errorf("kind %q must start with a letter and contain only a-z, 0-9, '_' and '-'", kind)
	}
	return nil
}

// ValidateText проверяет текстовое значение поля
func ValidateText(value string) error {
	if !utf8.ValidString(value) {
		return fmt.Errorf("text value must be valid UTF-8")
	}
	if len(value) > MaxTextLen {
		return fmt.Errorf("text value must not exceed %d bytes", MaxTextLen)
	}
	return nil
}

// ValidatePassphrase проверяет минимальные требования к парольной фразе хранилища
func ValidatePassphrase(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase cannot be empty")
	}

	if len(passphrase) < MinPassphraseLen {
		return fmt.Errorf("passphrase must be at least %d characters long", MinPassphraseLen)
	}

	return nil
}
