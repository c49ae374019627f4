package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrChecksumMismatch возвращается, если содержимое не совпадает с контрольной суммой
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Checksum вычисляет SHA256 содержимого и возвращает hex-строку.
// Используется для контроля целостности файлов обмена (bundle).
func Checksum(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("data cannot be empty")
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyChecksum проверяет, что data соответствует контрольной сумме expected.
func VerifyChecksum(data []byte, expected string) error {
	if expected == "" {
		return fmt.Errorf("expected checksum cannot be empty")
	}

	computed, err := Checksum(data)
	if err != nil {
		return fmt.Errorf("failed to compute checksum: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(computed), []byte(expected)) != 1 {
		return ErrChecksumMismatch
	}

	return nil
}
