package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// NonceSize - размер nonce для AES-GCM (12 bytes стандартный размер)
	NonceSize = 12
	// KeySize - размер ключа AES-256
	KeySize = 32
)

// ErrDecrypt возвращается, если данные повреждены или ключ неверный
var ErrDecrypt = errors.New("failed to decrypt: authentication failed or corrupted data")

// Sealer шифрует значения хранилища с использованием AES-256-GCM.
// Формат результата: nonce (12 bytes) + ciphertext + auth_tag (16 bytes).
// Дополнительные данные (aad) привязывают шифртекст к ключу записи,
// поэтому значение нельзя незаметно переставить под другой ключ.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer создает Sealer для ключа длиной KeySize.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// Seal шифрует plaintext.
func (s *Sealer) Seal(plaintext, aad []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("plaintext cannot be empty")
	}

	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// GCM добавляет authentication tag в конец; nonce остается префиксом
	return s.aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Open расшифровывает данные, зашифрованные Seal с теми же aad.
func (s *Sealer) Open(sealed, aad []byte) ([]byte, error) {
	if len(sealed) < NonceSize+s.aead.Overhead() {
		return nil, fmt.Errorf("encrypted data too short")
	}

	plaintext, err := s.aead.Open(nil, sealed[:NonceSize], sealed[NonceSize:], aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}

	return plaintext, nil
}
