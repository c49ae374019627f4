package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Параметры Argon2id
const (
	// Argon2Time - количество итераций (time cost)
	Argon2Time = 1
	// Argon2Memory - объем памяти в KB (64MB = 64*1024 KB)
	Argon2Memory = 64 * 1024
	// Argon2Threads - количество параллельных потоков
	Argon2Threads = 4
	// SaltSize - размер соли в байтах
	SaltSize = 32
)

// sealContext отделяет ключ шифрования хранилища от других ключей,
// которые могут быть получены из той же парольной фразы
const sealContext = "synccore/seal"

// GenerateSalt генерирует криптографически случайную соль
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey получает ключ шифрования хранилища из парольной фразы (Argon2id).
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}

	input := append([]byte(passphrase), sealContext...)
	return argon2.IDKey(input, salt, Argon2Time, Argon2Memory, Argon2Threads, KeySize), nil
}

// NewPassphraseSealer создает Sealer из парольной фразы и соли.
func NewPassphraseSealer(passphrase string, salt []byte) (*Sealer, error) {
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return NewSealer(key)
}
