// Package sealer шифрует значения, которые клиент хранит на устройстве
// (токены и профиль), с помощью XChaCha20-Poly1305.
//
// Ключ выводится из секрета конфигурации через HKDF-SHA256.
package sealer

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const info = "capitalized/storage/v1"

// ErrMalformed возвращается, если шифротекст повреждён или создан другим ключом.
var ErrMalformed = errors.New("sealer: malformed ciphertext")

// Sealer шифрует и расшифровывает строки.
type Sealer struct {
	aead cipher.AEAD
}

// New создаёт Sealer из секрета. Пустой секрет недопустим.
func New(secret string) (*Sealer, error) {
	const op = "sealer.New"
	if secret == "" {
		return nil, fmt.Errorf("%s: empty secret", op)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal шифрует plain и возвращает base64(nonce || ciphertext).
func (s *Sealer) Seal(plain string) (string, error) {
	const op = "sealer.Seal"
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open расшифровывает значение, созданное Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrMalformed
	}
	if len(raw) < s.aead.NonceSize() {
		return "", ErrMalformed
	}
	nonce, ct := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrMalformed
	}
	return string(plain), nil
}
