// Package storage описывает локальное хранилище ключ/значение устройства,
// в котором клиент держит токены сессии и снимок профиля пользователя.
//
// Реализации: sqlite (по умолчанию, переживает перезапуск процесса),
// redis (общий стенд) и memory (тесты и одноразовые запуски).
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/capitalized/internal/lib/sealer"
)

// Ключи, под которыми клиент хранит состояние. Все три очищаются вместе.
const (
	KeyAccessToken  = "@capitalized_access_token"
	KeyRefreshToken = "@capitalized_refresh_token"
	KeyUserData     = "@capitalized_user_data"
)

// SessionKeys — полный набор ключей сессии.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUserData}

// ErrClosed возвращается при обращении к закрытому хранилищу.
var ErrClosed = errors.New("storage is closed")

// KV описывает контракт хранилища ключ/значение.
type KV interface {
	// Get возвращает значение и признак его наличия. Отсутствие ключа не ошибка.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetMany записывает все значения одной операцией.
	SetMany(ctx context.Context, values map[string]string) error
	// Delete удаляет ключи; удаление отсутствующих ключей не ошибка.
	Delete(ctx context.Context, keys ...string) error
	// Close освобождает ресурсы.
	Close() error
}

// Sealed шифрует значения перед записью в next и расшифровывает при чтении.
type Sealed struct {
	next   KV
	sealer *sealer.Sealer
}

// NewSealed оборачивает хранилище шифрованием.
func NewSealed(next KV, s *sealer.Sealer) *Sealed {
	return &Sealed{next: next, sealer: s}
}

// Get читает и расшифровывает значение.
func (s *Sealed) Get(ctx context.Context, key string) (string, bool, error) {
	const op = "storage.Sealed.Get"
	raw, ok, err := s.next.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	plain, err := s.sealer.Open(raw)
	if err != nil {
		return "", false, fmt.Errorf("%s: key %s: %w", op, key, err)
	}
	return plain, true, nil
}

// SetMany шифрует значения и записывает их одной операцией.
func (s *Sealed) SetMany(ctx context.Context, values map[string]string) error {
	const op = "storage.Sealed.SetMany"
	sealed := make(map[string]string, len(values))
	for k, v := range values {
		enc, err := s.sealer.Seal(v)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		sealed[k] = enc
	}
	return s.next.SetMany(ctx, sealed)
}

// Delete удаляет ключи.
func (s *Sealed) Delete(ctx context.Context, keys ...string) error {
	return s.next.Delete(ctx, keys...)
}

// Close закрывает вложенное хранилище.
func (s *Sealed) Close() error {
	return s.next.Close()
}
