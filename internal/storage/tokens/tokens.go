// Package tokens — хранилище access/refresh токенов устройства.
//
// Чтение работает по принципу fail open: ошибка хранилища логируется и
// трактуется как отсутствие токена, потому что "токена нет" — нормальное
// состояние разлогиненного клиента. Запись и очистка возвращают ошибку.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/capitalized/internal/lib/sl"
	"github.com/magabrotheeeer/capitalized/internal/storage"
)

// ErrEmptyToken возвращается при попытке сохранить пустой токен.
var ErrEmptyToken = errors.New("token must not be empty")

// Store читает и пишет пару токенов.
type Store struct {
	kv  storage.KV
	log *slog.Logger
}

// New создаёт Store поверх хранилища устройства.
func New(kv storage.KV, log *slog.Logger) *Store {
	return &Store{kv: kv, log: log}
}

// GetAccessToken возвращает access токен или пустую строку.
func (s *Store) GetAccessToken(ctx context.Context) string {
	return s.get(ctx, storage.KeyAccessToken)
}

// GetRefreshToken возвращает refresh токен или пустую строку.
func (s *Store) GetRefreshToken(ctx context.Context) string {
	return s.get(ctx, storage.KeyRefreshToken)
}

func (s *Store) get(ctx context.Context, key string) string {
	const op = "tokens.get"
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Warn("failed to read token, treating as absent", sl.Op(op), slog.String("key", key), sl.Err(err))
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// SetTokens сохраняет оба токена одной записью.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	const op = "tokens.SetTokens"
	if access == "" || refresh == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyToken)
	}
	err := s.kv.SetMany(ctx, map[string]string{
		storage.KeyAccessToken:  access,
		storage.KeyRefreshToken: refresh,
	})
	if err != nil {
		s.log.Error("failed to persist tokens", sl.Op(op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ClearAll удаляет токены и сохранённый профиль. Повторный вызов не ошибка.
func (s *Store) ClearAll(ctx context.Context) error {
	const op = "tokens.ClearAll"
	if err := s.kv.Delete(ctx, storage.SessionKeys...); err != nil {
		s.log.Error("failed to clear session keys", sl.Op(op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
