// Package redisstore реализует storage.KV поверх Redis. Используется на общих
// стендах, где несколько процессов клиента разделяют одну сессию устройства.
package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/capitalized/internal/config"
)

// Store хранит значения сессии в Redis без TTL.
type Store struct {
	Db     *redis.Client
	prefix string
}

// InitServer подключается к Redis и проверяет соединение.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Store, error) {
	const op = "storage.redis.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{Db: db, prefix: cfg.KeyPrefix}, nil
}

// Get возвращает значение по ключу.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	const op = "storage.redis.Get"
	val, err := s.Db.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return val, true, nil
}

// SetMany записывает значения в одной транзакции MULTI/EXEC.
func (s *Store) SetMany(ctx context.Context, values map[string]string) error {
	const op = "storage.redis.SetMany"
	_, err := s.Db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, s.prefix+k, v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete удаляет ключи одной командой DEL.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	const op = "storage.redis.Delete"
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefix + k
	}
	if err := s.Db.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает клиент.
func (s *Store) Close() error {
	return s.Db.Close()
}
