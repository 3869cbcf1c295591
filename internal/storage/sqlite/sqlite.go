// Package sqlite реализует storage.KV поверх локального файла sqlite.
// Это хранилище по умолчанию: значения переживают перезапуск процесса,
// а SetMany пишет все ключи в одной транзакции.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/magabrotheeeer/capitalized/internal/migrations"
)

// Store — хранилище ключ/значение в sqlite.
type Store struct {
	db *sql.DB
}

// New открывает (или создаёт) базу по пути path и применяет миграции.
func New(path string) (*Store, error) {
	const op = "storage.sqlite.New"
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%s: create database directory: %w", op, err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open database: %w", op, err)
	}
	// одна запись за раз, иначе SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping database: %w", op, err)
	}
	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Store{db: db}, nil
}

// Get возвращает значение по ключу.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	const op = "storage.sqlite.Get"
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return value, true, nil
}

// SetMany записывает значения в одной транзакции.
func (s *Store) SetMany(ctx context.Context, values map[string]string) error {
	const op = "storage.sqlite.SetMany"
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	for k, v := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v, now)
		if err != nil {
			return fmt.Errorf("%s: key %s: %w", op, k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Delete удаляет ключи одним запросом.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	const op = "storage.sqlite.Delete"
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}
