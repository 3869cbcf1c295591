// Package memory — хранилище в памяти процесса, не переживает перезапуск.
package memory

import (
	"context"
	"sync"

	"github.com/magabrotheeeer/capitalized/internal/storage"
)

// Store хранит значения в map под мьютексом.
type Store struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, storage.ErrClosed
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) SetMany(_ context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	for k, v := range values {
		s.data[k] = v
	}
	return nil
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
