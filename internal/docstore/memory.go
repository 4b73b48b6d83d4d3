package docstore

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-oauth-login/internal/errors"
)

var _ Store[struct{}] = (*Memory[struct{}])(nil)

// Memory is a thread-safe in-memory Store
type Memory[T any] struct {
	mu   sync.RWMutex
	docs map[string]T
}

// NewMemory creates an empty in-memory store
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{
		docs: make(map[string]T),
	}
}

func (m *Memory[T]) Put(_ context.Context, key string, v T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[key] = v
	return nil
}

func (m *Memory[T]) Get(_ context.Context, key string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.docs[key]
	if !ok {
		var zero T
		return zero, errors.ErrDocumentNotFound
	}
	return v, nil
}

func (m *Memory[T]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, key)
	return nil
}
