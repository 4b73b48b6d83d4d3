package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/jrsteele09/go-oauth-login/internal/errors"
)

var _ Store[struct{}] = (*File[struct{}])(nil)

// File keeps every document in one JSON object on disk. Each write replaces the file
// atomically so a crash never leaves a torn file.
type File[T any] struct {
	mu   sync.Mutex
	path string
	kind string // used in error messages, e.g. "session"
}

// NewFile creates a store backed by path. The parent directory is created on first write.
func NewFile[T any](path, kind string) *File[T] {
	return &File[T]{path: path, kind: kind}
}

func (f *File[T]) Put(_ context.Context, key string, v T) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	docs, err := f.read()
	if err != nil {
		return err
	}
	docs[key] = v
	return f.write(docs)
}

func (f *File[T]) Get(_ context.Context, key string) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var zero T
	docs, err := f.read()
	if err != nil {
		return zero, err
	}
	v, ok := docs[key]
	if !ok {
		return zero, errors.ErrDocumentNotFound
	}
	return v, nil
}

func (f *File[T]) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	docs, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := docs[key]; !ok {
		return nil
	}
	delete(docs, key)
	return f.write(docs)
}

func (f *File[T]) read() (map[string]T, error) {
	docs := make(map[string]T)

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return docs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s file: %w", f.kind, err)
	}
	if len(data) == 0 {
		return docs, nil
	}
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode %s file: %w", f.kind, err)
	}
	return docs, nil
}

func (f *File[T]) write(docs map[string]T) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s file: %w", f.kind, err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", f.kind, err)
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s file: %w", f.kind, err)
	}
	return nil
}
