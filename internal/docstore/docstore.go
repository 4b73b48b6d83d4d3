// Package docstore keeps JSON-serialisable documents by key in memory, in a single
// file or in Redis. The session and authorization state stores are built on it.
package docstore

import "context"

// Store keeps documents of type T by key.
//
// Get returns errors.ErrDocumentNotFound when nothing is stored under key. Delete of
// a missing key is not an error.
type Store[T any] interface {
	Put(ctx context.Context, key string, v T) error
	Get(ctx context.Context, key string) (T, error)
	Delete(ctx context.Context, key string) error
}
