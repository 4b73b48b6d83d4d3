package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-oauth-login/internal/errors"
)

var _ Store[struct{}] = (*Redis[struct{}])(nil)

// Redis keeps one JSON value per document under prefix+key.
type Redis[T any] struct {
	client redis.UniversalClient
	prefix string
	kind   string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed store. A zero ttl stores documents without expiry.
func NewRedis[T any](client redis.UniversalClient, prefix, kind string, ttl time.Duration) *Redis[T] {
	return &Redis[T]{
		client: client,
		prefix: prefix,
		kind:   kind,
		ttl:    ttl,
	}
}

func (r *Redis[T]) Put(ctx context.Context, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", r.kind, err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store %s: %w", r.kind, err)
	}
	return nil
}

func (r *Redis[T]) Get(ctx context.Context, key string) (T, error) {
	var v T
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return v, errors.ErrDocumentNotFound
	}
	if err != nil {
		return v, fmt.Errorf("failed to load %s: %w", r.kind, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to decode %s: %w", r.kind, err)
	}
	return v, nil
}

func (r *Redis[T]) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to remove %s: %w", r.kind, err)
	}
	return nil
}
