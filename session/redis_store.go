package session

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-oauth-login/internal/docstore"
)

const redisKeyPrefix = "login:session:"

var _ Store = (*RedisStore)(nil)

// RedisStore keeps sessions in Redis, one JSON value per client.
type RedisStore struct {
	documentStore
}

// NewRedisStore creates a Redis-backed store. A zero ttl stores sessions without expiry.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{documentStore{docs: docstore.NewRedis[Session](client, redisKeyPrefix, "session", ttl)}}
}
