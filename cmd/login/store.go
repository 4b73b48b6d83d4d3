package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jrsteele09/go-oauth-login/internal/config"
	"github.com/jrsteele09/go-oauth-login/internal/docstore"
	"github.com/jrsteele09/go-oauth-login/login"
	"github.com/jrsteele09/go-oauth-login/session"
)

const redisStateKeyPrefix = "login:state:"

// stores holds the configured session and authorization state stores.
type stores struct {
	sessions session.Store
	states   login.StateStore
	close    func()
}

// newStores builds the configured stores. The pending authorization request is kept
// on the same backend as sessions.
func newStores(c config.StorageConfig) (stores, error) {
	switch c.GetSessionStore() {
	case config.MemoryStore:
		return stores{
			sessions: session.NewMemoryStore(),
			states:   login.NewMemoryStateStore(),
			close:    func() {},
		}, nil
	case config.FileStore:
		return stores{
			sessions: session.NewFileStore(c.GetSessionFile()),
			states:   login.NewStateStore(docstore.NewFile[login.AuthRequest](c.GetStateFile(), "authorization state")),
			close:    func() {},
		}, nil
	case config.RedisStore:
		client := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		return stores{
			sessions: session.NewRedisStore(client, c.GetSessionTTL()),
			states:   login.NewStateStore(docstore.NewRedis[login.AuthRequest](client, redisStateKeyPrefix, "authorization state", c.GetStateTTL())),
			close:    func() { _ = client.Close() },
		}, nil
	default:
		return stores{}, fmt.Errorf("unsupported session store %q", c.GetSessionStore())
	}
}
