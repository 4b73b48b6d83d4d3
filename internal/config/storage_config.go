package config

import "time"

type StoreType string

const (
	MemoryStore StoreType = "memory"
	FileStore   StoreType = "file"
	RedisStore  StoreType = "redis"
)

const (
	sessionStoreVar = "SESSION_STORE"
	sessionFileVar  = "SESSION_FILE"
	redisAddrVar    = "REDIS_ADDR"
	sessionTTLVar   = "SESSION_TTL"
	stateFileVar    = "AUTH_STATE_FILE"
	stateTTLVar     = "AUTH_STATE_TTL"
)

type StorageConfig interface {
	GetSessionStore() StoreType
	GetSessionFile() string
	GetRedisAddr() string
	GetSessionTTL() time.Duration
	GetStateFile() string
	GetStateTTL() time.Duration
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetSessionStore() StoreType {
	switch t := StoreType(GetEnv(sessionStoreVar, string(FileStore))); t {
	case MemoryStore, FileStore, RedisStore:
		return t
	default:
		return FileStore
	}
}

func (Storage) GetSessionFile() string {
	return GetEnv(sessionFileVar, "./data/session.json")
}

func (Storage) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "localhost:6379")
}

// GetSessionTTL is applied by stores that support expiry. Zero keeps sessions until logout.
func (Storage) GetSessionTTL() time.Duration {
	return GetEnvDuration(sessionTTLVar, 30*24*time.Hour)
}

// GetStateFile holds the pending authorization request when SESSION_STORE is file.
func (Storage) GetStateFile() string {
	return GetEnv(stateFileVar, "./data/auth_state.json")
}

// GetStateTTL bounds how long Redis keeps a pending authorization request.
func (Storage) GetStateTTL() time.Duration {
	return GetEnvDuration(stateTTLVar, 15*time.Minute)
}
