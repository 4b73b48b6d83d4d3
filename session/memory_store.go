package session

import (
	"github.com/jrsteele09/go-oauth-login/internal/docstore"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a thread-safe in-memory implementation of Store
type MemoryStore struct {
	documentStore
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{documentStore{docs: docstore.NewMemory[Session]()}}
}
