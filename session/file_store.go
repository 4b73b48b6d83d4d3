package session

import (
	"github.com/jrsteele09/go-oauth-login/internal/docstore"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps sessions in a single JSON file keyed by client ID. The file is
// replaced atomically on every write so a crash never leaves it torn.
type FileStore struct {
	documentStore
}

// NewFileStore creates a store backed by path. The parent directory is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{documentStore{docs: docstore.NewFile[Session](path, "session")}}
}
