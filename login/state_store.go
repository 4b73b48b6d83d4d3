package login

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-oauth-login/internal/docstore"
	"github.com/jrsteele09/go-oauth-login/internal/errors"
)

// StateStore persists the pending AuthRequest per OAuth client, so a redirect that
// arrives after the process restarted can still be matched and redeemed.
//
// Load returns errors.ErrNoPendingRequest when nothing is stored for the client.
// Remove deletes the stored request only while it is still the one with requestID.
type StateStore interface {
	Save(ctx context.Context, clientID string, req AuthRequest) error
	Load(ctx context.Context, clientID string) (AuthRequest, error)
	Remove(ctx context.Context, clientID, requestID string) error
}

var _ StateStore = (*DocumentStateStore)(nil)

// DocumentStateStore is a StateStore over a docstore backend.
type DocumentStateStore struct {
	mu   sync.Mutex
	docs docstore.Store[AuthRequest]
}

// NewStateStore creates a StateStore keeping requests in docs.
func NewStateStore(docs docstore.Store[AuthRequest]) *DocumentStateStore {
	return &DocumentStateStore{docs: docs}
}

// NewMemoryStateStore creates a StateStore that lives as long as the process.
func NewMemoryStateStore() *DocumentStateStore {
	return NewStateStore(docstore.NewMemory[AuthRequest]())
}

func (s *DocumentStateStore) Save(ctx context.Context, clientID string, req AuthRequest) error {
	if clientID == "" {
		return fmt.Errorf("clientID is required")
	}
	if req.ID == "" {
		return fmt.Errorf("request ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs.Put(ctx, clientID, req)
}

func (s *DocumentStateStore) Load(ctx context.Context, clientID string) (AuthRequest, error) {
	if clientID == "" {
		return AuthRequest{}, fmt.Errorf("clientID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.docs.Get(ctx, clientID)
	if errors.Is(err, errors.ErrDocumentNotFound) {
		return AuthRequest{}, errors.ErrNoPendingRequest
	}
	return req, err
}

func (s *DocumentStateStore) Remove(ctx context.Context, clientID, requestID string) error {
	if clientID == "" {
		return fmt.Errorf("clientID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.docs.Get(ctx, clientID)
	if errors.Is(err, errors.ErrDocumentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if stored.ID != requestID {
		return nil
	}
	return s.docs.Delete(ctx, clientID)
}
