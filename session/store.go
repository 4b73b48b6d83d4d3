package session

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-oauth-login/internal/docstore"
	"github.com/jrsteele09/go-oauth-login/internal/errors"
)

// Store persists the last session per OAuth client so a later run can resume it.
//
// Load returns errors.ErrSessionNotFound when no session is stored for the client.
type Store interface {
	Save(ctx context.Context, s Session) error
	Load(ctx context.Context, clientID string) (Session, error)
	Remove(ctx context.Context, clientID string) error
}

// documentStore adapts a docstore to Store, keying sessions by client ID.
type documentStore struct {
	docs docstore.Store[Session]
}

func (d documentStore) Save(ctx context.Context, s Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return d.docs.Put(ctx, s.ClientID, s)
}

func (d documentStore) Load(ctx context.Context, clientID string) (Session, error) {
	if clientID == "" {
		return Session{}, fmt.Errorf("clientID is required")
	}

	s, err := d.docs.Get(ctx, clientID)
	if errors.Is(err, errors.ErrDocumentNotFound) {
		return Session{}, errors.ErrSessionNotFound
	}
	return s, err
}

func (d documentStore) Remove(ctx context.Context, clientID string) error {
	if clientID == "" {
		return fmt.Errorf("clientID is required")
	}
	return d.docs.Delete(ctx, clientID)
}
