package login

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oauth-login/gate"
	"github.com/jrsteele09/go-oauth-login/internal/errors"
	"github.com/jrsteele09/go-oauth-login/session"
)

// Refresher refreshes a session's tokens. Concurrent refreshes share a single call to
// the token endpoint, since a rotating refresh token is only good for one use.
type Refresher struct {
	refresher TokenRefresher
	sessions  session.Store
	task      *gate.OnceTask[session.Session]
}

// NewRefresher creates a Refresher. Callers that arrive while a refresh is in flight
// wait up to wait for it before refreshing themselves. sessions may be nil.
func NewRefresher(refresher TokenRefresher, sessions session.Store, wait time.Duration) (*Refresher, error) {
	if refresher == nil {
		return nil, errors.New("[NewRefresher] TokenRefresher is required")
	}
	return &Refresher{
		refresher: refresher,
		sessions:  sessions,
		task:      gate.NewOnceTask[session.Session](wait),
	}, nil
}

// Refresh returns a replacement for current with fresh tokens and persists it.
func (r *Refresher) Refresh(ctx context.Context, current session.Session) (session.Session, error) {
	if current.RefreshToken == "" {
		return session.Session{}, errors.ErrNoRefreshToken
	}

	return r.task.Run(func() (session.Session, error) {
		next, err := r.refresher.Refresh(ctx, current)
		if err != nil {
			log.Err(err).Str("session_id", current.ID).Msg("Failed to refresh session")
			if errors.Is(err, errors.ErrRefreshFailed) {
				return session.Session{}, err
			}
			return session.Session{}, fmt.Errorf("%w: %w", errors.ErrRefreshFailed, err)
		}

		if r.sessions != nil {
			if err := r.sessions.Save(ctx, next); err != nil {
				log.Err(err).Str("session_id", next.ID).Msg("Failed to persist refreshed session")
			}
		}
		log.Debug().Str("session_id", next.ID).Time("expiry", next.Expiry).Msg("Session refreshed")
		return next, nil
	})
}
