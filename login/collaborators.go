package login

import (
	"context"

	"github.com/jrsteele09/go-oauth-login/session"
)

// Launcher presents the authorization URL in an external user-agent (browser,
// custom tab). Present must return promptly: completion arrives later through the
// automatic return channel or a manual redirect.
type Launcher interface {
	Present(ctx context.Context, req *AuthRequest) error
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, req *AuthRequest) error

func (f LauncherFunc) Present(ctx context.Context, req *AuthRequest) error {
	return f(ctx, req)
}

// URLBuilder builds the provider's authorization URL for a request.
type URLBuilder interface {
	AuthCodeURL(req *AuthRequest) string
}

// TokenExchanger redeems an authorization code for a session. It is a network call
// and may block.
type TokenExchanger interface {
	Exchange(ctx context.Context, grant Grant) (session.Session, error)
}

// TokenRefresher uses a session's refresh token to obtain a replacement session.
type TokenRefresher interface {
	Refresh(ctx context.Context, current session.Session) (session.Session, error)
}

// Collaborators holds the coordinator's external dependencies.
type Collaborators struct {
	Launcher  Launcher       // Required
	URLs      URLBuilder     // Required
	Exchanger TokenExchanger // Required
	Sessions  session.Store  // Optional, enables Resume and session persistence
	States    StateStore     // Optional, lets a later process redeem a pending request
}
