// Package redirect recognizes authorization redirects that reach the app outside the
// automatic return channel, such as a deep link opened by the OS or a URL pasted by
// the user, and hands them to the login coordinator.
package redirect

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oauth-login/internal/errors"
	"github.com/jrsteele09/go-oauth-login/login"
	"github.com/jrsteele09/go-oauth-login/outcome"
)

// Deliverer accepts a manually observed authorization response.
type Deliverer interface {
	DeliverManualResult(ctx context.Context, queryString string) outcome.Outcome
}

// Handler routes deep links matching the configured redirect URI to a Deliverer.
type Handler struct {
	redirect  *url.URL
	deliverer Deliverer
}

// NewHandler creates a Handler for redirectURI.
func NewHandler(redirectURI string, deliverer Deliverer) (*Handler, error) {
	if deliverer == nil {
		return nil, errors.New("[NewHandler] Deliverer is required")
	}
	u, err := url.Parse(redirectURI)
	if err != nil || u.Scheme == "" {
		return nil, fmt.Errorf("%w: %q", errors.ErrInvalidRedirectURI, redirectURI)
	}
	return &Handler{redirect: u, deliverer: deliverer}, nil
}

// IsAuthRedirect reports whether raw is an authorization response for this app: its
// scheme, host and path match the redirect URI and its query carries a state plus a
// code or an error.
func (h *Handler) IsAuthRedirect(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, h.redirect.Scheme) ||
		!strings.EqualFold(u.Host, h.redirect.Host) ||
		normalizePath(u.Path) != normalizePath(h.redirect.Path) {
		return false
	}

	q := u.Query()
	if q.Get(login.ParamState) == "" {
		return false
	}
	return q.Get(login.ParamCode) != "" || q.Get(login.ParamError) != ""
}

// Handle forwards raw to the coordinator if it is an authorization redirect. Anything
// else yields an Other failure wrapping errors.ErrNotAuthRedirect, so the caller can
// handle the link normally.
func (h *Handler) Handle(ctx context.Context, raw string) outcome.Outcome {
	if !h.IsAuthRedirect(raw) {
		return outcome.OtherError(errors.ErrNotAuthRedirect)
	}

	query, err := login.ExtractQuery(raw)
	if err != nil {
		return outcome.OtherError(err)
	}
	log.Debug().Str("redirect_uri", h.redirect.String()).Msg("Handling manual authorization redirect")
	return h.deliverer.DeliverManualResult(ctx, query)
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
