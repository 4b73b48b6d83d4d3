package login

import (
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oauth-login/internal/errors"
	"github.com/jrsteele09/go-oauth-login/session"
)

var _ http.RoundTripper = (*Transport)(nil)

// Transport authenticates requests with a session's access token. When the server
// answers 401 it refreshes the session once through a Refresher and retries the
// request with the new token.
type Transport struct {
	base      http.RoundTripper
	refresher *Refresher

	mu      sync.Mutex
	current session.Session
}

// NewTransport creates a Transport for current. refresher may be nil, in which case a
// 401 is returned as is. A nil base uses http.DefaultTransport.
func NewTransport(current session.Session, refresher *Refresher, base http.RoundTripper) (*Transport, error) {
	if current.AccessToken == "" {
		return nil, errors.New("[NewTransport] session has no access token")
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		base:      base,
		refresher: refresher,
		current:   current,
	}, nil
}

// Client returns an http.Client sending every request through t.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Session returns the session whose access token is currently sent.
func (t *Transport) Session() session.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	used := t.Session()
	resp, err := t.base.RoundTrip(withBearer(req, used.AccessToken))
	if err != nil || resp.StatusCode != http.StatusUnauthorized || t.refresher == nil {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		log.Warn().Str("url", req.URL.Redacted()).Msg("Cannot retry request with a one-shot body after refreshing")
		return resp, nil
	}

	next, err := t.refreshed(req, used)
	if err != nil {
		log.Warn().Err(err).Str("url", req.URL.Redacted()).Msg("Failed to refresh session after 401")
		return resp, nil
	}

	retry := withBearer(req, next.AccessToken)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	log.Debug().Str("url", req.URL.Redacted()).Msg("Retrying request with refreshed access token")
	return t.base.RoundTrip(retry)
}

// refreshed returns a session newer than used, refreshing only if no other request
// has already replaced it.
func (t *Transport) refreshed(req *http.Request, used session.Session) (session.Session, error) {
	if current := t.Session(); current.AccessToken != used.AccessToken {
		return current, nil
	}

	next, err := t.refresher.Refresh(req.Context(), used)
	if err != nil {
		return session.Session{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current.AccessToken == used.AccessToken {
		t.current = next
	}
	return t.current, nil
}

func withBearer(req *http.Request, accessToken string) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+accessToken)
	return out
}
