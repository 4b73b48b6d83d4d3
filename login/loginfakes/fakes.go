// Package loginfakes provides in-memory collaborators for exercising a login.Coordinator.
package loginfakes

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-oauth-login/login"
	"github.com/jrsteele09/go-oauth-login/session"
)

var (
	_ login.Launcher       = (*FakeLauncher)(nil)
	_ login.URLBuilder     = (*FakeURLBuilder)(nil)
	_ login.TokenExchanger = (*FakeExchanger)(nil)
	_ login.TokenRefresher = (*FakeRefresher)(nil)
)

// FakeLauncher records every request it is asked to present.
type FakeLauncher struct {
	Err error

	lock     sync.Mutex
	requests []login.AuthRequest
}

func NewFakeLauncher() *FakeLauncher {
	return &FakeLauncher{}
}

func (l *FakeLauncher) Present(_ context.Context, req *login.AuthRequest) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.requests = append(l.requests, *req)
	return l.Err
}

// Requests returns the presented requests in order.
func (l *FakeLauncher) Requests() []login.AuthRequest {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]login.AuthRequest(nil), l.requests...)
}

// Last returns the most recently presented request.
func (l *FakeLauncher) Last() (login.AuthRequest, bool) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if len(l.requests) == 0 {
		return login.AuthRequest{}, false
	}
	return l.requests[len(l.requests)-1], true
}

// FakeURLBuilder builds "<BaseURL>?state=<id>" URLs.
type FakeURLBuilder struct {
	BaseURL string
}

func (b FakeURLBuilder) AuthCodeURL(req *login.AuthRequest) string {
	base := b.BaseURL
	if base == "" {
		base = "https://auth.example.com/authorize"
	}
	return fmt.Sprintf("%s?state=%s", base, url.QueryEscape(req.ID))
}

// FakeExchanger answers every grant with Session or Err. When Block is non-nil the
// exchange waits for it to be closed (or for the context to end) first.
type FakeExchanger struct {
	ClientID string
	Err      error
	Block    chan struct{}

	calls  atomic.Int32
	lock   sync.Mutex
	grants []login.Grant
}

func NewFakeExchanger(clientID string) *FakeExchanger {
	return &FakeExchanger{ClientID: clientID}
}

func (e *FakeExchanger) Exchange(ctx context.Context, grant login.Grant) (session.Session, error) {
	e.calls.Add(1)
	e.lock.Lock()
	e.grants = append(e.grants, grant)
	e.lock.Unlock()

	if e.Block != nil {
		select {
		case <-e.Block:
		case <-ctx.Done():
			return session.Session{}, ctx.Err()
		}
	}
	if e.Err != nil {
		return session.Session{}, e.Err
	}
	return session.New(e.ClientID, session.Tokens{
		AccessToken:  "access-" + grant.Code,
		RefreshToken: "refresh-" + grant.Code,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}, time.Now()), nil
}

// Calls returns how many exchanges were attempted.
func (e *FakeExchanger) Calls() int {
	return int(e.calls.Load())
}

func (e *FakeExchanger) Grants() []login.Grant {
	e.lock.Lock()
	defer e.lock.Unlock()
	return append([]login.Grant(nil), e.grants...)
}

// FakeRefresher rotates tokens, optionally blocking until Block is closed.
type FakeRefresher struct {
	Err   error
	Block chan struct{}

	calls atomic.Int32
}

func (r *FakeRefresher) Refresh(ctx context.Context, current session.Session) (session.Session, error) {
	n := r.calls.Add(1)
	if r.Block != nil {
		select {
		case <-r.Block:
		case <-ctx.Done():
			return session.Session{}, ctx.Err()
		}
	}
	if r.Err != nil {
		return session.Session{}, r.Err
	}
	return current.WithTokens(session.Tokens{
		AccessToken:  fmt.Sprintf("access-refreshed-%d", n),
		RefreshToken: fmt.Sprintf("refresh-refreshed-%d", n),
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}, time.Now()), nil
}

func (r *FakeRefresher) Calls() int {
	return int(r.calls.Load())
}
