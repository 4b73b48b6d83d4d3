package server_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth-login/internal/errors"
	"github.com/jrsteele09/go-oauth-login/login"
	"github.com/jrsteele09/go-oauth-login/login/loginfakes"
	"github.com/jrsteele09/go-oauth-login/outcome"
	"github.com/jrsteele09/go-oauth-login/server"
	"github.com/jrsteele09/go-oauth-login/session"
)

const testRedirectURI = "http://127.0.0.1:8765/callback"

type fakeDeliverer struct {
	lock    sync.Mutex
	queries []string
	result  outcome.Outcome
	panics  bool
}

func (d *fakeDeliverer) DeliverAutomaticResult(_ context.Context, rawResponse string) outcome.Outcome {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.panics {
		panic("exchange blew up")
	}
	d.queries = append(d.queries, rawResponse)
	return d.result
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNew_Validation(t *testing.T) {
	d := &fakeDeliverer{}

	tests := []struct {
		name        string
		redirectURI string
	}{
		{"custom scheme", "com.example.app://callback"},
		{"https", "https://127.0.0.1:8765/callback"},
		{"no port", "http://127.0.0.1/callback"},
		{"not loopback", "http://example.com:8765/callback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := server.New(tt.redirectURI, d)
			require.ErrorIs(t, err, errors.ErrInvalidRedirectURI)
		})
	}

	_, err := server.New(testRedirectURI, nil)
	require.Error(t, err)

	_, err = server.New("http://localhost:8765/callback", d)
	require.NoError(t, err)
	_, err = server.New("http://[::1]:8765/callback", d)
	require.NoError(t, err)
}

func TestCallbackHandler_Responses(t *testing.T) {
	tests := []struct {
		name       string
		result     outcome.Outcome
		wantStatus int
		wantBody   string
	}{
		{"success", outcome.Success(session.New("client-1", session.Tokens{AccessToken: "a"}, time.Now())), http.StatusOK, "Authentication successful"},
		{"cancelled", outcome.Cancelled(), http.StatusForbidden, "Authentication cancelled"},
		{"stale request", outcome.OtherError(errors.ErrMismatchedRequest), http.StatusBadRequest, "Authentication request not recognised"},
		{"exchange failure", outcome.OtherError(errors.ErrTokenExchange), http.StatusBadRequest, "Authentication failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDeliverer{result: tt.result}
			s, err := server.New(testRedirectURI, d)
			require.NoError(t, err)

			rec := get(t, s, "/callback?state=s1&code=c1")
			require.Equal(t, tt.wantStatus, rec.Code)
			require.Contains(t, rec.Body.String(), tt.wantBody)
			require.Contains(t, rec.Body.String(), "window.close()")
			require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
			require.Equal(t, []string{"state=s1&code=c1"}, d.queries)
		})
	}
}

func TestCallbackHandler_OnlyServesRedirectPath(t *testing.T) {
	d := &fakeDeliverer{result: outcome.Cancelled()}
	s, err := server.New(testRedirectURI, d)
	require.NoError(t, err)

	require.Equal(t, http.StatusNotFound, get(t, s, "/favicon.ico").Code)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/callback", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Empty(t, d.queries)
}

func TestCallbackHandler_RootRedirectServesOnlyRoot(t *testing.T) {
	for _, redirectURI := range []string{"http://127.0.0.1:8765", "http://127.0.0.1:8765/", "http://127.0.0.1:8765/auth/"} {
		t.Run(redirectURI, func(t *testing.T) {
			d := &fakeDeliverer{result: outcome.Success(session.New("client-1", session.Tokens{AccessToken: "a"}, time.Now()))}
			s, err := server.New(redirectURI, d)
			require.NoError(t, err)

			for _, stray := range []string{"/favicon.ico", "/auth/favicon.ico", "/robots.txt"} {
				require.Equal(t, http.StatusNotFound, get(t, s, stray).Code, stray)
			}
			require.Empty(t, d.queries, "stray requests never reach the coordinator")

			path := "/"
			if redirectURI == "http://127.0.0.1:8765/auth/" {
				path = "/auth/"
			}
			require.Equal(t, http.StatusOK, get(t, s, path+"?state=s1&code=c1").Code)
			require.Equal(t, []string{"state=s1&code=c1"}, d.queries)
		})
	}
}

func TestCallbackHandler_RecoversFromPanic(t *testing.T) {
	s, err := server.New(testRedirectURI, &fakeDeliverer{panics: true})
	require.NoError(t, err)

	rec := get(t, s, "/callback?state=s1&code=c1")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Authentication failed")
}

func TestCallbackServer_CompletesLogin(t *testing.T) {
	launcher := loginfakes.NewFakeLauncher()
	coordinator, err := login.NewCoordinator("client-1", testRedirectURI, login.Collaborators{
		Launcher:  launcher,
		URLs:      loginfakes.FakeURLBuilder{},
		Exchanger: loginfakes.NewFakeExchanger("client-1"),
	})
	require.NoError(t, err)
	defer coordinator.Close()

	s, err := server.New(testRedirectURI, coordinator)
	require.NoError(t, err)
	ts := httptest.NewServer(s)
	defer ts.Close()

	results := make(chan outcome.Outcome, 1)
	coordinator.Subscribe("test", func(o outcome.Outcome) { results <- o })

	req, err := coordinator.Begin(context.Background(), login.RequestConfig{})
	require.NoError(t, err)

	resp, err := http.Get(fmt.Sprintf("%s/callback?%s", ts.URL, url.Values{"state": {req.ID}, "code": {"c1"}}.Encode()))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "Authentication successful")

	select {
	case o := <-results:
		require.True(t, o.IsSuccess())
	case <-time.After(time.Second):
		t.Fatal("no outcome published")
	}
}

func TestCallbackServer_StartAndShutdown(t *testing.T) {
	s, err := server.New("http://127.0.0.1:0/callback", &fakeDeliverer{result: outcome.Cancelled()})
	require.NoError(t, err)
	require.Empty(t, s.Addr())

	require.NoError(t, s.Start())
	require.Error(t, s.Start(), "already started")

	resp, err := http.Get("http://" + s.Addr() + "/callback?state=s1&error=access_denied")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.Empty(t, s.Addr())
	require.NoError(t, s.Shutdown(ctx), "shutting down twice is a no-op")
}
