package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth-login/internal/config"
	"github.com/jrsteele09/go-oauth-login/login"
	"github.com/jrsteele09/go-oauth-login/login/loginfakes"
	"github.com/jrsteele09/go-oauth-login/outcome"
	"github.com/jrsteele09/go-oauth-login/redirect"
	"github.com/jrsteele09/go-oauth-login/session"
)

type recordingDeliverer struct {
	queries []string
}

func (d *recordingDeliverer) DeliverManualResult(_ context.Context, queryString string) outcome.Outcome {
	d.queries = append(d.queries, queryString)
	return outcome.Cancelled()
}

func TestReadRedirects_SkipsLinesThatAreNotRedirects(t *testing.T) {
	d := &recordingDeliverer{}
	handler, err := redirect.NewHandler("http://127.0.0.1:8765/callback", d)
	require.NoError(t, err)

	in := strings.NewReader("hello\nhttp://127.0.0.1:8765/callback?state=s1&code=c1\nhttp://127.0.0.1:8765/callback?state=s2&code=c2\n")
	var out bytes.Buffer
	readRedirects(context.Background(), in, &out, handler)

	require.Equal(t, []string{"state=s1&code=c1"}, d.queries, "reading stops at the first accepted redirect")
	require.Contains(t, out.String(), "not an authorization redirect")
}

func TestPrintOutcome(t *testing.T) {
	var out bytes.Buffer
	show := printOutcome(&out)

	show(outcome.NoLoggedInUser())
	require.Empty(t, out.String(), "a first run with no stored session prints nothing")

	show(outcome.Cancelled())
	show(outcome.Success(session.New("client-1", session.Tokens{AccessToken: "a", Expiry: time.Now()}, time.Now())))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Login cancelled", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "Logged in (session "))
}

func TestNewStores(t *testing.T) {
	t.Setenv("SESSION_STORE", "memory")
	st, err := newStores(config.Storage{})
	require.NoError(t, err)
	defer st.close()
	require.IsType(t, &session.MemoryStore{}, st.sessions)
	require.NotNil(t, st.states)

	dir := t.TempDir()
	t.Setenv("SESSION_STORE", "file")
	t.Setenv("SESSION_FILE", filepath.Join(dir, "session.json"))
	t.Setenv("AUTH_STATE_FILE", filepath.Join(dir, "auth_state.json"))
	st, err = newStores(config.Storage{})
	require.NoError(t, err)
	require.IsType(t, &session.FileStore{}, st.sessions)

	req := login.AuthRequest{ID: "request-1", CodeVerifier: "verifier"}
	require.NoError(t, st.states.Save(context.Background(), "client-1", req))
	require.FileExists(t, filepath.Join(dir, "auth_state.json"))
}

func TestNewStores_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("REDIS_ADDR", mr.Addr())

	st, err := newStores(config.Storage{})
	require.NoError(t, err)
	defer st.close()

	require.NoError(t, st.states.Save(context.Background(), "client-1", login.AuthRequest{ID: "request-1"}))
	require.True(t, mr.Exists("login:state:client-1"))
	require.Positive(t, mr.TTL("login:state:client-1"))
}

func TestFetch_RefreshesOnUnauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-refreshed-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"name":"Jane"}`)
	}))
	defer ts.Close()

	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(ctx, session.New("client-1", session.Tokens{AccessToken: "stale", RefreshToken: "r"}, time.Now())))
	refresher, err := login.NewRefresher(&loginfakes.FakeRefresher{}, store, time.Second)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, fetch(ctx, ts.URL, "client-1", store, refresher, &out))
	require.Equal(t, `{"name":"Jane"}`, out.String())

	require.NoError(t, fetch(ctx, "", "client-1", store, refresher, &out), "no target is a no-op")
	require.ErrorContains(t, fetch(ctx, ts.URL, "client-2", store, refresher, &out), "no session")
}
