package oauthclient_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testClientID    = "test-client-1"
	testRedirectURI = "http://127.0.0.1:8765/callback"
	testKeyID       = "test-key-1"
)

// fakeProvider is a minimal OpenID provider: discovery, JWKS and token endpoints.
type fakeProvider struct {
	t      *testing.T
	server *httptest.Server
	key    *rsa.PrivateKey

	discoveryFailures atomic.Int32 // discovery requests to fail with 503 before succeeding

	lock         sync.Mutex
	nonce        string // nonce claim for issued ID tokens
	omitIDToken  bool
	tokenError   string // OAuth error code returned by the token endpoint
	tokenForms   []map[string]string
	refreshCount int
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := &fakeProvider{t: t, key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", p.handleDiscovery)
	mux.HandleFunc("/keys", p.handleKeys)
	mux.HandleFunc("/token", p.handleToken)
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) issuer() string {
	return p.server.URL
}

func (p *fakeProvider) setNonce(nonce string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.nonce = nonce
}

func (p *fakeProvider) setTokenError(code string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.tokenError = code
}

func (p *fakeProvider) setOmitIDToken(omit bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.omitIDToken = omit
}

func (p *fakeProvider) forms() []map[string]string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]map[string]string(nil), p.tokenForms...)
}

func (p *fakeProvider) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	if p.discoveryFailures.Load() > 0 {
		p.discoveryFailures.Add(-1)
		http.Error(w, "starting up", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"issuer":                                p.issuer(),
		"authorization_endpoint":                p.issuer() + "/authorize",
		"token_endpoint":                        p.issuer() + "/token",
		"jwks_uri":                              p.issuer() + "/keys",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (p *fakeProvider) handleKeys(w http.ResponseWriter, _ *http.Request) {
	pub := p.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": testKeyID,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (p *fakeProvider) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}

	p.lock.Lock()
	p.tokenForms = append(p.tokenForms, form)
	tokenError := p.tokenError
	omitIDToken := p.omitIDToken
	nonce := p.nonce
	if form["grant_type"] == "refresh_token" {
		p.refreshCount++
	}
	refreshCount := p.refreshCount
	p.lock.Unlock()

	if tokenError != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             tokenError,
			"error_description": "rejected by test provider",
		})
		return
	}

	resp := map[string]interface{}{
		"token_type": "Bearer",
		"expires_in": 3600,
	}
	switch form["grant_type"] {
	case "authorization_code":
		resp["access_token"] = "access-" + form["code"]
		resp["refresh_token"] = "refresh-" + form["code"]
		if !omitIDToken {
			resp["id_token"] = p.signIDToken(nonce)
		}
	case "refresh_token":
		// Rotation without a new ID token.
		resp["access_token"] = "access-refreshed"
		if refreshCount > 1 {
			resp["refresh_token"] = "refresh-rotated"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (p *fakeProvider) signIDToken(nonce string) string {
	now := time.Now()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, jwtlib.MapClaims{
		"iss":   p.issuer(),
		"aud":   testClientID,
		"sub":   "user-1",
		"email": "jane@example.com",
		"name":  "Jane Doe",
		"nonce": nonce,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})
	token.Header["kid"] = testKeyID

	signed, err := token.SignedString(p.key)
	if err != nil {
		p.t.Errorf("failed to sign ID token: %v", err)
	}
	return signed
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
