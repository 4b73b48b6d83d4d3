package config

import (
	"strings"
	"time"
)

const (
	issuerURLVar        = "ISSUER_URL"
	clientIDVar         = "CLIENT_ID"
	clientSecretVar     = "CLIENT_SECRET"
	redirectURIVar      = "REDIRECT_URI"
	scopesVar           = "SCOPES"
	discoveryRetriesVar = "DISCOVERY_RETRIES"
	loginTimeoutVar     = "LOGIN_TIMEOUT"
	exchangeTimeoutVar  = "EXCHANGE_TIMEOUT"
	exchangeWorkersVar  = "EXCHANGE_WORKERS"
	refreshWaitVar      = "REFRESH_WAIT"
)

type OAuthConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetScopes() []string
	GetDiscoveryRetries() int
}

type LoginConfig interface {
	GetLoginTimeout() time.Duration
	GetExchangeTimeout() time.Duration
	GetExchangeWorkers() int
	GetRefreshWait() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetIssuerURL() string {
	return GetEnv(issuerURLVar, "http://localhost:8080")
}

func (OAuth) GetClientID() string {
	return GetEnv(clientIDVar, "")
}

// GetClientSecret is empty for public (native) clients, which rely on PKCE instead.
func (OAuth) GetClientSecret() string {
	return GetEnv(clientSecretVar, "")
}

func (OAuth) GetRedirectURI() string {
	return GetEnv(redirectURIVar, "http://127.0.0.1:8765/callback")
}

// GetScopes returns extra scopes requested on top of openid and offline_access.
func (OAuth) GetScopes() []string {
	return strings.Fields(strings.ReplaceAll(GetEnv(scopesVar, "profile email"), ",", " "))
}

func (OAuth) GetDiscoveryRetries() int {
	return GetEnvInt(discoveryRetriesVar, 3)
}

type Login struct{}

var _ LoginConfig = Login{}

// GetLoginTimeout is the watchdog applied to a pending authorization. Zero disables it.
func (Login) GetLoginTimeout() time.Duration {
	return GetEnvDuration(loginTimeoutVar, 0)
}

func (Login) GetExchangeTimeout() time.Duration {
	return GetEnvDuration(exchangeTimeoutVar, 30*time.Second)
}

func (Login) GetExchangeWorkers() int {
	return GetEnvInt(exchangeWorkersVar, 2)
}

// GetRefreshWait bounds how long concurrent refresh callers wait on an in-flight refresh.
func (Login) GetRefreshWait() time.Duration {
	return GetEnvDuration(refreshWaitVar, time.Second)
}
