package oauthclient

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-oauth-login/internal/logging"
)

const defaultRetryWait = 500 * time.Millisecond

// Settings describe the OAuth client registered with the provider.
type Settings struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string // Empty for public clients
	RedirectURI  string
	Scopes       []string
	Retries      int           // Retries for discovery and key fetches
	RetryWait    time.Duration // Minimum wait between retries
}

// Discover reads the provider's OpenID configuration from its issuer URL and returns
// a Client that verifies ID tokens against the provider's published keys.
//
// Provider requests go through a retrying HTTP client, since discovery usually runs
// at startup when the network may not be ready yet.
func Discover(ctx context.Context, settings Settings, options ...ClientOption) (*Client, error) {
	retryWait := settings.RetryWait
	if retryWait <= 0 {
		retryWait = defaultRetryWait
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = settings.Retries
	httpClient.RetryWaitMin = retryWait
	httpClient.RetryWaitMax = 8 * retryWait
	httpClient.Logger = logging.NewLeveledLogger(log.Logger)
	standard := httpClient.StandardClient()

	// The provider keeps the client from this context for fetching signing keys.
	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, standard), settings.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	log.Info().Str("issuer", settings.IssuerURL).Msg("Discovered OIDC provider")

	cfg := &oauth2.Config{
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  settings.RedirectURI,
		Scopes:       settings.Scopes,
	}
	verifier := provider.Verifier(&oidc.Config{
		ClientID: settings.ClientID,
	})

	return New(cfg, verifier, append([]ClientOption{WithHTTPClient(standard)}, options...)...)
}
