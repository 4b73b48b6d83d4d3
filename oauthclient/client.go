// Package oauthclient talks to the OpenID Connect provider: it builds authorization
// URLs and redeems and refreshes tokens for a login.Coordinator.
package oauthclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-oauth-login/internal/errors"
	"github.com/jrsteele09/go-oauth-login/login"
	"github.com/jrsteele09/go-oauth-login/session"
)

// Authorization request parameters beyond those set by x/oauth2
const (
	paramLoginHint = "login_hint"
	paramACRValues = "acr_values"
	paramPrompt    = "prompt"

	promptSelectAccount = "select_account"
	errorInvalidGrant   = "invalid_grant"
	idTokenField        = "id_token"
)

var (
	_ login.URLBuilder     = (*Client)(nil)
	_ login.TokenExchanger = (*Client)(nil)
	_ login.TokenRefresher = (*Client)(nil)
)

// Client implements the coordinator's URLBuilder, TokenExchanger and TokenRefresher
// over an OAuth2 configuration.
type Client struct {
	oauth      *oauth2.Config
	verifier   *oidc.IDTokenVerifier
	httpClient *http.Client
	nowTime    func() time.Time
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a Client. When verifier is nil, ID tokens are stored as received
// without signature or nonce checks.
func New(cfg *oauth2.Config, verifier *oidc.IDTokenVerifier, options ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("[New] oauth2 config is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("[New] client ID is required")
	}
	if cfg.Endpoint.AuthURL == "" || cfg.Endpoint.TokenURL == "" {
		return nil, errors.New("[New] authorization and token endpoints are required")
	}

	c := &Client{
		oauth:    cfg,
		verifier: verifier,
		nowTime:  time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// ClientID returns the OAuth client ID.
func (c *Client) ClientID() string {
	return c.oauth.ClientID
}

// AuthCodeURL builds the authorization URL for req: authorization code flow with an
// S256 PKCE challenge, the request ID as state and the OIDC nonce. Without ACR values
// the provider is asked to show its account chooser.
func (c *Client) AuthCodeURL(req *login.AuthRequest) string {
	cfg := c.configFor(req.RedirectURI)
	cfg.Scopes = req.Scopes

	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(req.CodeVerifier),
		oidc.Nonce(req.Nonce),
	}
	if req.LoginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam(paramLoginHint, req.LoginHint))
	}
	if req.ACRValues != "" {
		opts = append(opts, oauth2.SetAuthURLParam(paramACRValues, req.ACRValues))
	} else {
		opts = append(opts, oauth2.SetAuthURLParam(paramPrompt, promptSelectAccount))
	}
	return cfg.AuthCodeURL(req.ID, opts...)
}

// Exchange redeems an authorization code. When the client has a verifier the ID
// token must be present, correctly signed and carry the request's nonce.
func (c *Client) Exchange(ctx context.Context, grant login.Grant) (session.Session, error) {
	cfg := c.configFor(grant.RedirectURI)

	token, err := cfg.Exchange(c.context(ctx), grant.Code, oauth2.VerifierOption(grant.CodeVerifier))
	if err != nil {
		return session.Session{}, tokenError(errors.ErrTokenExchange, err)
	}

	rawIDToken, _ := token.Extra(idTokenField).(string)
	if c.verifier != nil {
		if rawIDToken == "" {
			return session.Session{}, fmt.Errorf("%w: %w", errors.ErrTokenExchange, errors.ErrNoIDToken)
		}
		idToken, err := c.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return session.Session{}, fmt.Errorf("%w: %w: %v", errors.ErrTokenExchange, errors.ErrInvalidIDToken, err)
		}
		// Validate nonce to prevent replay attacks
		if idToken.Nonce != grant.Nonce {
			return session.Session{}, fmt.Errorf("%w: %w", errors.ErrTokenExchange, errors.ErrNonceMismatch)
		}
	}

	s := session.New(c.oauth.ClientID, tokensFrom(token, rawIDToken), c.nowTime())
	log.Debug().Str("session_id", s.ID).Time("expiry", s.Expiry).Msg("Authorization code exchanged")
	return s, nil
}

// Refresh uses current's refresh token to obtain a replacement session. The provider
// may omit the refresh or ID token, in which case the current ones are kept.
func (c *Client) Refresh(ctx context.Context, current session.Session) (session.Session, error) {
	if current.RefreshToken == "" {
		return session.Session{}, errors.ErrNoRefreshToken
	}

	// An empty access token makes the token source refresh immediately.
	source := c.oauth.TokenSource(c.context(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return session.Session{}, tokenError(errors.ErrRefreshFailed, err)
	}

	rawIDToken, _ := token.Extra(idTokenField).(string)
	if rawIDToken != "" && c.verifier != nil {
		if _, err := c.verifier.Verify(ctx, rawIDToken); err != nil {
			return session.Session{}, fmt.Errorf("%w: %w: %v", errors.ErrRefreshFailed, errors.ErrInvalidIDToken, err)
		}
	}
	return current.WithTokens(tokensFrom(token, rawIDToken), c.nowTime()), nil
}

func (c *Client) configFor(redirectURI string) oauth2.Config {
	cfg := *c.oauth
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}
	return cfg
}

func (c *Client) context(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func tokensFrom(token *oauth2.Token, rawIDToken string) session.Tokens {
	return session.Tokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IDToken:      rawIDToken,
		TokenType:    token.Type(),
		Expiry:       token.Expiry,
	}
}

// tokenError wraps a token endpoint error under kind. A rejected code or refresh
// token is additionally marked with errors.ErrInvalidGrant.
func tokenError(kind error, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == errorInvalidGrant {
		return fmt.Errorf("%w: %w: %v", kind, errors.ErrInvalidGrant, retrieveErr.ErrorDescription)
	}
	return fmt.Errorf("%w: %w", kind, err)
}
