package login

import (
	"slices"
	"strings"
	"time"
)

// Scopes always requested: an ID token for the user's identity and a refresh token
// so the session can outlive the access token.
const (
	ScopeOpenID        = "openid"
	ScopeOfflineAccess = "offline_access"
)

// RequestConfig holds the caller-controlled parameters of a login.
type RequestConfig struct {
	// ExtraScopes are requested in addition to the coordinator's scopes.
	ExtraScopes []string

	// LoginHint pre-fills the identifier on the provider's login screen.
	LoginHint string

	// ACRValues requests a specific authentication context, e.g. "otp" or "sms".
	// When empty the provider is asked to show its account chooser instead.
	ACRValues string
}

// AuthRequest is one attempt to authenticate. Its ID doubles as the OAuth2 state
// parameter, so the redirect that completes it can be matched back to it.
type AuthRequest struct {
	ID           string    `json:"id"`            // Unique request identifier (UUID), sent as state
	Nonce        string    `json:"nonce"`         // OIDC nonce, echoed back in the ID token
	CodeVerifier string    `json:"code_verifier"` // PKCE verifier, only its S256 challenge leaves the process
	RedirectURI  string    `json:"redirect_uri"`  // Where the provider sends the user-agent back to
	AuthURL      string    `json:"auth_url"`      // Authorization URL presented to the user
	Scopes       []string  `json:"scopes"`        // Requested scopes
	LoginHint    string    `json:"login_hint"`    // Optional login_hint
	ACRValues    string    `json:"acr_values"`    // Optional acr_values
	CreatedAt    time.Time `json:"created_at"`    // When the request started
}

// Scope returns the requested scopes in the space-delimited form used on the wire.
func (r *AuthRequest) Scope() string {
	return strings.Join(r.Scopes, " ")
}

// Grant carries what the token endpoint needs to redeem an authorization code.
type Grant struct {
	Code         string
	CodeVerifier string
	Nonce        string
	RedirectURI  string
}

// mergeScopes returns the union of the scope lists, keeping first-seen order.
func mergeScopes(lists ...[]string) []string {
	var merged []string
	for _, list := range lists {
		for _, scope := range list {
			if scope != "" && !slices.Contains(merged, scope) {
				merged = append(merged, scope)
			}
		}
	}
	return merged
}
