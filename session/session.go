package session

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jrsteele09/go-oauth-login/internal/errors"
)

// Session is the credential handle produced by a successful login.
//
// Sessions are values: they are never modified in place. A token refresh produces a
// replacement Session via WithTokens, and whoever holds the old value keeps a
// consistent (if stale) copy.
type Session struct {
	ID       string `json:"id"`        // Unique session identifier (UUID)
	ClientID string `json:"client_id"` // OAuth client the session was issued to

	// Tokens (refresh is essential, access is convenience)
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"` // When the access token expires

	IssuedAt time.Time `json:"issued_at"`
}

// Tokens groups the credential fields of a token response.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	TokenType    string
	Expiry       time.Time
}

// New creates a session with a fresh ID.
func New(clientID string, tokens Tokens, issuedAt time.Time) Session {
	return Session{
		ID:           uuid.New().String(),
		ClientID:     clientID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		IDToken:      tokens.IDToken,
		TokenType:    tokens.TokenType,
		Expiry:       tokens.Expiry,
		IssuedAt:     issuedAt,
	}
}

// WithTokens returns a replacement session carrying refreshed tokens. An empty refresh
// token or ID token in the response keeps the current one, as servers may omit them
// when they are not rotated.
func (s Session) WithTokens(tokens Tokens, issuedAt time.Time) Session {
	next := s
	next.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		next.RefreshToken = tokens.RefreshToken
	}
	if tokens.IDToken != "" {
		next.IDToken = tokens.IDToken
	}
	if tokens.TokenType != "" {
		next.TokenType = tokens.TokenType
	}
	next.Expiry = tokens.Expiry
	next.IssuedAt = issuedAt
	return next
}

// Validate checks the fields a usable session must carry.
func (s Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: id is required", errors.ErrInvalidSession)
	}
	if s.ClientID == "" {
		return fmt.Errorf("%w: client id is required", errors.ErrInvalidSession)
	}
	if s.AccessToken == "" {
		return fmt.Errorf("%w: access token is required", errors.ErrInvalidSession)
	}
	return nil
}

// Expired reports whether the access token has expired at now. Sessions without an
// expiry never expire.
func (s Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && !now.Before(s.Expiry)
}

// String avoids printing token material.
func (s Session) String() string {
	return fmt.Sprintf("Session{id: %s, client: %s, issued: %s}", s.ID, s.ClientID, s.IssuedAt.Format(time.RFC3339))
}

// IdentityClaims are the user identity claims carried by the ID token.
type IdentityClaims struct {
	Subject string
	Email   string
	Name    string
	Issuer  string
}

// Claims decodes the identity claims from the ID token. The signature is not checked
// here: ID tokens are verified when the session is created.
func (s Session) Claims() (IdentityClaims, error) {
	if s.IDToken == "" {
		return IdentityClaims{}, errors.ErrNoIDToken
	}

	token, _, err := jwtlib.NewParser().ParseUnverified(s.IDToken, jwtlib.MapClaims{})
	if err != nil {
		return IdentityClaims{}, fmt.Errorf("%w: %v", errors.ErrInvalidIDToken, err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return IdentityClaims{}, errors.ErrInvalidIDToken
	}

	subject, _ := claims.GetSubject()
	issuer, _ := claims.GetIssuer()
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return IdentityClaims{
		Subject: subject,
		Email:   email,
		Name:    name,
		Issuer:  issuer,
	}, nil
}
