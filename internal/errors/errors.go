package errors

import (
	"errors"
	"fmt"
)

// Common error types for the login coordinator
var (
	// Authorization flow errors
	ErrAuthInProgress    = errors.New("authorization already in progress")
	ErrNoPendingRequest  = errors.New("no pending authorization request")
	ErrMismatchedRequest = errors.New("mismatched request")
	ErrAlreadyResolved   = errors.New("authorization request already resolved")
	ErrAuthTimeout       = errors.New("authorization timed out")
	ErrLaunchFailed      = errors.New("failed to launch user agent")

	// Redirect errors
	ErrNotAuthRedirect    = errors.New("not an auth redirect")
	ErrInvalidResponse    = errors.New("invalid authorization response")
	ErrMissingCode        = errors.New("missing authorization code in authentication response")
	ErrAuthErrorResponse  = errors.New("authentication error response")
	ErrInvalidRedirectURI = errors.New("invalid redirect URI")

	// Token errors
	ErrTokenExchange  = errors.New("token exchange failed")
	ErrInvalidGrant   = errors.New("invalid grant")
	ErrNoIDToken      = errors.New("no ID token in response")
	ErrNonceMismatch  = errors.New("invalid nonce")
	ErrNoRefreshToken = errors.New("no refresh token")
	ErrRefreshFailed  = errors.New("token refresh failed")
	ErrInvalidIDToken = errors.New("invalid ID token")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidSession  = errors.New("invalid session")

	// Storage errors
	ErrDocumentNotFound = errors.New("document not found")

	// General errors
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// New returns an error that formats as the given text
func New(text string) error {
	return errors.New(text)
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
