package login

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-oauth-login/internal/errors"
)

// Authorization response parameters
const (
	ParamState            = "state"
	ParamCode             = "code"
	ParamError            = "error"
	ParamErrorDescription = "error_description"

	// errorAccessDenied is what providers send when the user declines or closes the consent screen
	errorAccessDenied = "access_denied"
)

// Response is a parsed authorization response.
type Response struct {
	State            string
	Code             string
	Error            string
	ErrorDescription string
}

// ParseResponse parses an authorization response. raw may be a bare query string
// (with or without the leading '?') or a full redirect URL.
func ParseResponse(raw string) (Response, error) {
	query, err := ExtractQuery(raw)
	if err != nil {
		return Response{}, err
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", errors.ErrInvalidResponse, err)
	}

	resp := Response{
		State:            values.Get(ParamState),
		Code:             values.Get(ParamCode),
		Error:            values.Get(ParamError),
		ErrorDescription: values.Get(ParamErrorDescription),
	}
	if resp.State == "" {
		return resp, fmt.Errorf("%w: missing state", errors.ErrInvalidResponse)
	}
	return resp, nil
}

// ExtractQuery returns the query component of raw, which is either a URL or a query string.
func ExtractQuery(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		return strings.TrimPrefix(raw, "?"), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidResponse, err)
	}
	return u.RawQuery, nil
}

// describeError formats the provider's error for logs and failure details.
func (r Response) describeError() string {
	if r.ErrorDescription == "" {
		return r.Error
	}
	return fmt.Sprintf("%s - %s", r.Error, r.ErrorDescription)
}
