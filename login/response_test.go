package login_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth-login/internal/errors"
	"github.com/jrsteele09/go-oauth-login/login"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    login.Response
		wantErr error
	}{
		{
			name: "query string",
			raw:  "state=abc&code=xyz",
			want: login.Response{State: "abc", Code: "xyz"},
		},
		{
			name: "leading question mark",
			raw:  "?state=abc&code=xyz",
			want: login.Response{State: "abc", Code: "xyz"},
		},
		{
			name: "full redirect URL",
			raw:  "com.example.app://callback?state=abc&code=xyz",
			want: login.Response{State: "abc", Code: "xyz"},
		},
		{
			name: "error response",
			raw:  "state=abc&error=access_denied&error_description=User+cancelled",
			want: login.Response{State: "abc", Error: "access_denied", ErrorDescription: "User cancelled"},
		},
		{
			name:    "missing state",
			raw:     "code=xyz",
			wantErr: errors.ErrInvalidResponse,
		},
		{
			name:    "malformed query",
			raw:     "state=%zz",
			wantErr: errors.ErrInvalidResponse,
		},
		{
			name:    "empty",
			raw:     "   ",
			wantErr: errors.ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := login.ParseResponse(tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestExtractQuery(t *testing.T) {
	q, err := login.ExtractQuery("http://127.0.0.1:8765/callback?state=1&code=2")
	require.NoError(t, err)
	require.Equal(t, "state=1&code=2", q)

	q, err = login.ExtractQuery("state=1")
	require.NoError(t, err)
	require.Equal(t, "state=1", q)
}
