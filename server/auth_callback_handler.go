package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oauth-login/internal/errors"
	"github.com/jrsteele09/go-oauth-login/outcome"
	"github.com/jrsteele09/go-oauth-login/session"
)

// closeWindowHTML generates simple HTML to close the browser window.
func closeWindowHTML(message string) string {
	return fmt.Sprintf(`<html><script>window.close()</script><body>%s. You can close this window.</body></html>`, message)
}

// CallbackHandler hands the redirect's query to the coordinator and tells the user
// how it went. The exchange continues even if the browser goes away mid-request.
func (s *CallbackServer) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithoutCancel(r.Context())
		o := s.deliverer.DeliverAutomaticResult(ctx, r.URL.RawQuery)

		status, message := http.StatusOK, "Authentication successful"
		o.Match(
			func(session.Session) {},
			func(f *outcome.Failure) {
				switch {
				case f.Reason == outcome.CancelledByUser:
					status, message = http.StatusForbidden, "Authentication cancelled"
				case errors.Is(f, errors.ErrMismatchedRequest), errors.Is(f, errors.ErrInvalidResponse):
					status, message = http.StatusBadRequest, "Authentication request not recognised"
				default:
					status, message = http.StatusBadRequest, "Authentication failed"
				}
				log.Debug().Stringer("outcome", o).Msg("OAuth callback did not complete a login")
			},
		)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, closeWindowHTML(message))
	}
}
