package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/jrsteele09/go-oauth-login/login"
	"github.com/jrsteele09/go-oauth-login/session"
)

// fetch GETs target with the stored session's access token and copies the response
// body to out. An empty target does nothing.
func fetch(ctx context.Context, target, clientID string, sessions session.Store, refresher *login.Refresher, out io.Writer) error {
	if target == "" {
		return nil
	}

	current, err := sessions.Load(ctx, clientID)
	if err != nil {
		return fmt.Errorf("no session to authenticate with: %w", err)
	}
	transport, err := login.NewTransport(current, refresher, nil)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := transport.Client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("GET %s: %s", target, resp.Status)
	}
	_, err = io.Copy(out, resp.Body)
	return err
}
