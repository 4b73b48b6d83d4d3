package main

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oauth-login/login"
)

// browserLauncher prints the authorization URL and tries to open it in the default
// browser. Failing to start a browser is not an error: the user can open the URL.
type browserLauncher struct {
	out io.Writer
}

func (l browserLauncher) Present(_ context.Context, req *login.AuthRequest) error {
	fmt.Fprintf(l.out, "Opening your browser to log in. If it does not open, visit:\n\n  %s\n\n", req.AuthURL)
	if err := openBrowser(req.AuthURL); err != nil {
		log.Warn().Err(err).Msg("Failed to open browser")
	}
	return nil
}

func openBrowser(url string) error {
	var args []string
	switch runtime.GOOS {
	case "darwin":
		args = []string{"open"}
	case "windows":
		args = []string{"rundll32", "url.dll,FileProtocolHandler"}
	default:
		args = []string{"xdg-open"}
	}
	cmd := exec.Command(args[0], append(args[1:], url)...)
	return cmd.Start()
}
