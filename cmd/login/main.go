package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oauth-login/internal/config"
	loginerrors "github.com/jrsteele09/go-oauth-login/internal/errors"
	"github.com/jrsteele09/go-oauth-login/internal/logging"
	"github.com/jrsteele09/go-oauth-login/login"
	"github.com/jrsteele09/go-oauth-login/oauthclient"
	"github.com/jrsteele09/go-oauth-login/outcome"
	"github.com/jrsteele09/go-oauth-login/redirect"
	"github.com/jrsteele09/go-oauth-login/server"
	"github.com/jrsteele09/go-oauth-login/session"
)

const shutdownTimeout = 5 * time.Second

type args struct {
	Manual    bool   `arg:"-m,--manual" help:"paste the redirect URL instead of running the loopback callback server"`
	Logout    bool   `arg:"--logout" help:"remove the stored session and exit"`
	Refresh   bool   `arg:"-r,--refresh" help:"refresh the stored session's tokens"`
	Force     bool   `arg:"-f,--force" help:"log in again even if a session is stored"`
	LoginHint string `arg:"--login-hint" help:"pre-fill the account on the provider's login screen"`
	ACRValues string `arg:"--acr" help:"request an authentication context, e.g. otp"`
	Redirect  string `arg:"--redirect" help:"complete an interrupted login with the URL the browser was redirected to"`
	Get       string `arg:"--get" help:"after logging in, GET this URL with the session's access token and print the response"`
}

func (args) Description() string {
	return "Logs in to an OpenID Connect provider and stores the resulting session."
}

func main() {
	var a args
	arg.MustParse(&a)

	if err := run(a); err != nil {
		log.Fatal().Err(err).Msg("Login failed")
	}
}

func run(a args) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logFile, err := logging.Setup(c)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logFile.Close()

	displayAppname(c.GetAppName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := newStores(c)
	if err != nil {
		return err
	}
	defer st.close()

	client, err := oauthclient.Discover(ctx, oauthclient.Settings{
		IssuerURL:    c.GetIssuerURL(),
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		RedirectURI:  c.GetRedirectURI(),
		Retries:      c.GetDiscoveryRetries(),
	})
	if err != nil {
		return err
	}

	coordinator, err := login.NewCoordinator(c.GetClientID(), c.GetRedirectURI(), login.Collaborators{
		Launcher:  browserLauncher{out: os.Stdout},
		URLs:      client,
		Exchanger: client,
		Sessions:  st.sessions,
		States:    st.states,
	},
		login.WithScopes(c.GetScopes()...),
		login.WithLoginTimeout(c.GetLoginTimeout()),
		login.WithExchangeTimeout(c.GetExchangeTimeout()),
		login.WithExchangeWorkers(c.GetExchangeWorkers()),
	)
	if err != nil {
		return err
	}
	defer coordinator.Close()
	coordinator.Subscribe("cli", printOutcome(os.Stdout))

	if a.Logout {
		if err := coordinator.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Logged out")
		return nil
	}

	refresher, err := login.NewRefresher(client, st.sessions, c.GetRefreshWait())
	if err != nil {
		return err
	}

	if a.Redirect != "" {
		handler, err := redirect.NewHandler(c.GetRedirectURI(), coordinator)
		if err != nil {
			return err
		}
		if err := handler.Handle(ctx, a.Redirect).Err(); err != nil {
			return err
		}
		return fetch(ctx, a.Get, c.GetClientID(), st.sessions, refresher, os.Stdout)
	}

	if err := signIn(ctx, a, c, coordinator, refresher); err != nil {
		return err
	}
	return fetch(ctx, a.Get, c.GetClientID(), st.sessions, refresher, os.Stdout)
}

// signIn resumes, refreshes or replaces the stored session.
func signIn(ctx context.Context, a args, c config.Config, coordinator *login.Coordinator, refresher *login.Refresher) error {
	if !a.Force {
		current, ok := coordinator.Resume(ctx).Session()
		if ok && !a.Refresh && !current.Expired(time.Now()) {
			return nil
		}
		if ok && current.RefreshToken != "" {
			next, err := refresher.Refresh(ctx, current)
			if err == nil {
				printOutcome(os.Stdout)(outcome.Success(next))
				return nil
			}
			log.Warn().Err(err).Msg("Could not refresh the stored session, logging in again")
		}
	}

	return authorize(ctx, a, c, coordinator)
}

func authorize(ctx context.Context, a args, c config.Config, coordinator *login.Coordinator) error {
	if !a.Manual {
		callbacks, err := server.New(c.GetRedirectURI(), coordinator, server.WithEnv(c.GetEnv()))
		if err != nil {
			return err
		}
		if err := callbacks.Start(); err != nil {
			return err
		}
		defer shutdown(callbacks)
	}

	if _, err := coordinator.Begin(ctx, login.RequestConfig{LoginHint: a.LoginHint, ACRValues: a.ACRValues}); err != nil {
		return err
	}

	if a.Manual {
		handler, err := redirect.NewHandler(c.GetRedirectURI(), coordinator)
		if err != nil {
			return err
		}
		go readRedirects(ctx, os.Stdin, os.Stdout, handler)
	}

	result := make(chan outcome.Outcome, 1)
	go func() {
		o, _ := coordinator.WaitForOutcome(0)
		result <- o
	}()

	select {
	case o := <-result:
		return o.Err()
	case <-ctx.Done():
		coordinator.Cancel()
		return (<-result).Err()
	}
}

// readRedirects hands pasted redirect URLs to the coordinator until one of them is
// accepted as an authorization response.
func readRedirects(ctx context.Context, in io.Reader, out io.Writer, handler *redirect.Handler) {
	fmt.Fprintln(out, "After logging in, paste the URL your browser was redirected to:")
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		o := handler.Handle(ctx, scanner.Text())
		if loginerrors.Is(o.Err(), loginerrors.ErrNotAuthRedirect) {
			fmt.Fprintln(out, "That is not an authorization redirect, try again:")
			continue
		}
		if loginerrors.Is(o.Err(), loginerrors.ErrMismatchedRequest) {
			fmt.Fprintln(out, "That redirect belongs to a different login attempt, try again:")
			continue
		}
		return
	}
}

func shutdown(callbacks *server.CallbackServer) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := callbacks.Shutdown(ctx); err != nil {
		log.Err(err).Msg("Failed to shut down callback server")
	}
}

func printOutcome(out io.Writer) func(outcome.Outcome) {
	return func(o outcome.Outcome) {
		o.Match(
			func(s session.Session) {
				claims, err := s.Claims()
				if err != nil {
					fmt.Fprintf(out, "Logged in (session %s, expires %s)\n", s.ID, s.Expiry.Format(time.RFC1123))
					return
				}
				fmt.Fprintf(out, "Logged in as %s <%s> (expires %s)\n", claims.Name, claims.Email, s.Expiry.Format(time.RFC1123))
			},
			func(f *outcome.Failure) {
				switch f.Reason {
				case outcome.NoSession:
					// Expected before a first login; logout reports itself.
				case outcome.CancelledByUser:
					fmt.Fprintln(out, "Login cancelled")
				default:
					fmt.Fprintf(out, "Login failed: %s\n", f)
				}
			},
		)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
