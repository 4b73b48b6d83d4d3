// Package server runs the loopback HTTP server that receives the provider's redirect
// when the authorization flow returns to the app automatically.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oauth-login/internal/errors"
	"github.com/jrsteele09/go-oauth-login/outcome"
)

const readHeaderTimeout = 10 * time.Second

// Deliverer accepts the raw query of an automatic authorization redirect.
type Deliverer interface {
	DeliverAutomaticResult(ctx context.Context, rawResponse string) outcome.Outcome
}

type CallbackServer struct {
	env       string // Environment (e.g., "DEV", "PROD")
	redirect  *url.URL
	deliverer Deliverer
	mux       *http.ServeMux
	routes    []string

	lock     sync.Mutex
	server   *http.Server
	listener net.Listener
	served   chan struct{}
}

// ServerOption defines a function type to modify the CallbackServer instance.
type ServerOption func(*CallbackServer)

// WithEnv sets the environment; routes and requests are logged in DEV.
func WithEnv(env string) ServerOption {
	return func(s *CallbackServer) {
		s.env = strings.ToUpper(env)
	}
}

// New creates a callback server for redirectURI, which must be an http URL on a
// loopback host with an explicit port.
func New(redirectURI string, deliverer Deliverer, options ...ServerOption) (*CallbackServer, error) {
	if deliverer == nil {
		return nil, errors.New("[Server New] Deliverer is required")
	}
	redirect, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidRedirectURI, err)
	}
	if redirect.Scheme != "http" || redirect.Port() == "" {
		return nil, fmt.Errorf("%w: %q is not an http URL with a port", errors.ErrInvalidRedirectURI, redirectURI)
	}
	if !isLoopback(redirect.Hostname()) {
		return nil, fmt.Errorf("%w: %q is not a loopback address", errors.ErrInvalidRedirectURI, redirectURI)
	}

	s := &CallbackServer{
		redirect:  redirect,
		deliverer: deliverer,
		mux:       http.NewServeMux(),
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *CallbackServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *CallbackServer) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Start listens on the redirect URI's host and port and serves in the background.
func (s *CallbackServer) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.server != nil {
		return fmt.Errorf("callback server already started on %s", s.listener.Addr())
	}

	listener, err := net.Listen("tcp", s.redirect.Host)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.redirect.Host, err)
	}

	s.listener = listener
	s.served = make(chan struct{})
	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	server, served := s.server, s.served
	go func() {
		defer close(served)
		log.Debug().Str("addr", listener.Addr().String()).Msg("Starting OAuth callback server")
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Msg("OAuth callback server error")
		}
		log.Debug().Msg("OAuth callback server stopped")
	}()
	return nil
}

// Addr returns the address the server is listening on, or "" before Start.
func (s *CallbackServer) Addr() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server, waiting for in-flight callbacks to be answered.
func (s *CallbackServer) Shutdown(ctx context.Context) error {
	s.lock.Lock()
	server, served := s.server, s.served
	s.server, s.listener, s.served = nil, nil, nil
	s.lock.Unlock()

	if server == nil {
		return nil
	}
	err := server.Shutdown(ctx)
	<-served
	return err
}

func (s *CallbackServer) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Debug().Str("method", method).Str("path", path).Msg("Route")
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
