package server

import (
	"net/http"
	"strings"
)

func (s *CallbackServer) initRoutes() {
	s.RegisterRouteFunc(http.MethodGet+" "+s.callbackPath(), ChainMiddleware(s.CallbackHandler(), s.CallbackMiddleware()...))
}

// callbackPath returns the mux pattern matching exactly the redirect URI's path. A
// pattern ending in a slash would otherwise match the whole subtree below it.
func (s *CallbackServer) callbackPath() string {
	path := s.redirect.Path
	if path == "" {
		path = "/"
	}
	if strings.HasSuffix(path, "/") {
		return path + "{$}"
	}
	return path
}
