package server

import "net/http"

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// Connect flow. The callback route carries no auth of its own; the state
	// token (or pending request token) is the only trusted context.
	s.RegisterRouteHandler("GET "+RouteConnectAuthorize, ChainMiddleware(s.AuthorizeHandler(), s.APIMiddleware(s.OptionalSessionAuth())...))
	s.RegisterRouteHandler("GET "+RouteConnectCallback, ChainMiddleware(s.CallbackHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteConnectStatus, ChainMiddleware(s.StatusHandler(), s.APIMiddleware(s.RequireSessionAuth())...))
	s.RegisterRouteHandler("DELETE "+RouteConnect, ChainMiddleware(s.DisconnectHandler(), s.APIMiddleware(s.RequireSessionAuth())...))

	s.RegisterRouteHandler("POST "+RoutePublish, ChainMiddleware(s.PublishHandler(), s.APIMiddleware(s.RequireSessionAuth())...))
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
