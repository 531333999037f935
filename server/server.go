package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/socialbridge/socialbridge/connect"
	"github.com/socialbridge/socialbridge/internal/config"
	"github.com/socialbridge/socialbridge/publish"
)

type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	connects  *connect.Service
	publisher *publish.Service
	logger    zerolog.Logger
}

func New(config config.Config, connects *connect.Service, publisher *publish.Service, logger zerolog.Logger) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		config:    config,
		connects:  connects,
		publisher: publisher,
		logger:    logger,
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
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
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

// callbackURL builds the externally visible callback address the provider
// redirects to for the given platform.
func (s *Server) callbackURL(platform string) string {
	base := strings.TrimSuffix(s.config.GetBaseURL(), "/")
	return base + strings.Replace(RouteConnectCallback, "{platform}", platform, 1)
}
