package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/overbright/go-identity-service/authflow"
	"github.com/overbright/go-identity-service/internal/config"
	"github.com/overbright/go-identity-service/token"
)

type Server struct {
	env    string // Environment (e.g., "DEV", "production")
	mux    *http.ServeMux
	routes []string
	config config.Config
	flows  *authflow.Service
	tokens *token.Manager
}

func New(cfg config.Config, flows *authflow.Service, tokens *token.Manager) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		config: cfg,
		flows:  flows,
		tokens: tokens,
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
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
		if len(parts) == 2 {
			log.Info().Str("method", parts[0]).Str("path", parts[1]).Msg("route registered")
		} else {
			log.Info().Str("path", route).Msg("route registered")
		}
	}
}
