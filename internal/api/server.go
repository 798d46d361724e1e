// Package api exposes the analysis engine over HTTP JSON. The core stays
// free of transport concerns; this layer owns request decoding, result
// caching, and error mapping.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/autorca/autorca-core/internal/config"
)

// Server wraps the HTTP server and its lifecycle helpers.
type Server struct {
	cfg      config.ServerConfig
	server   *http.Server
	listener net.Listener
}

// NewServer constructs an HTTP server bound to the configured address.
func NewServer(cfg config.ServerConfig, handler *Handler) (*Server, error) {
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	handler.Routes(router)

	return &Server{
		cfg:      cfg,
		server:   &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second},
		listener: lis,
	}, nil
}

// Start serves requests until Shutdown is invoked.
func (s *Server) Start() error {
	if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown attempts a graceful shutdown, forcing close after the timeout.
func (s *Server) Shutdown(ctx context.Context) {
	if err := s.server.Shutdown(ctx); err != nil {
		s.server.Close()
	}
}

// Address exposes the bound listener address, useful for tests.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GracefulTimeout returns the configured graceful timeout duration.
func (s *Server) GracefulTimeout() time.Duration {
	return s.cfg.GracefulTimeout
}
