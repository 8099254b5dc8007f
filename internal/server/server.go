// Package server runs the omikuji handlers behind a local HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/omikuji-api/internal/auth"
	"github.com/vyrodovalexey/omikuji-api/internal/config"
	"github.com/vyrodovalexey/omikuji-api/internal/handler"
	"github.com/vyrodovalexey/omikuji-api/internal/middleware"
)

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	logger     *zap.Logger
}

// New creates a new Server serving h. A nil authenticator leaves the
// mutating routes open.
func New(cfg *config.Config, logger *zap.Logger, h *handler.Handler, authenticator auth.Authenticator) *Server {
	s := &Server{
		router: mux.NewRouter(),
		config: cfg,
		logger: logger,
	}

	s.setupRoutes(h, authenticator)
	s.setupHTTPServer()

	return s
}

// setupRoutes registers the API, health and metrics routes. Route-aware
// middleware runs on the router; the rest wraps it in setupHTTPServer.
func (s *Server) setupRoutes(h *handler.Handler, authenticator auth.Authenticator) {
	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}
	s.router.Use(mux.MiddlewareFunc(middleware.Auth(authenticator, s.logger)))

	s.router.HandleFunc("/health", handler.HealthCheck).Methods(http.MethodGet)
	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	s.router.Handle(handler.ResourceCategory, Gateway(h.CreateCategory, s.logger)).Methods(http.MethodPost)
	s.router.Handle(handler.ResourceCategory, Gateway(h.ListCategories, s.logger)).Methods(http.MethodGet)
	s.router.Handle(handler.ResourceCategory, Gateway(h.DeleteCategory, s.logger)).Methods(http.MethodDelete)
	s.router.Handle(handler.ResourceOmikuji, Gateway(h.Draw, s.logger)).Methods(http.MethodGet)
}

// setupHTTPServer configures the HTTP server.
func (s *Server) setupHTTPServer() {
	chain := middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Logging(s.logger),
		middleware.CORS(),
	)

	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           chain(s.router),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.String("auth_mode", s.config.AuthMode),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
