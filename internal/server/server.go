package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/patternscope/internal/api/handlers"
	"github.com/inferloop/patternscope/internal/config"
	"github.com/inferloop/patternscope/internal/observability/metrics"
	"github.com/inferloop/patternscope/pkg/constants"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	logger     *logrus.Logger
	config     config.ServerConfig
	metrics    *metrics.PrometheusMetrics
	patterns   *handlers.PatternsHandler
	health     *handlers.HealthHandler
}

// Option customizes a Server.
type Option func(*Server)

// WithReadiness backs GET /ready with the given checks.
func WithReadiness(r handlers.Readiness) Option {
	return func(s *Server) {
		s.health.WithReadiness(r)
	}
}

// NewServer wires the routes around detector. m may be nil, in which case
// /metrics is not served.
func NewServer(cfg config.ServerConfig, detector handlers.Detector, m *metrics.PrometheusMetrics, logger *logrus.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		config:   cfg,
		metrics:  m,
		patterns: handlers.NewPatternsHandler(detector, logger),
		health:   handlers.NewHealthHandler(constants.AppVersion),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	s.setupMiddleware()

	s.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.WithField("address", s.httpServer.Addr).Info("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.WithError(err).Error("Error shutting down HTTP server")
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.health.GetHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.health.GetReadiness).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.health.GetVersion).Methods(http.MethodGet)

	if s.config.EnableMetrics && s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	apiRouter := s.router.PathPrefix(constants.APIPrefix).Subrouter()
	apiRouter.HandleFunc("/patterns/detect", s.patterns.Detect).Methods(http.MethodPost)
	apiRouter.HandleFunc("/patterns/classify", s.patterns.Classify).Methods(http.MethodPost)
}

func (s *Server) setupMiddleware() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
}
