package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/anstrom/netport/docs/swagger" // registers the OpenAPI document

	apihandlers "github.com/anstrom/netport/internal/api/handlers"
	"github.com/anstrom/netport/internal/api/middleware"
	"github.com/anstrom/netport/internal/auth"
	"github.com/anstrom/netport/internal/config"
	"github.com/anstrom/netport/internal/logging"
	"github.com/anstrom/netport/internal/metrics"
)

const serverShutdownTimeout = 30 * time.Second

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	logger     *logging.Logger
	metrics    *metrics.PrometheusMetrics
}

// New creates a new API server. database may be nil when persistence is
// disabled; m defaults to the process-wide metrics.
func New(
	cfg *config.Config,
	jobService apihandlers.JobService,
	database apihandlers.DatabasePinger,
	m *metrics.PrometheusMetrics,
	logger *logging.Logger,
) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("api: config is required")
	}
	if jobService == nil {
		return nil, errors.New("api: job service is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if m == nil {
		m = metrics.GetGlobalMetrics()
	}

	s := &Server{
		router:  mux.NewRouter(),
		config:  cfg,
		logger:  logger.WithComponent("api"),
		metrics: m,
	}

	s.setupMiddleware()
	s.setupRoutes(jobService, database)

	s.httpServer = &http.Server{
		Addr:         cfg.GetAPIAddress(),
		Handler:      s.handler(),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes(jobService apihandlers.JobService, database apihandlers.DatabasePinger) {
	scans := apihandlers.NewScanHandler(jobService, apihandlers.ScanDefaults{
		Range:   s.config.Scanning.DefaultRange,
		Threads: s.config.Scanning.Concurrency,
		Timeout: s.config.Scanning.Timeout,
	}, s.logger)
	ws := apihandlers.NewWebSocketHandler(jobService, s.logger)
	health := apihandlers.NewHealthHandler(database, s.logger)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/liveness", health.Liveness).Methods(http.MethodGet)
	v1.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	v1.HandleFunc("/version", health.Version).Methods(http.MethodGet)
	v1.HandleFunc("/scans", scans.CreateScan).Methods(http.MethodPost)
	v1.HandleFunc("/scans/{id}", scans.GetScan).Methods(http.MethodGet)
	v1.HandleFunc("/scans/{id}/export/{format}", scans.ExportScan).Methods(http.MethodGet)
	v1.HandleFunc("/scans/{id}/ws", ws.ScanWebSocket).Methods(http.MethodGet)

	// Unversioned routes used by the bundled web page. Full paths, not an
	// "/api" subrouter, which would also match v1 paths and mask their 405s.
	s.router.HandleFunc("/api/scan", scans.CreateScanLegacy).Methods(http.MethodPost)
	s.router.HandleFunc("/api/status/{id}", scans.GetScan).Methods(http.MethodGet)
	s.router.HandleFunc("/api/export/{id}/{format}", scans.ExportScan).Methods(http.MethodGet)

	s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.GetRegistry(), promhttp.HandlerOpts{})).
		Methods(http.MethodGet)
	s.router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
	)).Methods(http.MethodGet)
	s.router.HandleFunc("/docs", s.redirectToSwagger).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
}

func (s *Server) redirectToSwagger(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
}

// setupMiddleware configures middleware for matched routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Logging(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(middleware.ContentType())

	if s.config.API.AuthEnabled {
		keys := auth.NewKeySet(s.config.API.APIKeyHashes)
		s.router.Use(middleware.Authentication(keys, s.logger))
	}
}

// handler wraps the router with CORS so preflight requests are answered
// even for routes that only register GET or POST.
func (s *Server) handler() http.Handler {
	if !s.config.API.EnableCORS {
		return s.router
	}
	return handlers.CORS(
		handlers.AllowedOrigins(s.config.API.CORSOrigins),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", middleware.APIKeyHeader}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
	)(s.router)
}

// index describes the service for requests to the root path.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"service": "netport",
		"version": "v1",
		"endpoints": map[string]string{
			"scans":    "/api/v1/scans",
			"liveness": "/api/v1/liveness",
			"health":   "/api/v1/health",
			"metrics":  "/metrics",
			"docs":     "/swagger/",
		},
		"timestamp": time.Now().UTC(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode API index response", "error", err)
	}
}

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is canceled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.logger.Info("Starting API server",
		"address", listener.Addr().String(),
		"auth_enabled", s.config.API.AuthEnabled,
		"cors_enabled", s.config.API.EnableCORS)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped")
	return nil
}

// GetRouter returns the configured router.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// Handler returns the full HTTP handler including CORS.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// GetAddress returns the configured listen address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}
