package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-retriever/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports whether the retrieval engine is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	router          *http.ServeMux
	version         string
	defaultK        int
	shutdownTimeout time.Duration
	corsOrigins     []string
	logger          *slog.Logger

	// Services
	collectionService driving.CollectionService
	indexService      driving.IndexService
	searcherRegistry  driving.SearcherRegistry
	searchService     driving.SearchService

	// Infrastructure
	engine   HealthChecker
	tokens   driven.TokenVerifier // nil disables auth
	backends map[string]Pinger    // store and lock backends checked by /ready
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// DefaultK is used when a search omits k
	DefaultK int

	ReadTimeout time.Duration

	// WriteTimeout must outlast the longest build; zero means no limit
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	CORSOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8893,
		Version:         "dev",
		DefaultK:        10,
		ReadTimeout:     30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Services bundles what the handlers call
type Services struct {
	Collections driving.CollectionService
	Indexer     driving.IndexService
	Registry    driving.SearcherRegistry
	Search      driving.SearchService

	Engine   HealthChecker
	Tokens   driven.TokenVerifier
	Backends map[string]Pinger
	Logger   *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, svc Services) *Server {
	logger := svc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 10
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		router:            http.NewServeMux(),
		version:           cfg.Version,
		defaultK:          cfg.DefaultK,
		shutdownTimeout:   cfg.ShutdownTimeout,
		corsOrigins:       cfg.CORSOrigins,
		logger:            logger,
		collectionService: svc.Collections,
		indexService:      svc.Indexer,
		searcherRegistry:  svc.Registry,
		searchService:     svc.Search,
		engine:            svc.Engine,
		tokens:            svc.Tokens,
		backends:          svc.Backends,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	auth := NewAuthMiddleware(s.tokens)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /swagger/doc.json", s.handleSwaggerDoc)

	// Lifecycle operations (admin when auth is enabled)
	s.router.Handle("POST /api/index/{name}", auth.Admin(s.handleIndex))
	s.router.Handle("POST /init_searchers", auth.Admin(s.handleInitSearchers))

	// Reads stay public
	s.router.HandleFunc("GET /api/search/{name}", s.handleSearch)
	s.router.HandleFunc("GET /api/collections", s.handleListCollections)
	s.router.HandleFunc("GET /api/collections/{name}", s.handleGetCollection)
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = NewCORSMiddleware(s.corsOrigins).Handler(h)
	h = NewLoggingMiddleware(s.logger).Handler(h)
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	return h
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM, then shuts down gracefully
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
