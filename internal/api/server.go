// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/address-discovery/internal/job"
	"github.com/address-discovery/internal/logging"
	"github.com/address-discovery/internal/models"
	"github.com/address-discovery/internal/service"
	"github.com/address-discovery/internal/worker"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service interfaces for dependency injection and testing

// IngestionServiceInterface is the read side of the pipeline plus single-item scans
type IngestionServiceInterface interface {
	ScanItem(ctx context.Context, itemURL string) (*service.ScanResult, error)
	ListConfirmedAddresses(ctx context.Context, limit int) ([]*models.Address, error)
	ListRecentSnapshots(ctx context.Context, limit int) ([]*models.Snapshot, error)
	Stats(ctx context.Context) (*service.PipelineStats, error)
}

// DispatcherInterface routes scrape requests to the queue or runs them inline
type DispatcherInterface interface {
	Dispatch(ctx context.Context, in *service.CycleInput) (*job.DispatchResult, error)
	JobStatus(ctx context.Context, id string) (*job.Job, error)
}

// SchedulerInterface controls the periodic scheduler
type SchedulerInterface interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
	GetStatus() *worker.SchedulerStatus
	RunAll(ctx context.Context) map[string]*worker.ChannelOutcome
}

// HealthCheck reports whether a backing store is reachable
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	ingestion  IngestionServiceInterface
	dispatcher DispatcherInterface
	scheduler  SchedulerInterface
	checks     map[string]HealthCheck
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// Per-client inbound limits
	RequestsPerSecond float64
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	ingestion IngestionServiceInterface,
	dispatcher DispatcherInterface,
	scheduler SchedulerInterface,
) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		ingestion:  ingestion,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		checks:     make(map[string]HealthCheck),
		config:     config,
	}

	s.setupRouter()

	return s
}

// AddHealthCheck registers a dependency probed by /health
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter)) // Rate limiting after CORS
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Ingestion triggers
	workers := s.router.PathPrefix("/workers").Subrouter()
	workers.HandleFunc("/scrape/reddit", s.handleScrapeReddit).Methods("POST")
	workers.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")

	// Scheduler and pipeline views
	sched := s.router.PathPrefix("/api/scheduler").Subrouter()
	sched.HandleFunc("/start", s.handleSchedulerStart).Methods("POST")
	sched.HandleFunc("/stop", s.handleSchedulerStop).Methods("POST")
	sched.HandleFunc("/status", s.handleSchedulerStatus).Methods("GET")
	sched.HandleFunc("/run-now", s.handleSchedulerRunNow).Methods("POST")
	sched.HandleFunc("/addresses", s.handleListAddresses).Methods("GET")
	sched.HandleFunc("/scan-url", s.handleScanURL).Methods("POST")
	sched.HandleFunc("/snapshots", s.handleListSnapshots).Methods("GET")
	sched.HandleFunc("/stats", s.handleStats).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":       overall,
		"service":      "address-discovery",
		"dependencies": deps,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
