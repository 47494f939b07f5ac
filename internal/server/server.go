// Package server provides the HTTP server and routing for the storeops
// admin API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/storeops/internal/agent"
	"github.com/aristath/storeops/internal/config"
	"github.com/aristath/storeops/internal/events"
	"github.com/aristath/storeops/internal/modules/allocation"
	"github.com/aristath/storeops/internal/modules/audit"
	"github.com/aristath/storeops/internal/modules/decisions"
	"github.com/aristath/storeops/internal/modules/drift"
	"github.com/aristath/storeops/internal/modules/transfers"
)

// Config holds the server's collaborators
type Config struct {
	Log          zerolog.Logger
	Cfg          *config.Config
	Orchestrator *decisions.Orchestrator
	Proposals    *decisions.ProposalRepository
	Audits       *audit.Repository
	Allocation   *allocation.Service
	Transfers    *transfers.Repository
	DriftMonitor *drift.Monitor
	DriftMetrics *drift.Repository
	AgentRuns    *agent.RunRepository
	AgentJob     *agent.Agent
	Events       *events.Manager
	Port         int
	DevMode      bool
}

// Server is the admin HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New creates the HTTP server and mounts all routes
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE stream stays open
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	if !s.cfg.DevMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/decisions", func(r chi.Router) {
			r.Post("/evaluate", s.handleEvaluate)
		})

		r.Route("/proposals", func(r chi.Router) {
			r.Get("/", s.handleListProposals)
			r.Get("/{id}", s.handleGetProposal)
			r.Get("/{id}/trace", s.handleGetTrace)
		})

		r.Get("/audit", s.handleListAudit)

		r.Route("/allocation", func(r chi.Router) {
			r.Get("/{sku}/plan", s.handleAllocationPlan)
			r.Post("/{sku}/commit", s.handleAllocationCommit)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", s.handleListTransfers)
			r.Get("/{id}", s.handleGetTransfer)
			r.Post("/{id}/transition", s.handleTransferTransition)
		})

		r.Route("/drift", func(r chi.Router) {
			r.Get("/{featureSet}", s.handleDriftMetrics)
			r.Post("/{featureSet}/check", s.handleDriftCheck)
			r.Post("/{featureSet}/rebase", s.handleDriftRebase)
		})

		r.Route("/agent", func(r chi.Router) {
			r.Get("/runs", s.handleAgentRuns)
			r.Post("/run", s.handleAgentRunNow)
		})

		r.Get("/system/status", s.handleSystemStatus)
		r.Get("/events/stream", s.handleEventsStream)
	})
}

// Start begins serving; blocks until the listener closes
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("HTTP server starting")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler tree for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request handled")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
