// Package api provides the HTTP surface for Gearfall: queue operations,
// offline catch-up, the external scheduler trigger, and the websocket
// endpoint that carries the real-time sync protocol.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gearfall-games/gearfall/internal/app/offline"
	"github.com/gearfall-games/gearfall/internal/app/scheduler"
	"github.com/gearfall-games/gearfall/internal/app/syncer"
	"github.com/gearfall-games/gearfall/internal/infra/store"
)

// Server is the Gearfall HTTP API server.
type Server struct {
	store          *store.Store
	scheduler      *scheduler.Scheduler
	syncer         *syncer.Service
	offline        *offline.Calculator
	hub            *Hub
	metricsEnabled bool
}

// NewServer creates an API server over the wired services.
func NewServer(st *store.Store, sch *scheduler.Scheduler, sync *syncer.Service, off *offline.Calculator, hub *Hub) *Server {
	return &Server{
		store:     st,
		scheduler: sch,
		syncer:    sync,
		offline:   off,
		hub:       hub,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/queue/{playerID}", s.handleGetQueue)
		r.Post("/queue/{playerID}/tasks", s.handleAddTask)
		r.Delete("/queue/{playerID}", s.handleStopTasks)
		r.Post("/players/{playerID}/catchup", s.handleCatchup)
	})

	// External periodic triggers: the scheduler tick and the connection
	// staleness sweep are driven from outside the process.
	r.Route("/admin", func(r chi.Router) {
		r.Post("/tick", s.handleTick)
		r.Post("/cleanup", s.handleCleanup)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Real-time sync channel.
	r.Get("/ws", s.handleWebsocket)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	totalQueues, running, _ := s.store.QueueCount()
	totalConns, healthyConns, _ := s.store.ConnectionCount()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"queues":              totalQueues,
		"running_queues":      running,
		"connections":         totalConns,
		"healthy_connections": healthyConns,
	})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	report := s.scheduler.RunCycle(r.Context())
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	marked, dropped := s.syncer.CleanupStaleConnections()
	writeJSON(w, http.StatusOK, map[string]int{
		"marked_unhealthy": marked,
		"dropped":          dropped,
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
