// Package web provides the HTTP trigger surface for the backfill pipeline.
// Object-created notifications from the bucket are POSTed here and drive one
// pipeline run each; there is no UI.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DevKelvin21/call-backfill-cf/internal/config"
	"github.com/DevKelvin21/call-backfill-cf/internal/ingest"
	"github.com/DevKelvin21/call-backfill-cf/internal/logging"
	mw "github.com/DevKelvin21/call-backfill-cf/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Processor runs the ingest pipeline for one object. Satisfied by
// *ingest.Pipeline; tests use a stub.
type Processor interface {
	ProcessObject(ctx context.Context, key string) (*ingest.FileOutcome, error)
}

// ObjectEvent is the storage notification payload: one finalized object.
type ObjectEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// Server is the HTTP server that turns storage events into pipeline runs.
type Server struct {
	processor Processor
	limiter   *ingest.RunLimiter
	cfg       *config.Config
	router    *chi.Mux
	server    *http.Server
}

// NewServer creates a new Server instance.
func NewServer(processor Processor, cfg *config.Config) *Server {
	s := &Server{
		processor: processor,
		limiter:   ingest.NewRunLimiter(cfg.Ingest.MaxConcurrentRuns, cfg.Ingest.AcquireWait),
		cfg:       cfg,
		router:    chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/events", s.handleObjectEvent)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleObjectEvent processes one object-created notification. Row-level
// failures are internal to the pipeline; only infrastructure failures map to
// a 5xx, which makes the notification source retry — safe, because duplicate
// suppression lives in the merge engine.
func (s *Server) handleObjectEvent(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var event ObjectEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode event: %v", err))
		return
	}
	if strings.TrimSpace(event.Name) == "" {
		writeError(w, http.StatusBadRequest, "event is missing object name")
		return
	}
	if event.Bucket != "" && event.Bucket != s.cfg.Storage.Bucket {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("event bucket %q does not match configured bucket", event.Bucket))
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		if errors.Is(err, ingest.ErrTooManyRuns) {
			w.Header().Set("Retry-After", "30")
			writeError(w, http.StatusTooManyRequests, "all pipeline slots busy, retry later")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for a slot")
		return
	}
	defer s.limiter.Release()

	outcome, err := s.processor.ProcessObject(r.Context(), event.Name)
	if err != nil {
		log.Error("pipeline failed", "object", event.Name, "error", err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "processing timed out")
			return
		}
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight pipeline runs to
// drain so no merge transaction is cut off mid-flight.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// writeJSON encodes v as JSON and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, message)
}
