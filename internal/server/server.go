// Package server implements the HTTP server that exposes the RAG core
// as a JSON API: document ingestion, retrieval-augmented querying,
// conversation history, and operational endpoints.
// The server is started by the `ragcore serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/propgen/ragcore/internal/fault"
	"github.com/propgen/ragcore/internal/history"
	"github.com/propgen/ragcore/internal/ingestion"
	"github.com/propgen/ragcore/internal/logging"
	"github.com/propgen/ragcore/internal/pipeline"
)

// defaultMaxUploadBytes caps a single document upload at 32 MiB.
const defaultMaxUploadBytes = 32 << 20

// New constructs a Server from the ingestion orchestrator, the query
// pipeline, an optional history store, and the config.
func New(orc *ingestion.Orchestrator, pl *pipeline.Pipeline, hist history.Store, cfg *Config) (*Server, error) {
	if orc == nil {
		return nil, fmt.Errorf("server: orchestrator must not be nil")
	}
	if pl == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full ingest: extraction plus one
		// embedding call per chunk.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		ingestor: orc,
		answerer: pl,
		history:  hist,
		cfg:      cfg,
		log:      cfg.Logger,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.APIKey == "" {
		s.log.Warn("api key not configured — authentication is disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	// Protected routes: auth, then per-IP rate limiting.
	api := http.NewServeMux()
	api.HandleFunc("POST /api/documents", s.handleUpload)
	api.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
	api.HandleFunc("POST /api/query", s.handleQuery)
	api.HandleFunc("DELETE /api/profiles/{id}/collection", s.handleDropProfile)
	api.HandleFunc("GET /api/history", s.handleHistory)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	mux.Handle("/api/", authMiddleware(cfg.APIKey, rl.middleware(api)))

	handler := requestLogger(s.log, s.metrics.instrument(mux))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError maps err to an HTTP status via its fault kind and writes a JSON
// error body. Internal errors are logged with their cause but reported to the
// client with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	msg := err.Error()

	log := logging.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		log.Error("request failed", slog.Any("error", err))
		msg = "internal server error"
	} else {
		log.Warn("request rejected",
			slog.Int("status", status),
			slog.Any("error", err),
		)
	}

	writeJSON(w, r, status, errorResponse{Error: msg})
}

// statusForError maps a fault kind to its HTTP status code.
// Input faults map to 422 rather than 400: the request was well-formed but
// its content could not be processed.
func statusForError(err error) int {
	switch fault.KindOf(err) {
	case fault.KindInput:
		return http.StatusUnprocessableEntity
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// outcomeForError returns the metric outcome label for a handler result.
func outcomeForError(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
