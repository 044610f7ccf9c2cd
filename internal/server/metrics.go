// Package server — metrics.go registers all Prometheus metrics for the HTTP
// server and exposes helpers used by handlers and middleware.
package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// ingestDocumentsTotal counts completed document ingestions, partitioned
	// by outcome: "ok", "timeout", or "error".
	ingestDocumentsTotal *prometheus.CounterVec

	// ingestChunksTotal counts chunks written to the vector store.
	ingestChunksTotal prometheus.Counter

	// ingestDurationSeconds records the wall-clock duration of each ingest
	// from upload receipt to the final upsert.
	ingestDurationSeconds *prometheus.HistogramVec

	// queryRequestsTotal counts completed /api/query requests, partitioned
	// by outcome: "ok", "timeout", or "error".
	queryRequestsTotal *prometheus.CounterVec

	// queryDurationSeconds records the wall-clock duration of each query
	// including retrieval and the chat-completion call.
	queryDurationSeconds *prometheus.HistogramVec

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		ingestDocumentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Total number of document ingestions completed, partitioned by outcome.",
		}, []string{"outcome"}),

		ingestChunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total number of chunks written to the vector store.",
		}),

		ingestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragcore",
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of document ingestions from upload receipt to final upsert.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		queryRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total number of /api/query requests completed, partitioned by outcome.",
		}, []string{"outcome"}),

		queryDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragcore",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of /api/query requests including retrieval and generation.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ragcore",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// instrument is an HTTP middleware that records per-request counters and
// latency histograms for every route on the mux.
func (m *serverMetrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		handler := handlerLabel(r.URL.Path)
		m.httpRequestsTotal.WithLabelValues(r.Method, handler, strconv.Itoa(rw.status)).Inc()
		m.httpDurationSeconds.WithLabelValues(r.Method, handler).Observe(elapsed.Seconds())
	})
}

// handlerLabel collapses a request path to its logical endpoint name so that
// per-resource path segments (document ids, profile ids) do not explode the
// metric cardinality. "/api/documents/abc123" becomes "/api/documents".
func handlerLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return "/" + strings.Join(parts, "/")
}
