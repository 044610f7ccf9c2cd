package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/propgen/ragcore/internal/history"
	"github.com/propgen/ragcore/internal/ingestion"
	"github.com/propgen/ragcore/internal/pipeline"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// MaxUploadBytes caps the size of a single document upload.
	// Defaults to 32 MiB if zero.
	MaxUploadBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives all Prometheus metric registrations.
	// Defaults to prometheus.DefaultRegisterer; tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint.
	// Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// ingestor is the interface the document handlers call.
// *ingestion.Orchestrator satisfies it; tests inject a fake.
type ingestor interface {
	// Ingest processes one uploaded PDF for the given profile.
	Ingest(ctx context.Context, profileID, filename string, pdf []byte) (*ingestion.Result, error)
	// DeleteDocument removes every chunk of the document from the profile's
	// collection and reports how many were deleted.
	DeleteDocument(ctx context.Context, profileID, documentID string) (uint64, error)
	// DropProfile deletes the profile's entire collection.
	DropProfile(ctx context.Context, profileID string) error
}

// answerer is the interface handleQuery calls to produce an answer.
// *pipeline.Pipeline satisfies it; tests inject a fake.
type answerer interface {
	Answer(ctx context.Context, req *pipeline.Request) (*pipeline.Answer, error)
}

// Server is the HTTP server that exposes ingestion, querying, and
// conversation history over a JSON API.
type Server struct {
	// ingestor handles document upload and deletion; set to the
	// ingestion orchestrator in production, overridden by a fake in tests.
	ingestor ingestor
	// answerer handles query requests; set to the RAG pipeline in
	// production, overridden by a fake in tests.
	answerer answerer
	// history persists conversation turns after each answered query.
	// May be nil, in which case history is disabled.
	history history.Store
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus metrics owned by this server instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Question is the user's natural language query.
	Question string `json:"question"`
	// ProfileID selects the client profile whose collection is searched.
	ProfileID string `json:"profile_id"`
	// ConversationID groups the persisted turns into a thread. Optional;
	// defaults to the profile id.
	ConversationID string `json:"conversation_id,omitempty"`
	// TopK overrides the retrieval depth. Optional.
	TopK int `json:"top_k,omitempty"`
	// Filter restricts retrieval to chunks matching every key/value pair.
	Filter map[string]string `json:"filter,omitempty"`
	// SystemPrompt replaces the default system prompt. Optional.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// HistoryLimit caps how many prior messages feed the prompt. Zero
	// selects the configured default.
	HistoryLimit int `json:"history_limit,omitempty"`
}

// sourceChunk is one retrieved chunk echoed back alongside the answer.
type sourceChunk struct {
	// ID is the chunk id.
	ID string `json:"id"`
	// Text is the chunk content.
	Text string `json:"text"`
	// Score is the similarity to the query.
	Score float32 `json:"score"`
	// Metadata is the chunk's stored metadata.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// queryResponse is the JSON response for POST /api/query.
type queryResponse struct {
	// Answer is the model's response text.
	Answer string `json:"answer"`
	// SourceChunks are the retrieved chunks, in retrieval order.
	SourceChunks []sourceChunk `json:"source_chunks"`
	// HistoryUsed reports whether prior conversation turns were injected.
	HistoryUsed bool `json:"history_used"`
}

// uploadResponse is the JSON response for POST /api/documents.
type uploadResponse struct {
	// DocumentID is the generated id tagged onto every stored chunk.
	DocumentID string `json:"document_id"`
	// ChunksCreated is the number of chunks stored.
	ChunksCreated int `json:"chunks_created"`
	// DegradedChunks lists chunk indices stored with a zero vector because
	// their embedding call failed. Empty on a fully successful ingest.
	DegradedChunks []int `json:"degraded_chunks,omitempty"`
}

// deleteResponse is the JSON response for DELETE /api/documents/{id}.
type deleteResponse struct {
	// DocumentID is the document whose chunks were removed.
	DocumentID string `json:"document_id"`
	// ChunksDeleted is the number of chunks removed.
	ChunksDeleted uint64 `json:"chunks_deleted"`
}

// historyMessage is one conversation turn in GET /api/history responses.
type historyMessage struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// historyResponse is the JSON response for GET /api/history.
type historyResponse struct {
	// ProfileID is the profile whose history was fetched.
	ProfileID string `json:"profile_id"`
	// Messages are the most recent turns, oldest first.
	Messages []historyMessage `json:"messages"`
}

// errorResponse is the JSON body for all error responses.
type errorResponse struct {
	// Error is the human-readable failure reason.
	Error string `json:"error"`
}
