package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// OllamaEmbedder implements Embedder using the Ollama /api/embed endpoint.
// Ollama embedding models are symmetric, so the task type is ignored.
// It is safe for concurrent use. No API key is required — Ollama runs locally.
type OllamaEmbedder struct {
	// host is the Ollama server base URL (e.g. "http://localhost:11434").
	host string
	// model is the embedding model name (e.g. "nomic-embed-text").
	model string
	// dimensions is the output vector length of the configured model.
	dimensions int
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
	// log receives per-item degradation warnings.
	log *slog.Logger
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
	// Dimensions is the output vector length (default 768 for nomic-embed-text).
	Dimensions int
	// Logger receives per-item degradation warnings. Optional.
	Logger *slog.Logger
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultOllamaDimensions
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &OllamaEmbedder{
		host:       cfg.Host,
		model:      cfg.Model,
		dimensions: dims,
		client:     &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

// Dimensions reports the configured output vector length.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// ollamaEmbedRequest is the JSON body sent to the Ollama /api/embed endpoint.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the JSON body returned from the Ollama /api/embed endpoint.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned vectors are parallel to the input slice.
//
// A document batch that fails wholesale is retried item by item: a failed
// item is replaced by a zero vector and reported in Result.Degraded, so one
// bad chunk never discards a whole upload. Query embeds propagate their
// error — there is no useful fallback for a search vector.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string, task TaskType) (*Result, error) {
	res, err := e.embedBatch(ctx, texts)
	if err == nil || task == TaskQuery {
		return res, err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("ollama embedder: %w", ctx.Err())
	}
	return e.embedDegraded(ctx, texts)
}

// embedDegraded re-embeds a failed document batch one text at a time,
// zero-filling the slots that still fail.
func (e *OllamaEmbedder) embedDegraded(ctx context.Context, texts []string) (*Result, error) {
	res := &Result{Vectors: make([][]float32, len(texts))}
	for i, text := range texts {
		one, err := e.embedBatch(ctx, []string{text})
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("ollama embedder: %w", ctx.Err())
			}
			e.log.Warn("ollama embedder: item failed, storing zero vector",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			res.Vectors[i] = make([]float32, e.dimensions)
			res.Degraded = append(res.Degraded, i)
			continue
		}
		res.Vectors[i] = one.Vectors[0]
	}
	return res, nil
}

// embedBatch embeds all texts in one API call.
func (e *OllamaEmbedder) embedBatch(ctx context.Context, texts []string) (*Result, error) {
	body := ollamaEmbedRequest{
		Model: e.model,
		Input: texts,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: marshal request: %w", err)
	}

	url := e.host + "/api/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embedder: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("ollama embedder: %s", msg)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	return &Result{Vectors: result.Embeddings}, nil
}
