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

// OpenAIEmbedder implements Embedder using the OpenAI embeddings REST API.
// OpenAI embedding models are symmetric, so the task type is ignored.
// It is safe for concurrent use.
type OpenAIEmbedder struct {
	// baseURL is the API base (e.g. "https://api.openai.com/v1").
	baseURL string
	// apiKey is the Bearer token.
	apiKey string
	// model is the embedding model name (e.g. "text-embedding-3-small").
	model string
	// dimensions is the desired embedding vector length (0 = model default).
	dimensions int
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
	// log receives per-item degradation warnings.
	log *slog.Logger
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL is the API base URL. Default: "https://api.openai.com/v1".
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name (e.g. "text-embedding-3-small").
	Model string
	// Dimensions is the desired vector length (0 = model default).
	Dimensions int
	// Logger receives per-item degradation warnings. Optional.
	Logger *slog.Logger
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultOpenAIDimensions
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &OpenAIEmbedder{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: dims,
		client:     &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// Dimensions reports the configured output vector length.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// openaiEmbedRequest is the JSON body sent to the embeddings endpoint.
type openaiEmbedRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// openaiEmbedResponse is the JSON body returned from the embeddings endpoint.
type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned vectors are parallel to the input slice.
//
// A document batch that fails wholesale is retried item by item: a failed
// item is replaced by a zero vector and reported in Result.Degraded, so one
// bad chunk never discards a whole upload. Query embeds propagate their
// error — there is no useful fallback for a search vector.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string, task TaskType) (*Result, error) {
	res, err := e.embedBatch(ctx, texts)
	if err == nil || task == TaskQuery {
		return res, err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("openai embedder: %w", ctx.Err())
	}
	return e.embedDegraded(ctx, texts)
}

// embedDegraded re-embeds a failed document batch one text at a time,
// zero-filling the slots that still fail.
func (e *OpenAIEmbedder) embedDegraded(ctx context.Context, texts []string) (*Result, error) {
	res := &Result{Vectors: make([][]float32, len(texts))}
	for i, text := range texts {
		one, err := e.embedBatch(ctx, []string{text})
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("openai embedder: %w", ctx.Err())
			}
			e.log.Warn("openai embedder: item failed, storing zero vector",
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
func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) (*Result, error) {
	body := openaiEmbedRequest{
		Input: texts,
		Model: e.model,
	}
	if e.dimensions > 0 {
		body.Dimensions = e.dimensions
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: marshal request: %w", err)
	}

	url := e.baseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("openai embedder: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil {
			msg = result.Error.Message
		}
		return nil, fmt.Errorf("openai embedder: %s", msg)
	}

	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("openai embedder: expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	// The API may return data out of order; sort by index.
	vectors := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("openai embedder: index %d out of range [0, %d)", d.Index, len(texts))
		}
		vectors[d.Index] = d.Embedding
	}

	return &Result{Vectors: vectors}, nil
}
