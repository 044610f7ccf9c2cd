package embedder

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/propgen/ragcore/internal/fault"
)

// GeminiEmbedder implements Embedder using the Gemini embedding API.
// It is safe for concurrent use.
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
	log        *slog.Logger
}

// GeminiConfig holds the settings for constructing a GeminiEmbedder.
type GeminiConfig struct {
	// APIKey is the Google AI Studio API key. Required.
	APIKey string
	// Model is the embedding model name (default "text-embedding-004").
	Model string
	// Dimensions is the output vector length (default 768).
	Dimensions int
	// Logger receives per-item degradation warnings. Optional.
	Logger *slog.Logger
}

// NewGeminiEmbedder constructs a GeminiEmbedder. It fails fast when the API
// key is missing so misconfiguration surfaces at startup, not mid-ingest.
func NewGeminiEmbedder(ctx context.Context, cfg *GeminiConfig) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini embedder: %w: GOOGLE_API_KEY is not set", fault.ErrEmbedderUnconfigured)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: create client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = defaultGeminiDimensions
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &GeminiEmbedder{client: client, model: model, dimensions: dims, log: log}, nil
}

// Dimensions reports the configured output vector length.
func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}

// Embed converts a batch of texts into embeddings, in input order.
//
// Document batches are embedded item by item: a failed item is replaced by a
// zero vector and reported in Result.Degraded rather than failing the batch,
// so one bad chunk never discards a whole upload. Query embeds are a single
// call and propagate their error — there is no useful fallback for a search
// vector.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string, task TaskType) (*Result, error) {
	if task == TaskQuery {
		return e.embedBatch(ctx, texts, task)
	}

	res := &Result{Vectors: make([][]float32, len(texts))}
	for i, text := range texts {
		vec, err := e.embedOne(ctx, text, task)
		if err != nil {
			// Context cancellation aborts the whole batch; API-level
			// failures degrade this slot only.
			if ctx.Err() != nil {
				return nil, fmt.Errorf("gemini embedder: %w", ctx.Err())
			}
			e.log.Warn("gemini embedder: item failed, storing zero vector",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			res.Vectors[i] = make([]float32, e.dimensions)
			res.Degraded = append(res.Degraded, i)
			continue
		}
		res.Vectors[i] = vec
	}
	return res, nil
}

// embedBatch embeds all texts in one API call.
func (e *GeminiEmbedder) embedBatch(ctx context.Context, texts []string, task TaskType) (*Result, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, e.embedConfig(task))
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embedder: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}
	res := &Result{Vectors: make([][]float32, len(texts))}
	for i, emb := range resp.Embeddings {
		res.Vectors[i] = emb.Values
	}
	return res, nil
}

// embedOne embeds a single text.
func (e *GeminiEmbedder) embedOne(ctx context.Context, text string, task TaskType) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), e.embedConfig(task))
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return resp.Embeddings[0].Values, nil
}

func (e *GeminiEmbedder) embedConfig(task TaskType) *genai.EmbedContentConfig {
	dims := int32(e.dimensions)
	return &genai.EmbedContentConfig{
		TaskType:             string(task),
		OutputDimensionality: &dims,
	}
}
