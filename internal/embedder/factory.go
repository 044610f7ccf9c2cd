package embedder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/propgen/ragcore/internal/config"
)

// Default embedding models per backend.
const (
	defaultGeminiModel = "text-embedding-004"
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultGeminiDimensions is the output size requested from
	// text-embedding-004. Stored vectors are sized to match.
	defaultGeminiDimensions = 768
	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ — override with embedding.dimensions.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// New constructs the Embedder selected by the configuration.
//
// Resolution order:
//
//  1. embedding.provider — if unset, inherits model.provider (default: gemini)
//  2. Per-backend credentials are inherited from the chat provider settings
//  3. embedding.model / embedding.dimensions override per-backend defaults
//  4. embedding.api_key overrides the inherited API key
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (Embedder, error) {
	backend := cfg.Embedding.Provider
	if backend == "" {
		backend = cfg.Model.Provider
	}
	if backend == "" {
		backend = "gemini"
	}

	switch backend {
	case "gemini":
		apiKey := cfg.Embedding.APIKey
		if apiKey == "" {
			apiKey = cfg.Model.Gemini.APIKey
		}
		model := cfg.Embedding.Model
		if model == "" {
			model = defaultGeminiModel
		}
		return NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     apiKey,
			Model:      model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     log,
		})

	case "ollama":
		host := cfg.Embedding.Endpoint
		if host == "" {
			host = cfg.Model.Ollama.Host
		}
		if host == "" {
			host = "http://localhost:11434"
		}
		model := cfg.Embedding.Model
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:       host,
			Model:      model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     log,
		}), nil

	case "openai":
		apiKey := cfg.Embedding.APIKey
		if apiKey == "" {
			apiKey = cfg.Model.OpenAI.APIKey
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		baseURL := cfg.Embedding.Endpoint
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		model := cfg.Embedding.Model
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     apiKey,
			Model:      model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     log,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: gemini, ollama, openai", backend)
	}
}
