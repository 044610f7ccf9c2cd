package embedder

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/propgen/ragcore/internal/config"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If embedding.model matches any
// of these, a warning is emitted so the operator knows they may have
// misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gemini-1",
	"gemini-2",
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate checks that the embedding configuration is usable. It returns an
// error when the configuration is clearly broken (e.g. gemini backend with no
// API key), and logs a warning if embedding.model looks like a chat model.
//
// This is a pre-flight check — call it before constructing the embedder or
// the vector store so operators get a clear error at startup rather than a
// cryptic failure during the first embed call.
func Validate(cfg *config.Config, log *slog.Logger) error {
	backend := cfg.Embedding.Provider
	if backend == "" {
		backend = cfg.Model.Provider
	}
	if backend == "" {
		backend = "gemini"
	}

	// Warn when the embedding backend is only inherited from the chat
	// provider — the operator may have forgotten to set it.
	if cfg.Embedding.Provider == "" && cfg.Model.Provider != "" {
		log.Warn("embedder: embedding.provider is not set — inheriting model.provider as embedding backend",
			slog.String("backend", backend),
			slog.String("hint", "set EMBEDDING_PROVIDER to be explicit"),
		)
	}

	switch backend {
	case "gemini":
		if cfg.Embedding.APIKey == "" && cfg.Model.Gemini.APIKey == "" {
			return fmt.Errorf("embedder: gemini backend needs an API key — set GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}

	case "openai":
		if cfg.Embedding.APIKey == "" && cfg.Model.OpenAI.APIKey == "" {
			return fmt.Errorf("embedder: openai backend needs an API key — set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}

	case "ollama":
		// Local, nothing to validate.

	default:
		return fmt.Errorf("embedder: unknown backend %q — valid values: gemini, ollama, openai", backend)
	}

	if model := cfg.Embedding.Model; model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: embedding.model looks like a chat model, not an embedding model — "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. text-embedding-004, nomic-embed-text"),
		)
	}

	return nil
}
