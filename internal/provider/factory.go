package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/propgen/ragcore/internal/config"
)

// Per-backend default chat models.
const (
	defaultGeminiModel = "gemini-2.0-flash"
	defaultOpenAIModel = "gpt-4o"
	defaultOllamaModel = "llama3"
)

// FromConfig maps the application configuration onto a provider Config,
// filling in per-backend defaults.
func FromConfig(cfg *config.Config) *Config {
	backend := Backend(cfg.Model.Provider)
	if backend == "" {
		backend = BackendGemini
	}

	pc := &Config{
		Backend:     backend,
		MaxTokens:   cfg.Model.MaxTokens,
		Temperature: cfg.Model.Temperature,
	}
	if pc.MaxTokens <= 0 {
		pc.MaxTokens = 4096
	}

	switch backend {
	case BackendGemini:
		pc.APIKey = cfg.Model.Gemini.APIKey
		pc.Model = cfg.Model.Gemini.Model
		if pc.Model == "" {
			pc.Model = defaultGeminiModel
		}
	case BackendOpenAI:
		pc.APIKey = cfg.Model.OpenAI.APIKey
		pc.Model = cfg.Model.OpenAI.Model
		if pc.Model == "" {
			pc.Model = defaultOpenAIModel
		}
	case BackendOllama:
		pc.BaseURL = cfg.Model.Ollama.Host
		pc.Model = cfg.Model.Ollama.Model
		if pc.Model == "" {
			pc.Model = defaultOllamaModel
		}
	}
	return pc
}

// New constructs a ChatModel from an explicit Config, delegating to the
// appropriate backend factory function. It validates the config first so
// callers get a clear error at startup rather than on the first request.
func New(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendGemini:
		return newGemini(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendOllama:
		return newOllama(ctx, cfg)
	default:
		return nil, fmt.Errorf("provider: unknown backend %q — valid values: gemini, openai, ollama", cfg.Backend)
	}
}
