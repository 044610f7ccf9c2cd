// Package provider selects and constructs the chat-completion model used
// for answering. Supported backends: Google Gemini, OpenAI, Ollama.
package provider

import (
	"fmt"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
)

// Config holds provider-level configuration resolved from the application
// config or explicit caller-supplied values.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	// Model is the model name to use (e.g. "gemini-2.0-flash", "gpt-4o", "llama3").
	Model string

	// BaseURL overrides the default API endpoint (used by Ollama).
	BaseURL string

	// APIKey is the authentication credential for the selected provider.
	// Unused for Ollama.
	APIKey string

	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Validate checks that required fields are present for the selected backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGemini:
		if c.APIKey == "" {
			return fmt.Errorf("provider: GOOGLE_API_KEY is required for gemini backend")
		}
	case BackendOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("provider: OPENAI_API_KEY is required for openai backend")
		}
	case BackendOllama:
		// Local, nothing required.
	default:
		return fmt.Errorf("provider: unknown backend %q — valid values: gemini, openai, ollama", c.Backend)
	}
	if c.Model == "" {
		return fmt.Errorf("provider: model name is required for %s backend", c.Backend)
	}
	return nil
}
