package provider

import (
	"strings"
	"testing"

	"github.com/propgen/ragcore/internal/config"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		// ── Gemini ────────────────────────────────────────────────────────────
		{
			name: "gemini/valid",
			cfg:  Config{Backend: BackendGemini, APIKey: "AIza-test", Model: "gemini-2.0-flash"},
		},
		{
			name:    "gemini/missing api key",
			cfg:     Config{Backend: BackendGemini, Model: "gemini-2.0-flash"},
			wantErr: "GOOGLE_API_KEY",
		},
		{
			name:    "gemini/missing model",
			cfg:     Config{Backend: BackendGemini, APIKey: "AIza-test"},
			wantErr: "model name",
		},

		// ── OpenAI ────────────────────────────────────────────────────────────
		{
			name: "openai/valid",
			cfg:  Config{Backend: BackendOpenAI, APIKey: "sk-test", Model: "gpt-4o"},
		},
		{
			name:    "openai/missing api key",
			cfg:     Config{Backend: BackendOpenAI, Model: "gpt-4o"},
			wantErr: "OPENAI_API_KEY",
		},

		// ── Ollama ────────────────────────────────────────────────────────────
		{
			name: "ollama/valid",
			cfg:  Config{Backend: BackendOllama, BaseURL: "http://localhost:11434", Model: "llama3"},
		},
		{
			name:    "ollama/missing model",
			cfg:     Config{Backend: BackendOllama, BaseURL: "http://localhost:11434"},
			wantErr: "model name",
		},

		// ── Unknown backend ───────────────────────────────────────────────────
		{
			name:    "unknown backend",
			cfg:     Config{Backend: "unknown"},
			wantErr: "unknown backend",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tc.wantErr)
			}
		})
	}
}

func TestFromConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	pc := FromConfig(cfg)
	if pc.Backend != BackendGemini {
		t.Errorf("default backend = %q, want gemini", pc.Backend)
	}
	if pc.Model != defaultGeminiModel {
		t.Errorf("default model = %q, want %q", pc.Model, defaultGeminiModel)
	}
	if pc.MaxTokens != 4096 {
		t.Errorf("default max tokens = %d, want 4096", pc.MaxTokens)
	}
}

func TestFromConfig_Ollama(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Model.Provider = "ollama"
	cfg.Model.Ollama.Host = "http://ollama:11434"
	pc := FromConfig(cfg)
	if pc.Backend != BackendOllama {
		t.Errorf("backend = %q, want ollama", pc.Backend)
	}
	if pc.BaseURL != "http://ollama:11434" {
		t.Errorf("base URL = %q", pc.BaseURL)
	}
	if pc.Model != defaultOllamaModel {
		t.Errorf("model = %q, want the ollama default", pc.Model)
	}
}
