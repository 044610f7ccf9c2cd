// Package config provides YAML-based configuration for ragcore.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so container deployments keep working
// without a config file at all.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. RAGCORE_CONFIG environment variable
//  3. ~/.ragcore/config.yaml
//  4. ./ragcore.yaml
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming.
type Config struct {
	// Model configures the chat-completion provider used for answering.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// History configures the conversation history store.
	History HistoryConfig `yaml:"history"`

	// Chunking configures the document chunker.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Retrieval configures query-time retrieval.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Server configures the HTTP API server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig holds chat model settings.
type ModelConfig struct {
	// Provider selects the backend: gemini, openai, ollama.
	Provider string `yaml:"provider"`
	// MaxTokens caps the response length.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`
	// Gemini holds Gemini-specific settings.
	Gemini GeminiConfig `yaml:"gemini"`
	// OpenAI holds OpenAI-specific settings.
	OpenAI OpenAIConfig `yaml:"openai"`
	// Ollama holds Ollama-specific settings.
	Ollama OllamaConfig `yaml:"ollama"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Gemini model name.
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the OpenAI model name.
	Model string `yaml:"model"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (gemini, ollama, openai).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// HistoryConfig holds conversation history store settings.
type HistoryConfig struct {
	// Backend selects the store: postgres, sqlite, disabled.
	Backend string `yaml:"backend"`
	// DatabaseURL is the Postgres DSN (postgres backend).
	DatabaseURL string `yaml:"database_url"`
	// DBPath is the SQLite database path (sqlite backend).
	DBPath string `yaml:"db_path"`
	// Debug enables query logging on the Postgres backend.
	Debug bool `yaml:"debug"`
}

// ChunkingConfig holds chunker tuning knobs.
type ChunkingConfig struct {
	// FallbackSize is the word-window size used when a document has no headings.
	FallbackSize int `yaml:"fallback_size"`
	// MinSectionWords is the minimum body word count for a heading section
	// to be kept as a chunk.
	MinSectionWords int `yaml:"min_section_words"`
}

// RetrievalConfig holds query-time retrieval settings.
type RetrievalConfig struct {
	// TopK is the default number of chunks retrieved per query.
	TopK int `yaml:"top_k"`
	// HistoryLimit is the default number of conversation turns injected.
	HistoryLimit int `yaml:"history_limit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var RAGCORE_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"HISTORY_BACKEND", func(c *Config) string { return c.History.Backend }},
	{"DATABASE_URL", func(c *Config) string { return c.History.DatabaseURL }},
	{"HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
	{"HISTORY_DEBUG", func(c *Config) string { return boolStr(c.History.Debug) }},
	{"CHUNK_FALLBACK_SIZE", func(c *Config) string { return intStr(c.Chunking.FallbackSize) }},
	{"CHUNK_MIN_SECTION_WORDS", func(c *Config) string { return intStr(c.Chunking.MinSectionWords) }},
	{"RETRIEVAL_TOP_K", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"RETRIEVAL_HISTORY_LIMIT", func(c *Config) string { return intStr(c.Retrieval.HistoryLimit) }},
	{"SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"RAGCORE_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// FromEnv builds a Config from the current environment. Callers typically
// run Load first so YAML values have been promoted into the environment;
// after that, env vars are the single source of truth.
func FromEnv() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    os.Getenv("MODEL_PROVIDER"),
			MaxTokens:   envInt("MODEL_MAX_TOKENS"),
			Temperature: envFloat32("MODEL_TEMPERATURE"),
			Gemini: GeminiConfig{
				APIKey: os.Getenv("GOOGLE_API_KEY"),
				Model:  os.Getenv("GEMINI_MODEL"),
			},
			OpenAI: OpenAIConfig{
				APIKey: os.Getenv("OPENAI_API_KEY"),
				Model:  os.Getenv("OPENAI_MODEL"),
			},
			Ollama: OllamaConfig{
				Host:  os.Getenv("OLLAMA_HOST"),
				Model: os.Getenv("OLLAMA_MODEL"),
			},
		},
		Embedding: EmbeddingConfig{
			Provider:   os.Getenv("EMBEDDING_PROVIDER"),
			Model:      os.Getenv("EMBEDDING_MODEL"),
			Dimensions: envInt("EMBEDDING_DIMENSIONS"),
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Endpoint:   os.Getenv("EMBEDDING_ENDPOINT"),
		},
		Qdrant: QdrantConfig{
			Host:   os.Getenv("QDRANT_HOST"),
			Port:   envInt("QDRANT_PORT"),
			APIKey: os.Getenv("QDRANT_API_KEY"),
			TLS:    os.Getenv("QDRANT_TLS") == "true",
		},
		History: HistoryConfig{
			Backend:     os.Getenv("HISTORY_BACKEND"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			DBPath:      os.Getenv("HISTORY_DB"),
			Debug:       os.Getenv("HISTORY_DEBUG") == "true",
		},
		Chunking: ChunkingConfig{
			FallbackSize:    envInt("CHUNK_FALLBACK_SIZE"),
			MinSectionWords: envInt("CHUNK_MIN_SECTION_WORDS"),
		},
		Retrieval: RetrievalConfig{
			TopK:         envInt("RETRIEVAL_TOP_K"),
			HistoryLimit: envInt("RETRIEVAL_HISTORY_LIMIT"),
		},
		Server: ServerConfig{
			Host:   os.Getenv("SERVER_HOST"),
			Port:   envInt("SERVER_PORT"),
			APIKey: os.Getenv("RAGCORE_API_KEY"),
		},
		Logging: LoggingConfig{
			Level:  os.Getenv("LOG_LEVEL"),
			Format: os.Getenv("LOG_FORMAT"),
		},
	}
}

// envInt reads an integer env var, returning 0 when unset or unparseable.
func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// envFloat32 reads a float env var, returning 0 when unset or unparseable.
func envFloat32(key string) float32 {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0
	}
	return float32(f)
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("RAGCORE_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".ragcore", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("ragcore.yaml"); err == nil {
		return "ragcore.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
