package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/propgen/ragcore/internal/chunker"
	"github.com/propgen/ragcore/internal/config"
	"github.com/propgen/ragcore/internal/embedder"
	"github.com/propgen/ragcore/internal/history"
	"github.com/propgen/ragcore/internal/vectorstore"
)

// buildEmbedder validates the embedding configuration and constructs the
// configured embedder.
func buildEmbedder(ctx context.Context, cfg *config.Config, log *slog.Logger) (embedder.Embedder, error) {
	if err := embedder.Validate(cfg, log); err != nil {
		return nil, fmt.Errorf("embedder validation: %w", err)
	}
	emb, err := embedder.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("embedder init: %w", err)
	}
	return emb, nil
}

// buildVectorStore connects to Qdrant using the resolved configuration.
func buildVectorStore(cfg *config.Config) (*vectorstore.QdrantStore, error) {
	store, err := vectorstore.NewQdrantStore(&vectorstore.QdrantConfig{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.TLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant init: %w", err)
	}
	return store, nil
}

// chunkerOptions maps the chunking configuration onto chunker options.
// Zero values select the chunker defaults.
func chunkerOptions(cfg *config.Config) chunker.Options {
	return chunker.Options{
		MinSectionWords: cfg.Chunking.MinSectionWords,
		FallbackSize:    cfg.Chunking.FallbackSize,
	}
}

// openHistory opens the configured conversation history store.
// Returns a nil store when history is disabled or unavailable: history is a
// soft dependency, so open failures log a warning instead of aborting.
func openHistory(ctx context.Context, cfg *config.Config, log *slog.Logger) history.Store {
	switch cfg.History.Backend {
	case "disabled":
		log.Info("history: disabled via HISTORY_BACKEND=disabled")
		return nil

	case "postgres":
		store, err := history.OpenPostgres(ctx, &history.PostgresConfig{
			DSN:   cfg.History.DatabaseURL,
			Debug: cfg.History.Debug,
		})
		if err != nil {
			log.Warn("history: failed to open postgres store, disabling", slog.Any("error", err))
			return nil
		}
		log.Info("history: postgres store opened")
		return store

	default:
		// sqlite is the default backend for local use.
		path := cfg.History.DBPath
		if path == "" {
			var err error
			path, err = history.DefaultDBPath()
			if err != nil {
				log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
				return nil
			}
		}
		store, err := history.OpenSQLite(path)
		if err != nil {
			log.Warn("history: failed to open store, disabling", slog.Any("error", err))
			return nil
		}
		log.Info("history: store opened", slog.String("path", path))
		return store
	}
}
