package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/propgen/ragcore/internal/config"
	"github.com/propgen/ragcore/internal/history"
	"github.com/propgen/ragcore/internal/ingestion"
	"github.com/propgen/ragcore/internal/logging"
	"github.com/propgen/ragcore/internal/pipeline"
	"github.com/propgen/ragcore/internal/provider"
	"github.com/propgen/ragcore/internal/server"
)

// NewServeCmd constructs the `ragcore serve` command, which starts the HTTP
// API server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragcore HTTP API server",
		Long: `Start the ragcore HTTP server.

The server exposes document upload, retrieval-augmented querying, and
conversation history over a JSON API, plus /api/health, /api/ready, and
/metrics for operations.

Examples:
  ragcore serve
  ragcore serve --port 9090
  MODEL_PROVIDER=openai ragcore serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			cfg := config.FromEnv()

			chatModel, err := provider.New(ctx, provider.FromConfig(cfg))
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", cfg.Model.Provider))

			emb, err := buildEmbedder(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			store, err := buildVectorStore(cfg)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = store.Close() }()

			historyStore := openHistory(ctx, cfg, log)
			if historyStore != nil {
				defer func() { _ = historyStore.Close() }()
			}
			fetcher := history.NewFetcher(historyStore, cfg.Retrieval.HistoryLimit, log)

			orc := ingestion.New(emb, store, chunkerOptions(cfg))
			pl := pipeline.New(emb, store, chatModel, fetcher, cfg.Retrieval.TopK)

			pingers := []server.Pinger{server.NewVectorStorePinger(store)}
			if historyStore != nil {
				pingers = append(pingers, server.NewHistoryPinger(historyStore))
			}

			if host == "" {
				host = cfg.Server.Host
			}
			if port == 0 {
				port = cfg.Server.Port
			}

			srv, err := server.New(orc, pl, historyStore, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  cfg.Server.APIKey,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default: 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default: 8080)")

	return cmd
}
