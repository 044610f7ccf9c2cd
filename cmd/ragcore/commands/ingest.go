package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/propgen/ragcore/internal/config"
	"github.com/propgen/ragcore/internal/ingestion"
	"github.com/propgen/ragcore/internal/logging"
)

// NewIngestCmd constructs the `ragcore ingest` command, which ingests local
// PDF files into a profile's vector collection without going through the
// HTTP server.
func NewIngestCmd() *cobra.Command {
	var profileID string

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest PDF documents into a profile's collection",
		Long: `Extract, chunk, embed, and store one or more local PDF files.

Each file is converted to markdown, split on headings, embedded with the
configured embedding provider, and upserted into the profile's collection.
The collection is created on first ingest.

Required environment variables:
  QDRANT_HOST       Qdrant server hostname (default: localhost)
  QDRANT_PORT       Qdrant gRPC port (default: 6334)
  GOOGLE_API_KEY    API key for the default Gemini embedding backend
  EMBEDDING_*       Provider-specific overrides (see README)

Examples:
  ragcore ingest --profile client-a ./proposal.pdf
  ragcore ingest --profile client-a docs/*.pdf
  EMBEDDING_PROVIDER=ollama ragcore ingest --profile client-a ./brief.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if profileID == "" {
				return fmt.Errorf("ingest: --profile is required")
			}

			cfg := config.FromEnv()

			emb, err := buildEmbedder(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			store, err := buildVectorStore(cfg)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = store.Close() }()
			log.Info("qdrant store ready",
				slog.String("host", cfg.Qdrant.Host),
				slog.Int("port", cfg.Qdrant.Port),
			)

			orc := ingestion.New(emb, store, chunkerOptions(cfg))

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("ingest: failed to read %s: %w", path, err)
				}

				res, err := orc.Ingest(ctx, profileID, filepath.Base(path), data)
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}

				log.Info("document ingested",
					slog.String("file", path),
					slog.String("document_id", res.DocumentID),
					slog.Int("chunks", res.ChunksCreated),
					slog.Int("degraded", len(res.DegradedChunks)),
				)
				fmt.Printf("%s: document %s, %d chunks", path, res.DocumentID, res.ChunksCreated)
				if len(res.DegradedChunks) > 0 {
					fmt.Printf(" (%d degraded)", len(res.DegradedChunks))
				}
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&profileID, "profile", "P", "", "Client profile id to ingest into (required)")

	return cmd
}
