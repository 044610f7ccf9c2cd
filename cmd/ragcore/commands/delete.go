package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/propgen/ragcore/internal/config"
	"github.com/propgen/ragcore/internal/fault"
	"github.com/propgen/ragcore/internal/ingestion"
	"github.com/propgen/ragcore/internal/logging"
)

// NewDeleteCmd constructs the `ragcore delete` command group for removing
// ingested data.
func NewDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete ingested documents or whole profile collections",
	}

	cmd.AddCommand(newDeleteDocumentCmd(), newDeleteProfileCmd())

	return cmd
}

// newDeleteDocumentCmd removes every chunk of one document from a profile's
// collection.
func newDeleteDocumentCmd() *cobra.Command {
	var profileID string

	cmd := &cobra.Command{
		Use:   "document [document-id]",
		Short: "Delete one document's chunks from a profile's collection",
		Long: `Remove every stored chunk belonging to the given document id.

Deleting a document that has no chunks is not an error; the command reports
zero deletions.

Examples:
  ragcore delete document --profile client-a 7d9f2c1a-...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if profileID == "" {
				return fmt.Errorf("delete document: --profile is required")
			}

			orc, cleanup, err := buildOrchestrator(ctx, log)
			if err != nil {
				return fmt.Errorf("delete document: %w", err)
			}
			defer cleanup()

			deleted, err := orc.DeleteDocument(ctx, profileID, args[0])
			if err != nil {
				return fmt.Errorf("delete document: %w", err)
			}

			fmt.Printf("deleted %d chunks of document %s from profile %s\n", deleted, args[0], profileID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&profileID, "profile", "P", "", "Client profile id (required)")

	return cmd
}

// newDeleteProfileCmd drops a profile's entire collection.
func newDeleteProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile [profile-id]",
		Short: "Drop a profile's entire vector collection",
		Long: `Delete the profile's collection and everything in it.

Fails if the profile has never ingested anything.

Examples:
  ragcore delete profile client-a`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			orc, cleanup, err := buildOrchestrator(ctx, log)
			if err != nil {
				return fmt.Errorf("delete profile: %w", err)
			}
			defer cleanup()

			if err := orc.DropProfile(ctx, args[0]); err != nil {
				if fault.KindOf(err) == fault.KindNotFound {
					return fmt.Errorf("delete profile: no collection exists for %q", args[0])
				}
				return fmt.Errorf("delete profile: %w", err)
			}

			fmt.Printf("dropped collection for profile %s\n", args[0])
			return nil
		},
	}

	return cmd
}

// buildOrchestrator wires an ingestion orchestrator for the delete commands.
// The embedder is still required because the orchestrator owns the store
// wiring, even though deletion never embeds anything.
func buildOrchestrator(ctx context.Context, log *slog.Logger) (*ingestion.Orchestrator, func(), error) {
	cfg := config.FromEnv()

	emb, err := buildEmbedder(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	store, err := buildVectorStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	return ingestion.New(emb, store, chunkerOptions(cfg)), func() { _ = store.Close() }, nil
}
