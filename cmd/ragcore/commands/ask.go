package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/propgen/ragcore/internal/config"
	"github.com/propgen/ragcore/internal/history"
	"github.com/propgen/ragcore/internal/logging"
	"github.com/propgen/ragcore/internal/pipeline"
	"github.com/propgen/ragcore/internal/provider"
)

// NewAskCmd constructs the `ragcore ask` command, which answers a single
// question against a profile's ingested documents and prints the answer.
func NewAskCmd() *cobra.Command {
	var profileID string
	var topK int
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question against a profile's documents",
		Long: `Run one retrieval-augmented query against a client profile's collection.

The question is embedded, the profile's top matching chunks are retrieved,
and the configured chat model produces a grounded answer. The question and
answer are persisted as conversation turns so follow-up questions carry
context.

Examples:
  ragcore ask --profile client-a "what is the proposed project fee?"
  ragcore ask --profile client-a --sources "what are the delivery milestones?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if profileID == "" {
				return fmt.Errorf("ask: --profile is required")
			}

			cfg := config.FromEnv()

			chatModel, err := provider.New(ctx, provider.FromConfig(cfg))
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			emb, err := buildEmbedder(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			store, err := buildVectorStore(cfg)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer func() { _ = store.Close() }()

			historyStore := openHistory(ctx, cfg, log)
			if historyStore != nil {
				defer func() { _ = historyStore.Close() }()
			}
			fetcher := history.NewFetcher(historyStore, cfg.Retrieval.HistoryLimit, log)

			pl := pipeline.New(emb, store, chatModel, fetcher, cfg.Retrieval.TopK)

			question := strings.Join(args, " ")
			ans, err := pl.Answer(ctx, &pipeline.Request{
				Question:  question,
				ProfileID: profileID,
				TopK:      topK,
			})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(ans.Text)

			if showSources && len(ans.SourceChunks) > 0 {
				fmt.Println("\nSources:")
				for _, c := range ans.SourceChunks {
					fmt.Printf("  [%.3f] %s (%s)\n", c.Score, c.ID, c.Metadata["source"])
				}
			}

			if historyStore != nil {
				turns := []history.Message{
					{ProfileID: profileID, ConversationID: profileID, Role: history.RoleUser, Content: question},
					{ProfileID: profileID, ConversationID: profileID, Role: history.RoleAssistant, Content: ans.Text},
				}
				for _, msg := range turns {
					if err := historyStore.Append(ctx, msg); err != nil {
						log.Warn("ask: history write failed", "error", err)
						break
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&profileID, "profile", "P", "", "Client profile id to query (required)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (default: 6)")
	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Print retrieved source chunks after the answer")

	return cmd
}
