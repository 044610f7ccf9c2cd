// Package commands defines all Cobra CLI commands for the ragcore binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/propgen/ragcore/internal/audit"
	"github.com/propgen/ragcore/internal/config"
	"github.com/propgen/ragcore/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragcore",
		Short: "ragcore — multi-tenant RAG backend for client proposal documents",
		Long: `ragcore ingests client PDF documents into per-profile vector collections
and answers questions against them using retrieval-augmented generation.

Each client profile gets its own isolated collection; queries retrieve only
from the requesting profile's documents and carry that profile's recent
conversation history into the prompt.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.ragcore/config.yaml).
See 'ragcore --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Load .env if present. Real env vars are never overwritten.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragcore/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewDeleteCmd(),
		NewVersionCmd(),
	)

	return root
}
