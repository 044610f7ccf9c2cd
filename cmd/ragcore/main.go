// Command ragcore is the entry point for the multi-tenant RAG backend.
// It provides a CLI interface (via Cobra) for document ingestion and
// one-shot queries, and an HTTP server exposing the full JSON API.
package main

import (
	"fmt"
	"os"

	"github.com/propgen/ragcore/cmd/ragcore/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
