// Command ragctl ingests a folder of mixed-format documents into a vector
// index and retrieves grounding context for test-case and use-case
// generation.
//
// Usage:
//
//	ragctl ingest [folder]        rebuild the index from a folder
//	ragctl query "login flow"     print the most relevant chunks
//	ragctl serve                  HTTP API on 127.0.0.1:9090
//	ragctl mcp                    MCP tools over stdio
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	logLevel   string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragctl",
		Short: "Multimodal document ingestion and retrieval",
		Long: `ragctl turns a folder of text, PDF, Word and image files into a searchable
vector index and retrieves the chunks most relevant to a query.

Configuration is read from ~/.config/ragctl/config.yaml (or --config) and
RAG_-prefixed environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/ragctl/config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newIngestCmd(),
		newQueryCmd(),
		newClearCmd(),
		newServeCmd(),
		newWatchCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
	addPlatformCommands(root)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("ragctl %s\n", version)
			cmd.Printf("Commit:     %s\n", gitCommit)
			cmd.Printf("Build Date: %s\n", buildDate)
		},
	}
}
