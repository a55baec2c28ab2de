// Embedd serves local text embeddings behind an OpenAI-compatible HTTP API.
//
// Configuration comes from defaults, an optional YAML file and environment
// variables. See internal/config for the keys.
//
// Usage:
//
//	# Start the server with defaults
//	embedd
//
//	# Start with a config file
//	embedd serve --config embedd.yaml
//
//	# Embed text without a server
//	embedd embed --type query "what is a vector database?"
//
//	# Check a running server
//	embedd health --server http://localhost:8080
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "embedd",
		Short: "Local text embedding server",
		Long: `embedd runs a text embedding model locally and serves it through an
HTTP API shaped like the OpenAI embeddings API.

Running embedd without a subcommand starts the server.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newEmbedCmd(&configPath),
		newHealthCmd(),
		newVersionCmd(),
	)
	return root
}
