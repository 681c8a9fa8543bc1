package cmd

import (
	"fmt"
	"os"

	"github.com/iksnae/agent-stream/internal"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	dataDir    string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"

	// cfg is resolved once per invocation by the root pre-run
	cfg = internal.DefaultConfig()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "agent-stream",
	Short: "Reduce, inspect and export streamed agent conversations",
	Long: `A CLI for streamed assistant conversations.

It reduces event logs (stream-start, deltas, tool calls, stream-end, edits)
into a message history, renders the display projection, keeps a durable
history database, and exports transcripts.

Features:
  • Replay a JSONL event log into its final message history
  • Render the displayed blocks of a conversation
  • Follow a live log file or WebSocket and re-render on every change
  • Ingest many logs concurrently into the history database
  • Export in multiple formats (JSONL, Markdown, YAML, JSON)
  • Inspect persisted init hook status

Quick Start:
  agent-stream replay session.jsonl         # Print the reduced messages
  agent-stream show session.jsonl           # Render the conversation
  agent-stream ingest logs/*.jsonl          # Store sessions in history
  agent-stream list                         # List stored sessions`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := internal.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if dataDir != "" {
			c.SetDataDir(dataDir)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		cfg = c

		level, _ := internal.ParseLogLevel(c.LogLevel)
		internal.SetLogLevel(level)
		if verbose {
			internal.SetVerbose(true)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default ~/.agent-stream)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
