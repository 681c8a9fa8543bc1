package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/iksnae/agent-stream/internal"
	"github.com/spf13/cobra"
)

var (
	replaySession string
	replayNoCache bool
	replayBlocks  bool
)

// replayCmd reduces an event log and prints the resulting messages
var replayCmd = &cobra.Command{
	Use:   "replay <event-log>",
	Short: "Reduce an event log and print the message history",
	Long: `Reduce a JSONL event log and print the final messages as JSON.

Results are cached by the log's checksum, so replaying an unchanged log is
served from the cache. Use --no-cache to always reduce.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		id := replaySession
		if id == "" {
			id = sessionIDFromPath(path)
		}

		var cache *internal.SnapshotCache
		if !replayNoCache {
			cache = internal.NewSnapshotCache(cfg.CacheDir)
		}

		var t *internal.Transcript
		err := internal.ShowProgress(cmd.Context(), fmt.Sprintf("Replaying %s", path), func() error {
			var err error
			t, err = reduceLog(path, id, cache)
			return err
		})
		if err != nil {
			return err
		}

		var out interface{} = t.Messages
		if replayBlocks {
			out = t.Blocks
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVar(&replaySession, "session", "", "Session id (default: log file name)")
	replayCmd.Flags().BoolVar(&replayNoCache, "no-cache", false, "Do not read or write the snapshot cache")
	replayCmd.Flags().BoolVar(&replayBlocks, "blocks", false, "Print displayed blocks instead of messages")
}
