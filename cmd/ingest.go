package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/iksnae/agent-stream/internal"
	"github.com/iksnae/agent-stream/internal/source"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	ingestJobs  int
	ingestReset bool
)

// ingestCmd reduces event logs into the history database
var ingestCmd = &cobra.Command{
	Use:   "ingest <event-log>...",
	Short: "Reduce event logs into the history database",
	Long: `Reduce one or more JSONL event logs into the history database.

Each log becomes a session named after its file; "-" reads stdin into a new
session with a random id. Logs are reduced concurrently, each by its own
session worker. Interrupted and failed messages are stored too, so they
survive a restart.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestJobs < 1 {
			return fmt.Errorf("--jobs must be at least 1")
		}
		store, err := internal.OpenHistoryStore(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()

		ids := make([]string, len(args))
		seen := make(map[string]string, len(args))
		for i, arg := range args {
			if arg == "-" {
				ids[i] = uuid.NewString()
			} else {
				ids[i] = sessionIDFromPath(arg)
			}
			// Logs sharing a session would be reduced concurrently and interleave.
			if prev, ok := seen[ids[i]]; ok {
				return fmt.Errorf("%s and %s both map to session %q; ingest them in separate runs", prev, arg, ids[i])
			}
			seen[ids[i]] = arg
		}

		engine := internal.NewEngine(internal.EngineOptions{
			History:   store,
			QueueSize: cfg.QueueSize,
		})

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(ingestJobs)
		for i, arg := range args {
			arg, id := arg, ids[i]
			g.Go(func() error {
				return ingestOne(ctx, engine, arg, id, cmd.InOrStdin())
			})
		}
		waitErr := g.Wait()
		// Close drains every queued event into history.
		if err := engine.Close(); err != nil {
			return err
		}
		if waitErr != nil {
			return waitErr
		}

		return printIngestSummary(cmd.Context(), cmd.OutOrStdout(), store, ids)
	},
}

func ingestOne(ctx context.Context, engine *internal.Engine, path, sessionID string, stdin io.Reader) error {
	if ingestReset {
		if err := engine.Reset(ctx, sessionID); err != nil {
			return err
		}
	}

	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return &internal.StorageError{Path: path, Op: "open", Err: err}
		}
		defer f.Close()
		r = f
	}

	stats, err := source.ReadEventLog(r, path, func(ev internal.Event) error {
		return engine.Dispatch(ctx, sessionID, ev)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	internal.LogInfo("Ingested %s as %s: %d event(s), %d skipped", path, sessionID, stats.Events, stats.Skipped)
	return nil
}

func printIngestSummary(ctx context.Context, w io.Writer, store *internal.HistoryStore, ids []string) error {
	all, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var rows []internal.SessionSummary
	for _, s := range all {
		if want[s.ID] {
			rows = append(rows, s)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SESSION\tMESSAGES\tINTERRUPTED\t")
	for _, s := range rows {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t\n", s.ID, s.MessageCount, s.PartialCount)
	}
	return tw.Flush()
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().IntVarP(&ingestJobs, "jobs", "j", 4, "Maximum logs reduced at once")
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "Replace stored sessions instead of reducing on top of them")
}
