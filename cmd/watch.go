package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/iksnae/agent-stream/internal"
	"github.com/iksnae/agent-stream/internal/source"
	"github.com/spf13/cobra"
)

var (
	watchURL     string
	watchSession string
	watchPersist bool
	watchLast    int
)

// watchCmd follows a live conversation and re-renders it on every change
var watchCmd = &cobra.Command{
	Use:   "watch [event-log]",
	Short: "Follow a live conversation",
	Long: `Follow an event log as it grows, or read events from a WebSocket with
--ws, and re-render the conversation whenever it changes. Stop with Ctrl-C.

With --persist, committed messages are written to the history database.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 0) == (watchURL == "") {
			return fmt.Errorf("pass exactly one of an event log path or --ws")
		}

		id := watchSession
		switch {
		case id != "":
		case len(args) == 1:
			id = sessionIDFromPath(args[0])
		default:
			id = uuid.NewString()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := internal.EngineOptions{QueueSize: cfg.QueueSize}
		if watchPersist {
			store, err := internal.OpenHistoryStore(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()
			opts.History = store
		}
		engine := internal.NewEngine(opts)
		defer engine.Close()

		out := cmd.OutOrStdout()
		var mu sync.Mutex
		cancel, err := engine.Subscribe(ctx, id, func(u internal.SessionUpdate) {
			mu.Lock()
			defer mu.Unlock()
			renderUpdate(out, u, watchLast)
		})
		if err != nil {
			return err
		}
		defer cancel()

		handle := func(ev internal.Event) error {
			return engine.Dispatch(ctx, id, ev)
		}
		if len(args) == 1 {
			err = source.Follow(ctx, args[0], handle)
		} else {
			ws := &source.WebSocket{URL: watchURL}
			err = ws.Run(ctx, handle)
		}
		// Drain queued events while still subscribed so the final state renders.
		closeErr := engine.Close()
		cancel()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if err != nil {
			return err
		}
		return closeErr
	},
}

func renderUpdate(w io.Writer, u internal.SessionUpdate, last int) {
	if isTTY(w) {
		// Clear screen and home the cursor.
		fmt.Fprint(w, "\033[H\033[2J")
	}
	header := fmt.Sprintf("Session %s · v%d", u.SessionID, u.Version)
	if len(u.Streaming) > 0 {
		header += fmt.Sprintf(" · %d streaming", len(u.Streaming))
	}
	fmt.Fprintln(w, sessionHeaderStyle.Render(header))

	blocks := u.Blocks
	if last > 0 && len(blocks) > last {
		blocks = blocks[len(blocks)-last:]
	}
	renderBlocks(w, blocks)
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchURL, "ws", "", "WebSocket URL to read events from")
	watchCmd.Flags().StringVar(&watchSession, "session", "", "Session id (default: log file name, or a random id)")
	watchCmd.Flags().BoolVar(&watchPersist, "persist", false, "Write committed messages to the history database")
	watchCmd.Flags().IntVar(&watchLast, "last", 20, "Only render the last N blocks (0 for all)")
}
