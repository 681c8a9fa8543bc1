package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/agent-stream/internal"
	"github.com/spf13/cobra"
)

var (
	initShowEvents bool
	initClear      bool
)

var (
	initRunningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	initSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	initErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	initLineStyle    = lipgloss.NewStyle().Padding(0, 2)
)

// initStatusCmd prints the persisted init hook record of a workspace
var initStatusCmd = &cobra.Command{
	Use:   "init-status <workspace>",
	Short: "Show the last init hook run of a workspace",
	Long: `Show the persisted init hook record of a workspace: its status, exit
code and captured output. --events prints the replayed lifecycle events as
JSON lines instead; --clear deletes the record.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace := args[0]
		if err := internal.ValidateKey(workspace); err != nil {
			return fmt.Errorf("workspace: %w", err)
		}
		m := internal.NewInitStateManager(cfg.InitStateDir)

		if initClear {
			if err := m.DeleteInitStatus(workspace); err != nil {
				return err
			}
			internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Cleared init status for %s", workspace))
			return nil
		}

		out := cmd.OutOrStdout()
		if initShowEvents {
			var encErr error
			found := m.ReplayInit(workspace, func(ev internal.InitEvent) {
				if encErr != nil {
					return
				}
				encErr = writeInitEvent(out, ev)
			})
			if !found {
				return fmt.Errorf("no init status for workspace %s", workspace)
			}
			return encErr
		}

		state, ok := m.ReadInitStatus(workspace)
		if !ok {
			return fmt.Errorf("no init status for workspace %s", workspace)
		}
		renderInitState(out, workspace, state)
		return nil
	},
}

// initRunCmd runs a hook script and records its lifecycle
var initRunCmd = &cobra.Command{
	Use:   "init-run <workspace> <hook> [args]...",
	Short: "Run an init hook and record its output",
	Long: `Run an init hook for a workspace, streaming its output and recording
the run so 'agent-stream init-status' can show it later. Stderr lines are
marked as errors. A non-zero exit code records the run as failed.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, hook := args[0], args[1]
		m := internal.NewInitStateManager(cfg.InitStateDir)
		defer m.Flush()

		// Subscribe after starting so catch-up replays this run, not the
		// previous record.
		if err := m.StartInit(workspace, hook); err != nil {
			return fmt.Errorf("workspace: %w", err)
		}
		out := cmd.OutOrStdout()
		var mu sync.Mutex
		unsubscribe := m.Subscribe(workspace, func(ev internal.InitEvent) {
			if o, ok := ev.(internal.InitOutputEvent); ok {
				mu.Lock()
				fmt.Fprintln(out, internal.InitLine{Line: o.Line, IsError: o.IsError}.Display())
				mu.Unlock()
			}
		})
		defer unsubscribe()

		code, err := runHook(cmd, m, workspace, hook, args[2:])
		if err != nil {
			return err
		}
		if code != 0 {
			return fmt.Errorf("init hook exited with code %d", code)
		}
		return nil
	},
}

// runHook runs the hook for an already started init record and reports its
// exit code. Errors are only returned when the hook could not be started.
func runHook(cmd *cobra.Command, m *internal.InitStateManager, workspace, hook string, args []string) (int, error) {
	c := exec.CommandContext(cmd.Context(), hook, args...)
	fail := func(err error) (int, error) {
		m.AppendOutput(workspace, err.Error(), true)
		m.EndInit(workspace, -1)
		return 0, fmt.Errorf("failed to start hook: %w", err)
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		return fail(err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return fail(err)
	}
	if err := c.Start(); err != nil {
		return fail(err)
	}

	var wg sync.WaitGroup
	capture := func(r io.Reader, isError bool) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			m.AppendOutput(workspace, scanner.Text(), isError)
		}
	}
	wg.Add(2)
	go capture(stdout, false)
	go capture(stderr, true)
	wg.Wait()

	code := 0
	if err := c.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			m.AppendOutput(workspace, err.Error(), true)
			code = -1
		} else {
			code = exitErr.ExitCode()
		}
	}
	m.EndInit(workspace, code)
	return code, nil
}

func writeInitEvent(w io.Writer, ev internal.InitEvent) error {
	var kind string
	switch ev.(type) {
	case internal.InitStartEvent:
		kind = "init-start"
	case internal.InitOutputEvent:
		kind = "init-output"
	case internal.InitEndEvent:
		kind = "init-end"
	}
	data, err := json.Marshal(struct {
		Type  string             `json:"type"`
		Event internal.InitEvent `json:"event"`
	}{kind, ev})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func renderInitState(w io.Writer, workspace string, s internal.InitState) {
	var status string
	switch s.Status {
	case internal.InitSuccess:
		status = initSuccessStyle.Render("✓ success")
	case internal.InitError:
		status = initErrorStyle.Render("✗ error")
	default:
		status = initRunningStyle.Render("… running")
	}
	fmt.Fprintf(w, "%s %s\n", sessionHeaderStyle.Render("Init "+workspace), status)

	meta := fmt.Sprintf("hook %s · started %s", s.HookPath, time.UnixMilli(s.StartTime).Format("2006-01-02 15:04:05"))
	if s.EndTime != nil {
		meta += fmt.Sprintf(" · took %s", time.Duration(*s.EndTime-s.StartTime)*time.Millisecond)
	}
	if s.ExitCode != nil {
		meta += fmt.Sprintf(" · exit %d", *s.ExitCode)
	}
	fmt.Fprintln(w, sessionMetaStyle.Render(meta))

	for i, line := range s.DisplayLines() {
		if s.Lines[i].IsError {
			fmt.Fprintln(w, initLineStyle.Render(initErrorStyle.Render(line)))
		} else {
			fmt.Fprintln(w, initLineStyle.Render(line))
		}
	}
}

func init() {
	rootCmd.AddCommand(initStatusCmd)
	rootCmd.AddCommand(initRunCmd)
	initStatusCmd.Flags().BoolVar(&initShowEvents, "events", false, "Print replayed lifecycle events as JSON lines")
	initStatusCmd.Flags().BoolVar(&initClear, "clear", false, "Delete the persisted record")
}
