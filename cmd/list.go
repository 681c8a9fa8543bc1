package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/agent-stream/internal"
	"github.com/spf13/cobra"
)

var (
	listJSON bool
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	partialStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

// listCmd lists sessions stored in the history database
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Long:  `List every session in the history database, most recently updated first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := internal.OpenHistoryStore(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()

		sessions, err := store.Sessions(cmd.Context())
		if err != nil {
			return err
		}

		if listJSON {
			data, err := json.MarshalIndent(sessions, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		}
		displaySessions(cmd.OutOrStdout(), sessions, time.Now())
		return nil
	},
}

func displaySessions(out io.Writer, sessions []internal.SessionSummary, now time.Time) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, headerStyle.Render("📋 No sessions found"))
		return
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("📋 Found %d session(s)", len(sessions))))
	fmt.Fprintln(out)

	// Use tabwriter for aligned columns with better spacing
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Interrupted")+"\t"+titleStyle.Render("Updated")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 72))

	for _, s := range sessions {
		partial := dateStyle.Render("—")
		if s.PartialCount > 0 {
			partial = partialStyle.Render(strconv.Itoa(s.PartialCount))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
			idStyle.Render(s.ID),
			countStyle.Render(strconv.Itoa(s.MessageCount)),
			partial,
			dateStyle.Render(relativeDate(s.UpdatedAt, now)))
	}

	_ = w.Flush()
	fmt.Fprintln(out)
	fmt.Fprintln(out, idStyle.Render("💡 Tip: Use the ID (e.g., ")+
		lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Render(sessions[0].ID)+
		idStyle.Render(") with `agent-stream show <id>`"))
}

func relativeDate(t, now time.Time) string {
	if t.IsZero() {
		return "—"
	}
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print sessions as JSON")
}
