package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/agent-stream/internal"
	"github.com/spf13/cobra"
)

var (
	limit       int
	showNoCache bool
)

var (
	// Styles for show command
	sessionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212")).
				Padding(0, 1).
				MarginBottom(1)

	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	reasoningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true).
			Padding(0, 2)

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Padding(0, 2)

	streamErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196")).
				Bold(true).
				Padding(0, 2)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// showCmd renders the displayed blocks of a conversation
var showCmd = &cobra.Command{
	Use:   "show <event-log|session-id>",
	Short: "Render a conversation",
	Long: `Render the displayed blocks of a conversation.

The argument is an event log path, or a session id stored in the history
database by 'agent-stream ingest'.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTranscript(cmd.Context(), args[0], !showNoCache)
		if err != nil {
			return err
		}
		renderTranscript(cmd.OutOrStdout(), t, limit)
		return nil
	},
}

func renderTranscript(w io.Writer, t *internal.Transcript, limit int) {
	fmt.Fprintln(w, sessionHeaderStyle.Render(fmt.Sprintf("Session %s", t.ID)))

	meta := fmt.Sprintf("%d message(s)", t.Metadata.MessageCount)
	if t.Metadata.PartialCount > 0 {
		meta += fmt.Sprintf(", %d interrupted", t.Metadata.PartialCount)
	}
	if t.Metadata.UpdatedAt != "" {
		meta += " · updated " + t.Metadata.UpdatedAt
	}
	fmt.Fprintln(w, sessionMetaStyle.Render(meta))

	blocks := t.Blocks
	if limit > 0 && len(blocks) > limit {
		blocks = blocks[len(blocks)-limit:]
	}
	renderBlocks(w, blocks)
}

// renderBlocks writes one section per message with its blocks beneath
func renderBlocks(w io.Writer, blocks []internal.DisplayedBlock) {
	current := ""
	for _, b := range blocks {
		if b.MessageID != current {
			current = b.MessageID
			fmt.Fprintln(w, blockHeader(b))
		}
		fmt.Fprintln(w, renderBlock(b))
	}
}

func blockHeader(b internal.DisplayedBlock) string {
	label := assistantMessageStyle.Render("Assistant")
	if b.Type == internal.BlockUser {
		label = userMessageStyle.Render("User")
	}
	var extra []string
	if b.Model != "" {
		extra = append(extra, b.Model)
	}
	if b.Timestamp != 0 {
		extra = append(extra, time.UnixMilli(b.Timestamp).Format("2006-01-02 15:04:05"))
	}
	if len(extra) == 0 {
		return label
	}
	return label + " " + timestampStyle.Render(strings.Join(extra, " · "))
}

func renderBlock(b internal.DisplayedBlock) string {
	var out string
	switch b.Type {
	case internal.BlockReasoning:
		out = reasoningStyle.Render("💭 " + b.Content)
	case internal.BlockTool:
		state := string(b.ToolState)
		out = toolStyle.Render(fmt.Sprintf("🔧 %s [%s]", b.ToolName, state))
		if len(b.Output) > 0 {
			out += "\n" + toolStyle.Render(truncate(string(b.Output), 200))
		}
	case internal.BlockError:
		label := "Error"
		if b.ErrorType != "" {
			label += " (" + b.ErrorType + ")"
		}
		out = streamErrorStyle.Render(fmt.Sprintf("⚠ %s: %s", label, b.Error))
	default:
		out = messageContentStyle.Render(b.Content)
	}
	if b.IsStreaming {
		out += " " + timestampStyle.Render("▍streaming")
	} else if b.IsPartial && b.IsLastPartOfMessage && b.Type != internal.BlockError {
		out += " " + timestampStyle.Render("(interrupted)")
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Only show the last N blocks")
	showCmd.Flags().BoolVar(&showNoCache, "no-cache", false, "Do not read or write the snapshot cache")
}
