package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iksnae/agent-stream/internal"
)

// MarkdownExporter exports transcripts in Markdown format, rendering the
// display blocks rather than raw parts
type MarkdownExporter struct{}

// Export exports a transcript to Markdown format
func (e *MarkdownExporter) Export(t *internal.Transcript, w io.Writer) error {
	ew := &errWriter{w: w}

	// Header
	ew.printf("# Session %s\n\n", t.ID)
	if t.Source != "" {
		ew.printf("**Source:** %s  \n", t.Source)
	}
	ew.printf("**Messages:** %d\n\n", t.Metadata.MessageCount)
	if t.Metadata.PartialCount > 0 {
		ew.printf("**Interrupted:** %d\n\n", t.Metadata.PartialCount)
	}
	ew.printf("---\n\n")

	blocks := t.Blocks
	if blocks == nil {
		ptrs := make([]*internal.Message, len(t.Messages))
		for i := range t.Messages {
			ptrs[i] = &t.Messages[i]
		}
		blocks = internal.Project(ptrs, nil)
	}

	current := ""
	for _, b := range blocks {
		if b.MessageID != current {
			if current != "" {
				ew.printf("---\n\n")
			}
			current = b.MessageID
			ew.printf("%s\n\n", heading(b))
		}
		writeBlock(ew, b)
	}

	return ew.err
}

func heading(b internal.DisplayedBlock) string {
	role := "assistant"
	if b.Type == internal.BlockUser {
		role = "user"
	}
	var extra []string
	if b.Model != "" {
		extra = append(extra, b.Model)
	}
	if b.Timestamp != 0 {
		extra = append(extra, time.UnixMilli(b.Timestamp).UTC().Format(time.RFC3339))
	}
	if len(extra) == 0 {
		return fmt.Sprintf("**%s:**", role)
	}
	return fmt.Sprintf("**%s:** (%s)", role, strings.Join(extra, ", "))
}

func writeBlock(ew *errWriter, b internal.DisplayedBlock) {
	switch b.Type {
	case internal.BlockUser, internal.BlockAssistant:
		ew.printf("%s\n\n", escapeMarkdown(b.Content))
	case internal.BlockReasoning:
		ew.printf("%s\n\n", quote(b.Content))
	case internal.BlockTool:
		ew.printf("**Tool:** `%s` (%s)\n\n", b.ToolName, b.ToolState)
		if len(b.Input) > 0 {
			ew.printf("Input:\n\n```json\n%s\n```\n\n", indentJSON(b.Input))
		}
		if len(b.Output) > 0 {
			ew.printf("Output:\n\n```json\n%s\n```\n\n", indentJSON(b.Output))
		}
	case internal.BlockError:
		if b.ErrorType != "" {
			ew.printf("> **Error (%s):** %s\n\n", b.ErrorType, b.Error)
		} else {
			ew.printf("> **Error:** %s\n\n", b.Error)
		}
	}
	if b.IsPartial && b.IsLastPartOfMessage && b.Type != internal.BlockError {
		ew.printf("_(interrupted)_\n\n")
	}
}

func quote(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// escapeMarkdown escapes markdown special characters
func escapeMarkdown(text string) string {
	// Basic escaping - preserve code blocks
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			// Escape markdown syntax outside code blocks
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
