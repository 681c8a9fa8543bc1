package cmd

import (
	"encoding/json"
	"testing"

	"github.com/iksnae/agent-stream/internal"
	"github.com/iksnae/agent-stream/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShowCommand(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	log := testutil.CreateEventLogFixture(t, dir, "sample.jsonl")

	out, err := runCommand(t, dir, "show", log)
	require.NoError(t, err)

	for _, want := range []string{
		"Session sample",
		"2 message(s)",
		"User",
		"What is in main.go?",
		"Assistant",
		"Need to read the file.",
		"read_file [available]",
		"It declares package main.",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "streaming")
}

func TestShowCommand_Interrupted(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	log := testutil.WriteEventLog(t, dir, "broken.jsonl", testutil.InterruptedConversation...)

	out, err := runCommand(t, dir, "show", "--limit", "2", log)
	require.NoError(t, err)

	assert.Contains(t, out, "1 interrupted")
	assert.Contains(t, out, "The summary is")
	assert.Contains(t, out, "(interrupted)")
	assert.Contains(t, out, "Error (rate_limit): rate limited")
	assert.NotContains(t, out, "Summarize")
}

func TestShowCommand_UnknownSession(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	_, err := runCommand(t, dir, "show", "no-such-session")
	assert.Error(t, err)
}

func TestRenderBlock(t *testing.T) {
	tests := []struct {
		name  string
		block internal.DisplayedBlock
		want  []string
	}{
		{
			name:  "streaming text",
			block: internal.DisplayedBlock{Type: internal.BlockAssistant, Content: "Hel", IsStreaming: true, IsLastPartOfMessage: true},
			want:  []string{"Hel", "streaming"},
		},
		{
			name:  "pending tool",
			block: internal.DisplayedBlock{Type: internal.BlockTool, ToolName: "grep", ToolState: internal.ToolStatePending},
			want:  []string{"grep [pending]"},
		},
		{
			name: "tool output",
			block: internal.DisplayedBlock{
				Type: internal.BlockTool, ToolName: "cat", ToolState: internal.ToolStateAvailable,
				Output: json.RawMessage(`"short"`),
			},
			want: []string{"cat [available]", `"short"`},
		},
		{
			name:  "error without type",
			block: internal.DisplayedBlock{Type: internal.BlockError, Error: "boom"},
			want:  []string{"Error: boom"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderBlock(tt.block)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
}
