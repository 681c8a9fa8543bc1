package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/iksnae/agent-stream/internal"
	"github.com/iksnae/agent-stream/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCommand(t *testing.T) {
	tests := []struct {
		name   string
		format string
		file   string
		want   string
	}{
		{name: "markdown", format: "md", file: "session_sample.md", want: "# Session sample"},
		{name: "yaml", format: "yaml", file: "session_sample.yaml", want: "id: sample"},
		{name: "jsonl", format: "jsonl", file: "session_sample.jsonl", want: `"type":"message"`},
		{name: "json", format: "json", file: "session_sample.json", want: `"id": "sample"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := testutil.CreateTempDir(t)
			log := testutil.CreateEventLogFixture(t, dir, "sample.jsonl")
			outDir := filepath.Join(dir, "out")

			out, err := runCommand(t, dir, "export", "--format", tt.format, "--out", outDir, log)
			require.NoError(t, err)
			assert.Contains(t, out, "Export complete: 1 session(s)")

			data, err := os.ReadFile(filepath.Join(outDir, tt.file))
			require.NoError(t, err)
			assert.Contains(t, string(data), tt.want)
		})
	}
}

func TestExportCommand_Stdout(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	log := testutil.CreateEventLogFixture(t, dir, "sample.jsonl")

	out, err := runCommand(t, dir, "export", "--format", "json", "--out", "-", log)
	require.NoError(t, err)

	var tr internal.Transcript
	require.NoError(t, json.Unmarshal([]byte(out), &tr))
	assert.Equal(t, "sample", tr.ID)
	assert.Equal(t, log, tr.Source)
	assert.NotEmpty(t, tr.Metadata.Checksum)
}

func TestExportCommand_All(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	logs := testutil.CreateEventLogTree(t, filepath.Join(dir, "logs"), "one", "two")

	_, err := runCommand(t, dir, append([]string{"ingest"}, logs...)...)
	require.NoError(t, err)

	outDir := filepath.Join(dir, "out")
	_, err = runCommand(t, dir, "export", "--all", "--format", "md", "--out", outDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outDir, "session_one.md"))
	assert.FileExists(t, filepath.Join(outDir, "session_two.md"))
}

func TestExportCommand_Errors(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	log := testutil.CreateEventLogFixture(t, dir, "sample.jsonl")

	_, err := runCommand(t, dir, "export", "--format", "xml", log)
	var ee *internal.ExportError
	assert.ErrorAs(t, err, &ee)

	_, err = runCommand(t, dir, "export")
	assert.Error(t, err)

	_, err = runCommand(t, dir, "export", "--out", filepath.Join(dir, "out"), "missing-session")
	assert.Error(t, err)
}
