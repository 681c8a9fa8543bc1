package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/iksnae/agent-stream/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{
			name:    "version flag",
			args:    []string{"--version"},
			wantErr: false,
		},
		{
			name:    "help flag",
			args:    []string{"--help"},
			wantErr: false,
		},
		{
			name:    "nonexistent command",
			args:    []string{"nonexistent-command"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			rootCmd.SetArgs(tt.args)
			var stdout, stderr bytes.Buffer
			rootCmd.SetOut(&stdout)
			rootCmd.SetErr(&stderr)

			err := rootCmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Errorf("rootCmd.Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRootCommand_DataDir(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	_, err := runCommand(t, dir, "list")
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.FileExists(t, filepath.Join(dir, "history.db"))
}

func TestRootCommand_ConfigFile(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: nope\n"), 0644))

	_, err := runCommand(t, dir, "--config", path, "list")
	assert.Error(t, err)
}
