package cmd

import (
	"bytes"
	"testing"

	"github.com/iksnae/agent-stream/internal"
)

// resetFlags restores every flag variable; cobra keeps values between
// Execute calls on the shared root command.
func resetFlags() {
	verbose, configPath, dataDir = false, "", ""
	cfg = internal.DefaultConfig()
	replaySession, replayNoCache, replayBlocks = "", false, false
	limit, showNoCache = 0, false
	format, outputDir, exportAll, clearCache = "jsonl", "./exports", false, false
	ingestJobs, ingestReset = 4, false
	watchURL, watchSession, watchPersist, watchLast = "", "", false, 20
	listJSON = false
	initShowEvents, initClear = false, false
}

// runCommand executes the root command with args against dataDir
func runCommand(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(append([]string{"--data-dir", dir}, args...))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(&bytes.Buffer{})
	err := rootCmd.Execute()
	return stdout.String(), err
}
