package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/iksnae/agent-stream/internal"
	"github.com/iksnae/agent-stream/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayCommand(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	log := testutil.CreateEventLogFixture(t, dir, "sample.jsonl")

	out, err := runCommand(t, dir, "replay", log)
	require.NoError(t, err)

	var msgs []internal.Message
	require.NoError(t, json.Unmarshal([]byte(out), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, internal.RoleUser, msgs[0].Role)
	assert.Equal(t, "It declares package main.", msgs[1].Text())
	assert.Equal(t, "test-model", msgs[1].Metadata.Model)
	assert.JSONEq(t, `{"inputTokens":12,"outputTokens":7}`, string(msgs[1].Metadata.Usage))

	// The reduction is cached under the log's checksum.
	cache := internal.NewSnapshotCache(filepath.Join(dir, "cache"))
	sum, err := internal.ChecksumFile(log)
	require.NoError(t, err)
	cached, ok := cache.Lookup(log, sum)
	require.True(t, ok)
	assert.Equal(t, "sample", cached.ID)

	again, err := runCommand(t, dir, "replay", log)
	require.NoError(t, err)
	assert.JSONEq(t, out, again)
}

func TestReplayCommand_Blocks(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	log := testutil.CreateEventLogFixture(t, dir, "sample.jsonl")

	out, err := runCommand(t, dir, "replay", "--no-cache", "--blocks", log)
	require.NoError(t, err)

	var blocks []internal.DisplayedBlock
	require.NoError(t, json.Unmarshal([]byte(out), &blocks))
	types := make([]internal.BlockType, len(blocks))
	for i, b := range blocks {
		types[i] = b.Type
	}
	assert.Equal(t, []internal.BlockType{
		internal.BlockUser, internal.BlockReasoning, internal.BlockTool, internal.BlockAssistant,
	}, types)
	assert.NoDirExists(t, filepath.Join(dir, "cache"))
}

func TestReplayCommand_MissingLog(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	_, err := runCommand(t, dir, "replay", filepath.Join(dir, "missing.jsonl"))

	var se *internal.StorageError
	assert.ErrorAs(t, err, &se)
}
