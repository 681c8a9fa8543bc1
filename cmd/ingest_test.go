package cmd

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/iksnae/agent-stream/internal"
	"github.com/iksnae/agent-stream/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestCommand(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	logs := testutil.CreateEventLogTree(t, filepath.Join(dir, "logs"), "alpha", "beta", "gamma")

	out, err := runCommand(t, dir, append([]string{"ingest", "--jobs", "2"}, logs...)...)
	require.NoError(t, err)
	for _, id := range []string{"alpha", "beta", "gamma"} {
		assert.Contains(t, out, id)
	}

	store, err := internal.OpenHistoryStore(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer store.Close()

	msgs, err := store.Load(context.Background(), "beta")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "It declares package main.", msgs[1].Text())
}

// Interrupted messages survive into history and render after a restart.
func TestIngestCommand_InterruptedSurvives(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	log := testutil.WriteEventLog(t, dir, "broken.jsonl", testutil.InterruptedConversation...)

	_, err := runCommand(t, dir, "ingest", log)
	require.NoError(t, err)

	out, err := runCommand(t, dir, "list", "--json")
	require.NoError(t, err)
	var sessions []internal.SessionSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "broken", sessions[0].ID)
	assert.Equal(t, 2, sessions[0].MessageCount)
	assert.Equal(t, 1, sessions[0].PartialCount)

	out, err = runCommand(t, dir, "show", "broken")
	require.NoError(t, err)
	assert.Contains(t, out, "The summary is")
	assert.Contains(t, out, "rate limited")
}

func TestIngestCommand_Reset(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	full := testutil.WriteEventLog(t, filepath.Join(dir, "a"), "s.jsonl", testutil.SampleConversation...)
	short := testutil.WriteEventLog(t, filepath.Join(dir, "b"), "s.jsonl", testutil.SampleConversation[0])

	_, err := runCommand(t, dir, "ingest", full)
	require.NoError(t, err)
	_, err = runCommand(t, dir, "ingest", "--reset", short)
	require.NoError(t, err)

	store, err := internal.OpenHistoryStore(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer store.Close()
	msgs, err := store.Load(context.Background(), "s")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestIngestCommand_SessionCollision(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	first := testutil.WriteEventLog(t, filepath.Join(dir, "a"), "s.jsonl", testutil.SampleConversation...)
	second := testutil.WriteEventLog(t, filepath.Join(dir, "b"), "s.jsonl", testutil.InterruptedConversation...)

	_, err := runCommand(t, dir, "ingest", first, second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `session "s"`)

	store, err := internal.OpenHistoryStore(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer store.Close()
	msgs, err := store.Load(context.Background(), "s")
	require.NoError(t, err)
	assert.Empty(t, msgs, "nothing is ingested when ids collide")
}

func TestIngestCommand_Errors(t *testing.T) {
	dir := testutil.CreateTempDir(t)

	_, err := runCommand(t, dir, "ingest", "--jobs", "0", "x.jsonl")
	assert.Error(t, err)

	_, err = runCommand(t, dir, "ingest", filepath.Join(dir, "missing.jsonl"))
	var se *internal.StorageError
	assert.ErrorAs(t, err, &se)
}
