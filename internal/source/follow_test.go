package source

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/iksnae/agent-stream/internal"
	"github.com/iksnae/agent-stream/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ch <-chan internal.Event, n int) []internal.Event {
	t.Helper()
	var out []internal.Event
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case ev := <-ch:
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("received %d events, want %d", len(out), n)
		}
	}
	return out
}

func TestFollow(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := testutil.WriteEventLog(t, dir, "live.jsonl",
		`{"type":"stream-start","messageId":"a1","historySequence":1}`,
		`{"type":"stream-delta","messageId":"a1","delta":"Hel"}`,
	)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan internal.Event, 16)
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, path, func(ev internal.Event) error {
			events <- ev
			return nil
		})
	}()

	initial := collect(t, events, 2)
	assert.Equal(t, internal.KindStreamStart, initial[0].Kind())

	// A line split across writes is only decoded once complete.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"type":"stream-delta","messageId":"a1",`)
	require.NoError(t, err)
	_, err = f.WriteString(`"delta":"lo"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	testutil.AppendEventLog(t, path, `{"type":"stream-end","messageId":"a1"}`)

	appended := collect(t, events, 2)
	assert.Equal(t, internal.StreamDeltaEvent{MessageID: "a1", Delta: "lo"}, appended[0])
	assert.Equal(t, internal.KindStreamEnd, appended[1].Kind())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}

func TestFollow_Stop(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := testutil.CreateEventLogFixture(t, dir, "sample.jsonl")

	n := 0
	err := Follow(context.Background(), path, func(ev internal.Event) error {
		n++
		if ev.Kind() == internal.KindCaughtUp {
			return ErrStop
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, len(testutil.SampleConversation), n)
}

func TestFollow_MissingFile(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	err := Follow(context.Background(), dir+"/missing.jsonl", func(internal.Event) error { return nil })

	var se *internal.StorageError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
