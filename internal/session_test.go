package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_MessagesAreCopies(t *testing.T) {
	s := CreateTestSession("s1", MessageEvent{Message: CreateTestUserMessage("u1", 1, "hi")})

	msgs := s.Messages()
	msgs[0].Parts[0].Text = "mutated"
	blocks := s.DisplayedBlocks()
	blocks[0].Content = "mutated"

	m := mustMessage(t, s, "u1")
	assert.Equal(t, "hi", m.Text())
	assert.Equal(t, "hi", s.DisplayedBlocks()[0].Content)
}

func TestSession_Load(t *testing.T) {
	s := NewSession("s1")
	s.Load([]Message{
		CreateTestUserMessage("u1", 1, "q"),
		{ID: "a1", Role: RoleAssistant, Parts: []Part{TextPart("cut")}, Metadata: Metadata{HistorySequence: 2, Partial: true}},
	})

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[1].Metadata.Partial)
	assert.Empty(t, s.ActiveStreams())
	assert.False(t, s.CaughtUp())
}

func TestSession_Reset(t *testing.T) {
	events := append(CreateTestStream("a1", 1, "x"), StreamStartEvent{MessageID: "a2", HistorySequence: 2}, CaughtUpEvent{})
	s := CreateTestSession("s1", events...)
	require.True(t, s.CaughtUp())
	v := s.Version()

	s.Reset()
	assert.Empty(t, s.Messages())
	assert.Empty(t, s.ActiveStreams())
	assert.False(t, s.CaughtUp())
	assert.NotEqual(t, v, s.Version())
}

func TestSession_DrainSkipsActiveStreams(t *testing.T) {
	s := newTestSession("s1")
	handleAll(s,
		MessageEvent{Message: CreateTestUserMessage("u1", 1, "q")},
		StreamStartEvent{MessageID: "a1", HistorySequence: 2},
		StreamDeltaEvent{MessageID: "a1", Delta: "x"},
	)
	committed, removed := s.drain()
	require.Len(t, committed, 1)
	assert.Equal(t, "u1", committed[0].ID)
	assert.Empty(t, removed)

	s.Handle(StreamAbortEvent{MessageID: "a1"})
	committed, _ = s.drain()
	require.Len(t, committed, 1)
	assert.Equal(t, "a1", committed[0].ID)
	assert.True(t, committed[0].Metadata.Partial)
}

func TestSession_Transcript(t *testing.T) {
	s := CreateTestSession("s1",
		MessageEvent{Message: CreateTestUserMessage("u1", 1, "q")},
		StreamStartEvent{MessageID: "a1", HistorySequence: 2, Timestamp: 1700000009000},
		StreamErrorEvent{MessageID: "a1", Error: "boom"},
	)
	tr := s.Transcript()
	assert.Equal(t, "s1", tr.ID)
	assert.Equal(t, 2, tr.Metadata.MessageCount)
	assert.Equal(t, 1, tr.Metadata.PartialCount)
	assert.Equal(t, "2023-11-14T22:13:21Z", tr.Metadata.CreatedAt)
	assert.Equal(t, "2023-11-14T22:13:29Z", tr.Metadata.UpdatedAt)
	assert.Len(t, tr.Blocks, 2)
}

func TestNewTranscript_NoTimestamps(t *testing.T) {
	tr := NewTranscript("s1", []Message{{ID: "m", Role: RoleUser}}, nil)
	assert.Equal(t, 1, tr.Metadata.MessageCount)
	assert.Empty(t, tr.Metadata.CreatedAt)
	assert.Empty(t, tr.Metadata.UpdatedAt)
}
