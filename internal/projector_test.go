package internal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assistantMessage() *Message {
	return &Message{
		ID:   "a1",
		Role: RoleAssistant,
		Parts: []Part{
			ReasoningPart("Let me "),
			ReasoningPart("look."),
			TextPart("Checking "),
			TextPart("now."),
			{Type: PartToolCall, ToolCallID: "c1", ToolName: "ls", State: ToolStatePending, Input: json.RawMessage(`{}`)},
			TextPart(""),
			TextPart("Done."),
		},
		Metadata: Metadata{HistorySequence: 2, Timestamp: 1700000002000, Model: "m"},
	}
}

func blockIDs(blocks []DisplayedBlock) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.ID
	}
	return out
}

func TestProject_MergesRuns(t *testing.T) {
	user := CreateTestUserMessage("u1", 1, "hi")
	blocks := Project([]*Message{&user, assistantMessage()}, nil)

	require.Equal(t, []string{"u1", "a1-0", "a1-2", "a1-4", "a1-5"}, blockIDs(blocks))

	assert.Equal(t, BlockUser, blocks[0].Type)
	assert.Equal(t, "hi", blocks[0].Content)
	assert.True(t, blocks[0].IsLastPartOfMessage)

	assert.Equal(t, BlockReasoning, blocks[1].Type)
	assert.Equal(t, "Let me look.", blocks[1].Content)
	assert.Equal(t, BlockAssistant, blocks[2].Type)
	assert.Equal(t, "Checking now.", blocks[2].Content)

	assert.Equal(t, BlockTool, blocks[3].Type)
	assert.Equal(t, "ls", blocks[3].ToolName)
	assert.Equal(t, ToolStatePending, blocks[3].ToolState)

	// The empty text part joins the following run.
	assert.Equal(t, "Done.", blocks[4].Content)
	assert.Equal(t, "m", blocks[4].Model)

	for _, b := range blocks[1:4] {
		assert.False(t, b.IsLastPartOfMessage, b.ID)
	}
	assert.True(t, blocks[4].IsLastPartOfMessage)
}

func TestProject_SkipsEmptyRuns(t *testing.T) {
	m := &Message{ID: "a1", Role: RoleAssistant, Parts: []Part{TextPart(""), ReasoningPart("r")}}
	blocks := Project([]*Message{m}, nil)
	require.Len(t, blocks, 1)
	assert.Equal(t, "a1-1", blocks[0].ID)
	assert.Equal(t, BlockReasoning, blocks[0].Type)

	empty := &Message{ID: "a2", Role: RoleAssistant, Parts: []Part{}}
	assert.Empty(t, Project([]*Message{empty}, nil))
}

func TestProject_StreamingOnlyOnLastBlock(t *testing.T) {
	active := func(id string) bool { return id == "a1" }
	blocks := Project([]*Message{assistantMessage()}, active)

	for i, b := range blocks {
		assert.Equal(t, i == len(blocks)-1, b.IsStreaming, b.ID)
	}
}

func TestProject_ErrorBlock(t *testing.T) {
	m := assistantMessage()
	m.Metadata.Partial = true
	m.Metadata.Error = "overloaded"
	m.Metadata.ErrorType = "server"

	blocks := Project([]*Message{m}, nil)
	last := blocks[len(blocks)-1]
	assert.Equal(t, "a1-error", last.ID)
	assert.Equal(t, BlockError, last.Type)
	assert.Equal(t, "overloaded", last.Error)
	assert.Equal(t, "server", last.ErrorType)
	assert.False(t, last.IsLastPartOfMessage)

	content := blocks[len(blocks)-2]
	assert.True(t, content.IsLastPartOfMessage)
	for _, b := range blocks {
		assert.True(t, b.IsPartial, b.ID)
	}
}

func TestProject_ErrorOnEmptyMessage(t *testing.T) {
	m := &Message{ID: "a1", Role: RoleAssistant, Parts: []Part{}, Metadata: Metadata{Error: "boom"}}
	blocks := Project([]*Message{m}, nil)
	require.Len(t, blocks, 1)
	assert.Equal(t, BlockError, blocks[0].Type)
}

func TestProjector_Memoizes(t *testing.T) {
	store := NewMessageStore()
	tracker := NewStreamTracker()
	p := NewProjector(store, tracker)

	user := CreateTestUserMessage("u1", 1, "hi")
	store.Put(&user)

	first := p.Blocks()
	p.Blocks()
	assert.Equal(t, 1, p.recomputeCnt)
	assert.Len(t, first, 1)

	store.Put(assistantMessage())
	assert.Len(t, p.Blocks(), 5)
	assert.Equal(t, 2, p.recomputeCnt)

	tracker.Start("a1", testNow)
	blocks := p.Blocks()
	assert.Equal(t, 3, p.recomputeCnt)
	assert.True(t, blocks[len(blocks)-1].IsStreaming)

	p.Blocks()
	assert.Equal(t, 3, p.recomputeCnt)

	p.Invalidate()
	p.Blocks()
	assert.Equal(t, 4, p.recomputeCnt)
}
