package export

import (
	"encoding/json"

	"github.com/iksnae/agent-stream/internal"
)

// toolTranscript has a user turn and an assistant turn with reasoning, a
// tool call and an answer
func toolTranscript() *internal.Transcript {
	events := []internal.Event{
		internal.MessageEvent{Message: internal.CreateTestUserMessage("u1", 1, "List the files")},
		internal.StreamStartEvent{MessageID: "a1", Model: "test-model", HistorySequence: 2, Timestamp: 1700000002000},
		internal.ReasoningDeltaEvent{MessageID: "a1", Delta: "Use ls."},
		internal.ToolCallStartEvent{MessageID: "a1", ToolCallID: "c1", ToolName: "ls", Args: json.RawMessage(`{"dir":"."}`)},
		internal.ToolCallEndEvent{MessageID: "a1", ToolCallID: "c1", Result: json.RawMessage(`["main.go"]`)},
		internal.StreamDeltaEvent{MessageID: "a1", Delta: "Only **main.go**."},
		internal.StreamEndEvent{MessageID: "a1"},
	}
	return internal.CreateTestSession("tools", events...).Transcript()
}

// erroredTranscript ends with a stream that failed upstream
func erroredTranscript() *internal.Transcript {
	events := []internal.Event{
		internal.StreamStartEvent{MessageID: "a1", HistorySequence: 1},
		internal.StreamDeltaEvent{MessageID: "a1", Delta: "Partial answer"},
		internal.StreamErrorEvent{MessageID: "a1", Error: "rate limited", ErrorType: "rate_limit"},
	}
	return internal.CreateTestSession("errored", events...).Transcript()
}
