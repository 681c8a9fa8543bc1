package internal

// CreateTestUserMessage builds a committed user message
func CreateTestUserMessage(id string, seq int64, text string) Message {
	return Message{
		ID:    id,
		Role:  RoleUser,
		Parts: []Part{TextPart(text)},
		Metadata: Metadata{
			HistorySequence: seq,
			Timestamp:       1700000000000 + seq*1000,
		},
	}
}

// CreateTestStream returns the events of a complete assistant stream whose
// text arrives as the given deltas
func CreateTestStream(id string, seq int64, deltas ...string) []Event {
	base := 1700000000000 + seq*1000
	events := []Event{StreamStartEvent{MessageID: id, Model: "test-model", HistorySequence: seq, Timestamp: base}}
	for i, d := range deltas {
		events = append(events, StreamDeltaEvent{MessageID: id, Delta: d, Timestamp: base + int64(i+1)})
	}
	return append(events, StreamEndEvent{MessageID: id})
}

// CreateTestSession returns a session that has reduced events
func CreateTestSession(id string, events ...Event) *Session {
	s := NewSession(id)
	for _, ev := range events {
		s.Handle(ev)
	}
	return s
}
