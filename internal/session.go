package internal

import "time"

// Session reduces one conversation. It is single-threaded: every method must
// be called from the goroutine that owns the session.
type Session struct {
	ID string

	store     *MessageStore
	tracker   *StreamTracker
	reducer   *Reducer
	projector *Projector
	caughtUp  bool
}

// NewSession creates an empty session
func NewSession(id string) *Session {
	store := NewMessageStore()
	tracker := NewStreamTracker()
	return &Session{
		ID:        id,
		store:     store,
		tracker:   tracker,
		reducer:   NewReducer(store, tracker),
		projector: NewProjector(store, tracker),
	}
}

// SetClock overrides the time source used for client-side timestamps
func (s *Session) SetClock(now func() time.Time) {
	s.reducer.now = now
}

// Handle reduces one event
func (s *Session) Handle(ev Event) {
	if _, ok := ev.(CaughtUpEvent); ok {
		s.caughtUp = true
	}
	s.reducer.Handle(ev)
}

// Load hydrates the session from stored history through the edit path
func (s *Session) Load(messages []Message) {
	for i := range messages {
		s.reducer.Handle(MessageEvent{Message: messages[i]})
	}
}

// CaughtUp reports whether the backend has finished its initial replay
func (s *Session) CaughtUp() bool {
	return s.caughtUp
}

// Messages returns copies of all messages ordered by historySequence
func (s *Session) Messages() []Message {
	msgs := s.store.Messages()
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = *m.Clone()
	}
	return out
}

// Message returns a copy of one message
func (s *Session) Message(id string) (Message, bool) {
	m, ok := s.store.Get(id)
	if !ok {
		return Message{}, false
	}
	return *m.Clone(), true
}

// DisplayedBlocks returns a copy of the current projection
func (s *Session) DisplayedBlocks() []DisplayedBlock {
	blocks := s.projector.Blocks()
	out := make([]DisplayedBlock, len(blocks))
	copy(out, blocks)
	return out
}

// IsStreaming reports whether messageID has an active stream
func (s *Session) IsStreaming(messageID string) bool {
	return s.tracker.Has(messageID)
}

// ActiveStreams returns the ids of messages still streaming
func (s *Session) ActiveStreams() []string {
	return s.tracker.IDs()
}

// Version changes whenever the visible state changes
func (s *Session) Version() uint64 {
	return s.store.Version() + s.tracker.Version()
}

// Reset clears all messages and active streams
func (s *Session) Reset() {
	s.store.Clear()
	s.tracker.Clear()
	s.caughtUp = false
}

// Transcript snapshots the session for export
func (s *Session) Transcript() *Transcript {
	return NewTranscript(s.ID, s.Messages(), s.DisplayedBlocks())
}

// drain reports which messages changed since the last call, split into
// committed (not streaming) and removed ids
func (s *Session) drain() (committed []*Message, removed []string) {
	changed, removed := s.store.Drain()
	for _, id := range changed {
		if s.tracker.Has(id) {
			continue
		}
		if m, ok := s.store.Get(id); ok {
			committed = append(committed, m.Clone())
		}
	}
	return committed, removed
}
