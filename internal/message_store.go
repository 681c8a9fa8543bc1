package internal

import (
	"sort"

	"go.uber.org/zap"
)

// MessageStore is the authoritative id -> Message map for one session.
// It is not safe for concurrent use; a session owns exactly one store and
// mutates it from a single goroutine.
type MessageStore struct {
	messages map[string]*Message
	version  uint64

	// changed and removed accumulate ids since the last Drain
	changed map[string]struct{}
	removed map[string]struct{}
}

// NewMessageStore creates an empty MessageStore
func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[string]*Message),
		changed:  make(map[string]struct{}),
		removed:  make(map[string]struct{}),
	}
}

// Version increases on every mutation
func (s *MessageStore) Version() uint64 {
	return s.version
}

// Len returns the number of stored messages
func (s *MessageStore) Len() int {
	return len(s.messages)
}

// Get returns the stored message. Callers must not mutate it; use Update.
func (s *MessageStore) Get(id string) (*Message, bool) {
	m, ok := s.messages[id]
	return m, ok
}

// Put stores msg, replacing any message with the same id
func (s *MessageStore) Put(msg *Message) {
	s.messages[msg.ID] = msg
	s.markChanged(msg.ID)
}

// Update applies fn to the stored message in place. It reports false when
// no message has that id.
func (s *MessageStore) Update(id string, fn func(*Message)) bool {
	m, ok := s.messages[id]
	if !ok {
		return false
	}
	fn(m)
	s.markChanged(id)
	return true
}

// Delete removes a message by id
func (s *MessageStore) Delete(id string) bool {
	if _, ok := s.messages[id]; !ok {
		return false
	}
	delete(s.messages, id)
	delete(s.changed, id)
	s.removed[id] = struct{}{}
	s.version++
	return true
}

// Truncate deletes every message whose historySequence is >= fromSequence,
// regardless of role, and returns the deleted ids in sequence order.
func (s *MessageStore) Truncate(fromSequence int64) []string {
	var doomed []*Message
	for _, m := range s.messages {
		if m.Metadata.HistorySequence >= fromSequence {
			doomed = append(doomed, m)
		}
	}
	sortBySequence(doomed)

	ids := make([]string, 0, len(doomed))
	for _, m := range doomed {
		s.Delete(m.ID)
		ids = append(ids, m.ID)
	}
	return ids
}

// Reconcile implements edit semantics: truncate the suffix starting at the
// incoming message's sequence, then store it. It returns the truncated ids.
func (s *MessageStore) Reconcile(msg *Message) []string {
	ids := s.Truncate(msg.Metadata.HistorySequence)
	if len(ids) > 0 {
		Log().Debug("truncated history for incoming message",
			zap.String("messageId", msg.ID),
			zap.Int64("historySequence", msg.Metadata.HistorySequence),
			zap.Strings("deleted", ids))
	}
	s.Put(msg)
	return ids
}

// DeleteSequences removes the messages carrying any of the given sequences
func (s *MessageStore) DeleteSequences(seqs []int64) []string {
	want := make(map[int64]struct{}, len(seqs))
	for _, q := range seqs {
		want[q] = struct{}{}
	}
	var ids []string
	for id, m := range s.messages {
		if _, ok := want[m.Metadata.HistorySequence]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		s.Delete(id)
	}
	return ids
}

// Messages returns the stored messages ordered by historySequence
func (s *MessageStore) Messages() []*Message {
	out := make([]*Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, m)
	}
	sortBySequence(out)
	return out
}

// Clear removes every message
func (s *MessageStore) Clear() {
	for id := range s.messages {
		s.removed[id] = struct{}{}
	}
	s.messages = make(map[string]*Message)
	s.changed = make(map[string]struct{})
	s.version++
}

// Drain returns and resets the ids changed and removed since the last call
func (s *MessageStore) Drain() (changed, removed []string) {
	for id := range s.changed {
		changed = append(changed, id)
	}
	for id := range s.removed {
		removed = append(removed, id)
	}
	sort.Strings(changed)
	sort.Strings(removed)
	s.changed = make(map[string]struct{})
	s.removed = make(map[string]struct{})
	return changed, removed
}

func (s *MessageStore) markChanged(id string) {
	s.changed[id] = struct{}{}
	delete(s.removed, id)
	s.version++
}

// sortBySequence orders by historySequence, breaking ties by id so output is
// deterministic even if upstream reuses a sequence.
func sortBySequence(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i].Metadata.HistorySequence, msgs[j].Metadata.HistorySequence
		if a != b {
			return a < b
		}
		return msgs[i].ID < msgs[j].ID
	})
}
