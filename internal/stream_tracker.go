package internal

import "time"

// StreamTracker records which messages are currently being produced.
// Lookups are always by message id.
type StreamTracker struct {
	streams map[string]*ActiveStream
	version uint64
}

// NewStreamTracker creates an empty StreamTracker
func NewStreamTracker() *StreamTracker {
	return &StreamTracker{streams: make(map[string]*ActiveStream)}
}

// Start marks id as streaming. It reports whether an entry already existed.
func (t *StreamTracker) Start(id string, startTime time.Time) bool {
	_, existed := t.streams[id]
	t.streams[id] = &ActiveStream{StartTime: startTime}
	t.version++
	return existed
}

// Get returns the active stream for id
func (t *StreamTracker) Get(id string) (*ActiveStream, bool) {
	a, ok := t.streams[id]
	return a, ok
}

// Has reports whether id is streaming
func (t *StreamTracker) Has(id string) bool {
	_, ok := t.streams[id]
	return ok
}

// End clears the entry for id, reporting whether there was one
func (t *StreamTracker) End(id string) bool {
	if _, ok := t.streams[id]; !ok {
		return false
	}
	delete(t.streams, id)
	t.version++
	return true
}

// IDs returns the ids of all active streams
func (t *StreamTracker) IDs() []string {
	ids := make([]string, 0, len(t.streams))
	for id := range t.streams {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of active streams
func (t *StreamTracker) Len() int {
	return len(t.streams)
}

// Version increases on every start or end
func (t *StreamTracker) Version() uint64 {
	return t.version
}

// Clear drops all entries
func (t *StreamTracker) Clear() {
	if len(t.streams) == 0 {
		return
	}
	t.streams = make(map[string]*ActiveStream)
	t.version++
}
