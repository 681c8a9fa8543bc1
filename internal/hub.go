package internal

import (
	"sync"

	"github.com/google/uuid"
)

// Hub is a keyed subscriber list. Publish delivers synchronously, in
// subscription order, to every subscriber of the key. Callbacks run under the
// hub lock and must not call back into the same Hub.
type Hub[E any] struct {
	mu   sync.Mutex
	subs map[string][]subscriber[E]
}

type subscriber[E any] struct {
	id string
	fn func(E)
}

// NewHub creates an empty Hub
func NewHub[E any]() *Hub[E] {
	return &Hub[E]{subs: make(map[string][]subscriber[E])}
}

// Subscribe registers fn for key. catchUp, if non-nil, runs synchronously
// before Subscribe returns and receives the same fn, so a late subscriber is
// brought up to date before it sees live events. The returned func
// unsubscribes.
func (h *Hub[E]) Subscribe(key string, fn func(E), catchUp func(emit func(E))) func() {
	id := uuid.NewString()

	h.mu.Lock()
	if catchUp != nil {
		// Held across catch-up so no live publish interleaves with replay.
		catchUp(fn)
	}
	h.subs[key] = append(h.subs[key], subscriber[E]{id: id, fn: fn})
	h.mu.Unlock()

	return func() { h.unsubscribe(key, id) }
}

func (h *Hub[E]) unsubscribe(key, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[key]
	for i, s := range list {
		if s.id == id {
			h.subs[key] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(h.subs[key]) == 0 {
		delete(h.subs, key)
	}
}

// Publish delivers e to every subscriber of key
func (h *Hub[E]) Publish(key string, e E) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs[key] {
		s.fn(e)
	}
}

// Count returns the number of subscribers for key
func (h *Hub[E]) Count(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key])
}
