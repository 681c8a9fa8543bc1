package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// LifecycleStore keeps per-key lifecycle state in memory and persists it as
// one JSON document per key. It knows nothing about the state's meaning;
// toEvents turns a state into the event sequence Replay emits.
//
// In-memory updates are synchronous. Persist writes in the background and a
// failed write never rolls memory back.
type LifecycleStore[S any, E any] struct {
	dir      string
	fileName string
	toEvents func(key string, state S) []E

	mu     sync.Mutex
	states map[string]S

	writes  sync.WaitGroup
	writeMu sync.Mutex
	issued  map[string]uint64 // guarded by mu
	written map[string]uint64 // guarded by writeMu
}

// NewLifecycleStore creates a store rooted at dir. Each key is persisted at
// dir/<key>/<fileName>.
func NewLifecycleStore[S any, E any](dir, fileName string, toEvents func(key string, state S) []E) *LifecycleStore[S, E] {
	return &LifecycleStore[S, E]{
		dir:      dir,
		fileName: fileName,
		toEvents: toEvents,
		states:   make(map[string]S),
		issued:   make(map[string]uint64),
		written:  make(map[string]uint64),
	}
}

// ValidateKey rejects keys that would resolve outside the store directory
func ValidateKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) || filepath.VolumeName(key) != "" {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// PathFor returns the persisted document path for key. Callers validate key
// with ValidateKey first.
func (l *LifecycleStore[S, E]) PathFor(key string) string {
	return filepath.Join(l.dir, key, l.fileName)
}

// SetState replaces the in-memory state for key
func (l *LifecycleStore[S, E]) SetState(key string, state S) {
	l.mu.Lock()
	l.states[key] = state
	l.mu.Unlock()
}

// GetState returns the in-memory state for key
func (l *LifecycleStore[S, E]) GetState(key string) (S, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.states[key]
	return s, ok
}

// DeleteState drops the in-memory state for key. The persisted copy stays.
func (l *LifecycleStore[S, E]) DeleteState(key string) {
	l.mu.Lock()
	delete(l.states, key)
	l.mu.Unlock()
}

// Persist writes state for key in the background. The state is encoded
// before Persist returns, so later mutations by the caller are not seen.
// Failures are logged.
func (l *LifecycleStore[S, E]) Persist(key string, state S) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		Log().Warn("failed to encode lifecycle state", zap.String("key", key), zap.Error(err))
		return
	}
	l.mu.Lock()
	l.issued[key]++
	seq := l.issued[key]
	l.mu.Unlock()

	l.writes.Add(1)
	go func() {
		defer l.writes.Done()
		l.writeMu.Lock()
		defer l.writeMu.Unlock()
		// A newer Persist for this key already landed.
		if l.written[key] > seq {
			return
		}
		l.written[key] = seq
		if err := l.write(key, data); err != nil {
			Log().Warn("failed to persist lifecycle state", zap.String("key", key), zap.Error(err))
		}
	}()
}

// Flush blocks until every pending Persist has finished
func (l *LifecycleStore[S, E]) Flush() {
	l.writes.Wait()
}

func (l *LifecycleStore[S, E]) write(key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return &PersistError{Key: key, Op: "write", Err: err}
	}
	path := l.PathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &PersistError{Key: key, Op: "write", Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), l.fileName+".*.tmp")
	if err != nil {
		return &PersistError{Key: key, Op: "write", Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return &PersistError{Key: key, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return &PersistError{Key: key, Op: "write", Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return &PersistError{Key: key, Op: "write", Err: err}
	}
	return nil
}

// ReadPersisted loads the persisted state for key. A missing or unreadable
// document reports false; read errors are logged, not returned.
func (l *LifecycleStore[S, E]) ReadPersisted(key string) (S, bool) {
	var state S
	if err := ValidateKey(key); err != nil {
		Log().Warn("refusing to read lifecycle state",
			zap.Error(&PersistError{Key: key, Op: "read", Err: err}))
		return state, false
	}
	data, err := os.ReadFile(l.PathFor(key))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			Log().Warn("failed to read lifecycle state",
				zap.Error(&PersistError{Key: key, Op: "read", Err: err}))
		}
		return state, false
	}
	if err := json.Unmarshal(data, &state); err != nil {
		Log().Warn("failed to decode lifecycle state",
			zap.Error(&PersistError{Key: key, Op: "read", Err: err}))
		return state, false
	}
	return state, true
}

// DeletePersisted removes the persisted document for key
func (l *LifecycleStore[S, E]) DeletePersisted(key string) error {
	if err := ValidateKey(key); err != nil {
		return &PersistError{Key: key, Op: "delete", Err: err}
	}
	l.Flush()
	err := os.Remove(l.PathFor(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &PersistError{Key: key, Op: "delete", Err: fmt.Errorf("remove %s: %w", l.PathFor(key), err)}
	}
	return nil
}

// Replay emits the event sequence for key, sourced from memory when present,
// otherwise from disk. It reports whether anything was emitted.
func (l *LifecycleStore[S, E]) Replay(key string, emit func(E)) bool {
	state, ok := l.GetState(key)
	if !ok {
		state, ok = l.ReadPersisted(key)
	}
	if !ok {
		return false
	}
	for _, e := range l.toEvents(key, state) {
		emit(e)
	}
	return true
}
