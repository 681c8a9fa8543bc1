package internal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionUpdate is published to subscribers after a session changes
type SessionUpdate struct {
	SessionID string
	Version   uint64
	Blocks    []DisplayedBlock
	Streaming []string
}

// EngineOptions configures an Engine
type EngineOptions struct {
	// History, when set, hydrates sessions on first use and receives every
	// committed message and deletion.
	History   *HistoryStore
	QueueSize int
	Clock     func() time.Time
}

// Engine runs one single-threaded worker per session. Sessions share nothing
// and progress independently; events for one session are reduced strictly in
// Dispatch order.
type Engine struct {
	opts EngineOptions
	hub  *Hub[SessionUpdate]

	mu      sync.Mutex
	workers map[string]*sessionWorker
	closed  bool
	wg      sync.WaitGroup
	stopped chan struct{}
}

type sessionWorker struct {
	session *Session
	ops     chan func(*Session)
	quit    chan struct{}
	done    chan struct{}

	// mu is read-held by senders so stop never closes quit while a send is
	// in flight; every accepted op runs before done closes.
	mu      sync.RWMutex
	stopped bool
}

// errWorkerStopped is returned by send when the worker has begun draining
var errWorkerStopped = errors.New("session worker stopped")

func (w *sessionWorker) send(ctx context.Context, op func(*Session)) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return errWorkerStopped
	}
	select {
	case w.ops <- op:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop refuses further ops. The worker drains what was accepted, then
// closes done.
func (w *sessionWorker) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.quit)
}

func (w *sessionWorker) isStopped() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopped
}

// NewEngine creates an Engine
func NewEngine(opts EngineOptions) *Engine {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &Engine{
		opts:    opts,
		hub:     NewHub[SessionUpdate](),
		workers: make(map[string]*sessionWorker),
		stopped: make(chan struct{}),
	}
}

// worker returns the live worker for sessionID, starting one if needed. A
// worker still draining after Forget is waited out first, so its queued
// events are committed before the replacement hydrates.
func (e *Engine) worker(sessionID string) (*sessionWorker, error) {
	for {
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			return nil, ErrEngineClosed
		}
		w, ok := e.workers[sessionID]
		if ok && !w.isStopped() {
			e.mu.Unlock()
			return w, nil
		}
		if ok {
			e.mu.Unlock()
			<-w.done
			e.retire(sessionID, w)
			continue
		}

		s := NewSession(sessionID)
		if e.opts.Clock != nil {
			s.SetClock(e.opts.Clock)
		}
		w = &sessionWorker{
			session: s,
			ops:     make(chan func(*Session), e.opts.QueueSize),
			quit:    make(chan struct{}),
			done:    make(chan struct{}),
		}
		if e.opts.History != nil {
			w.ops <- e.hydrate
		}
		e.workers[sessionID] = w
		e.wg.Add(1)
		go e.run(w)
		e.mu.Unlock()
		return w, nil
	}
}

// retire drops w from the worker map if it is still the registered one
func (e *Engine) retire(sessionID string, w *sessionWorker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.workers[sessionID] == w {
		delete(e.workers, sessionID)
	}
}

func (e *Engine) run(w *sessionWorker) {
	defer e.wg.Done()
	defer close(w.done)
	for {
		select {
		case op := <-w.ops:
			op(w.session)
		case <-w.quit:
			for {
				select {
				case op := <-w.ops:
					op(w.session)
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) hydrate(s *Session) {
	msgs, err := e.opts.History.Load(context.Background(), s.ID)
	if err != nil {
		Log().Warn("failed to load session history", zap.String("sessionId", s.ID), zap.Error(err))
		return
	}
	s.Load(msgs)
	// Hydrated rows are already durable.
	s.drain()
	Log().Debug("hydrated session", zap.String("sessionId", s.ID), zap.Int("messages", len(msgs)))
}

func (e *Engine) submit(ctx context.Context, sessionID string, op func(*Session)) error {
	for {
		w, err := e.worker(sessionID)
		if err != nil {
			return err
		}
		err = w.send(ctx, op)
		if errors.Is(err, errWorkerStopped) {
			// Forgotten or closed between lookup and send; the next lookup
			// waits for the drain or reports the engine closed.
			continue
		}
		return err
	}
}

// call runs fn on the session's worker and waits for it to finish
func (e *Engine) call(ctx context.Context, sessionID string, fn func(*Session)) error {
	done := make(chan struct{})
	if err := e.submit(ctx, sessionID, func(s *Session) {
		defer close(done)
		fn(s)
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrEngineClosed
		}
	}
}

// Dispatch queues ev for sessionID. It returns once the event is queued,
// not once it is reduced.
func (e *Engine) Dispatch(ctx context.Context, sessionID string, ev Event) error {
	return e.submit(ctx, sessionID, func(s *Session) {
		before := s.Version()
		s.Handle(ev)
		e.commit(s)
		if s.Version() != before {
			e.hub.Publish(s.ID, snapshotUpdate(s))
		}
	})
}

func (e *Engine) commit(s *Session) {
	if e.opts.History == nil {
		s.drain()
		return
	}
	committed, removed := s.drain()
	ctx := context.Background()
	if len(removed) > 0 {
		if err := e.opts.History.Delete(ctx, s.ID, removed); err != nil {
			Log().Warn("failed to delete history", zap.String("sessionId", s.ID), zap.Error(err))
		}
	}
	if len(committed) > 0 {
		if err := e.opts.History.Save(ctx, s.ID, committed); err != nil {
			Log().Warn("failed to save history", zap.String("sessionId", s.ID), zap.Error(err))
		}
	}
}

func snapshotUpdate(s *Session) SessionUpdate {
	streaming := s.ActiveStreams()
	sort.Strings(streaming)
	return SessionUpdate{
		SessionID: s.ID,
		Version:   s.Version(),
		Blocks:    s.DisplayedBlocks(),
		Streaming: streaming,
	}
}

// Messages returns the session's messages ordered by historySequence
func (e *Engine) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	var out []Message
	err := e.call(ctx, sessionID, func(s *Session) { out = s.Messages() })
	return out, err
}

// DisplayedBlocks returns the session's current projection
func (e *Engine) DisplayedBlocks(ctx context.Context, sessionID string) ([]DisplayedBlock, error) {
	var out []DisplayedBlock
	err := e.call(ctx, sessionID, func(s *Session) { out = s.DisplayedBlocks() })
	return out, err
}

// Transcript returns an exportable snapshot of the session
func (e *Engine) Transcript(ctx context.Context, sessionID string) (*Transcript, error) {
	var out *Transcript
	err := e.call(ctx, sessionID, func(s *Session) { out = s.Transcript() })
	return out, err
}

// Subscribe delivers the current state to fn before returning, then every
// later change. fn runs on the session's worker goroutine.
func (e *Engine) Subscribe(ctx context.Context, sessionID string, fn func(SessionUpdate)) (func(), error) {
	var cancel func()
	err := e.call(ctx, sessionID, func(s *Session) {
		cancel = e.hub.Subscribe(s.ID, fn, func(emit func(SessionUpdate)) {
			emit(snapshotUpdate(s))
		})
	})
	if err != nil {
		return nil, err
	}
	return cancel, nil
}

// Reset clears a session's messages, in memory and in history
func (e *Engine) Reset(ctx context.Context, sessionID string) error {
	return e.call(ctx, sessionID, func(s *Session) {
		before := s.Version()
		s.Reset()
		e.commit(s)
		if s.Version() != before {
			e.hub.Publish(s.ID, snapshotUpdate(s))
		}
	})
}

// Sessions returns the ids of sessions with a live worker
func (e *Engine) Sessions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.workers))
	for id, w := range e.workers {
		if !w.isStopped() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Forget stops a session's worker, waits for it to reduce and commit every
// queued event, and drops it from memory. History is kept, so the next use
// of sessionID hydrates it again. It must not be called from a subscriber
// callback of the same session.
func (e *Engine) Forget(sessionID string) error {
	e.mu.Lock()
	w, ok := e.workers[sessionID]
	e.mu.Unlock()
	if !ok || w.isStopped() {
		return ErrUnknownSession
	}
	w.stop()
	<-w.done
	e.retire(sessionID, w)
	return nil
}

// Close stops every worker after it drains its queue
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	workers := make([]*sessionWorker, 0, len(e.workers))
	for _, w := range e.workers {
		workers = append(workers, w)
	}
	e.mu.Unlock()

	for _, w := range workers {
		w.stop()
	}
	e.wg.Wait()
	close(e.stopped)
	return nil
}
