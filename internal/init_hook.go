package internal

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// InitStatus is the state of a workspace init hook run
type InitStatus string

const (
	InitRunning InitStatus = "running"
	InitSuccess InitStatus = "success"
	InitError   InitStatus = "error"
)

// initStatusFile is the per-workspace document name
const initStatusFile = "init-status.json"

// InitLine is one captured line of hook output
type InitLine struct {
	Line      string `json:"line"`
	IsError   bool   `json:"isError"`
	Timestamp int64  `json:"timestamp"`
}

// Display renders the line the way UIs show it; stderr lines are prefixed.
func (l InitLine) Display() string {
	if l.IsError {
		return "ERROR: " + l.Line
	}
	return l.Line
}

// InitState is the permanent record of a workspace init hook run
type InitState struct {
	Status    InitStatus `json:"status"`
	HookPath  string     `json:"hookPath"`
	StartTime int64      `json:"startTime"`
	EndTime   *int64     `json:"endTime"`
	ExitCode  *int       `json:"exitCode"`
	Lines     []InitLine `json:"lines"`
}

// DisplayLines returns every line rendered with Display
func (s InitState) DisplayLines() []string {
	out := make([]string, len(s.Lines))
	for i, l := range s.Lines {
		out[i] = l.Display()
	}
	return out
}

// Terminal reports whether the run has finished
func (s InitState) Terminal() bool {
	return s.Status == InitSuccess || s.Status == InitError
}

// InitEvent is the closed set of init hook lifecycle events
type InitEvent interface {
	initEvent()
}

// InitStartEvent opens a hook run
type InitStartEvent struct {
	WorkspaceID string `json:"workspaceId"`
	HookPath    string `json:"hookPath"`
	Timestamp   int64  `json:"timestamp"`
}

// InitOutputEvent carries one line of hook output
type InitOutputEvent struct {
	WorkspaceID string `json:"workspaceId"`
	Line        string `json:"line"`
	IsError     bool   `json:"isError"`
	Timestamp   int64  `json:"timestamp"`
}

// InitEndEvent closes a hook run
type InitEndEvent struct {
	WorkspaceID string `json:"workspaceId"`
	ExitCode    int    `json:"exitCode"`
	Timestamp   int64  `json:"timestamp"`
}

func (InitStartEvent) initEvent()  {}
func (InitOutputEvent) initEvent() {}
func (InitEndEvent) initEvent()    {}

// initEvents regenerates the framing of a run from its state. Memory and
// disk replays both go through here, so they emit identical sequences.
func initEvents(workspaceID string, s InitState) []InitEvent {
	events := make([]InitEvent, 0, len(s.Lines)+2)
	events = append(events, InitStartEvent{WorkspaceID: workspaceID, HookPath: s.HookPath, Timestamp: s.StartTime})
	for _, l := range s.Lines {
		events = append(events, InitOutputEvent{WorkspaceID: workspaceID, Line: l.Line, IsError: l.IsError, Timestamp: l.Timestamp})
	}
	if s.Terminal() && s.ExitCode != nil {
		end := InitEndEvent{WorkspaceID: workspaceID, ExitCode: *s.ExitCode}
		if s.EndTime != nil {
			end.Timestamp = *s.EndTime
		}
		events = append(events, end)
	}
	return events
}

// InitStateManager tracks workspace init hook runs on top of a LifecycleStore
// and fans live events out to subscribers.
type InitStateManager struct {
	mu    sync.Mutex
	store *LifecycleStore[InitState, InitEvent]
	hub   *Hub[InitEvent]
	now   func() time.Time
}

// NewInitStateManager persists init records under dir
func NewInitStateManager(dir string) *InitStateManager {
	return &InitStateManager{
		store: NewLifecycleStore[InitState, InitEvent](dir, initStatusFile, initEvents),
		hub:   NewHub[InitEvent](),
		now:   time.Now,
	}
}

// StartInit begins a run for workspaceID, replacing any previous record.
// Workspace ids that are not a single path element are rejected.
func (m *InitStateManager) StartInit(workspaceID, hookPath string) error {
	if err := ValidateKey(workspaceID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := m.now().UnixMilli()
	state := InitState{
		Status:    InitRunning,
		HookPath:  hookPath,
		StartTime: ts,
		Lines:     []InitLine{},
	}
	m.store.SetState(workspaceID, state)
	m.store.Persist(workspaceID, state)
	m.hub.Publish(workspaceID, InitStartEvent{WorkspaceID: workspaceID, HookPath: hookPath, Timestamp: ts})
	return nil
}

// AppendOutput records one line of output for a running hook
func (m *InitStateManager) AppendOutput(workspaceID, line string, isError bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.store.GetState(workspaceID)
	if !ok || state.Terminal() {
		Log().Warn("init output outside a running hook dropped",
			zap.String("workspaceId", workspaceID),
			zap.Bool("known", ok))
		return
	}
	ts := m.now().UnixMilli()
	lines := make([]InitLine, len(state.Lines), len(state.Lines)+1)
	copy(lines, state.Lines)
	state.Lines = append(lines, InitLine{Line: line, IsError: isError, Timestamp: ts})
	m.store.SetState(workspaceID, state)
	m.hub.Publish(workspaceID, InitOutputEvent{WorkspaceID: workspaceID, Line: line, IsError: isError, Timestamp: ts})
}

// EndInit finishes a running hook. A zero exit code is success.
func (m *InitStateManager) EndInit(workspaceID string, exitCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.store.GetState(workspaceID)
	if !ok || state.Terminal() {
		Log().Warn("init end outside a running hook dropped",
			zap.String("workspaceId", workspaceID),
			zap.Int("exitCode", exitCode))
		return
	}
	ts := m.now().UnixMilli()
	code := exitCode
	state.EndTime = &ts
	state.ExitCode = &code
	state.Status = InitSuccess
	if exitCode != 0 {
		state.Status = InitError
	}
	m.store.SetState(workspaceID, state)
	m.store.Persist(workspaceID, state)
	m.hub.Publish(workspaceID, InitEndEvent{WorkspaceID: workspaceID, ExitCode: exitCode, Timestamp: ts})
}

// GetInitState returns the in-memory record for workspaceID
func (m *InitStateManager) GetInitState(workspaceID string) (InitState, bool) {
	return m.store.GetState(workspaceID)
}

// ReadInitStatus returns the persisted record for workspaceID, waiting for
// pending writes first
func (m *InitStateManager) ReadInitStatus(workspaceID string) (InitState, bool) {
	m.store.Flush()
	return m.store.ReadPersisted(workspaceID)
}

// ReplayInit emits the full event sequence for workspaceID
func (m *InitStateManager) ReplayInit(workspaceID string, emit func(InitEvent)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Replay(workspaceID, emit)
}

// Subscribe replays known state to fn synchronously, then delivers live
// events until the returned func is called
func (m *InitStateManager) Subscribe(workspaceID string, fn func(InitEvent)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hub.Subscribe(workspaceID, fn, func(emit func(InitEvent)) {
		m.store.Replay(workspaceID, emit)
	})
}

// ClearInMemoryState drops the in-memory record; later reads fall back to disk
func (m *InitStateManager) ClearInMemoryState(workspaceID string) {
	m.store.DeleteState(workspaceID)
}

// DeleteInitStatus removes the persisted record
func (m *InitStateManager) DeleteInitStatus(workspaceID string) error {
	return m.store.DeletePersisted(workspaceID)
}

// Flush waits for pending writes
func (m *InitStateManager) Flush() {
	m.store.Flush()
}
