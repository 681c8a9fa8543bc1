package internal

import (
	"time"

	"go.uber.org/zap"
)

// Reducer applies conversation events to a MessageStore and StreamTracker.
// Handle must be called once per event, in arrival order, from one goroutine.
// It never fails: events that reference missing state are logged and dropped.
type Reducer struct {
	store   *MessageStore
	tracker *StreamTracker
	now     func() time.Time
}

// NewReducer creates a Reducer over store and tracker
func NewReducer(store *MessageStore, tracker *StreamTracker) *Reducer {
	return &Reducer{store: store, tracker: tracker, now: time.Now}
}

// Handle dispatches ev by kind
func (r *Reducer) Handle(ev Event) {
	switch e := ev.(type) {
	case StreamStartEvent:
		r.handleStreamStart(e)
	case StreamDeltaEvent:
		r.appendPart(e.MessageID, PartText, e.Delta, e.Timestamp)
	case ReasoningDeltaEvent:
		r.appendPart(e.MessageID, PartReasoning, e.Delta, e.Timestamp)
	case ToolCallStartEvent:
		r.handleToolCallStart(e)
	case ToolCallEndEvent:
		r.handleToolCallEnd(e)
	case StreamEndEvent:
		r.handleStreamEnd(e)
	case StreamAbortEvent:
		r.handleStreamAbort(e)
	case StreamErrorEvent:
		r.handleStreamError(e)
	case MessageEvent:
		r.handleMessage(e)
	case DeleteEvent:
		r.handleDelete(e)
	case ReasoningEndEvent, ToolCallDeltaEvent, CaughtUpEvent, UnknownEvent:
		// display-only or marker events
	default:
		Log().Error("unhandled event kind", zap.String("kind", string(ev.Kind())))
	}
}

func (r *Reducer) stamp(ts int64) int64 {
	if ts != 0 {
		return ts
	}
	return r.now().UnixMilli()
}

// handleStreamStart overwrites any message with the same id. A replayed
// stream resends every delta after its start, so keeping old parts would
// duplicate content.
func (r *Reducer) handleStreamStart(e StreamStartEvent) {
	if r.tracker.Start(e.MessageID, r.now()) {
		dropped := 0
		if prev, ok := r.store.Get(e.MessageID); ok {
			dropped = len(prev.Parts)
		}
		Log().Warn("duplicate stream-start, overwriting message",
			zap.String("messageId", e.MessageID),
			zap.Int("droppedParts", dropped))
	}
	r.store.Put(&Message{
		ID:    e.MessageID,
		Role:  RoleAssistant,
		Parts: []Part{},
		Metadata: Metadata{
			HistorySequence: e.HistorySequence,
			Timestamp:       r.stamp(e.Timestamp),
			Model:           e.Model,
		},
	})
}

func (r *Reducer) appendPart(messageID string, t PartType, text string, ts int64) {
	ok := r.store.Update(messageID, func(m *Message) {
		m.Parts = append(m.Parts, Part{Type: t, Text: text, Timestamp: r.stamp(ts)})
	})
	if !ok {
		Log().Error("delta for unknown message dropped",
			zap.String("messageId", messageID),
			zap.String("partType", string(t)))
	}
}

func (r *Reducer) handleToolCallStart(e ToolCallStartEvent) {
	msg, ok := r.store.Get(e.MessageID)
	if !ok {
		Log().Error("tool-call-start for unknown message dropped",
			zap.String("messageId", e.MessageID),
			zap.String("toolCallId", e.ToolCallID))
		return
	}
	if msg.toolCallIndex(e.ToolCallID) >= 0 {
		Log().Warn("duplicate tool-call-start ignored",
			zap.String("messageId", e.MessageID),
			zap.String("toolCallId", e.ToolCallID))
		return
	}
	r.store.Update(e.MessageID, func(m *Message) {
		m.Parts = append(m.Parts, Part{
			Type:       PartToolCall,
			ToolCallID: e.ToolCallID,
			ToolName:   e.ToolName,
			State:      ToolStatePending,
			Input:      cloneRaw(e.Args),
			Timestamp:  r.stamp(e.Timestamp),
		})
	})
}

func (r *Reducer) handleToolCallEnd(e ToolCallEndEvent) {
	msg, ok := r.store.Get(e.MessageID)
	if !ok {
		Log().Error("tool-call-end for unknown message dropped",
			zap.String("messageId", e.MessageID),
			zap.String("toolCallId", e.ToolCallID))
		return
	}
	idx := msg.toolCallIndex(e.ToolCallID)
	if idx < 0 {
		Log().Error("tool call ended without starting",
			zap.String("messageId", e.MessageID),
			zap.String("toolCallId", e.ToolCallID))
		return
	}
	if msg.Parts[idx].State == ToolStateAvailable {
		Log().Warn("duplicate tool-call-end ignored",
			zap.String("messageId", e.MessageID),
			zap.String("toolCallId", e.ToolCallID))
		return
	}
	r.store.Update(e.MessageID, func(m *Message) {
		m.Parts[idx].State = ToolStateAvailable
		m.Parts[idx].Output = cloneRaw(e.Result)
	})
}

func (r *Reducer) handleStreamEnd(e StreamEndEvent) {
	if active, ok := r.tracker.Get(e.MessageID); ok {
		active.IsComplete = true
		updated := r.store.Update(e.MessageID, func(m *Message) {
			m.Metadata.Duration = r.now().Sub(active.StartTime).Milliseconds()
			m.Metadata.Apply(e.Metadata)
			reconcileToolResults(m, e.Parts)
		})
		if !updated {
			Log().Error("stream-end for active stream without message",
				zap.String("messageId", e.MessageID))
		}
		r.tracker.End(e.MessageID)
		return
	}

	// Reconnection path: the backend's parts and metadata are authoritative.
	// A prior copy only contributes its parts (when none are sent) and the
	// ordering fields, so an earlier abort or error does not outlive the
	// completed message.
	msg := &Message{ID: e.MessageID, Role: RoleAssistant, Parts: []Part{}}
	if prev, ok := r.store.Get(e.MessageID); ok {
		msg.Role = prev.Role
		msg.Parts = clonePartsOf(prev.Parts)
		msg.Metadata = Metadata{
			HistorySequence: prev.Metadata.HistorySequence,
			Timestamp:       prev.Metadata.Timestamp,
			Model:           prev.Metadata.Model,
		}
	}
	if e.Parts != nil {
		msg.Parts = clonePartsOf(e.Parts)
	}
	msg.Metadata.Apply(e.Metadata)
	r.store.Put(msg)
}

// reconcileToolResults copies backend tool results onto pending parts by id.
// Unknown ids are never inserted, so part order stays as observed.
func reconcileToolResults(m *Message, parts []Part) {
	for _, p := range parts {
		if p.Type != PartToolCall || p.State != ToolStateAvailable {
			continue
		}
		idx := m.toolCallIndex(p.ToolCallID)
		if idx < 0 {
			Log().Warn("stream-end reports tool call never started",
				zap.String("messageId", m.ID),
				zap.String("toolCallId", p.ToolCallID))
			continue
		}
		if m.Parts[idx].State == ToolStatePending {
			m.Parts[idx].State = ToolStateAvailable
			m.Parts[idx].Output = cloneRaw(p.Output)
		}
	}
}

func (r *Reducer) handleStreamAbort(e StreamAbortEvent) {
	if !r.tracker.Has(e.MessageID) {
		Log().Debug("stream-abort without active stream", zap.String("messageId", e.MessageID))
		return
	}
	r.store.Update(e.MessageID, func(m *Message) {
		m.Metadata.Apply(e.Metadata)
		m.Metadata.Partial = true
	})
	r.tracker.End(e.MessageID)
}

func (r *Reducer) handleStreamError(e StreamErrorEvent) {
	if !r.tracker.Has(e.MessageID) {
		Log().Warn("stream-error without active stream",
			zap.String("messageId", e.MessageID),
			zap.String("error", e.Error))
		return
	}
	r.store.Update(e.MessageID, func(m *Message) {
		m.Metadata.Partial = true
		m.Metadata.Error = e.Error
		m.Metadata.ErrorType = e.ErrorType
	})
	r.tracker.End(e.MessageID)
}

func (r *Reducer) handleMessage(e MessageEvent) {
	msg := e.Message.Clone()
	if msg.Parts == nil {
		msg.Parts = []Part{}
	}
	for _, id := range r.store.Reconcile(msg) {
		r.tracker.End(id)
	}
	// A whole message is never mid-stream.
	r.tracker.End(msg.ID)
}

func (r *Reducer) handleDelete(e DeleteEvent) {
	for _, id := range r.store.DeleteSequences(e.HistorySequences) {
		r.tracker.End(id)
	}
}

func clonePartsOf(parts []Part) []Part {
	m := Message{Parts: parts}
	return m.Clone().Parts
}
