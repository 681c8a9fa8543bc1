package internal

import (
	"encoding/json"
	"fmt"
)

// EventKind is the wire tag of a conversation event
type EventKind string

const (
	KindStreamStart    EventKind = "stream-start"
	KindStreamDelta    EventKind = "stream-delta"
	KindReasoningDelta EventKind = "reasoning-delta"
	KindReasoningEnd   EventKind = "reasoning-end"
	KindToolCallStart  EventKind = "tool-call-start"
	KindToolCallDelta  EventKind = "tool-call-delta"
	KindToolCallEnd    EventKind = "tool-call-end"
	KindStreamEnd      EventKind = "stream-end"
	KindStreamAbort    EventKind = "stream-abort"
	KindStreamError    EventKind = "stream-error"
	KindMessage        EventKind = "message"
	KindDelete         EventKind = "delete"
	KindCaughtUp       EventKind = "caught-up"
)

// Event is the closed set of conversation events. Only types in this file
// implement it.
type Event interface {
	Kind() EventKind
	sealedEvent()
}

// StreamStartEvent opens a new assistant message
type StreamStartEvent struct {
	MessageID       string `json:"messageId"`
	Model           string `json:"model"`
	HistorySequence int64  `json:"historySequence"`
	Timestamp       int64  `json:"timestamp,omitempty"`
}

// StreamDeltaEvent carries a chunk of assistant text
type StreamDeltaEvent struct {
	MessageID string `json:"messageId"`
	Delta     string `json:"delta"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ReasoningDeltaEvent carries a chunk of assistant reasoning
type ReasoningDeltaEvent struct {
	MessageID string `json:"messageId"`
	Delta     string `json:"delta"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ReasoningEndEvent marks the end of a reasoning span; display only
type ReasoningEndEvent struct {
	MessageID string `json:"messageId"`
}

// ToolCallStartEvent records a tool invocation
type ToolCallStartEvent struct {
	MessageID  string          `json:"messageId"`
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args,omitempty"`
	Timestamp  int64           `json:"timestamp,omitempty"`
}

// ToolCallDeltaEvent streams tool arguments for live display; not reduced
type ToolCallDeltaEvent struct {
	MessageID  string `json:"messageId"`
	ToolCallID string `json:"toolCallId"`
	Delta      string `json:"delta"`
}

// ToolCallEndEvent attaches a tool result
type ToolCallEndEvent struct {
	MessageID  string          `json:"messageId"`
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// StreamEndEvent commits a message. Parts is only authoritative when the
// stream was never observed locally.
type StreamEndEvent struct {
	MessageID string         `json:"messageId"`
	Metadata  *MetadataPatch `json:"metadata,omitempty"`
	Parts     []Part         `json:"parts,omitempty"`
}

// StreamAbortEvent interrupts an active stream, keeping what was produced
type StreamAbortEvent struct {
	MessageID string         `json:"messageId"`
	Metadata  *MetadataPatch `json:"metadata,omitempty"`
}

// StreamErrorEvent records an upstream failure on an active stream
type StreamErrorEvent struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
	ErrorType string `json:"errorType,omitempty"`
}

// MessageEvent delivers a fully formed message (history load, edit, replay)
type MessageEvent struct {
	Message Message `json:"message"`
}

// DeleteEvent removes the messages with the listed sequences
type DeleteEvent struct {
	HistorySequences []int64 `json:"historySequences"`
}

// CaughtUpEvent marks the end of the backend's initial history replay
type CaughtUpEvent struct{}

// UnknownEvent stands in for any tag this package does not reduce
type UnknownEvent struct {
	Type EventKind `json:"type"`
}

func (StreamStartEvent) Kind() EventKind    { return KindStreamStart }
func (StreamDeltaEvent) Kind() EventKind    { return KindStreamDelta }
func (ReasoningDeltaEvent) Kind() EventKind { return KindReasoningDelta }
func (ReasoningEndEvent) Kind() EventKind   { return KindReasoningEnd }
func (ToolCallStartEvent) Kind() EventKind  { return KindToolCallStart }
func (ToolCallDeltaEvent) Kind() EventKind  { return KindToolCallDelta }
func (ToolCallEndEvent) Kind() EventKind    { return KindToolCallEnd }
func (StreamEndEvent) Kind() EventKind      { return KindStreamEnd }
func (StreamAbortEvent) Kind() EventKind    { return KindStreamAbort }
func (StreamErrorEvent) Kind() EventKind    { return KindStreamError }
func (MessageEvent) Kind() EventKind        { return KindMessage }
func (DeleteEvent) Kind() EventKind         { return KindDelete }
func (CaughtUpEvent) Kind() EventKind       { return KindCaughtUp }
func (e UnknownEvent) Kind() EventKind      { return e.Type }

func (StreamStartEvent) sealedEvent()    {}
func (StreamDeltaEvent) sealedEvent()    {}
func (ReasoningDeltaEvent) sealedEvent() {}
func (ReasoningEndEvent) sealedEvent()   {}
func (ToolCallStartEvent) sealedEvent()  {}
func (ToolCallDeltaEvent) sealedEvent()  {}
func (ToolCallEndEvent) sealedEvent()    {}
func (StreamEndEvent) sealedEvent()      {}
func (StreamAbortEvent) sealedEvent()    {}
func (StreamErrorEvent) sealedEvent()    {}
func (MessageEvent) sealedEvent()        {}
func (DeleteEvent) sealedEvent()         {}
func (CaughtUpEvent) sealedEvent()       {}
func (UnknownEvent) sealedEvent()        {}

type eventEnvelope struct {
	Type EventKind `json:"type"`
}

// DecodeEvent parses one JSON-encoded event. Unrecognized tags decode to
// UnknownEvent rather than failing; only malformed JSON is an error.
func DecodeEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse event envelope: %w", err)
	}

	var ev Event
	var err error
	switch env.Type {
	case KindStreamStart:
		ev, err = decodeAs[StreamStartEvent](data)
	case KindStreamDelta:
		ev, err = decodeAs[StreamDeltaEvent](data)
	case KindReasoningDelta:
		ev, err = decodeAs[ReasoningDeltaEvent](data)
	case KindReasoningEnd:
		ev, err = decodeAs[ReasoningEndEvent](data)
	case KindToolCallStart:
		ev, err = decodeAs[ToolCallStartEvent](data)
	case KindToolCallDelta:
		ev, err = decodeAs[ToolCallDeltaEvent](data)
	case KindToolCallEnd:
		ev, err = decodeAs[ToolCallEndEvent](data)
	case KindStreamEnd:
		ev, err = decodeAs[StreamEndEvent](data)
	case KindStreamAbort:
		ev, err = decodeAs[StreamAbortEvent](data)
	case KindStreamError:
		ev, err = decodeAs[StreamErrorEvent](data)
	case KindMessage:
		ev, err = decodeAs[MessageEvent](data)
	case KindDelete:
		ev, err = decodeAs[DeleteEvent](data)
	case KindCaughtUp:
		ev = CaughtUpEvent{}
	default:
		ev = UnknownEvent{Type: env.Type}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s event: %w", env.Type, err)
	}
	return ev, nil
}

func decodeAs[T Event](data []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeEvent renders ev as a single JSON object carrying its "type" tag
func EncodeEvent(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, err := json.Marshal(ev.Kind())
	if err != nil {
		return nil, err
	}
	fields["type"] = tag
	return json.Marshal(fields)
}
