package internal

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies who produced a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType tags the variant held by a Part
type PartType string

const (
	PartText      PartType = "text"
	PartReasoning PartType = "reasoning"
	PartToolCall  PartType = "tool-call"
)

// ToolState is the lifecycle state of a tool-call part
type ToolState string

const (
	ToolStatePending   ToolState = "pending"
	ToolStateAvailable ToolState = "available"
)

// Part is one positional content unit of a message. Text and reasoning parts
// use Text; tool-call parts use the ToolCall* fields.
// Raw JSON fields carry yaml:"-" because a YAML mapping cannot decode into
// json.RawMessage; export.YAMLExporter renders them from the JSON form.
type Part struct {
	Type       PartType        `json:"type" yaml:"type"`
	Text       string          `json:"text,omitempty" yaml:"text,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty" yaml:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty" yaml:"toolName,omitempty"`
	State      ToolState       `json:"state,omitempty" yaml:"state,omitempty"`
	Input      json.RawMessage `json:"input,omitempty" yaml:"-"`
	Output     json.RawMessage `json:"output,omitempty" yaml:"-"`
	Timestamp  int64           `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// TextPart builds a text part
func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// ReasoningPart builds a reasoning part
func ReasoningPart(text string) Part {
	return Part{Type: PartReasoning, Text: text}
}

// Metadata carries the backend-assigned ordering key and stream outcome of a message
type Metadata struct {
	HistorySequence  int64           `json:"historySequence" yaml:"historySequence"`
	Timestamp        int64           `json:"timestamp,omitempty" yaml:"timestamp,omitempty"` // unix millis
	Model            string          `json:"model,omitempty" yaml:"model,omitempty"`
	Partial          bool            `json:"partial,omitempty" yaml:"partial,omitempty"`
	Error            string          `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorType        string          `json:"errorType,omitempty" yaml:"errorType,omitempty"`
	Duration         int64           `json:"duration,omitempty" yaml:"duration,omitempty"` // millis
	Usage            json.RawMessage `json:"usage,omitempty" yaml:"-"`
	ProviderMetadata json.RawMessage `json:"providerMetadata,omitempty" yaml:"-"`
}

// MetadataPatch is a sparse metadata update. Nil fields are left untouched,
// so a field the backend omits never clobbers a client-computed one.
type MetadataPatch struct {
	HistorySequence  *int64          `json:"historySequence,omitempty"`
	Timestamp        *int64          `json:"timestamp,omitempty"`
	Model            *string         `json:"model,omitempty"`
	Partial          *bool           `json:"partial,omitempty"`
	Error            *string         `json:"error,omitempty"`
	ErrorType        *string         `json:"errorType,omitempty"`
	Duration         *int64          `json:"duration,omitempty"`
	Usage            json.RawMessage `json:"usage,omitempty"`
	ProviderMetadata json.RawMessage `json:"providerMetadata,omitempty"`
}

// Apply merges p onto m
func (m *Metadata) Apply(p *MetadataPatch) {
	if p == nil {
		return
	}
	if p.HistorySequence != nil {
		m.HistorySequence = *p.HistorySequence
	}
	if p.Timestamp != nil {
		m.Timestamp = *p.Timestamp
	}
	if p.Model != nil {
		m.Model = *p.Model
	}
	if p.Partial != nil {
		m.Partial = *p.Partial
	}
	if p.Error != nil {
		m.Error = *p.Error
	}
	if p.ErrorType != nil {
		m.ErrorType = *p.ErrorType
	}
	if p.Duration != nil {
		m.Duration = *p.Duration
	}
	if p.Usage != nil {
		m.Usage = cloneRaw(p.Usage)
	}
	if p.ProviderMetadata != nil {
		m.ProviderMetadata = cloneRaw(p.ProviderMetadata)
	}
}

// Message is one logical conversation turn
type Message struct {
	ID       string   `json:"id" yaml:"id"`
	Role     Role     `json:"role" yaml:"role"`
	Parts    []Part   `json:"parts" yaml:"parts"`
	Metadata Metadata `json:"metadata" yaml:"metadata"`
}

// Clone returns a deep copy of m
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Parts = make([]Part, len(m.Parts))
	for i, p := range m.Parts {
		p.Input = cloneRaw(p.Input)
		p.Output = cloneRaw(p.Output)
		c.Parts[i] = p
	}
	c.Metadata.Usage = cloneRaw(m.Metadata.Usage)
	c.Metadata.ProviderMetadata = cloneRaw(m.Metadata.ProviderMetadata)
	return &c
}

// Text concatenates the message's text parts in order
func (m *Message) Text() string {
	return m.concat(PartText)
}

// Reasoning concatenates the message's reasoning parts in order
func (m *Message) Reasoning() string {
	return m.concat(PartReasoning)
}

func (m *Message) concat(t PartType) string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == t {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// toolCallIndex returns the index of the tool-call part with the given id, or -1
func (m *Message) toolCallIndex(toolCallID string) int {
	for i := range m.Parts {
		if m.Parts[i].Type == PartToolCall && m.Parts[i].ToolCallID == toolCallID {
			return i
		}
	}
	return -1
}

// GetTimestamp returns the message timestamp as a time.Time
func (m *Message) GetTimestamp() time.Time {
	if m.Metadata.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.Metadata.Timestamp)
}

// ActiveStream marks a message as currently being produced
type ActiveStream struct {
	StartTime  time.Time
	IsComplete bool
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage(nil), r...)
}
