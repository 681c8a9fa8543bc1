package internal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BlockType identifies what a DisplayedBlock renders
type BlockType string

const (
	BlockUser      BlockType = "user"
	BlockAssistant BlockType = "assistant"
	BlockReasoning BlockType = "reasoning"
	BlockTool      BlockType = "tool"
	BlockError     BlockType = "stream-error"
)

// DisplayedBlock is one UI-addressable item derived from a message
type DisplayedBlock struct {
	ID                  string          `json:"id" yaml:"id"`
	MessageID           string          `json:"messageId" yaml:"messageId"`
	Type                BlockType       `json:"type" yaml:"type"`
	Content             string          `json:"content,omitempty" yaml:"content,omitempty"`
	ToolCallID          string          `json:"toolCallId,omitempty" yaml:"toolCallId,omitempty"`
	ToolName            string          `json:"toolName,omitempty" yaml:"toolName,omitempty"`
	ToolState           ToolState       `json:"toolState,omitempty" yaml:"toolState,omitempty"`
	Input               json.RawMessage `json:"input,omitempty" yaml:"-"`
	Output              json.RawMessage `json:"output,omitempty" yaml:"-"`
	HistorySequence     int64           `json:"historySequence" yaml:"historySequence"`
	Timestamp           int64           `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Model               string          `json:"model,omitempty" yaml:"model,omitempty"`
	IsStreaming         bool            `json:"isStreaming" yaml:"isStreaming"`
	IsPartial           bool            `json:"isPartial" yaml:"isPartial"`
	IsLastPartOfMessage bool            `json:"isLastPartOfMessage" yaml:"isLastPartOfMessage"`
	Error               string          `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorType           string          `json:"errorType,omitempty" yaml:"errorType,omitempty"`
}

// Project converts ordered messages into display blocks. isActive reports
// whether a message still has an active stream; it may be nil.
func Project(messages []*Message, isActive func(id string) bool) []DisplayedBlock {
	var blocks []DisplayedBlock
	for _, m := range messages {
		active := isActive != nil && isActive(m.ID)
		switch m.Role {
		case RoleUser:
			blocks = append(blocks, projectUser(m))
		default:
			blocks = append(blocks, projectAssistant(m, active)...)
		}
	}
	return blocks
}

func projectUser(m *Message) DisplayedBlock {
	return DisplayedBlock{
		ID:                  m.ID,
		MessageID:           m.ID,
		Type:                BlockUser,
		Content:             m.Text(),
		HistorySequence:     m.Metadata.HistorySequence,
		Timestamp:           m.Metadata.Timestamp,
		IsLastPartOfMessage: true,
	}
}

func projectAssistant(m *Message, active bool) []DisplayedBlock {
	var blocks []DisplayedBlock
	var buf strings.Builder
	var runType PartType
	runStart := -1

	base := func(idx int, t BlockType) DisplayedBlock {
		return DisplayedBlock{
			ID:              fmt.Sprintf("%s-%d", m.ID, idx),
			MessageID:       m.ID,
			Type:            t,
			HistorySequence: m.Metadata.HistorySequence,
			Timestamp:       m.Metadata.Timestamp,
			Model:           m.Metadata.Model,
			IsPartial:       m.Metadata.Partial,
		}
	}

	flush := func() {
		if runStart < 0 {
			return
		}
		if buf.Len() > 0 {
			t := BlockAssistant
			if runType == PartReasoning {
				t = BlockReasoning
			}
			b := base(runStart, t)
			b.Content = buf.String()
			blocks = append(blocks, b)
		}
		buf.Reset()
		runStart = -1
	}

	for i, p := range m.Parts {
		switch p.Type {
		case PartText, PartReasoning:
			if runStart >= 0 && runType != p.Type {
				flush()
			}
			if runStart < 0 {
				runStart = i
				runType = p.Type
			}
			buf.WriteString(p.Text)
		case PartToolCall:
			flush()
			b := base(i, BlockTool)
			b.ToolCallID = p.ToolCallID
			b.ToolName = p.ToolName
			b.ToolState = p.State
			b.Input = p.Input
			b.Output = p.Output
			blocks = append(blocks, b)
		}
	}
	flush()

	if n := len(blocks); n > 0 {
		blocks[n-1].IsLastPartOfMessage = true
		blocks[n-1].IsStreaming = active
	}

	if m.Metadata.Error != "" {
		b := base(len(m.Parts), BlockError)
		b.ID = m.ID + "-error"
		b.Content = m.Metadata.Error
		b.Error = m.Metadata.Error
		b.ErrorType = m.Metadata.ErrorType
		blocks = append(blocks, b)
	}
	return blocks
}

// Projector memoizes Project over a live store and tracker. It recomputes
// only when either version has moved since the cached result.
type Projector struct {
	store   *MessageStore
	tracker *StreamTracker

	cached       []DisplayedBlock
	storeVer     uint64
	trackerVer   uint64
	valid        bool
	recomputeCnt int
}

// NewProjector creates a Projector over store and tracker
func NewProjector(store *MessageStore, tracker *StreamTracker) *Projector {
	return &Projector{store: store, tracker: tracker}
}

// Blocks returns the current projection. The returned slice is shared with
// the cache and must not be modified.
func (p *Projector) Blocks() []DisplayedBlock {
	sv, tv := p.store.Version(), p.tracker.Version()
	if p.valid && sv == p.storeVer && tv == p.trackerVer {
		return p.cached
	}
	p.cached = Project(p.store.Messages(), p.tracker.Has)
	p.storeVer, p.trackerVer = sv, tv
	p.valid = true
	p.recomputeCnt++
	return p.cached
}

// Invalidate forces the next Blocks call to recompute
func (p *Projector) Invalidate() {
	p.valid = false
}
