package internal

import "time"

// Transcript is an exportable snapshot of a session
type Transcript struct {
	ID       string           `json:"id" yaml:"id"`
	Source   string           `json:"source,omitempty" yaml:"source,omitempty"`
	Messages []Message        `json:"messages" yaml:"messages"`
	Blocks   []DisplayedBlock `json:"blocks,omitempty" yaml:"blocks,omitempty"`
	Metadata TranscriptMeta   `json:"metadata" yaml:"metadata"`
}

// TranscriptMeta contains summary information about a transcript
type TranscriptMeta struct {
	CreatedAt    string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	MessageCount int    `json:"message_count" yaml:"message_count"`
	PartialCount int    `json:"partial_count,omitempty" yaml:"partial_count,omitempty"`
	Checksum     string `json:"checksum,omitempty" yaml:"checksum,omitempty"`
}

// NewTranscript builds a transcript and fills its summary metadata
func NewTranscript(id string, messages []Message, blocks []DisplayedBlock) *Transcript {
	t := &Transcript{ID: id, Messages: messages, Blocks: blocks}
	t.Metadata.MessageCount = len(messages)
	var first, last int64
	for _, m := range messages {
		if m.Metadata.Partial {
			t.Metadata.PartialCount++
		}
		ts := m.Metadata.Timestamp
		if ts == 0 {
			continue
		}
		if first == 0 || ts < first {
			first = ts
		}
		if ts > last {
			last = ts
		}
	}
	if first != 0 {
		t.Metadata.CreatedAt = time.UnixMilli(first).UTC().Format(time.RFC3339)
		t.Metadata.UpdatedAt = time.UnixMilli(last).UTC().Format(time.RFC3339)
	}
	return t
}
