package testutil

import (
	"path/filepath"
	"testing"
)

// SampleConversation is a complete event log: one user turn, one assistant
// turn that reasons, calls a tool and answers, then the caught-up marker.
var SampleConversation = []string{
	`{"type":"message","message":{"id":"u1","role":"user","parts":[{"type":"text","text":"What is in main.go?"}],"metadata":{"historySequence":1,"timestamp":1700000000000}}}`,
	`{"type":"stream-start","messageId":"a1","model":"test-model","historySequence":2,"timestamp":1700000001000}`,
	`{"type":"reasoning-delta","messageId":"a1","delta":"Need to read ","timestamp":1700000001100}`,
	`{"type":"reasoning-delta","messageId":"a1","delta":"the file.","timestamp":1700000001200}`,
	`{"type":"reasoning-end","messageId":"a1"}`,
	`{"type":"tool-call-start","messageId":"a1","toolCallId":"call-1","toolName":"read_file","args":{"path":"main.go"},"timestamp":1700000001300}`,
	`{"type":"tool-call-end","messageId":"a1","toolCallId":"call-1","toolName":"read_file","result":{"content":"package main"}}`,
	`{"type":"stream-delta","messageId":"a1","delta":"It declares ","timestamp":1700000001400}`,
	`{"type":"stream-delta","messageId":"a1","delta":"package main.","timestamp":1700000001500}`,
	`{"type":"stream-end","messageId":"a1","metadata":{"usage":{"inputTokens":12,"outputTokens":7}}}`,
	`{"type":"caught-up"}`,
}

// InterruptedConversation ends with an upstream error mid-stream
var InterruptedConversation = []string{
	`{"type":"message","message":{"id":"u1","role":"user","parts":[{"type":"text","text":"Summarize"}],"metadata":{"historySequence":1,"timestamp":1700000000000}}}`,
	`{"type":"stream-start","messageId":"a1","model":"test-model","historySequence":2,"timestamp":1700000001000}`,
	`{"type":"stream-delta","messageId":"a1","delta":"The summary is","timestamp":1700000001100}`,
	`{"type":"stream-error","messageId":"a1","error":"rate limited","errorType":"rate_limit"}`,
}

// CreateEventLogFixture writes SampleConversation to dir/name
func CreateEventLogFixture(t *testing.T, dir, name string) string {
	t.Helper()
	return WriteEventLog(t, dir, name, SampleConversation...)
}

// CreateEventLogTree writes one event log per session id under dir and
// returns the paths in the same order
func CreateEventLogTree(t *testing.T, dir string, sessions ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(sessions))
	for _, id := range sessions {
		paths = append(paths, WriteEventLog(t, dir, filepath.Join(id+".jsonl"), SampleConversation...))
	}
	return paths
}
