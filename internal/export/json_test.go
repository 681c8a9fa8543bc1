package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/iksnae/agent-stream/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONExporter_Export(t *testing.T) {
	tr := toolTranscript()

	var buf bytes.Buffer
	require.NoError(t, (&JSONExporter{}).Export(tr, &buf))

	var got internal.Transcript
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	// Pretty-printing re-indents raw tool payloads.
	compact := cmp.Transformer("compact", func(r json.RawMessage) string {
		var b bytes.Buffer
		if err := json.Compact(&b, r); err != nil {
			return string(r)
		}
		return b.String()
	})
	if diff := cmp.Diff(tr.Messages, got.Messages, compact); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, got.Blocks, len(tr.Blocks))
	assert.Equal(t, 2, got.Metadata.MessageCount)
	assert.Contains(t, buf.String(), "\n  \"id\": \"tools\"")
}

func TestJSONExporter_Extension(t *testing.T) {
	assert.Equal(t, "json", (&JSONExporter{}).Extension())
}
