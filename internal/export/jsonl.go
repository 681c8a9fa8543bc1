package export

import (
	"fmt"
	"io"

	"github.com/iksnae/agent-stream/internal"
)

// JSONLExporter exports transcripts in JSONL format. Each line is a
// "message" event, so the output can be replayed as an event log.
type JSONLExporter struct{}

// Export writes one message event per line in history order
func (e *JSONLExporter) Export(t *internal.Transcript, w io.Writer) error {
	for _, msg := range t.Messages {
		line, err := internal.EncodeEvent(internal.MessageEvent{Message: msg})
		if err != nil {
			return fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
