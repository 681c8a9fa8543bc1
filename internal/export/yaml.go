package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/agent-stream/internal"
	"gopkg.in/yaml.v3"
)

// YAMLExporter exports transcripts in YAML format
type YAMLExporter struct{}

// Export exports a transcript to YAML format. The transcript goes through
// its JSON form so raw tool arguments, results and usage are rendered as
// nested YAML instead of being dropped.
func (e *YAMLExporter) Export(t *internal.Transcript, w io.Writer) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to convert transcript: %w", err)
	}
	blockStyle(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()

	return enc.Encode(&doc)
}

// blockStyle clears the flow and quoting styles inherited from JSON; the
// encoder still quotes scalars that would otherwise change type.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
