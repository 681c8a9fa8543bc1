// Package source feeds conversation events into a reducer from JSONL event
// logs, appended-to log files and websocket connections.
package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/iksnae/agent-stream/internal"
)

// maxLineSize bounds one encoded event. Tool results can be large.
const maxLineSize = 16 * 1024 * 1024

// Handler receives each decoded event in order. Returning an error stops the
// source and is returned from it, except ErrStop which stops it cleanly.
type Handler func(internal.Event) error

// ErrStop ends a source without an error
var ErrStop = errors.New("source stopped")

func unlessStop(err error) error {
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

// Stats counts what a read consumed
type Stats struct {
	Lines   int
	Events  int
	Skipped int
}

// ReadEventLog decodes r as one JSON event per line. Blank lines are ignored;
// lines that fail to decode are logged and skipped.
func ReadEventLog(r io.Reader, name string, fn Handler) (Stats, error) {
	var stats Stats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		stats.Lines++
		ev, ok := decodeLine(name, stats.Lines, scanner.Bytes())
		if !ok {
			if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
				stats.Skipped++
			}
			continue
		}
		stats.Events++
		if err := fn(ev); err != nil {
			return stats, unlessStop(err)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, &internal.StorageError{Path: name, Op: "read", Err: err}
	}
	return stats, nil
}

func decodeLine(name string, lineNo int, line []byte) (internal.Event, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}
	ev, err := internal.DecodeEvent(line)
	if err != nil {
		internal.LogWarn("Skipping event: %v", &internal.ParseError{
			Source: name,
			Key:    fmt.Sprintf("line %d", lineNo),
			Err:    err,
		})
		return nil, false
	}
	if u, ok := ev.(internal.UnknownEvent); ok {
		internal.LogDebug("Ignoring unknown event type %q at %s:%d", u.Type, name, lineNo)
	}
	return ev, true
}
