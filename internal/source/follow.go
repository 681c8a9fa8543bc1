package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/iksnae/agent-stream/internal"
	"go.uber.org/zap"
)

// Follow reads the event log at path and then keeps reading lines appended to
// it until ctx is done. A line is only decoded once its newline arrives. If
// the file shrinks it is read again from the start.
func Follow(ctx context.Context, path string, fn Handler) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory so that replaced or recreated logs are seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return &internal.StorageError{Path: path, Op: "watch", Err: err}
	}

	t := &tailer{path: path, fn: fn}
	defer t.close()
	if err := t.open(); err != nil {
		return err
	}
	if err := t.poll(); err != nil {
		return unlessStop(err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			switch {
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				internal.Log().Debug("event log moved away", zap.String("path", path))
				t.close()
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if err := t.poll(); err != nil {
					return unlessStop(err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			internal.Log().Warn("watch error", zap.String("path", path), zap.Error(err))
		}
	}
}

type tailer struct {
	path    string
	fn      Handler
	f       *os.File
	offset  int64
	lineNo  int
	pending []byte
}

func (t *tailer) open() error {
	f, err := os.Open(t.path)
	if err != nil {
		return &internal.StorageError{Path: t.path, Op: "open", Err: err}
	}
	t.f = f
	t.offset = 0
	t.lineNo = 0
	t.pending = nil
	return nil
}

func (t *tailer) close() {
	if t.f != nil {
		_ = t.f.Close()
		t.f = nil
	}
}

// poll reads whatever was appended since the last call
func (t *tailer) poll() error {
	if t.f == nil {
		if err := t.open(); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
	}

	info, err := t.f.Stat()
	if err != nil {
		return &internal.StorageError{Path: t.path, Op: "stat", Err: err}
	}
	if info.Size() < t.offset {
		internal.Log().Warn("event log truncated, rereading", zap.String("path", t.path))
		t.offset = 0
		t.lineNo = 0
		t.pending = nil
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := t.f.ReadAt(buf, t.offset)
		if n > 0 {
			t.offset += int64(n)
			t.pending = append(t.pending, buf[:n]...)
			if err := t.emitLines(); err != nil {
				return err
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &internal.StorageError{Path: t.path, Op: "read", Err: err}
		}
	}
}

func (t *tailer) emitLines() error {
	for {
		i := bytes.IndexByte(t.pending, '\n')
		if i < 0 {
			return nil
		}
		line := t.pending[:i]
		t.pending = t.pending[i+1:]
		t.lineNo++
		ev, ok := decodeLine(t.path, t.lineNo, line)
		if !ok {
			continue
		}
		if err := t.fn(ev); err != nil {
			return err
		}
	}
}
