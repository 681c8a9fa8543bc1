package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iksnae/agent-stream/internal"
	"github.com/iksnae/agent-stream/internal/source"
)

// sessionIDFromPath names a session after its log file
func sessionIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// reduceLog reduces the event log at path into a transcript. When cache is
// non-nil an unchanged log is served from it and fresh results are stored.
func reduceLog(path, sessionID string, cache *internal.SnapshotCache) (*internal.Transcript, error) {
	sum, err := internal.ChecksumFile(path)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		if t, ok := cache.Lookup(path, sum); ok {
			internal.LogDebug("Loaded %s from cache", path)
			return t, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &internal.StorageError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	s := internal.NewSession(sessionID)
	stats, err := source.ReadEventLog(f, path, func(ev internal.Event) error {
		s.Handle(ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if stats.Skipped > 0 {
		internal.LogWarn("Skipped %d undecodable line(s) in %s", stats.Skipped, path)
	}
	if streaming := s.ActiveStreams(); len(streaming) > 0 {
		internal.LogInfo("Log ends with %d stream(s) still open", len(streaming))
	}

	t := s.Transcript()
	t.Source = path
	t.Metadata.Checksum = sum
	if cache != nil {
		if err := cache.Store(path, sum, t); err != nil {
			internal.LogWarn("Failed to cache transcript: %v", err)
		}
	}
	return t, nil
}

// loadHistory rebuilds a stored session from the history database
func loadHistory(ctx context.Context, sessionID string) (*internal.Transcript, error) {
	if _, err := os.Stat(cfg.HistoryDB); err != nil {
		return nil, &internal.StorageError{Path: cfg.HistoryDB, Op: "open", Err: err}
	}
	store, err := internal.OpenHistoryStore(cfg.HistoryDB)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	msgs, err := store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionID, internal.ErrUnknownSession)
	}
	s := internal.NewSession(sessionID)
	s.Load(msgs)
	t := s.Transcript()
	t.Source = cfg.HistoryDB
	return t, nil
}

// loadTranscript treats target as an event log path when such a file
// exists, and as a session id in the history database otherwise
func loadTranscript(ctx context.Context, target string, useCache bool) (*internal.Transcript, error) {
	info, err := os.Stat(target)
	switch {
	case err == nil && !info.IsDir():
		var cache *internal.SnapshotCache
		if useCache {
			cache = internal.NewSnapshotCache(cfg.CacheDir)
		}
		return reduceLog(target, sessionIDFromPath(target), cache)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return nil, &internal.StorageError{Path: target, Op: "stat", Err: err}
	default:
		return loadHistory(ctx, target)
	}
}
