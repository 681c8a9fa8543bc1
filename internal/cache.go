package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheVersion is bumped whenever the cached transcript shape changes
const CacheVersion = "2.0"

// SnapshotCache stores reduced transcripts on disk, keyed by the checksum of
// the event log they were reduced from. Callers own the cache and pass it to
// whatever needs it.
type SnapshotCache struct {
	cacheDir string
}

// CacheMetadata stores metadata about the cache
type CacheMetadata struct {
	CacheVersion string    `json:"cache_version" yaml:"cache_version"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// CacheIndexEntry represents a cached transcript in the index
type CacheIndexEntry struct {
	ID           string `yaml:"id"`
	SourcePath   string `yaml:"source_path"`
	Checksum     string `yaml:"checksum"`
	MessageCount int    `yaml:"message_count"`
	PartialCount int    `yaml:"partial_count,omitempty"`
	UpdatedAt    string `yaml:"updated_at,omitempty"`
}

// CacheIndex represents the YAML index of all cached transcripts
type CacheIndex struct {
	Entries  []CacheIndexEntry `yaml:"entries"`
	Metadata CacheMetadata     `yaml:"metadata"`
}

// NewSnapshotCache creates a new snapshot cache
func NewSnapshotCache(cacheDir string) *SnapshotCache {
	return &SnapshotCache{
		cacheDir: cacheDir,
	}
}

// EnsureCacheDir ensures the cache directory exists
func (c *SnapshotCache) EnsureCacheDir() error {
	return os.MkdirAll(c.cacheDir, 0755)
}

// GetCacheDir returns the cache directory path
func (c *SnapshotCache) GetCacheDir() string {
	return c.cacheDir
}

// GetIndexPath returns the path to the index YAML file
func (c *SnapshotCache) GetIndexPath() string {
	return filepath.Join(c.cacheDir, "index.yaml")
}

// GetTranscriptPath returns the path of a cached transcript
func (c *SnapshotCache) GetTranscriptPath(checksum string) string {
	return filepath.Join(c.cacheDir, fmt.Sprintf("transcript_%s.json", checksum))
}

// LoadIndex loads the cache index
func (c *SnapshotCache) LoadIndex() (*CacheIndex, error) {
	data, err := os.ReadFile(c.GetIndexPath())
	if err != nil {
		return nil, err
	}

	var index CacheIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}

	return &index, nil
}

// SaveIndex saves the cache index
func (c *SnapshotCache) SaveIndex(index *CacheIndex) error {
	if err := c.EnsureCacheDir(); err != nil {
		return err
	}

	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	return os.WriteFile(c.GetIndexPath(), data, 0644)
}

// Lookup returns the cached transcript for an event log whose current
// checksum is checksum. A stale or missing entry reports false.
func (c *SnapshotCache) Lookup(sourcePath, checksum string) (*Transcript, bool) {
	index, err := c.LoadIndex()
	if err != nil {
		return nil, false
	}
	for _, entry := range index.Entries {
		if entry.SourcePath != sourcePath {
			continue
		}
		if entry.Checksum != checksum {
			LogDebug("Cache entry for %s is stale", sourcePath)
			return nil, false
		}
		t, err := c.loadTranscript(checksum)
		if err != nil {
			LogDebug("Failed to load cached transcript: %v", err)
			return nil, false
		}
		return t, true
	}
	return nil, false
}

func (c *SnapshotCache) loadTranscript(checksum string) (*Transcript, error) {
	data, err := os.ReadFile(c.GetTranscriptPath(checksum))
	if err != nil {
		return nil, err
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}
	return &t, nil
}

// Store caches t as the reduction of sourcePath at checksum and updates the
// index, replacing any older entry for the same source
func (c *SnapshotCache) Store(sourcePath, checksum string, t *Transcript) error {
	if err := c.EnsureCacheDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := os.WriteFile(c.GetTranscriptPath(checksum), data, 0644); err != nil {
		return &StorageError{Path: c.GetTranscriptPath(checksum), Op: "write", Err: err}
	}

	// Load existing index or create new one
	index, err := c.LoadIndex()
	if err != nil || index.Metadata.CacheVersion != CacheVersion {
		index = &CacheIndex{
			Metadata: CacheMetadata{
				CacheVersion: CacheVersion,
				CreatedAt:    time.Now(),
			},
		}
	}
	index.Metadata.UpdatedAt = time.Now()

	entry := CacheIndexEntry{
		ID:           t.ID,
		SourcePath:   sourcePath,
		Checksum:     checksum,
		MessageCount: t.Metadata.MessageCount,
		PartialCount: t.Metadata.PartialCount,
		UpdatedAt:    t.Metadata.UpdatedAt,
	}

	found := false
	for i, e := range index.Entries {
		if e.SourcePath == sourcePath {
			if e.Checksum != checksum {
				_ = os.Remove(c.GetTranscriptPath(e.Checksum))
			}
			index.Entries[i] = entry
			found = true
			break
		}
	}
	if !found {
		index.Entries = append(index.Entries, entry)
	}

	return c.SaveIndex(index)
}

// ClearCache clears the cache
func (c *SnapshotCache) ClearCache() error {
	index, err := c.LoadIndex()
	if err == nil {
		for _, entry := range index.Entries {
			_ = os.Remove(c.GetTranscriptPath(entry.Checksum))
		}
	}

	if err := os.Remove(c.GetIndexPath()); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
