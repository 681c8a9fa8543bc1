package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime settings shared by every command
type Config struct {
	DataDir      string `yaml:"data_dir"`
	HistoryDB    string `yaml:"history_db"`
	CacheDir     string `yaml:"cache_dir"`
	InitStateDir string `yaml:"init_state_dir"`
	LogLevel     string `yaml:"log_level"`
	QueueSize    int    `yaml:"queue_size"`
}

// DefaultDataDir returns ~/.agent-stream, or a relative directory when the
// home directory cannot be resolved
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agent-stream"
	}
	return filepath.Join(home, ".agent-stream")
}

// DefaultConfig returns a config rooted at DefaultDataDir
func DefaultConfig() *Config {
	c := &Config{LogLevel: "warn", QueueSize: 256}
	c.SetDataDir(DefaultDataDir())
	return c
}

// SetDataDir moves every derived path under dir
func (c *Config) SetDataDir(dir string) {
	c.DataDir = dir
	c.HistoryDB = filepath.Join(dir, "history.db")
	c.CacheDir = filepath.Join(dir, "cache")
	c.InitStateDir = filepath.Join(dir, "init")
}

// LoadConfig reads a YAML config file over the defaults. Paths the file
// leaves empty are derived from its data_dir.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &StorageError{Path: path, Op: "read", Err: err}
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	if file.DataDir != "" {
		c.SetDataDir(file.DataDir)
	}
	if file.HistoryDB != "" {
		c.HistoryDB = file.HistoryDB
	}
	if file.CacheDir != "" {
		c.CacheDir = file.CacheDir
	}
	if file.InitStateDir != "" {
		c.InitStateDir = file.InitStateDir
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}
	if file.QueueSize != 0 {
		c.QueueSize = file.QueueSize
	}
	return c, c.Validate()
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
