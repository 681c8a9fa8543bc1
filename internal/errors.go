package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineClosed is returned by Engine operations after Close
	ErrEngineClosed = errors.New("engine closed")

	// ErrUnknownSession is returned when a query names a session the engine has never seen
	ErrUnknownSession = errors.New("unknown session")

	// ErrInvalidKey is returned for lifecycle keys that are not a single path element
	ErrInvalidKey = errors.New("invalid key")
)

// StorageError represents errors accessing storage files
type StorageError struct {
	Path string
	Op   string // "open", "read", "write", "query"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ParseError represents errors parsing data
type ParseError struct {
	Source string // "event-log", "websocket", "config"
	Key    string // line number, message id or file path
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error [%s] %s: %v", e.Source, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// PersistError represents a failed durable write or read of lifecycle state
type PersistError struct {
	Key string
	Op  string // "write", "read", "delete"
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist error [%s] %s: %v", e.Key, e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
