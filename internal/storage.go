package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// HistoryStore durably records committed messages per session so a later
// process sees the same history, including partial and errored messages.
type HistoryStore struct {
	db   *sql.DB
	path string
}

// SessionSummary describes one session in the history database
type SessionSummary struct {
	ID           string
	MessageCount int
	PartialCount int
	LastSequence int64
	UpdatedAt    time.Time
}

// OpenHistoryStore opens the history database at path
func OpenHistoryStore(path string) (*HistoryStore, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, err
	}
	return &HistoryStore{db: db, path: path}, nil
}

// NewHistoryStore wraps an already-open database. The schema must exist.
func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Close closes the database
func (h *HistoryStore) Close() error {
	return h.db.Close()
}

// Save upserts messages for sessionID in one transaction
func (h *HistoryStore) Save(ctx context.Context, sessionID string, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Path: h.path, Op: "write", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (session_id, id, history_sequence, role, partial, payload, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, id) DO UPDATE SET
			history_sequence = excluded.history_sequence,
			role = excluded.role,
			partial = excluded.partial,
			payload = excluded.payload,
			updated_at = excluded.updated_at`)
	if err != nil {
		return &StorageError{Path: h.path, Op: "write", Err: err}
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, m := range msgs {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message %s: %w", m.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, sessionID, m.ID, m.Metadata.HistorySequence,
			string(m.Role), m.Metadata.Partial, string(payload), now); err != nil {
			return &StorageError{Path: h.path, Op: "write", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Path: h.path, Op: "write", Err: err}
	}
	return nil
}

// Delete removes messages by id
func (h *HistoryStore) Delete(ctx context.Context, sessionID string, ids []string) error {
	for _, id := range ids {
		if _, err := h.db.ExecContext(ctx,
			"DELETE FROM messages WHERE session_id = ? AND id = ?", sessionID, id); err != nil {
			return &StorageError{Path: h.path, Op: "delete", Err: err}
		}
	}
	return nil
}

// Clear removes every message of sessionID
func (h *HistoryStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := h.db.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID); err != nil {
		return &StorageError{Path: h.path, Op: "delete", Err: err}
	}
	return nil
}

// Load returns the stored messages of sessionID ordered by historySequence.
// Rows that fail to decode are logged and skipped.
func (h *HistoryStore) Load(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := h.db.QueryContext(ctx,
		"SELECT id, payload FROM messages WHERE session_id = ? ORDER BY history_sequence, id", sessionID)
	if err != nil {
		return nil, &StorageError{Path: h.path, Op: "query", Err: err}
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		var m Message
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			LogWarn("Skipping undecodable message %s: %v", id, &ParseError{Source: "history", Key: id, Err: err})
			continue
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return msgs, nil
}

// Sessions lists every session with at least one stored message
func (h *HistoryStore) Sessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT session_id, COUNT(*), SUM(partial), MAX(history_sequence), MAX(updated_at)
		FROM messages GROUP BY session_id ORDER BY MAX(updated_at) DESC`)
	if err != nil {
		return nil, &StorageError{Path: h.path, Op: "query", Err: err}
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var updated int64
		if err := rows.Scan(&s.ID, &s.MessageCount, &s.PartialCount, &s.LastSequence, &updated); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		s.UpdatedAt = time.UnixMilli(updated)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}
