// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteSink stores conversations in SQLite, one row per turn keyed by
// session id and position.
type SQLiteSink struct {
	db        *sql.DB
	sessionID string
	owned     bool
}

// NewSQLiteSink creates a sink for sessionID on db and ensures the schema.
func NewSQLiteSink(db *sql.DB, sessionID string) (*SQLiteSink, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if sessionID == "" {
		return nil, errors.New("session id is empty")
	}
	if err := ensureTurnSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteSink{db: db, sessionID: sessionID}, nil
}

// OpenSQLiteSink opens the database at path and creates a sink on it.
// Close releases the database.
func OpenSQLiteSink(path, sessionID string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	sink, err := NewSQLiteSink(db, sessionID)
	if err != nil {
		db.Close()
		return nil, err
	}
	sink.owned = true
	return sink, nil
}

// SessionID returns the session this sink reads and writes.
func (s *SQLiteSink) SessionID() string { return s.sessionID }

// Close closes the database if the sink opened it.
func (s *SQLiteSink) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

// Load implements Sink.
func (s *SQLiteSink) Load(ctx context.Context) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT turn_id, role, content, tool_name, tool_call_id, tool_calls_json, created_at
		FROM conversation_turns
		WHERE session_id = ?
		ORDER BY seq ASC
	`, s.sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			turn      Turn
			role      string
			callsJSON string
			created   int64
		)
		if err := rows.Scan(
			&turn.ID,
			&role,
			&turn.Content,
			&turn.ToolName,
			&turn.ToolCallID,
			&callsJSON,
			&created,
		); err != nil {
			return nil, err
		}
		turn.Role = Role(role)
		if callsJSON != "" {
			if err := json.Unmarshal([]byte(callsJSON), &turn.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		if created != 0 {
			turn.CreatedAt = time.Unix(0, created).UTC()
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// Save implements Sink. The session's rows are replaced in one transaction.
func (s *SQLiteSink) Save(ctx context.Context, turns []Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_turns WHERE session_id = ?`, s.sessionID); err != nil {
		return err
	}
	for seq, turn := range turns {
		var callsJSON string
		if len(turn.ToolCalls) > 0 {
			data, err := json.Marshal(turn.ToolCalls)
			if err != nil {
				return fmt.Errorf("encode tool calls: %w", err)
			}
			callsJSON = string(data)
		}
		var created int64
		if !turn.CreatedAt.IsZero() {
			created = turn.CreatedAt.UnixNano()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_turns (
				session_id, seq, turn_id, role, content, tool_name, tool_call_id, tool_calls_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			s.sessionID,
			seq,
			turn.ID,
			string(turn.Role),
			turn.Content,
			turn.ToolName,
			turn.ToolCallID,
			callsJSON,
			created,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func ensureTurnSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversation_turns (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			turn_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_name TEXT NOT NULL DEFAULT '',
			tool_call_id TEXT NOT NULL DEFAULT '',
			tool_calls_json TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (session_id, seq)
		)
	`)
	return err
}
