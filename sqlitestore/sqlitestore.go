// Copyright (c) Microsoft. All rights reserved.

// Package sqlitestore persists agentloop conversations in SQLite.
//
//	db, err := sqlitestore.Open(ctx, "history.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	session := agentloop.NewSession(
//	    agentloop.WithSessionID(id),
//	    agentloop.WithSessionStore(db.Store(id)),
//	)
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	al "github.com/microsoft/agentloop/agentloop"
)

// DB is a SQLite database holding the messages of many sessions.
type DB struct {
	db *sql.DB
}

// Open opens the database at path, creating the file and schema if missing.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", al.ErrSession, path, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: open %s: %w", al.ErrSession, path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: apply schema: %w", al.ErrSession, err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }

// Store returns the [agentloop.MessageStore] for sessionID.
func (d *DB) Store(sessionID string) *Store {
	return &Store{db: d.db, sessionID: sessionID}
}

// Sessions returns the ids of all sessions with stored messages.
func (d *DB) Sessions(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT session_id FROM messages GROUP BY session_id ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %w", al.ErrSession, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: list sessions: %w", al.ErrSession, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes every message of sessionID.
func (d *DB) Delete(ctx context.Context, sessionID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("%w: delete session %s: %w", al.ErrSession, sessionID, err)
	}
	return nil
}

// Store is the message log of one session.
type Store struct {
	db        *sql.DB
	sessionID string
}

var _ al.MessageStore = (*Store)(nil)

// SessionID returns the session this store belongs to.
func (s *Store) SessionID() string { return s.sessionID }

// ListMessages returns the session's messages in insertion order.
func (s *Store) ListMessages(ctx context.Context) ([]al.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM messages WHERE session_id = ? ORDER BY seq ASC`, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %w", al.ErrSession, err)
	}
	defer rows.Close()

	var out []al.Message
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("%w: list messages: %w", al.ErrSession, err)
		}
		var m al.Message
		if err := json.Unmarshal([]byte(body), &m); err != nil {
			return nil, fmt.Errorf("%w: decode message: %w", al.ErrSession, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list messages: %w", al.ErrSession, err)
	}
	return out, nil
}

// AddMessages appends msgs atomically: either all are stored or none.
func (s *Store) AddMessages(ctx context.Context, msgs []al.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: add messages: %w", al.ErrSession, err)
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE session_id = ?`, s.sessionID,
	).Scan(&next); err != nil {
		return fmt.Errorf("%w: add messages: %w", al.ErrSession, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (session_id, seq, role, body) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: add messages: %w", al.ErrSession, err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		body, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("%w: encode message: %w", al.ErrSession, err)
		}
		next++
		if _, err := stmt.ExecContext(ctx, s.sessionID, next, string(m.Role), string(body)); err != nil {
			return fmt.Errorf("%w: add messages: %w", al.ErrSession, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: add messages: %w", al.ErrSession, err)
	}
	return nil
}
