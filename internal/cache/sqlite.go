// Package cache persists the session list and message history on the client
// so conversations survive restarts. It is a cache of server state, not a
// source of truth; eviction is left to callers.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
)

// Cache is a SQLite-backed local store of sessions and messages.
type Cache struct {
	db *sql.DB
}

// Open opens (and migrates) the cache database at dsn.
func Open(dsn string) (*Cache, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate cache database: %w", err)
	}
	return c, nil
}

func (c *Cache) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_message TEXT,
			last_message_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			content TEXT NOT NULL,
			sender TEXT NOT NULL,
			status TEXT,
			timestamp DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, timestamp)`,
	}

	for _, m := range migrations {
		if _, err := c.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GetOrCreateSession returns the cached session, creating it on first use.
func (c *Cache) GetOrCreateSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var session domain.Session
	err := c.db.QueryRowContext(ctx,
		`SELECT session_id, created_at FROM sessions WHERE session_id = ?`,
		sessionID).Scan(&session.SessionID, &session.CreatedAt)
	if err == nil {
		return &session, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	session = domain.Session{SessionID: sessionID, CreatedAt: time.Now()}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, created_at) VALUES (?, ?)`,
		session.SessionID, session.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SaveMessage upserts a message and refreshes the session's last-message
// preview. Saving the same id twice updates the status in place.
func (c *Cache) SaveMessage(ctx context.Context, msg domain.Message) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, content, sender, status, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(message_id) DO UPDATE SET status = excluded.status, timestamp = excluded.timestamp`,
		msg.ID, msg.SessionID, msg.Content, string(msg.Sender), string(msg.Status), msg.Timestamp)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		`UPDATE sessions SET last_message = ?, last_message_at = ? WHERE session_id = ?`,
		msg.Content, msg.Timestamp, msg.SessionID)
	return err
}

// Messages returns the cached history for a session in timestamp order.
func (c *Cache) Messages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT message_id, session_id, content, sender, status, timestamp
		 FROM messages WHERE session_id = ? ORDER BY timestamp ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var sender, status sql.NullString
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Content, &sender, &status, &msg.Timestamp); err != nil {
			return nil, err
		}
		if sender.Valid {
			msg.Sender = domain.Sender(sender.String)
		}
		if status.Valid {
			msg.Status = domain.MessageStatus(status.String)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Sessions lists cached sessions, most recently active first.
func (c *Cache) Sessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT session_id, created_at FROM sessions
		 ORDER BY COALESCE(last_message_at, created_at) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.SessionID, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
