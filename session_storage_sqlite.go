package agentd

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	// Registers the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"

	"github.com/shaharia-lab/agentd/observability"
)

// SQLiteSessionStorage is a SQLite-backed implementation of SessionStorage.
// Sessions live in a sessions table, turns in an ordered messages table;
// a wholesale save replaces the session's rows inside one transaction.
type SQLiteSessionStorage struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger observability.Logger
}

// OpenSQLiteSessionStorage opens (or creates) the database file at
// databasePath and initializes the schema.
func OpenSQLiteSessionStorage(databasePath string, logger observability.Logger) (*SQLiteSessionStorage, error) {
	db, err := sql.Open("sqlite3", databasePath+"?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	storage, err := NewSQLiteSessionStorage(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return storage, nil
}

// NewSQLiteSessionStorage wraps an existing database handle and initializes
// the schema.
func NewSQLiteSessionStorage(db *sql.DB, logger observability.Logger) (*SQLiteSessionStorage, error) {
	if logger == nil {
		logger = observability.NewNullLogger()
	}

	storage := &SQLiteSessionStorage{
		db:     db,
		logger: logger,
	}

	if err := storage.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return storage, nil
}

// initSchema creates the necessary tables if they don't exist.
func (s *SQLiteSessionStorage) initSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createSessionsTableSQL := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`

	createMessagesTableSQL := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		sender TEXT NOT NULL,
		message TEXT NOT NULL,
		timestamp TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);`

	createMessagesIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages (session_id, position);
	`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for schema init: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createSessionsTableSQL); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createMessagesTableSQL); err != nil {
		return fmt.Errorf("failed to create messages table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createMessagesIndexSQL); err != nil {
		return fmt.Errorf("failed to create messages index: %w", err)
	}

	return tx.Commit()
}

// Load implements SessionStorage.Load.
func (s *SQLiteSessionStorage) Load(ctx context.Context, sessionID string) ([]HistoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messagesSQL := `
	SELECT sender, message, timestamp, model
	FROM messages
	WHERE session_id = ?
	ORDER BY position ASC`

	rows, err := s.db.QueryContext(ctx, messagesSQL, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	history := []HistoryItem{}
	for rows.Next() {
		var item HistoryItem
		var sender string
		if err := rows.Scan(&sender, &item.Message, &item.Timestamp, &item.Model); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		item.Sender = Sender(sender)
		history = append(history, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return history, nil
}

// Save implements SessionStorage.Save.
func (s *SQLiteSessionStorage) Save(ctx context.Context, sessionID string, history []HistoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked(ctx, sessionID, history)
}

func (s *SQLiteSessionStorage) saveLocked(ctx context.Context, sessionID string, history []HistoryItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for saving session: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO sessions (id) VALUES (?)`, sessionID); err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", sessionID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear messages for session %s: %w", sessionID, err)
	}

	insertSQL := `
	INSERT INTO messages (session_id, position, sender, message, timestamp, model)
	VALUES (?, ?, ?, ?, ?, ?)`

	for i, item := range history {
		if _, err := tx.ExecContext(ctx, insertSQL, sessionID, i, string(item.Sender), item.Message, item.Timestamp, item.Model); err != nil {
			return fmt.Errorf("failed to insert message %d for session %s: %w", i, sessionID, err)
		}
	}

	return tx.Commit()
}

// Clear implements SessionStorage.Clear.
func (s *SQLiteSessionStorage) Clear(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction for clearing session: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return false, fmt.Errorf("failed to delete messages for session %s: %w", sessionID, err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.WithErr(err).Error("failed to get rows affected for session delete")
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit session delete: %w", err)
	}
	return rowsAffected > 0, nil
}

// ClearAll implements SessionStorage.ClearAll.
func (s *SQLiteSessionStorage) ClearAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction for clearing sessions: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM sessions`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for clear all: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit clear all: %w", err)
	}
	return int(rowsAffected), nil
}

// ListSessions implements SessionStorage.ListSessions.
func (s *SQLiteSessionStorage) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	listSQL := `
	SELECT s.id, COALESCE(
		(SELECT m.message FROM messages m
		 WHERE m.session_id = s.id
		 ORDER BY m.position ASC LIMIT 1), '')
	FROM sessions s
	ORDER BY s.created_at ASC, s.id ASC`

	rows, err := s.db.QueryContext(ctx, listSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionInfo{}
	for rows.Next() {
		var id, firstMessage string
		if err := rows.Scan(&id, &firstMessage); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}

		title := "Empty"
		if firstMessage != "" {
			title = sessionTitle([]HistoryItem{{Message: firstMessage}})
		}
		sessions = append(sessions, SessionInfo{ID: id, Title: title})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}

// DeletePair implements SessionStorage.DeletePair.
func (s *SQLiteSessionStorage) DeletePair(ctx context.Context, sessionID string, index int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messagesSQL := `
	SELECT sender, message, timestamp, model
	FROM messages
	WHERE session_id = ?
	ORDER BY position ASC`

	rows, err := s.db.QueryContext(ctx, messagesSQL, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to query messages for session %s: %w", sessionID, err)
	}

	history := []HistoryItem{}
	for rows.Next() {
		var item HistoryItem
		var sender string
		if err := rows.Scan(&sender, &item.Message, &item.Timestamp, &item.Model); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan message row: %w", err)
		}
		item.Sender = Sender(sender)
		history = append(history, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("error iterating message rows: %w", err)
	}
	rows.Close()

	history, err = deletePairLocked(history, index)
	if err != nil {
		return 0, err
	}

	if err := s.saveLocked(ctx, sessionID, history); err != nil {
		return 0, err
	}
	return len(history), nil
}

// Close releases the database connection.
func (s *SQLiteSessionStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
