package agentd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStorage(t *testing.T) *SQLiteSessionStorage {
	t.Helper()

	storage, err := OpenSQLiteSessionStorage(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		storage.Close()
	})
	return storage
}

func TestSQLiteSessionStorage_SaveAndLoad(t *testing.T) {
	storage := newTestSQLiteStorage(t)
	ctx := context.Background()

	history := []HistoryItem{
		{Sender: SenderUser, Message: "run ls", Timestamp: "2024-01-01T10:00:00Z"},
		{Sender: SenderAssistant, Message: "here you go", Timestamp: "2024-01-01T10:00:02Z", Model: "llama3.2"},
	}

	require.NoError(t, storage.Save(ctx, "session-1", history))

	loaded, err := storage.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, history, loaded)

	// A wholesale save replaces previous rows.
	require.NoError(t, storage.Save(ctx, "session-1", history[:1]))
	loaded, err = storage.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, history[:1], loaded)
}

func TestSQLiteSessionStorage_LoadMissingSession(t *testing.T) {
	storage := newTestSQLiteStorage(t)

	history, err := storage.Load(context.Background(), "never-saved")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSQLiteSessionStorage_Clear(t *testing.T) {
	storage := newTestSQLiteStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Save(ctx, "session-1", []HistoryItem{{Sender: SenderUser, Message: "hi"}}))

	found, err := storage.Clear(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = storage.Clear(ctx, "session-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteSessionStorage_ClearAll(t *testing.T) {
	storage := newTestSQLiteStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Save(ctx, "a", []HistoryItem{{Sender: SenderUser, Message: "one"}}))
	require.NoError(t, storage.Save(ctx, "b", []HistoryItem{{Sender: SenderUser, Message: "two"}}))

	deleted, err := storage.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	sessions, err := storage.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSQLiteSessionStorage_ListSessions(t *testing.T) {
	storage := newTestSQLiteStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Save(ctx, "alpha", []HistoryItem{{Sender: SenderUser, Message: "first question"}}))
	require.NoError(t, storage.Save(ctx, "beta", []HistoryItem{}))

	sessions, err := storage.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Contains(t, sessions, SessionInfo{ID: "alpha", Title: "first question"})
	assert.Contains(t, sessions, SessionInfo{ID: "beta", Title: "Empty"})
}

func TestSQLiteSessionStorage_DeletePair(t *testing.T) {
	storage := newTestSQLiteStorage(t)
	ctx := context.Background()

	seed := []HistoryItem{
		{Sender: SenderUser, Message: "A"},
		{Sender: SenderAssistant, Message: "B"},
		{Sender: SenderUser, Message: "C"},
		{Sender: SenderAssistant, Message: "D"},
	}
	require.NoError(t, storage.Save(ctx, "s", seed))

	remaining, err := storage.DeletePair(ctx, "s", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	history, err := storage.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []HistoryItem{
		{Sender: SenderUser, Message: "C"},
		{Sender: SenderAssistant, Message: "D"},
	}, history)

	_, err = storage.DeletePair(ctx, "s", 5)
	assert.True(t, errors.Is(err, ErrInvalidIndex))
}

func TestSQLiteSessionStorage_LoadQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sessions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS messages").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_messages_session_id").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	storage, err := NewSQLiteSessionStorage(db, nil)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT sender, message, timestamp, model").
		WillReturnError(errors.New("disk I/O error"))

	_, err = storage.Load(context.Background(), "session-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query messages")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteSessionStorage_SaveRollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sessions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS messages").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_messages_session_id").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	storage, err := NewSQLiteSessionStorage(db, nil)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT OR IGNORE INTO sessions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM messages WHERE session_id").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO messages").WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	err = storage.Save(context.Background(), "session-1", []HistoryItem{{Sender: SenderUser, Message: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert message")
	assert.NoError(t, mock.ExpectationsWereMet())
}
