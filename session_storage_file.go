package agentd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/shaharia-lab/agentd/observability"
)

// FileSessionStorage persists each session as one JSON file under a sessions
// directory. Writes go through a temp-file rename so a crash never leaves a
// half-written record, and every operation on a session holds that session's
// mutex so concurrent saves cannot overwrite each other's appended turns.
type FileSessionStorage struct {
	dir    string
	logger observability.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileSessionStorage creates the sessions directory if needed and returns
// a store rooted at it.
func NewFileSessionStorage(dir string, logger observability.Logger) (*FileSessionStorage, error) {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory %s: %w", dir, err)
	}

	return &FileSessionStorage{
		dir:    dir,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// sessionLock returns the mutex guarding one session id.
func (s *FileSessionStorage) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, exists := s.locks[sessionID]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// sessionPath maps a session id onto its backing file. Ids that could
// escape the sessions directory are rejected.
func (s *FileSessionStorage) sessionPath(sessionID string) (string, error) {
	if sessionID == "" || sessionID == "." || sessionID == ".." ||
		strings.ContainsAny(sessionID, `/\`) {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(s.dir, sessionID+".json"), nil
}

// Load implements SessionStorage.Load.
func (s *FileSessionStorage) Load(_ context.Context, sessionID string) ([]HistoryItem, error) {
	path, err := s.sessionPath(sessionID)
	if err != nil {
		return nil, err
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	return s.loadLocked(path)
}

func (s *FileSessionStorage) loadLocked(path string) ([]HistoryItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []HistoryItem{}, nil
		}
		return nil, fmt.Errorf("failed to read session file %s: %w", path, err)
	}

	var history []HistoryItem
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to decode session file %s: %w", path, err)
	}
	return history, nil
}

// Save implements SessionStorage.Save.
func (s *FileSessionStorage) Save(_ context.Context, sessionID string, history []HistoryItem) error {
	path, err := s.sessionPath(sessionID)
	if err != nil {
		return err
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	return s.saveLocked(path, history)
}

func (s *FileSessionStorage) saveLocked(path string, history []HistoryItem) error {
	if history == nil {
		history = []HistoryItem{}
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session history: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close session file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to persist session file %s: %w", path, err)
	}
	return nil
}

// Clear implements SessionStorage.Clear. Clearing an absent session is a
// no-op reported through the boolean.
func (s *FileSessionStorage) Clear(_ context.Context, sessionID string) (bool, error) {
	path, err := s.sessionPath(sessionID)
	if err != nil {
		return false, err
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete session file %s: %w", path, err)
	}
	return true, nil
}

// ClearAll implements SessionStorage.ClearAll.
func (s *FileSessionStorage) ClearAll(_ context.Context) (int, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate session files: %w", err)
	}

	deleted := 0
	for _, path := range files {
		if err := os.Remove(path); err != nil {
			s.logger.WithErr(err).Warnf("failed to delete session file %s", path)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// ListSessions implements SessionStorage.ListSessions. Records that fail to
// decode are skipped with a warning rather than failing the whole listing.
func (s *FileSessionStorage) ListSessions(_ context.Context) ([]SessionInfo, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate session files: %w", err)
	}
	sort.Strings(files)

	sessions := make([]SessionInfo, 0, len(files))
	for _, path := range files {
		history, err := s.loadLocked(path)
		if err != nil {
			s.logger.WithErr(err).Warnf("skipping unreadable session file %s", path)
			continue
		}
		id := strings.TrimSuffix(filepath.Base(path), ".json")
		sessions = append(sessions, SessionInfo{ID: id, Title: sessionTitle(history)})
	}
	return sessions, nil
}

// DeletePair implements SessionStorage.DeletePair.
func (s *FileSessionStorage) DeletePair(_ context.Context, sessionID string, index int) (int, error) {
	path, err := s.sessionPath(sessionID)
	if err != nil {
		return 0, err
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.loadLocked(path)
	if err != nil {
		return 0, err
	}

	history, err = deletePairLocked(history, index)
	if err != nil {
		return 0, err
	}

	if err := s.saveLocked(path, history); err != nil {
		return 0, err
	}
	return len(history), nil
}
