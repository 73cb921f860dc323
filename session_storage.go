package agentd

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrInvalidIndex is returned by DeletePair when the index is negative or
// beyond the end of the history. It maps to a client error at the HTTP
// surface.
var ErrInvalidIndex = errors.New("invalid message index")

// sessionTitleLimit caps the preview derived from a session's first message.
const sessionTitleLimit = 30

// Sender identifies which side of the conversation produced a turn.
type Sender string

const (
	// SenderUser marks a turn written by the end user.
	SenderUser Sender = "user"
	// SenderAssistant marks a turn produced by the model.
	SenderAssistant Sender = "assistant"
)

// HistoryItem is one conversation turn. Timestamp is an ISO-8601 string and
// Model identifies which model produced an assistant turn; both are empty
// for turns that never carried them.
type HistoryItem struct {
	Sender    Sender `json:"from"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
	Model     string `json:"model,omitempty"`
}

// UnmarshalJSON accepts both the canonical "from" key and the legacy "from_"
// variant some older records were written with.
func (h *HistoryItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		From       *Sender `json:"from"`
		LegacyFrom *Sender `json:"from_"`
		Message    string  `json:"message"`
		Timestamp  string  `json:"timestamp"`
		Model      string  `json:"model"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.From != nil:
		h.Sender = *raw.From
	case raw.LegacyFrom != nil:
		h.Sender = *raw.LegacyFrom
	}
	h.Message = raw.Message
	h.Timestamp = raw.Timestamp
	h.Model = raw.Model
	return nil
}

// SessionInfo is a listing entry: the session id plus a short preview
// derived from the first stored message.
type SessionInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SessionStorage is the interface for durable conversation history, keyed by
// a client-chosen session id. Sessions are implicitly created on first save;
// loading an unknown id yields an empty history, not an error.
type SessionStorage interface {
	// Load reads the full history for the session id. A missing record
	// returns an empty sequence.
	Load(ctx context.Context, sessionID string) ([]HistoryItem, error)

	// Save overwrites the backing record wholesale with the given sequence.
	Save(ctx context.Context, sessionID string, history []HistoryItem) error

	// Clear deletes the backing record if present. It reports whether a
	// record existed; clearing an absent session is not an error.
	Clear(ctx context.Context, sessionID string) (bool, error)

	// ClearAll deletes every backing record and returns the count removed.
	ClearAll(ctx context.Context) (int, error)

	// ListSessions enumerates all backing records.
	ListSessions(ctx context.Context) ([]SessionInfo, error)

	// DeletePair removes the item at index; if the item that shifts into
	// its place belongs to the assistant, it is removed too. Returns the
	// remaining history length, or ErrInvalidIndex when index is out of
	// range against the pre-deletion length.
	DeletePair(ctx context.Context, sessionID string, index int) (int, error)
}

// sessionTitle derives the preview shown in session listings.
func sessionTitle(history []HistoryItem) string {
	if len(history) == 0 || history[0].Message == "" {
		return "Empty"
	}
	runes := []rune(history[0].Message)
	if len(runes) > sessionTitleLimit {
		runes = runes[:sessionTitleLimit]
	}
	return string(runes)
}

// deletePairLocked applies the pair-deletion rule to an in-memory history.
// Callers hold whatever lock guards the session.
func deletePairLocked(history []HistoryItem, index int) ([]HistoryItem, error) {
	if index < 0 || index >= len(history) {
		return nil, ErrInvalidIndex
	}

	history = append(history[:index], history[index+1:]...)
	if index < len(history) && history[index].Sender == SenderAssistant {
		history = append(history[:index], history[index+1:]...)
	}
	return history, nil
}
