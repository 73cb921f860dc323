package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shaharia-lab/agentd"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Response     string   `json:"response"`
	ToolUsed     *string  `json:"tool_used"`
	ToolResult   *string  `json:"tool_result"`
	ResponseTime *float64 `json:"response_time"`
}

// toolInfo is one entry of the GET /tools listing.
type toolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "session_id and prompt are required")
		return
	}

	result, err := s.chat.Respond(r.Context(), req.SessionID, req.Prompt)
	if err != nil {
		s.logger.WithErr(err).Error("chat exchange failed")
		writeError(w, http.StatusInternalServerError, "chat exchange failed")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:     result.Response,
		ToolUsed:     result.ToolUsed,
		ToolResult:   result.ToolResult,
		ResponseTime: result.ResponseTime,
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	tools := s.tools.Tools()
	infos := make([]toolInfo, 0, len(tools))
	for _, tool := range tools {
		infos = append(infos, toolInfo{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.InputSchema(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": infos})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	found, err := s.sessions.Clear(r.Context(), sessionID)
	if err != nil {
		s.logger.WithErr(err).Error("failed to clear session")
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}

	message := fmt.Sprintf("Session '%s' not found", sessionID)
	if found {
		message = fmt.Sprintf("Session '%s' cleared", sessionID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (s *Server) handleClearAllSessions(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.sessions.ClearAll(r.Context())
	if err != nil {
		s.logger.WithErr(err).Error("failed to clear sessions")
		writeError(w, http.StatusInternalServerError, "failed to clear sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Cleared %d session(s)", deleted),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.ListSessions(r.Context())
	if err != nil {
		s.logger.WithErr(err).Error("failed to list sessions")
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	history, err := s.sessions.Load(r.Context(), sessionID)
	if err != nil {
		s.logger.WithErr(err).Error("failed to load session")
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       sessionID,
		"messages": history,
	})
}

func (s *Server) handleDeleteMessagePair(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid message index")
		return
	}

	remaining, err := s.sessions.DeletePair(r.Context(), sessionID, index)
	if err != nil {
		if errors.Is(err, agentd.ErrInvalidIndex) {
			writeError(w, http.StatusBadRequest, "Invalid message index")
			return
		}
		s.logger.WithErr(err).Error("failed to delete message pair")
		writeError(w, http.StatusInternalServerError, "failed to delete message pair")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Deleted",
		"remaining": remaining,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"provider": s.config.Engine,
		"model":    s.provider.ModelName(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if path, ok := s.indexPath(); ok {
		http.ServeFile(w, r, path)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "agentd API is running",
		"provider": s.config.Engine,
		"model":    s.provider.ModelName(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
