// Package server exposes the agentd chat pipeline over HTTP with JSON
// bodies.
package server

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/shaharia-lab/agentd"
	"github.com/shaharia-lab/agentd/observability"
)

// Config holds the server's construction parameters.
type Config struct {
	// Engine is the configured provider engine kind, reported by the
	// status and config endpoints.
	Engine string
	// StaticDir is served at / and /static/ when it exists.
	StaticDir string
}

// Server is the HTTP surface over the chat orchestrator, tool manager and
// session storage.
type Server struct {
	config   Config
	chat     *agentd.Chat
	tools    *agentd.ToolManager
	sessions agentd.SessionStorage
	provider agentd.LLMProvider
	logger   observability.Logger
	handler  http.Handler
}

// New creates a Server with all collaborators injected.
//
// Example usage:
//
//	srv := server.New(server.Config{Engine: "ollama"}, chat, tools, sessions, provider, logger)
//	http.ListenAndServe(":8888", srv)
func New(config Config, chat *agentd.Chat, tools *agentd.ToolManager, sessions agentd.SessionStorage, provider agentd.LLMProvider, logger observability.Logger) *Server {
	if logger == nil {
		logger = observability.NewNullLogger()
	}

	s := &Server{
		config:   config,
		chat:     chat,
		tools:    tools,
		sessions: sessions,
		provider: provider,
		logger:   logger,
	}
	s.handler = s.withRequestLogging(s.routes())
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /tools", s.handleListTools)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleClearSession)
	mux.HandleFunc("DELETE /sessions", s.handleClearAllSessions)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}/messages/{index}", s.handleDeleteMessagePair)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	if info, err := os.Stat(s.config.StaticDir); err == nil && info.IsDir() {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.config.StaticDir))))
	}

	return mux
}

// withRequestLogging tags every request with an id and emits one structured
// log line per request.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		s.logger.WithFields(map[string]interface{}{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Info("handling request")

		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r)
	})
}

// indexPath returns the static chat page path if one is present.
func (s *Server) indexPath() (string, bool) {
	path := filepath.Join(s.config.StaticDir, "index.html")
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, true
	}
	return "", false
}
