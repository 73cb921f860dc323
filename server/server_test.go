package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/agentd"
	"github.com/shaharia-lab/agentd/server"
)

func newTestServer(t *testing.T, provider agentd.LLMProvider) (*server.Server, agentd.SessionStorage) {
	t.Helper()

	if provider == nil {
		provider = agentd.NewNoOpsLLMProvider(agentd.WithNoOpsModel("test-model"))
	}

	tools := agentd.NewToolManager(nil)
	tools.Register(agentd.NewFileSystemTool())
	tools.Register(agentd.NewWebSearchTool())

	sessions, err := agentd.NewFileSessionStorage(t.TempDir(), nil)
	require.NoError(t, err)

	chat := agentd.NewChat(provider, tools, sessions, nil)

	srv := server.New(server.Config{Engine: "ollama"}, chat, tools, sessions, provider, nil)
	return srv, sessions
}

func doJSON(t *testing.T, srv http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	decoded := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestServer_Chat(t *testing.T) {
	provider := agentd.NewNoOpsLLMProvider(
		agentd.WithScriptedResponse(`{"use_tool": false, "tool_name": null, "parameters": null}`),
		agentd.WithScriptedResponse("Hello from the model."),
		agentd.WithNoOpsModel("test-model"),
	)
	srv, sessions := newTestServer(t, provider)

	rec, body := doJSON(t, srv, http.MethodPost, "/chat", `{"session_id": "s1", "prompt": "hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "Hello from the model.", body["response"])
	assert.Nil(t, body["tool_used"])
	assert.Nil(t, body["tool_result"])
	assert.NotNil(t, body["response_time"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	history, err := sessions.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestServer_Chat_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec, body := doJSON(t, srv, http.MethodPost, "/chat", `{"session_id": "s1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "session_id and prompt are required", body["detail"])

	rec, body = doJSON(t, srv, http.MethodPost, "/chat", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON body", body["detail"])
}

func TestServer_ListTools(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec, body := doJSON(t, srv, http.MethodGet, "/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)

	tools, ok := body["tools"].([]interface{})
	require.True(t, ok)
	require.Len(t, tools, 2)

	first := tools[0].(map[string]interface{})
	assert.Equal(t, "file_system", first["name"])
	assert.NotEmpty(t, first["description"])
	assert.NotNil(t, first["parameters"])
}

func TestServer_ClearSession(t *testing.T) {
	srv, sessions := newTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, sessions.Save(ctx, "s1", []agentd.HistoryItem{{Sender: agentd.SenderUser, Message: "hi"}}))

	rec, body := doJSON(t, srv, http.MethodDelete, "/sessions/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Session 's1' cleared", body["message"])

	rec, body = doJSON(t, srv, http.MethodDelete, "/sessions/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Session 's1' not found", body["message"])
}

func TestServer_ClearAllSessions(t *testing.T) {
	srv, sessions := newTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, sessions.Save(ctx, "a", []agentd.HistoryItem{{Sender: agentd.SenderUser, Message: "one"}}))
	require.NoError(t, sessions.Save(ctx, "b", []agentd.HistoryItem{{Sender: agentd.SenderUser, Message: "two"}}))

	rec, body := doJSON(t, srv, http.MethodDelete, "/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cleared 2 session(s)", body["message"])
}

func TestServer_ListAndGetSessions(t *testing.T) {
	srv, sessions := newTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, sessions.Save(ctx, "s1", []agentd.HistoryItem{
		{Sender: agentd.SenderUser, Message: "first question"},
		{Sender: agentd.SenderAssistant, Message: "answer"},
	}))

	rec, body := doJSON(t, srv, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list, ok := body["sessions"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
	entry := list[0].(map[string]interface{})
	assert.Equal(t, "s1", entry["id"])
	assert.Equal(t, "first question", entry["title"])

	rec, body = doJSON(t, srv, http.MethodGet, "/api/sessions/s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", body["id"])
	messages, ok := body["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "user", first["from"])
	assert.Equal(t, "first question", first["message"])
}

func TestServer_DeleteMessagePair(t *testing.T) {
	srv, sessions := newTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, sessions.Save(ctx, "s1", []agentd.HistoryItem{
		{Sender: agentd.SenderUser, Message: "A"},
		{Sender: agentd.SenderAssistant, Message: "B"},
		{Sender: agentd.SenderUser, Message: "C"},
		{Sender: agentd.SenderAssistant, Message: "D"},
	}))

	rec, body := doJSON(t, srv, http.MethodDelete, "/api/sessions/s1/messages/0", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Deleted", body["message"])
	assert.Equal(t, float64(2), body["remaining"])

	rec, body = doJSON(t, srv, http.MethodDelete, "/api/sessions/s1/messages/99", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid message index", body["detail"])

	rec, body = doJSON(t, srv, http.MethodDelete, "/api/sessions/s1/messages/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid message index", body["detail"])
}

func TestServer_GetConfig(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec, body := doJSON(t, srv, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ollama", body["provider"])
	assert.Equal(t, "test-model", body["model"])
}

func TestServer_RootStatus(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec, body := doJSON(t, srv, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "agentd API is running", body["message"])
	assert.Equal(t, "ollama", body["provider"])
	assert.Equal(t, "test-model", body["model"])
}
