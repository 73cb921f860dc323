package agentd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockOpenAIClient implements OpenAIClientProvider and records the parameters
// of the last request.
type mockOpenAIClient struct {
	completion *openai.ChatCompletion
	err        error
	lastParams openai.ChatCompletionNewParams
}

func (m *mockOpenAIClient) CreateCompletion(_ context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	m.lastParams = params
	return m.completion, m.err
}

func TestOpenAILLMProvider_Chat(t *testing.T) {
	client := &mockOpenAIClient{
		completion: &openai.ChatCompletion{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "the answer"}},
			},
		},
	}
	provider := NewOpenAILLMProvider(OpenAIProviderConfig{Client: client, Model: "gpt-4o"})

	result, err := provider.Chat(context.Background(), []LLMMessage{
		{Role: SystemRole, Text: "be helpful"},
		{Role: UserRole, Text: "question"},
		{Role: AssistantRole, Text: "earlier answer"},
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", result)

	assert.Equal(t, "gpt-4o", client.lastParams.Model.Value)
	assert.Len(t, client.lastParams.Messages.Value, 3)
}

func TestOpenAILLMProvider_Chat_NoChoices(t *testing.T) {
	client := &mockOpenAIClient{completion: &openai.ChatCompletion{}}
	provider := NewOpenAILLMProvider(OpenAIProviderConfig{Client: client})

	_, err := provider.Chat(context.Background(), []LLMMessage{{Role: UserRole, Text: "question"}})
	require.Error(t, err)

	var llmErr *LLMError
	require.True(t, errors.As(err, &llmErr))
	assert.Equal(t, 400, llmErr.Code)
}

func TestOpenAILLMProvider_Chat_ClientError(t *testing.T) {
	client := &mockOpenAIClient{err: errors.New("connection refused")}
	provider := NewOpenAILLMProvider(OpenAIProviderConfig{Client: client})

	_, err := provider.Chat(context.Background(), []LLMMessage{{Role: UserRole, Text: "question"}})
	assert.Error(t, err)
}

func TestOpenAILLMProvider_DefaultModel(t *testing.T) {
	provider := NewOpenAILLMProvider(OpenAIProviderConfig{Client: &mockOpenAIClient{}})
	assert.Equal(t, string(openai.ChatModelGPT3_5Turbo), provider.ModelName())
}

func TestOllamaLLMProvider_Chat(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	ollamaServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model":   "llama3.2",
			"message": map[string]string{"role": "assistant", "content": "pong"},
			"done":    true,
		})
	}))
	defer ollamaServer.Close()

	provider, err := NewOllamaLLMProvider(OllamaProviderConfig{
		BaseURL: ollamaServer.URL,
		Model:   "llama3.2",
		Headers: map[string]string{"Authorization": "Bearer secret"},
	})
	require.NoError(t, err)

	result, err := provider.Chat(context.Background(), []LLMMessage{{Role: UserRole, Text: "ping"}})
	require.NoError(t, err)
	assert.Equal(t, "pong", result)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "llama3.2", gotBody["model"])
	assert.Equal(t, false, gotBody["stream"])
}

func TestOllamaLLMProvider_Defaults(t *testing.T) {
	provider, err := NewOllamaLLMProvider(OllamaProviderConfig{})
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", provider.ModelName())
}

func TestNoOpsLLMProvider_Script(t *testing.T) {
	provider := NewNoOpsLLMProvider(
		WithScriptedResponse("first"),
		WithScriptedError(errors.New("second fails")),
	)
	ctx := context.Background()

	result, err := provider.Chat(ctx, []LLMMessage{{Role: UserRole, Text: "one"}})
	require.NoError(t, err)
	assert.Equal(t, "first", result)

	_, err = provider.Chat(ctx, []LLMMessage{{Role: UserRole, Text: "two"}})
	assert.Error(t, err)

	// Exhausted script falls back to the default response.
	result, err = provider.Chat(ctx, []LLMMessage{{Role: UserRole, Text: "three"}})
	require.NoError(t, err)
	assert.Equal(t, "Default NoOps response", result)

	assert.Len(t, provider.Calls(), 3)
}
