package agentd

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClientProvider defines the interface for interacting with an
// OpenAI-compatible chat completions API. It abstracts the single operation
// used by OpenAILLMProvider so tests can substitute a mock client.
type OpenAIClientProvider interface {
	// CreateCompletion creates a new chat completion.
	CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// OpenAIClient implements OpenAIClientProvider using OpenAI's official SDK.
// Because the SDK only assumes the chat-completions wire shape, the same
// client covers OpenAI itself, Azure, and self-hosted gateways via
// option.WithBaseURL.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAIClient with the provided API key and
// optional request options.
//
// Example usage:
//
//	// Against api.openai.com
//	client := NewOpenAIClient("your-api-key")
//
//	// Against a self-hosted gateway with an extra header
//	client := NewOpenAIClient(
//	    "your-api-key",
//	    option.WithBaseURL("https://llm.internal/v1"),
//	    option.WithHeader("X-Team", "platform"),
//	)
func NewOpenAIClient(apiKey string, opts ...option.RequestOption) *OpenAIClient {
	opts = append(opts, option.WithAPIKey(apiKey))
	return &OpenAIClient{
		client: openai.NewClient(opts...),
	}
}

// CreateCompletion implements the OpenAIClientProvider interface.
func (c *OpenAIClient) CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
