package agentd

import (
	"context"

	"github.com/openai/openai-go"
)

// OpenAILLMProvider implements the LLMProvider interface over any
// OpenAI-chat-completions-shaped endpoint.
type OpenAILLMProvider struct {
	client OpenAIClientProvider
	model  string
}

// OpenAIProviderConfig holds configuration for the OpenAI-compatible provider.
type OpenAIProviderConfig struct {
	// Client is the OpenAIClientProvider implementation to use.
	Client OpenAIClientProvider
	// Model specifies which model to request (e.g., "gpt-4o").
	Model string
}

// NewOpenAILLMProvider creates a new OpenAI-compatible provider with the
// specified configuration. If no model is specified, it defaults to
// GPT-3.5-turbo.
//
// Example usage:
//
//	client := NewOpenAIClient("your-api-key")
//	provider := NewOpenAILLMProvider(OpenAIProviderConfig{
//	    Client: client,
//	    Model:  "gpt-4o",
//	})
func NewOpenAILLMProvider(config OpenAIProviderConfig) *OpenAILLMProvider {
	if config.Model == "" {
		config.Model = string(openai.ChatModelGPT3_5Turbo)
	}

	return &OpenAILLMProvider{
		client: config.Client,
		model:  config.Model,
	}
}

// ModelName returns the configured model identifier.
func (p *OpenAILLMProvider) ModelName() string {
	return p.model
}

// convertToOpenAIMessages converts internal message format to OpenAI's format.
func (p *OpenAILLMProvider) convertToOpenAIMessages(messages []LLMMessage) []openai.ChatCompletionMessageParamUnion {
	var openAIMessages []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case SystemRole:
			openAIMessages = append(openAIMessages, openai.SystemMessage(msg.Text))
		case AssistantRole:
			openAIMessages = append(openAIMessages, openai.AssistantMessage(msg.Text))
		default:
			openAIMessages = append(openAIMessages, openai.UserMessage(msg.Text))
		}
	}
	return openAIMessages
}

// Chat sends the messages as a single chat completion request and returns
// the assistant's text content.
func (p *OpenAILLMProvider) Chat(ctx context.Context, messages []LLMMessage) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: openai.F(p.convertToOpenAIMessages(messages)),
		Model:    openai.F(p.model),
	}

	completion, err := p.client.CreateCompletion(ctx, params)
	if err != nil {
		return "", err
	}

	if len(completion.Choices) == 0 {
		return "", &LLMError{Code: 400, Message: "no choices in response"}
	}

	return completion.Choices[0].Message.Content, nil
}
