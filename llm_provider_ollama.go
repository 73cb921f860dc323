package agentd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaLLMProvider implements the LLMProvider interface against a host
// implementing the Ollama chat protocol.
type OllamaLLMProvider struct {
	client *api.Client
	model  string
}

// OllamaProviderConfig holds configuration for the Ollama provider.
type OllamaProviderConfig struct {
	// BaseURL is the Ollama server URL. Defaults to http://localhost:11434.
	BaseURL string
	// Model is the model name to request (e.g., "llama3.2").
	Model string
	// Headers are added to every request, typically an Authorization header
	// when the server sits behind an authenticating proxy.
	Headers map[string]string
}

// headerTransport injects a fixed set of headers into every outgoing request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// NewOllamaLLMProvider creates a new Ollama provider instance.
//
// Example usage:
//
//	provider, err := NewOllamaLLMProvider(OllamaProviderConfig{
//	    BaseURL: "http://localhost:11434",
//	    Model:   "llama3.2",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewOllamaLLMProvider(config OllamaProviderConfig) (*OllamaLLMProvider, error) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Model == "" {
		config.Model = "llama3.2"
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	httpClient := http.DefaultClient
	if len(config.Headers) > 0 {
		httpClient = &http.Client{
			Transport: &headerTransport{
				base:    http.DefaultTransport,
				headers: config.Headers,
			},
		}
	}

	return &OllamaLLMProvider{
		client: api.NewClient(parsedURL, httpClient),
		model:  config.Model,
	}, nil
}

// ModelName returns the configured model identifier.
func (p *OllamaLLMProvider) ModelName() string {
	return p.model
}

// Chat sends a non-streaming chat request and returns the assistant's text
// content.
func (p *OllamaLLMProvider) Chat(ctx context.Context, messages []LLMMessage) (string, error) {
	ollamaMessages := make([]api.Message, 0, len(messages))
	for _, msg := range messages {
		ollamaMessages = append(ollamaMessages, api.Message{
			Role:    string(msg.Role),
			Content: msg.Text,
		})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: ollamaMessages,
		Stream:   &stream,
	}

	var content strings.Builder
	respFunc := func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	}

	if err := p.client.Chat(ctx, req, respFunc); err != nil {
		return "", fmt.Errorf("ollama chat request failed: %w", err)
	}

	return content.String(), nil
}
