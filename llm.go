// Package agentd implements a small HTTP service that proxies chat prompts
// to a large-language-model backend, optionally invoking a server-side tool
// before producing a final answer, and persisting each conversation as a
// session.
package agentd

import (
	"context"
	"fmt"
)

// LLMMessageRole represents the role of a participant in a conversation.
type LLMMessageRole string

const (
	// SystemRole represents a system-level instruction message.
	SystemRole LLMMessageRole = "system"
	// UserRole represents an end-user message.
	UserRole LLMMessageRole = "user"
	// AssistantRole represents a message produced by the model.
	AssistantRole LLMMessageRole = "assistant"
)

// LLMMessage is one entry of the ordered message sequence sent to a provider.
type LLMMessage struct {
	Role LLMMessageRole
	Text string
}

// LLMProvider adapts a specific LLM backend's protocol to a uniform chat
// contract. Implementations must return only the assistant's text content,
// discarding any other response metadata. Transport and protocol failures
// are returned as errors; the caller decides the fallback behavior.
type LLMProvider interface {
	// Chat sends the ordered message sequence to the backend and returns
	// the assistant's text.
	Chat(ctx context.Context, messages []LLMMessage) (string, error)

	// ModelName returns the identifier of the model this provider talks to.
	ModelName() string
}

// LLMError represents a protocol-level failure talking to an LLM backend.
type LLMError struct {
	Code    int
	Message string
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm error %d: %s", e.Code, e.Message)
}
