package agentd

import (
	"context"
	"sync"
)

// NoOpsLLMProvider implements the LLMProvider interface for testing purposes.
// It replays a scripted sequence of responses and records every message
// batch it receives.
type NoOpsLLMProvider struct {
	mu      sync.Mutex
	script  []noOpsReply
	calls   [][]LLMMessage
	model   string
	nextIdx int
}

type noOpsReply struct {
	text string
	err  error
}

// NoOpsOption defines the function signature for the option pattern.
type NoOpsOption func(*NoOpsLLMProvider)

// WithScriptedResponse appends a successful reply to the script. Replies are
// consumed in order, one per Chat call.
func WithScriptedResponse(text string) NoOpsOption {
	return func(n *NoOpsLLMProvider) {
		n.script = append(n.script, noOpsReply{text: text})
	}
}

// WithScriptedError appends a failing reply to the script.
func WithScriptedError(err error) NoOpsOption {
	return func(n *NoOpsLLMProvider) {
		n.script = append(n.script, noOpsReply{err: err})
	}
}

// WithNoOpsModel sets the model name reported by the provider.
func WithNoOpsModel(model string) NoOpsOption {
	return func(n *NoOpsLLMProvider) {
		n.model = model
	}
}

// NewNoOpsLLMProvider creates a new NoOpsLLMProvider with optional
// configurations.
func NewNoOpsLLMProvider(opts ...NoOpsOption) *NoOpsLLMProvider {
	provider := &NoOpsLLMProvider{
		model: "no-ops",
	}

	for _, opt := range opts {
		opt(provider)
	}

	return provider
}

// Chat implements the LLMProvider interface. When the script is exhausted it
// returns a default response.
func (n *NoOpsLLMProvider) Chat(_ context.Context, messages []LLMMessage) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls = append(n.calls, messages)

	if n.nextIdx >= len(n.script) {
		return "Default NoOps response", nil
	}

	reply := n.script[n.nextIdx]
	n.nextIdx++
	return reply.text, reply.err
}

// ModelName implements the LLMProvider interface.
func (n *NoOpsLLMProvider) ModelName() string {
	return n.model
}

// Calls returns the message batches received so far.
func (n *NoOpsLLMProvider) Calls() [][]LLMMessage {
	n.mu.Lock()
	defer n.mu.Unlock()

	calls := make([][]LLMMessage, len(n.calls))
	copy(calls, n.calls)
	return calls
}
