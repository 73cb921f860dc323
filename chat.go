package agentd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/shaharia-lab/agentd/observability"
)

// defaultProviderTimeout bounds each individual provider call. The original
// design had none; every reimplementation note says it should.
const defaultProviderTimeout = 120 * time.Second

// noResponseMarker is returned when the model produced nothing and no tool
// context exists to fall back to.
const noResponseMarker = "No response generated"

const toolSelectionPromptTemplate = `You are a tool selection system. Decide if the user's request requires using a tool.

AVAILABLE TOOLS:
%s

RULES:
- Use "shell" for commands like: ls, pwd, cat, grep, find, mkdir, etc.
- Use "file_system" for reading files: "read file X", "show me X", "what's in X"
- Use "web_search" for searching internet: "search for X", "find info about X"
- DO NOT use tools for: greetings, general questions, math, explanations, chat

RESPOND WITH ONLY THIS JSON (no other text):
{"use_tool": true, "tool_name": "shell", "parameters": {"command": "ls -la"}}
or
{"use_tool": false, "tool_name": null, "parameters": null}

EXAMPLES:
User: "show me main.go"
{"use_tool": true, "tool_name": "file_system", "parameters": {"action": "read", "path": "main.go"}}

User: "run ls"
{"use_tool": true, "tool_name": "shell", "parameters": {"command": "ls"}}

User: "hello"
{"use_tool": false, "tool_name": null, "parameters": null}

User: "what is Go?"
{"use_tool": false, "tool_name": null, "parameters": null}`

// toolIcons frame tool evidence in the final response.
var toolIcons = map[string]string{
	"shell":       "💻",
	"file_system": "📄",
	"web_search":  "🔍",
}

// ChatResult is the outcome of one chat exchange.
type ChatResult struct {
	// Response is the user-visible answer.
	Response string
	// ToolUsed names the tool selected for this exchange, nil when none.
	ToolUsed *string
	// ToolResult carries the raw tool output, nil when no tool ran.
	ToolResult *string
	// ResponseTime is the generation-call latency in seconds. It covers
	// only the response-generation call, not the whole pipeline.
	ResponseTime *float64
}

// Chat orchestrates the two-phase pipeline: a tool-selection call, an
// optional tool execution, a response-generation call, and the history
// commit. It is built once at process start from explicitly injected
// collaborators.
type Chat struct {
	provider        LLMProvider
	tools           *ToolManager
	sessions        SessionStorage
	logger          observability.Logger
	providerTimeout time.Duration
}

// ChatOption configures a Chat.
type ChatOption func(*Chat)

// WithProviderTimeout overrides the per-call timeout applied to both
// provider invocations.
func WithProviderTimeout(d time.Duration) ChatOption {
	return func(c *Chat) {
		if d > 0 {
			c.providerTimeout = d
		}
	}
}

// NewChat creates a Chat orchestrator.
//
// Example usage:
//
//	chat := NewChat(provider, tools, sessions, logger,
//	    WithProviderTimeout(60*time.Second))
//	result, err := chat.Respond(ctx, "session-1", "run ls")
func NewChat(provider LLMProvider, tools *ToolManager, sessions SessionStorage, logger observability.Logger, opts ...ChatOption) *Chat {
	if logger == nil {
		logger = observability.NewNullLogger()
	}

	chat := &Chat{
		provider:        provider,
		tools:           tools,
		sessions:        sessions,
		logger:          logger,
		providerTimeout: defaultProviderTimeout,
	}

	for _, opt := range opts {
		opt(chat)
	}
	return chat
}

// Respond runs one full chat exchange for the session. The pipeline always
// produces some user-visible response; only history load/save failures
// surface as errors.
func (c *Chat) Respond(ctx context.Context, sessionID, prompt string) (ChatResult, error) {
	ctx, span := observability.StartSpan(ctx, "Chat.Respond")
	span.SetAttributes(attribute.String("session_id", sessionID))
	defer span.End()

	history, err := c.sessions.Load(ctx, sessionID)
	if err != nil {
		return ChatResult{}, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	userTimestamp := time.Now().Format(time.RFC3339)

	decision := c.selectTool(ctx, prompt)

	var toolResult *string
	if decision.UseTool && decision.ToolName != "" {
		params := decision.Parameters
		if params == nil {
			params = map[string]interface{}{}
		}
		result := c.tools.Call(ctx, decision.ToolName, params)
		toolResult = &result
	}

	toolContext := ""
	if toolResult != nil {
		toolContext = formatToolContext(decision.ToolName, *toolResult)
	}

	startTime := time.Now()
	response := c.generate(ctx, prompt, history, toolContext)
	responseTime := time.Since(startTime).Seconds()
	assistantTimestamp := time.Now().Format(time.RFC3339)

	history = append(history,
		HistoryItem{
			Sender:    SenderUser,
			Message:   prompt,
			Timestamp: userTimestamp,
		},
		HistoryItem{
			Sender:    SenderAssistant,
			Message:   response,
			Timestamp: assistantTimestamp,
			Model:     c.provider.ModelName(),
		},
	)

	if err := c.sessions.Save(ctx, sessionID, history); err != nil {
		return ChatResult{}, fmt.Errorf("failed to save session %s: %w", sessionID, err)
	}

	result := ChatResult{
		Response:     response,
		ToolResult:   toolResult,
		ResponseTime: &responseTime,
	}
	if decision.UseTool && decision.ToolName != "" {
		name := decision.ToolName
		result.ToolUsed = &name
	}
	return result, nil
}

// selectTool runs the tool-selection call. Provider failures and unparseable
// replies degrade to "no tool".
func (c *Chat) selectTool(ctx context.Context, prompt string) ToolDecision {
	ctx, span := observability.StartSpan(ctx, "Chat.selectTool")
	defer span.End()

	systemPrompt := fmt.Sprintf(toolSelectionPromptTemplate, c.tools.ToolsForPrompt())

	callCtx, cancel := context.WithTimeout(ctx, c.providerTimeout)
	defer cancel()

	raw, err := c.provider.Chat(callCtx, []LLMMessage{
		{Role: SystemRole, Text: systemPrompt},
		{Role: UserRole, Text: prompt},
	})
	if err != nil {
		c.logger.WithErr(err).Warn("tool selection call failed, proceeding without tool")
		return ToolDecision{}
	}

	decision := ParseToolDecision(strings.TrimSpace(raw))
	span.SetAttributes(
		attribute.Bool("use_tool", decision.UseTool),
		attribute.String("tool_name", decision.ToolName),
	)
	return decision
}

// generate runs the response-generation call with the fallback ladder: on
// failure or an empty reply the tool context (when present) is still worth
// showing on its own.
func (c *Chat) generate(ctx context.Context, prompt string, history []HistoryItem, toolContext string) string {
	ctx, span := observability.StartSpan(ctx, "Chat.generate")
	defer span.End()

	systemPrompt := "You are a helpful AI assistant with access to various tools."
	if toolContext != "" {
		systemPrompt += fmt.Sprintf("\n\n%s\n\nExplain the tool result to the user in a helpful way.", toolContext)
	}

	messages := make([]LLMMessage, 0, len(history)+2)
	messages = append(messages, LLMMessage{Role: SystemRole, Text: systemPrompt})
	for _, item := range history {
		role := UserRole
		if item.Sender == SenderAssistant {
			role = AssistantRole
		}
		messages = append(messages, LLMMessage{Role: role, Text: item.Message})
	}
	messages = append(messages, LLMMessage{Role: UserRole, Text: prompt})

	callCtx, cancel := context.WithTimeout(ctx, c.providerTimeout)
	defer cancel()

	result, err := c.provider.Chat(callCtx, messages)
	if err != nil {
		c.logger.WithErr(err).Error("response generation call failed")
		if toolContext != "" {
			return toolContext
		}
		return fmt.Sprintf("Error generating response: %v", err)
	}

	if strings.TrimSpace(result) == "" {
		if toolContext != "" {
			return toolContext
		}
		return noResponseMarker
	}

	// Model answer first, tool evidence second.
	if toolContext != "" {
		return fmt.Sprintf("%s\n\n---\n%s", result, toolContext)
	}
	return result
}

// formatToolContext frames a raw tool result for both the model and the
// final visible response.
func formatToolContext(toolName, toolResult string) string {
	icon, ok := toolIcons[toolName]
	if !ok {
		icon = "🔧"
	}
	return fmt.Sprintf("%s **%s**\n\n```\n%s\n```", icon, toolName, toolResult)
}
