package agentd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/shaharia-lab/agentd/observability"
)

// ToolManager holds the authoritative set of invocable tools and renders
// them into the text block the model reads during tool selection. It is
// constructed once at process start and passed into the orchestrator; there
// is no ambient global registry.
type ToolManager struct {
	tools  map[string]Tool
	order  []string
	logger observability.Logger
}

// NewToolManager creates an empty ToolManager.
//
// Example usage:
//
//	tools := NewToolManager(logger)
//	tools.Register(NewFileSystemTool())
//	tools.Register(NewWebSearchTool())
func NewToolManager(logger observability.Logger) *ToolManager {
	if logger == nil {
		logger = observability.NewNullLogger()
	}
	return &ToolManager{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

// Register inserts or replaces a tool by name. Insertion order is preserved
// for prompt rendering; replacing a tool keeps its original position.
func (m *ToolManager) Register(tool Tool) {
	if _, exists := m.tools[tool.Name()]; !exists {
		m.order = append(m.order, tool.Name())
	}
	m.tools[tool.Name()] = tool
}

// Tools returns all registered tools in registration order.
func (m *ToolManager) Tools() []Tool {
	tools := make([]Tool, 0, len(m.order))
	for _, name := range m.order {
		tools = append(tools, m.tools[name])
	}
	return tools
}

// ToolsForPrompt produces a deterministic, order-stable textual listing of
// name, description and parameter schema for every registered tool. The
// output is embedded verbatim into the tool-selection system prompt, so its
// formatting is part of the contract the selection step depends on.
func (m *ToolManager) ToolsForPrompt() string {
	descriptions := make([]string, 0, len(m.order))
	for _, tool := range m.Tools() {
		var compact bytes.Buffer
		schema := tool.InputSchema()
		if err := json.Compact(&compact, schema); err != nil {
			compact.Reset()
			compact.Write(schema)
		}
		descriptions = append(descriptions,
			fmt.Sprintf("- %s: %s\n  Parameters: %s", tool.Name(), tool.Description(), compact.String()))
	}
	return strings.Join(descriptions, "\n")
}

// Call dispatches to the named tool. An unknown name or invalid arguments
// yield a textual error result rather than an error, so the orchestrator can
// treat "tool failed" and "tool succeeded with an error message" uniformly.
func (m *ToolManager) Call(ctx context.Context, name string, args map[string]interface{}) string {
	ctx, span := observability.StartSpan(ctx, "ToolManager.Call")
	span.SetAttributes(attribute.String("tool_name", name))
	defer span.End()

	tool, exists := m.tools[name]
	if !exists {
		span.SetStatus(codes.Error, "unknown tool")
		return fmt.Sprintf("Error: Unknown tool '%s'", name)
	}

	if args == nil {
		args = map[string]interface{}{}
	}

	if msg := m.validateArgs(tool, args); msg != "" {
		span.SetStatus(codes.Error, "invalid arguments")
		return msg
	}

	startTime := time.Now()
	result := tool.Execute(ctx, args)
	span.SetAttributes(
		attribute.Float64("execution_time_ms", float64(time.Since(startTime).Milliseconds())),
		attribute.Int("result_length", len(result)),
	)

	m.logger.WithFields(map[string]interface{}{
		"tool": name,
	}).Debugf("tool executed in %s", time.Since(startTime))

	return result
}

// validateArgs checks the arguments against the tool's JSON Schema and
// returns a textual error marker on failure, empty string otherwise.
func (m *ToolManager) validateArgs(tool Tool, args map[string]interface{}) string {
	schemaLoader := gojsonschema.NewBytesLoader(tool.InputSchema())
	documentLoader := gojsonschema.NewGoLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Sprintf("Error: invalid arguments for tool '%s': %v", tool.Name(), err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Sprintf("Error: invalid arguments for tool '%s': %s", tool.Name(), strings.Join(problems, "; "))
	}

	return ""
}
