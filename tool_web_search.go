package agentd

import (
	"context"
	"encoding/json"
	"fmt"
)

var webSearchToolSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {
      "type": "string",
      "description": "Search query"
    },
    "limit": {
      "type": "integer",
      "description": "Number of results (default: 3)",
      "default": 3
    }
  },
  "required": ["query"]
}`)

// WebSearchTool is a placeholder implementation of web search. It performs
// no network I/O; a real implementation plugged in later must preserve the
// same (query, limit) -> text signature.
type WebSearchTool struct{}

// NewWebSearchTool creates a WebSearchTool.
func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{}
}

// Name implements the Tool interface.
func (t *WebSearchTool) Name() string { return "web_search" }

// Description implements the Tool interface.
func (t *WebSearchTool) Description() string {
	return "Search the web for current information, news, documentation"
}

// InputSchema implements the Tool interface.
func (t *WebSearchTool) InputSchema() json.RawMessage { return webSearchToolSchema }

// Execute returns a placeholder result.
func (t *WebSearchTool) Execute(_ context.Context, args map[string]interface{}) string {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "Error: 'query' must be a non-empty string"
	}

	limit := 3
	// JSON numbers decode as float64.
	if raw, ok := args["limit"].(float64); ok {
		limit = int(raw)
	} else if raw, ok := args["limit"].(int); ok {
		limit = raw
	}

	return fmt.Sprintf("Web search for '%s' would return %d results. (Implement actual search API)", query, limit)
}
