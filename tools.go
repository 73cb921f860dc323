package agentd

import (
	"context"
	"encoding/json"
)

// Tool is a named, schema-described capability the language model may
// request be executed on its behalf.
//
// Execute always returns a string and never an error: tool failures must be
// representable as normal content so the response-generation phase can
// explain them to the user.
type Tool interface {
	// Name returns the unique registry key of the tool.
	Name() string

	// Description returns the natural-language description shown to the
	// model during tool selection.
	Description() string

	// InputSchema returns the JSON Schema of the accepted arguments. The
	// schema is rendered into the tool-selection prompt and used to
	// validate arguments before dispatch.
	InputSchema() json.RawMessage

	// Execute runs the tool with the given arguments and returns its
	// textual result. Failures are returned as "Error: ..." markers.
	Execute(ctx context.Context, args map[string]interface{}) string
}
