package agentd

import (
	"encoding/json"
	"strings"
)

// ToolDecision is the output contract of the tool-selection call: the model
// must reply with only a JSON object of this shape.
type ToolDecision struct {
	UseTool    bool                   `json:"use_tool"`
	ToolName   string                 `json:"tool_name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ParseToolDecision extracts the first balanced JSON object from the raw
// model text and decodes it. Models frequently wrap the object in prose, so
// extraction is permissive; any failure degrades to the zero decision
// (use_tool=false) because tool selection is advisory and must never block
// the chat from producing an answer.
func ParseToolDecision(raw string) ToolDecision {
	var decision ToolDecision

	object, ok := extractJSONObject(raw)
	if !ok {
		return ToolDecision{}
	}

	if err := json.Unmarshal([]byte(object), &decision); err != nil {
		return ToolDecision{}
	}
	return decision
}

// extractJSONObject returns the first balanced top-level JSON object
// substring of text. Braces inside JSON strings are ignored.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}
