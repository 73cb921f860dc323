package agentd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseToolDecision(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected ToolDecision
	}{
		{
			name: "bare JSON object",
			raw:  `{"use_tool": true, "tool_name": "shell", "parameters": {"command": "ls -la"}}`,
			expected: ToolDecision{
				UseTool:    true,
				ToolName:   "shell",
				Parameters: map[string]interface{}{"command": "ls -la"},
			},
		},
		{
			name: "JSON wrapped in prose",
			raw:  "Sure, here is my decision:\n{\"use_tool\": true, \"tool_name\": \"file_system\", \"parameters\": {\"action\": \"read\", \"path\": \"main.go\"}}\nLet me know if that helps.",
			expected: ToolDecision{
				UseTool:    true,
				ToolName:   "file_system",
				Parameters: map[string]interface{}{"action": "read", "path": "main.go"},
			},
		},
		{
			name:     "explicit no-tool decision",
			raw:      `{"use_tool": false, "tool_name": null, "parameters": null}`,
			expected: ToolDecision{},
		},
		{
			name: "braces inside string values",
			raw:  `{"use_tool": true, "tool_name": "shell", "parameters": {"command": "echo '{not json}'"}}`,
			expected: ToolDecision{
				UseTool:    true,
				ToolName:   "shell",
				Parameters: map[string]interface{}{"command": "echo '{not json}'"},
			},
		},
		{
			name:     "no JSON at all",
			raw:      "I don't think a tool is needed here.",
			expected: ToolDecision{},
		},
		{
			name:     "unbalanced object",
			raw:      `{"use_tool": true, "tool_name": "shell"`,
			expected: ToolDecision{},
		},
		{
			name:     "object with wrong value types",
			raw:      `{"use_tool": "yes", "tool_name": 42}`,
			expected: ToolDecision{},
		},
		{
			name:     "empty input",
			raw:      "",
			expected: ToolDecision{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := ParseToolDecision(tt.raw)
			assert.Equal(t, tt.expected, decision)
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	t.Run("first of several objects", func(t *testing.T) {
		object, ok := extractJSONObject(`{"a": 1} {"b": 2}`)
		assert.True(t, ok)
		assert.Equal(t, `{"a": 1}`, object)
	})

	t.Run("escaped quotes in strings", func(t *testing.T) {
		object, ok := extractJSONObject(`noise {"msg": "she said \"}\" loudly"} tail`)
		assert.True(t, ok)
		assert.Equal(t, `{"msg": "she said \"}\" loudly"}`, object)
	})

	t.Run("nested objects", func(t *testing.T) {
		object, ok := extractJSONObject(`{"outer": {"inner": {}}}`)
		assert.True(t, ok)
		assert.Equal(t, `{"outer": {"inner": {}}}`, object)
	})
}
