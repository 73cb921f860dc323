package agentd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// fileReadLimit caps how many characters of a file are returned to the model.
const fileReadLimit = 10000

// fileTruncationMarker is appended when a file exceeds fileReadLimit.
const fileTruncationMarker = "\n\n... (file truncated, too large)"

var fileSystemToolSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "action": {
      "type": "string",
      "enum": ["read"],
      "description": "Action to perform"
    },
    "path": {
      "type": "string",
      "description": "File path to read"
    }
  },
  "required": ["action", "path"]
}`)

// FileSystemTool reads files from the server filesystem. Reads are confined
// to the current working directory.
type FileSystemTool struct{}

// NewFileSystemTool creates a FileSystemTool.
func NewFileSystemTool() *FileSystemTool {
	return &FileSystemTool{}
}

// Name implements the Tool interface.
func (t *FileSystemTool) Name() string { return "file_system" }

// Description implements the Tool interface.
func (t *FileSystemTool) Description() string {
	return "Read files from the server filesystem. Use for viewing code, configs, logs."
}

// InputSchema implements the Tool interface.
func (t *FileSystemTool) InputSchema() json.RawMessage { return fileSystemToolSchema }

// Execute resolves the path to its canonical absolute form, rejects anything
// outside the working directory, and returns at most fileReadLimit
// characters of UTF-8 text.
func (t *FileSystemTool) Execute(_ context.Context, args map[string]interface{}) string {
	action, _ := args["action"].(string)
	if action != "read" {
		return "Error: Only 'read' action is supported"
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "Error: 'path' must be a non-empty string"
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Sprintf("Error reading file: %v", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Sprintf("Error reading file: %v", err)
	}

	if !pathInside(absPath, workDir) {
		return "Error: Access denied - path outside working directory"
	}

	// A symlink under the working directory may still point outside it, so
	// the check must run against fully resolved paths.
	resolvedWorkDir, err := filepath.EvalSymlinks(workDir)
	if err != nil {
		return fmt.Sprintf("Error reading file: %v", err)
	}
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: File not found: %s", path)
		}
		return fmt.Sprintf("Error reading file: %v", err)
	}
	if !pathInside(resolvedPath, resolvedWorkDir) {
		return "Error: Access denied - path outside working directory"
	}

	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: File not found: %s", path)
		}
		return fmt.Sprintf("Error reading file: %v", err)
	}

	if !utf8.Valid(content) {
		return "Error reading file: content is not valid UTF-8 text"
	}

	text := string(content)
	if utf8.RuneCountInString(text) > fileReadLimit {
		return string([]rune(text)[:fileReadLimit]) + fileTruncationMarker
	}

	return text
}

// pathInside reports whether candidate is dir itself or lies under it.
func pathInside(candidate, dir string) bool {
	return candidate == dir || strings.HasPrefix(candidate, dir+string(filepath.Separator))
}
