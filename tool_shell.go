package agentd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// shellExecutionTimeout is the hard wall-clock limit for one spawned command.
const shellExecutionTimeout = 30 * time.Second

var shellToolSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "command": {
      "type": "string",
      "description": "Shell command to execute"
    }
  },
  "required": ["command"]
}`)

// ShellTool executes shell commands on the server. It grants command
// execution capability to any caller able to trigger tool selection, so it
// is registered only when explicitly enabled and may carry an allow-list
// restricting the command's first token.
type ShellTool struct {
	allowList []string
}

// NewShellTool creates a ShellTool. A non-empty allowList restricts the
// first token of the command to one of the listed program names.
func NewShellTool(allowList []string) *ShellTool {
	return &ShellTool{allowList: allowList}
}

// Name implements the Tool interface.
func (t *ShellTool) Name() string { return "shell" }

// Description implements the Tool interface.
func (t *ShellTool) Description() string {
	return "Execute shell commands on the server (ls, pwd, grep, etc.)"
}

// InputSchema implements the Tool interface.
func (t *ShellTool) InputSchema() json.RawMessage { return shellToolSchema }

// Execute runs the command under "sh -c" with a 30-second timeout. It
// returns the captured stdout, falling back to stderr when stdout is empty,
// and converts timeouts and spawn failures into textual markers.
func (t *ShellTool) Execute(ctx context.Context, args map[string]interface{}) string {
	command, ok := args["command"].(string)
	if !ok || strings.TrimSpace(command) == "" {
		return "Error: 'command' must be a non-empty string"
	}

	if len(t.allowList) > 0 {
		fields := strings.Fields(command)
		if !t.allowed(fields[0]) {
			return fmt.Sprintf("Error: command '%s' is not in the allow-list", fields[0])
		}
	}

	execCtx, cancel := context.WithTimeout(ctx, shellExecutionTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return "Error: Command execution timed out"
	}

	output := stdout.String()
	if output == "" {
		output = stderr.String()
	}
	if output != "" {
		return output
	}

	// A command that ran and exited non-zero without output is not a spawn
	// failure; only failures to run the command at all get the error marker.
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return fmt.Sprintf("Error executing command: %v", err)
	}
	return "Command executed with no output"
}

func (t *ShellTool) allowed(program string) bool {
	for _, name := range t.allowList {
		if program == name {
			return true
		}
	}
	return false
}
