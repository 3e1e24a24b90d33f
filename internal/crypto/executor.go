package crypto

import (
	"bytes"
	"os/exec"
	"strings"
)

// CommandExecutor defines an interface for executing commands
type CommandExecutor interface {
	// ExecuteWithOutput runs cmd. It returns stdout on success and the
	// trimmed stderr on failure.
	ExecuteWithOutput(cmd *exec.Cmd) (string, error)
}

// ExecExecutor is the default implementation of CommandExecutor
// that delegates to the os/exec package
type ExecExecutor struct{}

// ExecuteWithOutput implements CommandExecutor.ExecuteWithOutput. On failure
// the returned string carries stderr so callers can report it.
func (e *ExecExecutor) ExecuteWithOutput(cmd *exec.Cmd) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return strings.TrimSpace(stderr.String()), err
	}

	return stdout.String(), nil
}

// NewExecExecutor creates a new ExecExecutor
func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{}
}
