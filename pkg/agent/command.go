package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/jbdevprimary/triage/pkg/state"
	"github.com/jbdevprimary/triage/pkg/task"
)

// CommandAgent runs a local command (a linter, a formatter, a codemod)
// as the cheapest rung of the ladder. Exit 0 resolves the task; anything
// else escalates, since re-running the same tool on the same input
// cannot change the answer.
type CommandAgent struct {
	id      string
	command []string
	workdir string
}

// NewCommandAgent creates a command agent.
func NewCommandAgent(id string, command []string, workdir string) (*CommandAgent, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("command agent requires a command")
	}
	if id == "" {
		id = command[0]
	}
	return &CommandAgent{id: id, command: command, workdir: workdir}, nil
}

// ID returns the agent identifier.
func (a *CommandAgent) ID() string {
	return a.id
}

// Execute runs the command with the task context on stdin.
func (a *CommandAgent) Execute(ctx context.Context, t *task.Task, _ *state.AttemptState) Outcome {
	cmd := exec.CommandContext(ctx, a.command[0], a.command[1:]...)
	if a.workdir != "" {
		cmd.Dir = a.workdir
	}
	if t.Context != "" {
		cmd.Stdin = bytes.NewBufferString(t.Context)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			msg := fmt.Sprintf("%s exited with status %d", a.id, exitErr.ExitCode())
			if stderr.Len() > 0 {
				msg = fmt.Sprintf("%s: %s", msg, stderr.String())
			}
			return Escalate{Err: msg}
		}
		return Escalate{Err: fmt.Sprintf("%s failed to run: %v", a.id, err)}
	}

	return Success{Data: stdout.String()}
}
