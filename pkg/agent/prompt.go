package agent

import (
	"strings"

	"github.com/jbdevprimary/triage/pkg/state"
	"github.com/jbdevprimary/triage/pkg/task"
)

// buildPrompt renders the task for a model-backed agent. Prior failures
// from the attempt history are included so a retry or a more capable
// level does not repeat them.
func buildPrompt(t *task.Task, st *state.AttemptState) string {
	var sb strings.Builder
	sb.WriteString("You are an automated remediation agent. Resolve the task below.\n")
	sb.WriteString("Reply with the complete fix only, no commentary.\n\n")
	sb.WriteString("Task: ")
	sb.WriteString(t.Description)
	sb.WriteString("\n")

	if t.Context != "" {
		sb.WriteString("\nContext:\n")
		sb.WriteString(t.Context)
		sb.WriteString("\n")
	}

	if st != nil && len(st.Errors) > 0 {
		sb.WriteString("\nEarlier attempts failed with:\n")
		start := 0
		if len(st.Errors) > 3 {
			start = len(st.Errors) - 3
		}
		for _, e := range st.Errors[start:] {
			sb.WriteString("- ")
			sb.WriteString(e)
			sb.WriteString("\n")
		}
		sb.WriteString("Avoid repeating these failures.\n")
	}

	return sb.String()
}
