package engine

import (
	"strings"

	"github.com/jbdevprimary/triage/pkg/task"
)

// ApprovalLabelPrefix prefixes the label a caller attaches to a task to
// approve a gated agent, e.g. "approved:cloud-agent".
const ApprovalLabelPrefix = "approved:"

// taskApproves reports whether the task's metadata grants approval for
// the given agent: either a label exactly equal to the approval token,
// or an "approved" metadata field naming the agent id (a comma list is
// accepted; "true" and "all" grant blanket approval).
func taskApproves(t *task.Task, agentID string) bool {
	if agentID != "" && t.HasLabel(ApprovalLabelPrefix+agentID) {
		return true
	}
	v := t.Meta("approved")
	if v == "" {
		return false
	}
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "true" || part == "all" {
			return true
		}
		if agentID != "" && part == agentID {
			return true
		}
	}
	return false
}
