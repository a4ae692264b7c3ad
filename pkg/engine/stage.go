package engine

import "github.com/jbdevprimary/triage/pkg/task"

// Stage describes one rung of the escalation ladder. A stage binds a
// level to policy (attempt budget, cost gate, approval gate) and to an
// agent, either explicitly via AgentID or indirectly via the registry.
type Stage struct {
	Level task.Level
	Name  string

	// AgentID binds the stage to a specific agent. Empty means consult
	// the registry for the best-ranked agent serving this level.
	AgentID string

	// MaxAttempts caps invocations at this stage; 0 means 1.
	MaxAttempts int

	// EstimatedCost is checked against the remaining daily budget
	// before the stage may run.
	EstimatedCost float64

	// Paid marks the stage as requiring the paid capability; such
	// stages are skipped entirely when paid agents are disabled.
	Paid bool

	// RequiresApproval gates the stage behind explicit task approval.
	RequiresApproval bool

	// ApprovalGate marks a stage that exists only to wait for human
	// sign-off. It is skipped once approval is granted or when the
	// approval requirement is globally disabled.
	ApprovalGate bool

	Enabled bool
}

func (s Stage) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return 1
	}
	return s.MaxAttempts
}

// DefaultLadder returns the standard 7-level remediation ladder. Only
// the three worker levels carry a retry budget; every other level gets
// a single attempt.
func DefaultLadder() []Stage {
	return []Stage{
		{Level: task.Trivial, Name: "lint-fix", AgentID: "lint-fix", Enabled: true},
		{Level: task.Simple, Name: "pattern-match", AgentID: "pattern-match", Enabled: true},
		{Level: task.Moderate, Name: "local-model", AgentID: "local-model", MaxAttempts: 3, Enabled: true},
		{Level: task.Complex, Name: "agent-first-pass", AgentID: "agent-first-pass", MaxAttempts: 2, EstimatedCost: 0.50, Paid: true, Enabled: true},
		{Level: task.Advanced, Name: "agent-boosted", AgentID: "agent-boosted", MaxAttempts: 2, EstimatedCost: 2.00, Paid: true, Enabled: true},
		{Level: task.Expert, Name: "cloud-agent", AgentID: "cloud-agent", EstimatedCost: 5.00, Paid: true, RequiresApproval: true, Enabled: true},
		{Level: task.Critical, Name: "human-review", AgentID: "human-review", ApprovalGate: true, Enabled: true},
	}
}
