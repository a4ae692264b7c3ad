package engine

import "github.com/jbdevprimary/triage/pkg/task"

// Fixed messages callers can match on when inspecting a trail or result.
const (
	MsgNoAgent     = "no agent registered"
	MsgMaxAttempts = "max attempts exceeded"
	MsgExhausted   = "all escalation levels exhausted"
)

// TrailEntry records one agent invocation, or one free advance past a
// level with no agent or an exhausted attempt budget. Levels skipped by
// policy leave no entry.
type TrailEntry struct {
	Level   task.Level `json:"level"`
	AgentID string     `json:"agent_id,omitempty"`
	Success bool       `json:"success"`
	Error   string     `json:"error,omitempty"`
}

// Result is the audit record of one routing run.
type Result struct {
	TaskID    string       `json:"task_id"`
	Success   bool         `json:"success"`
	Level     task.Level   `json:"level"`
	AgentID   string       `json:"agent_id,omitempty"`
	Data      string       `json:"data,omitempty"`
	Error     string       `json:"error,omitempty"`
	Attempts  int          `json:"attempts"`
	TotalCost float64      `json:"total_cost"`
	Trail     []TrailEntry `json:"trail"`
}
