// Package agent defines the contract between the escalation engine and
// the handlers it invokes, plus the built-in agent implementations.
package agent

import (
	"context"

	"github.com/jbdevprimary/triage/pkg/state"
	"github.com/jbdevprimary/triage/pkg/task"
)

// Agent attempts to resolve a task at one escalation level. Execute
// never returns a Go error: failures are encoded in the outcome so the
// engine can decide between retry and escalation. An agent returning
// Retry must be safe to invoke again with the same task.
type Agent interface {
	// ID returns the agent's identifier, used for approval labels,
	// cost entries and the trail.
	ID() string

	// Execute attempts the task. The state argument is the task's
	// current progress (prior errors, attempt counts) and is read-only
	// from the agent's point of view.
	Execute(ctx context.Context, t *task.Task, st *state.AttemptState) Outcome
}

// Outcome is the discriminated result of one agent invocation: exactly
// one of Success, Retry or Escalate.
type Outcome interface {
	// Cost returns what the invocation charged, zero for free agents.
	// A failed invocation may still have charged for partial work.
	Cost() float64
	outcome()
}

// Success resolves the task.
type Success struct {
	Data  string
	Spent float64
}

// Retry is a failure worth re-attempting at the same level while the
// level's attempt budget lasts.
type Retry struct {
	Err   string
	Spent float64
}

// Escalate is a failure that should advance to the next level without
// exhausting the current level's attempt budget.
type Escalate struct {
	Err   string
	Spent float64
}

func (o Success) Cost() float64  { return o.Spent }
func (o Retry) Cost() float64    { return o.Spent }
func (o Escalate) Cost() float64 { return o.Spent }

func (Success) outcome()  {}
func (Retry) outcome()    {}
func (Escalate) outcome() {}

// ErrorOf returns the failure message carried by an outcome, "" for
// Success.
func ErrorOf(o Outcome) string {
	switch v := o.(type) {
	case Retry:
		return v.Err
	case Escalate:
		return v.Err
	default:
		return ""
	}
}

// Usage captures normalized token usage for model-backed agents.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// Pricing defines per-1k token pricing for a model-backed agent.
type Pricing struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// CostOf estimates the spend for a call's usage.
func (p Pricing) CostOf(u Usage) float64 {
	return (float64(u.PromptTokens)/1000.0)*p.PromptPer1K +
		(float64(u.CompletionTokens)/1000.0)*p.CompletionPer1K
}
