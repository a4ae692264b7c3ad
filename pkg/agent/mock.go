package agent

import (
	"context"
	"fmt"

	"github.com/jbdevprimary/triage/pkg/state"
	"github.com/jbdevprimary/triage/pkg/task"
)

// MockAgent returns scripted outcomes for local runs and tests.
type MockAgent struct {
	id       string
	script   []Outcome
	fallback Outcome
	echoTask bool
	Calls    int
}

// NewMockAgent creates a mock agent that always succeeds, echoing the
// task id in its resolution message.
func NewMockAgent(id string) *MockAgent {
	if id == "" {
		id = "mock"
	}
	return &MockAgent{id: id, echoTask: true}
}

// NewScriptedAgent creates a mock agent that plays the script in order,
// then repeats the fallback outcome. A nil fallback succeeds, echoing
// the task id.
func NewScriptedAgent(id string, fallback Outcome, script ...Outcome) *MockAgent {
	return &MockAgent{id: id, script: script, fallback: fallback, echoTask: fallback == nil}
}

// ID returns the agent identifier.
func (a *MockAgent) ID() string {
	return a.id
}

// Execute plays the next scripted outcome.
func (a *MockAgent) Execute(_ context.Context, t *task.Task, _ *state.AttemptState) Outcome {
	idx := a.Calls
	a.Calls++
	if idx < len(a.script) {
		return a.script[idx]
	}
	if a.echoTask {
		return Success{Data: fmt.Sprintf("mock resolution for %s", t.ID)}
	}
	return a.fallback
}
