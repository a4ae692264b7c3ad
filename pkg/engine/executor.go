// Package engine implements the escalation executor: ordered fallback
// execution across increasingly capable agents, with per-level attempt
// caps, a daily cost budget and approval gates for the expensive rungs.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jbdevprimary/triage/pkg/agent"
	"github.com/jbdevprimary/triage/pkg/ledger"
	"github.com/jbdevprimary/triage/pkg/registry"
	"github.com/jbdevprimary/triage/pkg/state"
	"github.com/jbdevprimary/triage/pkg/task"
)

// Executor walks a task up the ladder until an agent succeeds or every
// level is exhausted. It never routes the same task id concurrently;
// different task ids may be processed in parallel.
type Executor struct {
	stages   map[task.Level]Stage
	maxLevel task.Level
	tracker  *state.Tracker
	ledger   *ledger.Ledger
	registry *registry.Registry
	agents   map[string]agent.Agent

	requireApproval bool
	paidEnabled     bool
	stepDelay       time.Duration
	logger          func(format string, args ...any)
}

// Option configures an Executor.
type Option func(*Executor)

// WithRegistry supplies the agent registry consulted for stages without
// an explicit agent binding.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Executor) { e.registry = r }
}

// WithAgent binds an agent id to an implementation.
func WithAgent(id string, a agent.Agent) Option {
	return func(e *Executor) { e.agents[id] = a }
}

// WithoutApprovals globally disables the approval requirement: gated
// stages run unapproved and approval-gate stages are skipped.
func WithoutApprovals() Option {
	return func(e *Executor) { e.requireApproval = false }
}

// WithoutPaidAgents globally disables paid stages.
func WithoutPaidAgents() Option {
	return func(e *Executor) { e.paidEnabled = false }
}

// WithStepDelay inserts a pause between loop iterations, used to
// throttle bursts of agent invocations.
func WithStepDelay(d time.Duration) Option {
	return func(e *Executor) { e.stepDelay = d }
}

// WithLogger sets a diagnostic logger. The engine reports nothing
// through any other channel.
func WithLogger(fn func(format string, args ...any)) Option {
	return func(e *Executor) { e.logger = fn }
}

// New creates an executor over the given stages. The tracker and ledger
// are required collaborators; there are no package-level defaults.
func New(stages []Stage, tracker *state.Tracker, led *ledger.Ledger, opts ...Option) (*Executor, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("state tracker is required")
	}
	if led == nil {
		return nil, fmt.Errorf("cost ledger is required")
	}

	e := &Executor{
		stages:          make(map[task.Level]Stage, len(stages)),
		tracker:         tracker,
		ledger:          led,
		agents:          make(map[string]agent.Agent),
		requireApproval: true,
		paidEnabled:     true,
	}
	for _, s := range stages {
		s.Level = s.Level.Clamp()
		e.stages[s.Level] = s
		if s.Level > e.maxLevel {
			e.maxLevel = s.Level
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Tracker exposes the attempt tracker for dashboards and CLIs.
func (e *Executor) Tracker() *state.Tracker { return e.tracker }

// Ledger exposes the cost ledger for dashboards and CLIs.
func (e *Executor) Ledger() *ledger.Ledger { return e.ledger }

// MaxLevel returns the highest configured stage level.
func (e *Executor) MaxLevel() task.Level { return e.maxLevel }

// Approve grants or revokes approval for a task outside of metadata
// detection, e.g. from an interactive prompt.
func (e *Executor) Approve(taskID string, approved bool) {
	e.tracker.SetApproval(taskID, approved)
}

// Process routes the task through the ladder, starting at the higher of
// its current level and the classification's level. Task-level failures
// never surface as errors: the returned result carries the trail, the
// accumulated cost and the terminal outcome. An error is returned only
// for misuse (nil task).
func (e *Executor) Process(ctx context.Context, t *task.Task, cls task.Classification) (*Result, error) {
	if t == nil {
		return nil, fmt.Errorf("task is required")
	}

	st := e.tracker.GetState(t.ID)
	if st.IsResolved() {
		// Success is terminal; re-processing a resolved task is a no-op.
		return &Result{
			TaskID:    t.ID,
			Success:   true,
			Level:     st.Level(),
			TotalCost: st.SpentCost(),
		}, nil
	}

	start := st.Level()
	if cls.Level.Clamp() > start {
		start = cls.Level.Clamp()
	}
	e.tracker.RaiseLevel(t.ID, start)

	res := &Result{TaskID: t.ID}
	first := true

	for level := start; level <= e.maxLevel; {
		if !first && e.stepDelay > 0 {
			select {
			case <-ctx.Done():
				res.Error = fmt.Sprintf("routing canceled: %v", ctx.Err())
				res.Level = level
				res.TotalCost = st.SpentCost()
				return res, nil
			case <-time.After(e.stepDelay):
			}
		}
		first = false

		stage, ok := e.stages[level]
		if !ok {
			stage = Stage{Level: level, Enabled: true}
		}
		ag, agentID, requiresApproval, estCost := e.resolve(stage)

		// Approval from task metadata sticks to the state, so it does
		// not need to be re-supplied on retry.
		approved := st.IsApproved()
		if !approved && (requiresApproval || stage.ApprovalGate) && taskApproves(t, agentID) {
			e.tracker.SetApproval(t.ID, true)
			approved = true
		}

		// Policy skips advance the level without invoking an agent,
		// consuming an attempt or leaving a trail entry.
		switch {
		case !stage.Enabled:
			e.logf("level %s: skipped (disabled)", level)
			level = e.advance(t.ID, level)
			continue
		case stage.ApprovalGate && (approved || !e.requireApproval):
			e.logf("level %s: skipped (approval gate satisfied)", level)
			level = e.advance(t.ID, level)
			continue
		case stage.Paid && !e.paidEnabled:
			e.logf("level %s: skipped (paid agents disabled)", level)
			level = e.advance(t.ID, level)
			continue
		case requiresApproval && e.requireApproval && !approved:
			e.logf("level %s: skipped (approval required)", level)
			level = e.advance(t.ID, level)
			continue
		case estCost > 0 && !e.ledger.CanAfford(estCost):
			e.logf("level %s: skipped (budget: %.2f over remaining)", level, estCost)
			level = e.advance(t.ID, level)
			continue
		}

		if ag == nil {
			res.Trail = append(res.Trail, TrailEntry{Level: level, Success: false, Error: MsgNoAgent})
			level = e.advance(t.ID, level)
			continue
		}

		if st.AttemptsAt(level) >= stage.maxAttempts() {
			res.Trail = append(res.Trail, TrailEntry{Level: level, AgentID: agentID, Success: false, Error: MsgMaxAttempts})
			level = e.advance(t.ID, level)
			continue
		}

		e.tracker.RecordAttempt(t.ID, level)
		res.Attempts++

		// No state lock is held here: the agent call may be slow.
		outcome := e.invoke(ctx, ag, t, st)

		if cost := outcome.Cost(); cost > 0 {
			e.ledger.Record(t.ID, agentID, cost, stage.Name)
			e.tracker.AddCost(t.ID, cost)
		}

		if s, ok := outcome.(agent.Success); ok {
			e.tracker.Resolve(t.ID)
			res.Trail = append(res.Trail, TrailEntry{Level: level, AgentID: agentID, Success: true})
			res.Success = true
			res.Level = level
			res.AgentID = agentID
			res.Data = s.Data
			res.TotalCost = st.SpentCost()
			return res, nil
		}

		errMsg := agent.ErrorOf(outcome)
		e.tracker.RecordError(t.ID, errMsg)
		res.Trail = append(res.Trail, TrailEntry{Level: level, AgentID: agentID, Success: false, Error: errMsg})

		_, escalating := outcome.(agent.Escalate)
		if escalating || st.AttemptsAt(level) >= stage.maxAttempts() {
			level = e.advance(t.ID, level)
		}
		// Otherwise stay: the next iteration retries this level.
	}

	res.Success = false
	res.Level = e.maxLevel
	res.Error = MsgExhausted
	res.TotalCost = st.SpentCost()
	return res, nil
}

// advance moves the task one level up, clamped, and returns the next
// loop level (which may exceed the maximum to terminate the loop).
func (e *Executor) advance(taskID string, level task.Level) task.Level {
	e.tracker.Escalate(taskID)
	return level + 1
}

// resolve picks the agent for a stage: the explicit binding when set,
// otherwise the registry's best-ranked agent for the level. Registry
// definitions contribute their own approval requirement and declared
// cost to the stage's policy.
func (e *Executor) resolve(stage Stage) (ag agent.Agent, agentID string, requiresApproval bool, estCost float64) {
	requiresApproval = stage.RequiresApproval
	estCost = stage.EstimatedCost
	agentID = stage.AgentID

	if stage.AgentID != "" {
		if a, ok := e.agents[stage.AgentID]; ok {
			return a, stage.AgentID, requiresApproval, estCost
		}
		if e.registry != nil {
			if d, ok := e.registry.Get(stage.AgentID); ok && d.Enabled && d.Agent != nil {
				return d.Agent, d.ID, requiresApproval || d.RequiresApproval, maxCost(estCost, d.CostPerRun)
			}
		}
		return nil, agentID, requiresApproval, estCost
	}

	if e.registry != nil {
		if d, ok := e.registry.OptimalFor(stage.Level); ok && d.Agent != nil {
			return d.Agent, d.ID, requiresApproval || d.RequiresApproval, maxCost(estCost, d.CostPerRun)
		}
	}
	return nil, "", requiresApproval, estCost
}

// invoke runs the agent, converting a panic into an escalating failure
// so a broken agent can never take the loop down.
func (e *Executor) invoke(ctx context.Context, ag agent.Agent, t *task.Task, st *state.AttemptState) (out agent.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = agent.Escalate{Err: fmt.Sprintf("agent %s panicked: %v", ag.ID(), r)}
		}
	}()
	out = ag.Execute(ctx, t, st)
	if out == nil {
		out = agent.Escalate{Err: fmt.Sprintf("agent %s returned no outcome", ag.ID())}
	}
	return out
}

func (e *Executor) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger(format, args...)
	}
}

func maxCost(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
