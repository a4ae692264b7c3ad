// Package state owns the mutable per-task routing progress. The tracker
// is shared by all concurrently routed tasks; mutations for one task id
// are serialized, different ids proceed independently.
package state

import (
	"sync"
	"time"

	"github.com/jbdevprimary/triage/pkg/task"
)

// AttemptState is the mutable record for one task id.
type AttemptState struct {
	TaskID       string
	CurrentLevel task.Level
	Attempts     map[task.Level]int
	Errors       []string
	Cost         float64
	Resolved     bool
	Approved     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time

	mu sync.Mutex
}

// AttemptsAt returns the attempt count consumed at a level.
func (s *AttemptState) AttemptsAt(level task.Level) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Attempts[level]
}

// IsApproved reports whether approval has been granted. Approval may
// arrive from another goroutine while the task is being routed.
func (s *AttemptState) IsApproved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Approved
}

// IsResolved reports whether the task has been resolved.
func (s *AttemptState) IsResolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Resolved
}

// Level returns the task's current escalation level.
func (s *AttemptState) Level() task.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CurrentLevel
}

// SpentCost returns the task's accumulated cost.
func (s *AttemptState) SpentCost() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Cost
}

// Tracker keys attempt states by task id, creating zero-valued state on
// first access.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]*AttemptState
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]*AttemptState)}
}

// GetState returns the state for a task id, creating fresh state (level
// 0, no attempts, unresolved, unapproved) on first access. The same
// pointer is returned for the same id until ResetState.
func (tr *Tracker) GetState(taskID string) *AttemptState {
	tr.mu.RLock()
	st, ok := tr.states[taskID]
	tr.mu.RUnlock()
	if ok {
		return st
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if st, ok := tr.states[taskID]; ok {
		return st
	}
	now := time.Now().UTC()
	st = &AttemptState{
		TaskID:    taskID,
		Attempts:  make(map[task.Level]int),
		CreatedAt: now,
		UpdatedAt: now,
	}
	tr.states[taskID] = st
	return st
}

// mutate applies fn under the task's own lock and refreshes UpdatedAt.
// The lock is never held across handler invocations.
func (tr *Tracker) mutate(taskID string, fn func(*AttemptState)) {
	st := tr.GetState(taskID)
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(st)
	st.UpdatedAt = time.Now().UTC()
}

// RecordAttempt increments the attempt count for a level by one.
func (tr *Tracker) RecordAttempt(taskID string, level task.Level) {
	tr.mutate(taskID, func(st *AttemptState) {
		st.Attempts[level]++
	})
}

// RecordError appends a message to the task's error history.
func (tr *Tracker) RecordError(taskID, message string) {
	tr.mutate(taskID, func(st *AttemptState) {
		st.Errors = append(st.Errors, message)
	})
}

// Escalate raises the current level by one, clamped at the maximum.
// Escalating past the top is a no-op, not an error.
func (tr *Tracker) Escalate(taskID string) {
	tr.mutate(taskID, func(st *AttemptState) {
		st.CurrentLevel = st.CurrentLevel.Next()
	})
}

// RaiseLevel lifts the current level to at least the given level. The
// level never decreases.
func (tr *Tracker) RaiseLevel(taskID string, level task.Level) {
	tr.mutate(taskID, func(st *AttemptState) {
		if l := level.Clamp(); l > st.CurrentLevel {
			st.CurrentLevel = l
		}
	})
}

// Resolve marks the task as resolved; success is terminal.
func (tr *Tracker) Resolve(taskID string) {
	tr.mutate(taskID, func(st *AttemptState) {
		st.Resolved = true
	})
}

// AddCost adds to the task's running cost.
func (tr *Tracker) AddCost(taskID string, amount float64) {
	tr.mutate(taskID, func(st *AttemptState) {
		st.Cost += amount
	})
}

// SetApproval records an approval decision for the task.
func (tr *Tracker) SetApproval(taskID string, approved bool) {
	tr.mutate(taskID, func(st *AttemptState) {
		st.Approved = approved
	})
}

// ResetState discards all progress for a task id, as if never seen.
func (tr *Tracker) ResetState(taskID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	delete(tr.states, taskID)
}

// AllStates returns every tracked state.
func (tr *Tracker) AllStates() []*AttemptState {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	out := make([]*AttemptState, 0, len(tr.states))
	for _, st := range tr.states {
		out = append(out, st)
	}
	return out
}

// UnresolvedStates returns the states still awaiting resolution.
func (tr *Tracker) UnresolvedStates() []*AttemptState {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	var out []*AttemptState
	for _, st := range tr.states {
		st.mu.Lock()
		resolved := st.Resolved
		st.mu.Unlock()
		if !resolved {
			out = append(out, st)
		}
	}
	return out
}

// TotalCost sums the running cost across all tracked tasks.
func (tr *Tracker) TotalCost() float64 {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	var total float64
	for _, st := range tr.states {
		st.mu.Lock()
		total += st.Cost
		st.mu.Unlock()
	}
	return total
}
