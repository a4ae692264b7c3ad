// Package task defines the unit of work routed through the escalation
// ladder, together with the complexity classification attached to it.
package task

import (
	"fmt"
	"strings"
)

// Level is an ordinal escalation stage, from the cheapest and fastest
// handler to the most capable and expensive one.
type Level int

const (
	Trivial Level = iota
	Simple
	Moderate
	Complex
	Advanced
	Expert
	Critical
)

// MaxLevel is the highest defined escalation level.
const MaxLevel = Critical

var levelNames = [...]string{
	Trivial:  "trivial",
	Simple:   "simple",
	Moderate: "moderate",
	Complex:  "complex",
	Advanced: "advanced",
	Expert:   "expert",
	Critical: "critical",
}

// String returns the level name, or a numeric form for out-of-range values.
func (l Level) String() string {
	if l < Trivial || l > MaxLevel {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Clamp restricts the level to the defined range [Trivial, MaxLevel].
func (l Level) Clamp() Level {
	if l < Trivial {
		return Trivial
	}
	if l > MaxLevel {
		return MaxLevel
	}
	return l
}

// Next returns the following level, clamped at MaxLevel.
func (l Level) Next() Level {
	return (l + 1).Clamp()
}

// ParseLevel resolves a level name or number to a Level.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	var l int
	if _, err := fmt.Sscanf(name, "%d", &l); err == nil && Level(l) == Level(l).Clamp() {
		return Level(l), nil
	}
	return Trivial, fmt.Errorf("unknown level %q", s)
}

// Task is an immutable unit of work supplied by the caller. The engine
// only reads it; all mutable progress lives in the state tracker.
type Task struct {
	ID          string
	Description string
	Context     string
	Metadata    map[string]string
	Labels      []string
}

// HasLabel reports whether the task carries the exact label.
func (t *Task) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Meta returns the metadata value for key, or "" when absent.
func (t *Task) Meta(key string) string {
	if t.Metadata == nil {
		return ""
	}
	return t.Metadata[key]
}

// Classification is the complexity assessment for a task. It is produced
// once, before routing begins, and never changes during execution.
type Classification struct {
	Level     Level
	Score     float64
	Reasoning string
}
