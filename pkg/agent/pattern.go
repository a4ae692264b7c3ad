package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jbdevprimary/triage/pkg/state"
	"github.com/jbdevprimary/triage/pkg/task"
)

// PatternAgent resolves tasks whose description or context matches a
// known failure signature, answering with a canned fix. Misses escalate
// immediately; there is nothing to retry.
type PatternAgent struct {
	id    string
	rules []patternRule
}

type patternRule struct {
	signature string
	fix       string
}

// NewPatternAgent compiles a signature -> fix table, longest signatures
// first so the most specific rule wins.
func NewPatternAgent(id string, fixes map[string]string) *PatternAgent {
	if id == "" {
		id = "pattern-match"
	}
	a := &PatternAgent{id: id}
	for sig, fix := range fixes {
		a.rules = append(a.rules, patternRule{signature: strings.ToLower(sig), fix: fix})
	}
	sort.Slice(a.rules, func(i, j int) bool {
		if len(a.rules[i].signature) == len(a.rules[j].signature) {
			return a.rules[i].signature < a.rules[j].signature
		}
		return len(a.rules[i].signature) > len(a.rules[j].signature)
	})
	return a
}

// ID returns the agent identifier.
func (a *PatternAgent) ID() string {
	return a.id
}

// Execute looks the task up in the signature table.
func (a *PatternAgent) Execute(_ context.Context, t *task.Task, _ *state.AttemptState) Outcome {
	text := strings.ToLower(t.Description + "\n" + t.Context)
	for _, rule := range a.rules {
		if strings.Contains(text, rule.signature) {
			return Success{Data: rule.fix}
		}
	}
	return Escalate{Err: fmt.Sprintf("no known fix matches task %s", t.ID)}
}
