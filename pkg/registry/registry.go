// Package registry keeps the ordered catalog of agents per capability
// tier. Within a tier, agents are ranked by priority first, then cost,
// so the cheapest preferred agent is always tried first.
package registry

import (
	"sort"
	"sync"

	"github.com/jbdevprimary/triage/pkg/agent"
	"github.com/jbdevprimary/triage/pkg/task"
)

// Definition describes a registered agent and its routing policy.
type Definition struct {
	ID               string
	Name             string
	CostPerRun       float64
	Priority         int // lower is tried first
	Tiers            []task.Level
	RequiresApproval bool
	Enabled          bool
	Agent            agent.Agent
}

// ServesTier reports whether the definition's tier set contains the tier.
func (d Definition) ServesTier(tier task.Level) bool {
	for _, t := range d.Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// Registry holds agent definitions. All operations are safe for
// concurrent use and none of them fail: querying an unknown tier or id
// simply yields nothing.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds or replaces a definition.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := def
	r.defs[def.ID] = &d
}

// RegisterAll registers every definition in order.
func (r *Registry) RegisterAll(defs []Definition) {
	for _, d := range defs {
		r.Register(d)
	}
}

// Unregister removes a definition; unknown ids are a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.defs, id)
}

// Get returns a copy of the definition for id.
func (r *Registry) Get(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[id]
	if !ok {
		return Definition{}, false
	}
	return *d, true
}

// SetEnabled toggles an agent without re-registering it.
func (r *Registry) SetEnabled(id string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.defs[id]; ok {
		d.Enabled = enabled
	}
}

// SetPriority reconfigures an agent's ranking priority.
func (r *Registry) SetPriority(id string, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.defs[id]; ok {
		d.Priority = priority
	}
}

// SetCost reconfigures an agent's declared cost per run.
func (r *Registry) SetCost(id string, cost float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.defs[id]; ok {
		d.CostPerRun = cost
	}
}

// ForTier returns the agents serving a tier, sorted ascending by
// (priority, cost). Disabled agents are filtered out unless
// includeDisabled is set.
func (r *Registry) ForTier(tier task.Level, includeDisabled bool) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Definition
	for _, d := range r.defs {
		if !d.ServesTier(tier) {
			continue
		}
		if !d.Enabled && !includeDisabled {
			continue
		}
		out = append(out, *d)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		if out[i].CostPerRun != out[j].CostPerRun {
			return out[i].CostPerRun < out[j].CostPerRun
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// OptimalFor returns the best-ranked enabled agent for a tier.
func (r *Registry) OptimalFor(tier task.Level) (Definition, bool) {
	candidates := r.ForTier(tier, false)
	if len(candidates) == 0 {
		return Definition{}, false
	}
	return candidates[0], true
}
