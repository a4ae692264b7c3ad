package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// AgentAliases manages agent alias resolution and validation. Aliases let a
// routing file refer to agents by friendly names; the provider map records
// which credential each canonical agent needs.
type AgentAliases struct {
	Aliases   map[string]string   `yaml:"aliases"`
	Providers map[string][]string `yaml:"providers"`
}

// LoadAliases reads agent aliases from a YAML file.
func LoadAliases(path string) (*AgentAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var aliases AgentAliases
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, err
	}

	if aliases.Aliases == nil {
		aliases.Aliases = make(map[string]string)
	}
	if aliases.Providers == nil {
		aliases.Providers = make(map[string][]string)
	}

	return &aliases, nil
}

// LoadAliasesWithFallback loads aliases from the user config dir, falling
// back to the built-in defaults if no file exists.
func LoadAliasesWithFallback() (*AgentAliases, error) {
	home, err := os.UserHomeDir()
	if err == nil {
		userPath := filepath.Join(home, ".triage", "agents.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return LoadAliases(userPath)
		}
	}
	return DefaultAliases(), nil
}

// Resolve returns the canonical agent id for an alias.
// If the input is not an alias, it returns the input unchanged.
func (a *AgentAliases) Resolve(agentOrAlias string) string {
	if a == nil || a.Aliases == nil {
		return agentOrAlias
	}
	if canonical, ok := a.Aliases[agentOrAlias]; ok {
		return canonical
	}
	return agentOrAlias
}

// IsAlias returns true if the given string is a known alias.
func (a *AgentAliases) IsAlias(name string) bool {
	if a == nil || a.Aliases == nil {
		return false
	}
	_, ok := a.Aliases[name]
	return ok
}

// ListAliases returns a copy of the aliases map.
func (a *AgentAliases) ListAliases() map[string]string {
	if a == nil || a.Aliases == nil {
		return make(map[string]string)
	}
	result := make(map[string]string, len(a.Aliases))
	for k, v := range a.Aliases {
		result[k] = v
	}
	return result
}

// ListProviders returns a sorted list of provider names.
func (a *AgentAliases) ListProviders() []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	providers := make([]string, 0, len(a.Providers))
	for p := range a.Providers {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}

// ProviderAgents returns the agents backed by a given provider.
func (a *AgentAliases) ProviderAgents(provider string) []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	return a.Providers[provider]
}

// ProviderForAgent returns the provider name for a canonical agent id.
func (a *AgentAliases) ProviderForAgent(agentID string) string {
	if a == nil || a.Providers == nil {
		return ""
	}
	for provider, agents := range a.Providers {
		for _, id := range agents {
			if id == agentID {
				return provider
			}
		}
	}
	return ""
}

// ValidateRoutingConfig checks that every level's agent resolves to an agent
// known to some provider. Returns a slice of validation errors (empty if all
// valid).
func (a *AgentAliases) ValidateRoutingConfig(cfg *RoutingConfig) []error {
	if a == nil || cfg == nil {
		return nil
	}

	var errors []error
	for _, lvl := range cfg.Levels {
		if lvl.Agent == "" {
			continue // registry-backed level
		}
		id := a.Resolve(lvl.Agent)
		if a.ProviderForAgent(id) == "" {
			errors = append(errors, fmt.Errorf("level %d (%s): unknown agent %q", lvl.Level, lvl.Name, id))
		}
	}
	return errors
}

// DefaultAliases returns the default agent aliases configuration.
func DefaultAliases() *AgentAliases {
	return &AgentAliases{
		Aliases: map[string]string{
			"lint":       "lint-fix",
			"patterns":   "pattern-match",
			"local":      "local-model",
			"first-pass": "agent-first-pass",
			"boosted":    "agent-boosted",
			"cloud":      "cloud-agent",
			"human":      "human-review",
		},
		Providers: map[string][]string{
			"builtin":   {"lint-fix", "pattern-match", "human-review"},
			"local":     {"local-model"},
			"anthropic": {"agent-first-pass", "cloud-agent"},
			"google":    {"agent-boosted"},
		},
	}
}
