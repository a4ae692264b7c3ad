package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jbdevprimary/triage/pkg/engine"
	"github.com/jbdevprimary/triage/pkg/task"
)

// RoutingConfig holds the escalation ladder configuration.
type RoutingConfig struct {
	DailyBudget      float64       `yaml:"daily_budget,omitempty"`
	RequireApproval  *bool         `yaml:"require_approval,omitempty"`
	EnablePaidAgents *bool         `yaml:"enable_paid_agents,omitempty"`
	StepDelayMs      int           `yaml:"step_delay_ms,omitempty"`
	Levels           []LevelConfig `yaml:"levels"`
	Pricing          PricingConfig `yaml:"pricing,omitempty"`
}

// LevelConfig defines one rung of the ladder.
type LevelConfig struct {
	Level            int      `yaml:"level"`
	Name             string   `yaml:"name"`
	Agent            string   `yaml:"agent,omitempty"`
	MaxAttempts      int      `yaml:"max_attempts,omitempty"`
	EstimatedCost    float64  `yaml:"estimated_cost,omitempty"`
	Paid             bool     `yaml:"paid,omitempty"`
	RequiresApproval bool     `yaml:"requires_approval,omitempty"`
	ApprovalGate     bool     `yaml:"approval_gate,omitempty"`
	Disabled         bool     `yaml:"disabled,omitempty"`
	Command          []string `yaml:"command,omitempty"`
	Model            string   `yaml:"model,omitempty"`
}

// PricingConfig maps agent id -> pricing.
type PricingConfig map[string]ModelPricing

// ModelPricing defines per-1k token pricing.
type ModelPricing struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k,omitempty"`
	CompletionPer1K float64 `yaml:"completion_per_1k,omitempty"`
}

// LoadRoutingConfig reads ladder configuration from a YAML file.
func LoadRoutingConfig(path string) (*RoutingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg RoutingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := validateRoutingConfig(&cfg); err != nil {
		return nil, err
	}
	applyRoutingDefaults(&cfg)
	return &cfg, nil
}

// DefaultRoutingConfig returns the standard 7-level ladder.
func DefaultRoutingConfig() *RoutingConfig {
	cfg := &RoutingConfig{
		Levels: []LevelConfig{
			{Level: 0, Name: "lint-fix", Agent: "lint-fix", Command: []string{"golangci-lint", "run", "--fix"}},
			{Level: 1, Name: "pattern-match", Agent: "pattern-match"},
			{Level: 2, Name: "local-model", Agent: "local-model", MaxAttempts: 3, Model: "qwen2.5-coder"},
			{Level: 3, Name: "agent-first-pass", Agent: "agent-first-pass", MaxAttempts: 2, EstimatedCost: 0.50, Paid: true, Model: "claude-sonnet-4-20250514"},
			{Level: 4, Name: "agent-boosted", Agent: "agent-boosted", MaxAttempts: 2, EstimatedCost: 2.00, Paid: true, Model: "gemini-2.0-pro"},
			{Level: 5, Name: "cloud-agent", Agent: "cloud-agent", EstimatedCost: 5.00, Paid: true, RequiresApproval: true, Model: "claude-opus-4-20250514"},
			{Level: 6, Name: "human-review", Agent: "human-review", ApprovalGate: true},
		},
		Pricing: PricingConfig{
			"local-model":      {},
			"agent-first-pass": {PromptPer1K: 0.003, CompletionPer1K: 0.015},
			"agent-boosted":    {PromptPer1K: 0.00125, CompletionPer1K: 0.005},
			"cloud-agent":      {PromptPer1K: 0.015, CompletionPer1K: 0.075},
		},
	}

	applyRoutingDefaults(cfg)
	return cfg
}

// Stages converts the level configuration into engine stages. Aliases, when
// provided, resolve friendly agent names to canonical ids; nil means no
// aliasing.
func (c *RoutingConfig) Stages(aliases *AgentAliases) []engine.Stage {
	stages := make([]engine.Stage, 0, len(c.Levels))
	for _, lvl := range c.Levels {
		stages = append(stages, engine.Stage{
			Level:            task.Level(lvl.Level).Clamp(),
			Name:             lvl.Name,
			AgentID:          aliases.Resolve(lvl.Agent),
			MaxAttempts:      lvl.MaxAttempts,
			EstimatedCost:    lvl.EstimatedCost,
			Paid:             lvl.Paid,
			RequiresApproval: lvl.RequiresApproval,
			ApprovalGate:     lvl.ApprovalGate,
			Enabled:          !lvl.Disabled,
		})
	}
	return stages
}

// StepDelay returns the configured inter-level pause.
func (c *RoutingConfig) StepDelay() time.Duration {
	return time.Duration(c.StepDelayMs) * time.Millisecond
}

// PricingFor returns the pricing configured for an agent id, zero when
// the agent has none (free agents).
func (c *RoutingConfig) PricingFor(agentID string) ModelPricing {
	if c.Pricing == nil {
		return ModelPricing{}
	}
	return c.Pricing[agentID]
}

func validateRoutingConfig(cfg *RoutingConfig) error {
	if len(cfg.Levels) == 0 {
		return fmt.Errorf("routing config defines no levels")
	}
	seen := make(map[int]string, len(cfg.Levels))
	for _, lvl := range cfg.Levels {
		if lvl.Level < 0 || lvl.Level > int(task.MaxLevel) {
			return fmt.Errorf("level %d (%s) out of range 0..%d", lvl.Level, lvl.Name, task.MaxLevel)
		}
		if prev, dup := seen[lvl.Level]; dup {
			return fmt.Errorf("level %d defined twice (%s and %s)", lvl.Level, prev, lvl.Name)
		}
		seen[lvl.Level] = lvl.Name
	}
	return nil
}

func applyRoutingDefaults(cfg *RoutingConfig) {
	if cfg == nil {
		return
	}
	if cfg.RequireApproval == nil {
		enabled := true
		cfg.RequireApproval = &enabled
	}
	if cfg.EnablePaidAgents == nil {
		enabled := true
		cfg.EnablePaidAgents = &enabled
	}
	if cfg.StepDelayMs < 0 {
		cfg.StepDelayMs = 0
	}
	for i := range cfg.Levels {
		if cfg.Levels[i].Name == "" {
			cfg.Levels[i].Name = cfg.Levels[i].Agent
		}
	}
}
