package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jbdevprimary/triage/pkg/task"
)

func setHomeEnv(t *testing.T, home string) {
	t.Helper()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("TRIAGE_LOCAL_BASE_URL", "")
}

func TestConfigUsesFileAPIKeysWhenEnvUnset(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearKeyEnv(t)

	configDir := filepath.Join(home, ".triage")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data := []byte("api_keys:\n  anthropic: file-ant\n  openai: file-openai\n  google: file-google\nlocal:\n  base_url: http://localhost:11434/v1\n")
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnthropicAPIKey != "file-ant" || cfg.OpenAIAPIKey != "file-openai" || cfg.GoogleAPIKey != "file-google" {
		t.Fatalf("expected file API keys to be used: %+v", cfg)
	}
	if cfg.LocalBaseURL != "http://localhost:11434/v1" {
		t.Fatalf("local base url mismatch: %q", cfg.LocalBaseURL)
	}
}

func TestConfigEnvTakesPrecedence(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearKeyEnv(t)

	configDir := filepath.Join(home, ".triage")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	data := []byte("api_keys:\n  anthropic: file-ant\n")
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "env-ant")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AnthropicAPIKey != "env-ant" {
		t.Fatalf("expected env key to win, got %q", cfg.AnthropicAPIKey)
	}
	if !cfg.HasProvider("anthropic") || cfg.HasProvider("openai") {
		t.Fatalf("provider detection mismatch: %+v", cfg)
	}
	if !cfg.HasProvider("builtin") || !cfg.HasProvider("local") {
		t.Fatal("builtin and local providers need no credentials")
	}
}

func TestDefaultRoutingConfigWhenNoFile(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearKeyEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rc := cfg.RoutingConfig
	if rc == nil || len(rc.Levels) != 7 {
		t.Fatalf("expected 7 default levels, got %+v", rc)
	}
	if rc.RequireApproval == nil || !*rc.RequireApproval {
		t.Fatal("approval requirement must default on")
	}
	if rc.EnablePaidAgents == nil || !*rc.EnablePaidAgents {
		t.Fatal("paid agents must default on")
	}
	if rc.DailyBudget != 0 {
		t.Fatalf("default budget must be unlimited, got %f", rc.DailyBudget)
	}
}

func TestLoadRoutingConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	data := []byte(`daily_budget: 25.0
step_delay_ms: 100
levels:
  - level: 0
    name: quick
    agent: pattern-match
  - level: 1
    name: escalated
    agent: cloud
    max_attempts: 2
    estimated_cost: 1.5
    paid: true
    requires_approval: true
  - level: 2
    name: parked
    agent: local
    disabled: true
`)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write routing: %v", err)
	}

	rc, err := LoadRoutingConfig(path)
	if err != nil {
		t.Fatalf("load routing: %v", err)
	}
	if rc.DailyBudget != 25.0 {
		t.Fatalf("budget mismatch: %f", rc.DailyBudget)
	}
	if rc.StepDelay() != 100*time.Millisecond {
		t.Fatalf("step delay mismatch: %v", rc.StepDelay())
	}

	stages := rc.Stages(DefaultAliases())
	if len(stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(stages))
	}
	if stages[1].AgentID != "cloud-agent" {
		t.Fatalf("alias not resolved: %q", stages[1].AgentID)
	}
	if !stages[1].Paid || !stages[1].RequiresApproval || stages[1].MaxAttempts != 2 {
		t.Fatalf("stage policy mismatch: %+v", stages[1])
	}
	if stages[2].Enabled {
		t.Fatal("disabled level must convert to a disabled stage")
	}
	if stages[2].AgentID != "local-model" {
		t.Fatalf("alias not resolved: %q", stages[2].AgentID)
	}
}

func TestLoadRoutingConfigRejectsDuplicateLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	data := []byte("levels:\n  - level: 1\n    name: a\n  - level: 1\n    name: b\n")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write routing: %v", err)
	}
	if _, err := LoadRoutingConfig(path); err == nil {
		t.Fatal("expected duplicate-level error")
	}
}

func TestLoadRoutingConfigRejectsOutOfRangeLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routing.yaml")
	data := []byte("levels:\n  - level: 9\n    name: beyond\n")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write routing: %v", err)
	}
	if _, err := LoadRoutingConfig(path); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestStagesWithoutAliases(t *testing.T) {
	rc := DefaultRoutingConfig()
	stages := rc.Stages(nil)
	if len(stages) != 7 {
		t.Fatalf("expected 7 stages, got %d", len(stages))
	}
	if stages[0].Level != task.Trivial || stages[6].Level != task.Critical {
		t.Fatalf("level range mismatch: %+v", stages)
	}
	if !stages[6].ApprovalGate {
		t.Fatal("top stage must be an approval gate")
	}
}

func TestPricingFor(t *testing.T) {
	rc := DefaultRoutingConfig()
	p := rc.PricingFor("cloud-agent")
	if p.PromptPer1K == 0 || p.CompletionPer1K == 0 {
		t.Fatalf("cloud-agent pricing missing: %+v", p)
	}
	if got := rc.PricingFor("pattern-match"); got != (ModelPricing{}) {
		t.Fatalf("free agents must price at zero: %+v", got)
	}
}

func TestAliasResolution(t *testing.T) {
	a := DefaultAliases()
	if got := a.Resolve("cloud"); got != "cloud-agent" {
		t.Fatalf("resolve mismatch: %q", got)
	}
	if got := a.Resolve("cloud-agent"); got != "cloud-agent" {
		t.Fatalf("canonical ids must pass through: %q", got)
	}
	if !a.IsAlias("local") || a.IsAlias("local-model") {
		t.Fatal("alias detection mismatch")
	}
	if got := a.ProviderForAgent("agent-boosted"); got != "google" {
		t.Fatalf("provider lookup mismatch: %q", got)
	}
	var nilAliases *AgentAliases
	if got := nilAliases.Resolve("cloud"); got != "cloud" {
		t.Fatalf("nil aliases must be identity: %q", got)
	}
}

func TestValidateRoutingConfig(t *testing.T) {
	a := DefaultAliases()
	if errs := a.ValidateRoutingConfig(DefaultRoutingConfig()); len(errs) != 0 {
		t.Fatalf("default config must validate: %v", errs)
	}

	bad := &RoutingConfig{Levels: []LevelConfig{{Level: 0, Name: "x", Agent: "no-such-agent"}}}
	if errs := a.ValidateRoutingConfig(bad); len(errs) != 1 {
		t.Fatalf("expected one validation error, got %v", errs)
	}

	registryBacked := &RoutingConfig{Levels: []LevelConfig{{Level: 0, Name: "x"}}}
	if errs := a.ValidateRoutingConfig(registryBacked); len(errs) != 0 {
		t.Fatalf("agentless levels must validate: %v", errs)
	}
}

func TestLoadWithRoutingFile(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearKeyEnv(t)

	path := filepath.Join(t.TempDir(), "routing.yaml")
	data := []byte("daily_budget: 5\nlevels:\n  - level: 0\n    name: only\n    agent: pattern-match\n")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write routing: %v", err)
	}

	cfg, err := LoadWithRoutingFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RoutingConfig.DailyBudget != 5 || len(cfg.RoutingConfig.Levels) != 1 {
		t.Fatalf("routing file not honored: %+v", cfg.RoutingConfig)
	}

	if _, err := LoadWithRoutingFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing routing file")
	}
}

func TestConfigPaths(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)
	clearKeyEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if filepath.Dir(cfg.DBPath()) != cfg.ConfigDir || filepath.Dir(cfg.LedgerPath()) != cfg.ConfigDir {
		t.Fatalf("paths must live in the config dir: %q %q", cfg.DBPath(), cfg.LedgerPath())
	}
}
