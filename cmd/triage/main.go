package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jbdevprimary/triage/pkg/agent"
	"github.com/jbdevprimary/triage/pkg/config"
	"github.com/jbdevprimary/triage/pkg/engine"
	"github.com/jbdevprimary/triage/pkg/ledger"
	"github.com/jbdevprimary/triage/pkg/state"
	"github.com/jbdevprimary/triage/pkg/store"
	"github.com/jbdevprimary/triage/pkg/task"
)

var (
	configFile string
	aliases    *config.AgentAliases
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "triage",
		Short: "Escalation router that walks tasks up a ladder of increasingly capable agents",
		Long: `Triage routes tasks through an ordered ladder of remediation agents,
	from free local tools up to paid cloud sessions, retrying within
	per-level attempt budgets and escalating on failure. Paid levels are
	gated by a daily cost budget and, for the expensive rungs, by explicit
	approval.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to routing config file")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(levelsCmd())
	rootCmd.AddCommand(agentsCmd())
	rootCmd.AddCommand(budgetCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		taskID      string
		contextFlag string
		contextFile string
		labels      []string
		metaPairs   []string
		levelFlag   int
		approveFlag bool
		noApproval  bool
		noPaid      bool
		jsonFlag    bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "run [description]",
		Short: "Route a task through the escalation ladder",
		Long: `Classifies the task and walks it up the ladder until an agent
	resolves it or every level is exhausted.

	Use --context or --context-file to attach failure output (logs, diffs,
	stack traces) for the agents to work from; "-" reads stdin.
	Use --approve to pre-approve gated agents, or attach an
	"approved:<agent-id>" label to approve a single one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			taskCtx, err := readTaskContext(contextFlag, contextFile)
			if err != nil {
				return err
			}

			meta, err := parseMeta(metaPairs)
			if err != nil {
				return err
			}
			if approveFlag {
				meta["approved"] = "all"
			}

			if taskID == "" {
				taskID = fmt.Sprintf("task-%d", os.Getpid())
			}
			t := &task.Task{
				ID:          taskID,
				Description: args[0],
				Context:     taskCtx,
				Metadata:    meta,
				Labels:      labels,
			}

			cls := task.Classify(t)
			if levelFlag >= 0 {
				cls = task.Classification{
					Level:     task.Level(levelFlag).Clamp(),
					Score:     1,
					Reasoning: "level forced on the command line",
				}
			}
			fmt.Fprintf(os.Stderr, "Classified %s at level %d (%s): %s\n",
				t.ID, int(cls.Level), cls.Level, cls.Reasoning)

			db, err := store.Open(cfg.DBPath())
			if err != nil {
				return fmt.Errorf("failed to open archive: %w", err)
			}
			defer db.Close()

			led := ledger.New(cfg.RoutingConfig.DailyBudget)
			entries, err := db.LoadEntries(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to restore ledger: %w", err)
			}
			led.Load(entries)

			eng, err := buildEngine(cfg, led, noApproval, noPaid, verbose)
			if err != nil {
				return err
			}

			res, err := eng.Process(cmd.Context(), t, cls)
			if err != nil {
				return err
			}

			if err := db.ReplaceEntries(cmd.Context(), led.Entries()); err != nil {
				return fmt.Errorf("failed to persist ledger: %w", err)
			}
			if err := db.SaveResult(cmd.Context(), res); err != nil {
				return fmt.Errorf("failed to archive result: %w", err)
			}

			if jsonFlag {
				data, err := json.MarshalIndent(res, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			printResult(res, led)
			if !res.Success {
				return fmt.Errorf("task %s not resolved: %s", res.TaskID, res.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "id", "", "task id (defaults to a generated one)")
	cmd.Flags().StringVarP(&contextFlag, "context", "c", "", `task context; "-" reads stdin`)
	cmd.Flags().StringVar(&contextFile, "context-file", "", "file to read task context from")
	cmd.Flags().StringArrayVar(&labels, "label", nil, "task label (repeatable), e.g. approved:cloud-agent")
	cmd.Flags().StringArrayVar(&metaPairs, "meta", nil, "task metadata key=value (repeatable)")
	cmd.Flags().IntVar(&levelFlag, "level", -1, "start at this level instead of classifying")
	cmd.Flags().BoolVar(&approveFlag, "yes", false, "pre-approve all gated agents for this task")
	cmd.Flags().BoolVar(&noApproval, "no-approval", false, "disable the approval requirement")
	cmd.Flags().BoolVar(&noPaid, "no-paid", false, "disable paid levels")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "print the result as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log level skips and escalations")

	return cmd
}

func classifyCmd() *cobra.Command {
	var contextFlag string

	cmd := &cobra.Command{
		Use:   "classify [description]",
		Short: "Show how a task would be classified, without routing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := &task.Task{ID: "classify", Description: args[0], Context: contextFlag}
			cls := task.Classify(t)
			fmt.Printf("Level:     %d (%s)\n", int(cls.Level), cls.Level)
			fmt.Printf("Score:     %.2f\n", cls.Score)
			fmt.Printf("Reasoning: %s\n", cls.Reasoning)
			return nil
		},
	}

	cmd.Flags().StringVarP(&contextFlag, "context", "c", "", "task context")
	return cmd
}

func levelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "Show the configured escalation ladder",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			agents, err := createAgents(cfg)
			if err != nil {
				return fmt.Errorf("failed to create agents: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LEVEL\tNAME\tAGENT\tATTEMPTS\tEST COST\tPOLICY\tSTATUS")

			for _, stage := range cfg.RoutingConfig.Stages(aliases) {
				attempts := stage.MaxAttempts
				if attempts <= 0 {
					attempts = 1
				}

				var policy []string
				if stage.Paid {
					policy = append(policy, "paid")
				}
				if stage.RequiresApproval {
					policy = append(policy, "approval")
				}
				if stage.ApprovalGate {
					policy = append(policy, "gate")
				}

				status := "ready"
				switch {
				case !stage.Enabled:
					status = "disabled"
				case stage.ApprovalGate:
					status = "-"
				case agents[stage.AgentID] == nil:
					status = "no agent"
				}

				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.2f\t%s\t%s\n",
					int(stage.Level), stage.Name, stage.AgentID, attempts,
					stage.EstimatedCost, strings.Join(policy, ","), status)
			}

			return w.Flush()
		},
	}
}

func agentsCmd() *cobra.Command {
	var resolveFlag bool
	var validateFlag bool

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List agent providers, aliases, and credential status",
		Long: `Lists providers and the agents they back.

	Use --resolve to show aliases and what they resolve to.
	Use --validate to check every level in routing.yaml names a known agent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if resolveFlag {
				return showAliases()
			}
			if validateFlag {
				return validateAliases(cfg)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tAGENTS\tSTATUS")

			for _, provider := range aliases.ListProviders() {
				status := "no key"
				if cfg.HasProvider(provider) {
					status = "ready"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					provider, strings.Join(aliases.ProviderAgents(provider), ", "), status)
			}

			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&resolveFlag, "resolve", false, "show aliases and what they resolve to")
	cmd.Flags().BoolVar(&validateFlag, "validate", false, "check all levels in routing.yaml name known agents")

	return cmd
}

func showAliases() error {
	if aliases == nil {
		fmt.Println("No agent aliases configured.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ALIAS\tAGENT\tPROVIDER")

	aliasMap := aliases.ListAliases()
	var aliasNames []string
	for name := range aliasMap {
		aliasNames = append(aliasNames, name)
	}
	sort.Strings(aliasNames)

	for _, alias := range aliasNames {
		id := aliasMap[alias]
		fmt.Fprintf(w, "%s\t%s\t%s\n", alias, id, aliases.ProviderForAgent(id))
	}

	return w.Flush()
}

func validateAliases(cfg *config.Config) error {
	if aliases == nil {
		fmt.Println("No agent aliases configured - nothing to validate.")
		return nil
	}

	errors := aliases.ValidateRoutingConfig(cfg.RoutingConfig)
	if len(errors) == 0 {
		fmt.Println("All levels in routing.yaml name known agents.")
		return nil
	}

	fmt.Fprintf(os.Stderr, "Found %d validation errors:\n", len(errors))
	for _, err := range errors {
		fmt.Fprintf(os.Stderr, "  - %s\n", err)
	}
	return fmt.Errorf("validation failed")
}

func budgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "budget",
		Short: "Show today's spend against the daily budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := store.Open(cfg.DBPath())
			if err != nil {
				return fmt.Errorf("failed to open archive: %w", err)
			}
			defer db.Close()

			led := ledger.New(cfg.RoutingConfig.DailyBudget)
			entries, err := db.LoadEntries(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to restore ledger: %w", err)
			}
			led.Load(entries)

			stats := led.TodayStats()
			fmt.Printf("Spent today:  $%.2f across %d calls\n", stats.Total, stats.Count)
			if led.GetDailyBudget() == 0 {
				fmt.Println("Daily budget: unlimited")
			} else {
				fmt.Printf("Daily budget: $%.2f ($%.2f remaining)\n",
					led.GetDailyBudget(), led.RemainingBudget())
			}

			if len(stats.ByAgent) == 0 {
				return nil
			}

			var ids []string
			for id := range stats.ByAgent {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\nAGENT\tSPENT")
			for _, id := range ids {
				fmt.Fprintf(w, "%s\t$%.2f\n", id, stats.ByAgent[id])
			}
			return w.Flush()
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	var taskID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show archived routing results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := store.Open(cfg.DBPath())
			if err != nil {
				return fmt.Errorf("failed to open archive: %w", err)
			}
			defer db.Close()

			var results []*engine.Result
			if taskID != "" {
				results, err = db.ResultsForTask(cmd.Context(), taskID)
			} else {
				results, err = db.ListResults(cmd.Context(), limit)
			}
			if err != nil {
				return fmt.Errorf("failed to list results: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tOUTCOME\tLEVEL\tAGENT\tATTEMPTS\tCOST")
			for _, res := range results {
				outcome := "resolved"
				if !res.Success {
					outcome = "exhausted"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t$%.2f\n",
					res.TaskID, outcome, int(res.Level), res.AgentID, res.Attempts, res.TotalCost)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "max results to show")
	cmd.Flags().StringVar(&taskID, "task", "", "show only runs for this task id")

	return cmd
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadWithRoutingFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	aliases, _ = config.LoadAliasesWithFallback()

	return cfg, nil
}

// buildEngine wires the executor from config: stages, agents, policy
// switches, step delay.
func buildEngine(cfg *config.Config, led *ledger.Ledger, noApproval, noPaid, verbose bool) (*engine.Executor, error) {
	agents, err := createAgents(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create agents: %w", err)
	}

	opts := make([]engine.Option, 0, len(agents)+4)
	for id, a := range agents {
		opts = append(opts, engine.WithAgent(id, a))
	}

	rc := cfg.RoutingConfig
	if noApproval || (rc.RequireApproval != nil && !*rc.RequireApproval) {
		opts = append(opts, engine.WithoutApprovals())
	}
	if noPaid || (rc.EnablePaidAgents != nil && !*rc.EnablePaidAgents) {
		opts = append(opts, engine.WithoutPaidAgents())
	}
	if rc.StepDelay() > 0 {
		opts = append(opts, engine.WithStepDelay(rc.StepDelay()))
	}
	if verbose {
		opts = append(opts, engine.WithLogger(func(format string, args ...any) {
			log.Printf(format, args...)
		}))
	}

	return engine.New(rc.Stages(aliases), state.NewTracker(), led, opts...)
}

// createAgents builds the agents the configured credentials allow.
// Levels whose provider has no key simply stay unbound; the engine
// records a no-agent advance when it reaches them.
func createAgents(cfg *config.Config) (map[string]agent.Agent, error) {
	agents := make(map[string]agent.Agent)

	for _, lvl := range cfg.RoutingConfig.Levels {
		id := aliases.Resolve(lvl.Agent)
		if id == "" || agents[id] != nil {
			continue
		}
		pricing := pricingFor(cfg.RoutingConfig, id)

		switch id {
		case "lint-fix":
			if len(lvl.Command) == 0 {
				continue
			}
			a, err := agent.NewCommandAgent(id, lvl.Command, "")
			if err != nil {
				return nil, fmt.Errorf("failed to create command agent: %w", err)
			}
			agents[id] = a

		case "pattern-match":
			agents[id] = agent.NewPatternAgent(id, defaultFixes())

		case "local-model":
			if cfg.LocalBaseURL == "" && cfg.OpenAIAPIKey == "" {
				continue
			}
			a, err := agent.NewLocalModelAgent(agent.LocalModelAgentConfig{
				ID:      id,
				APIKey:  cfg.OpenAIAPIKey,
				BaseURL: cfg.LocalBaseURL,
				Model:   lvl.Model,
				Pricing: pricing,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create local model agent: %w", err)
			}
			agents[id] = a

		case "agent-first-pass", "cloud-agent":
			if cfg.AnthropicAPIKey == "" {
				continue
			}
			a, err := agent.NewCloudAgent(agent.CloudAgentConfig{
				ID:      id,
				APIKey:  cfg.AnthropicAPIKey,
				Model:   lvl.Model,
				Pricing: pricing,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create cloud agent: %w", err)
			}
			agents[id] = a

		case "agent-boosted":
			if cfg.GoogleAPIKey == "" {
				continue
			}
			a, err := agent.NewReviewAgent(agent.ReviewAgentConfig{
				ID:      id,
				APIKey:  cfg.GoogleAPIKey,
				Model:   lvl.Model,
				Pricing: pricing,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create review agent: %w", err)
			}
			agents[id] = a
		}
	}

	return agents, nil
}

func pricingFor(rc *config.RoutingConfig, agentID string) agent.Pricing {
	p := rc.PricingFor(agentID)
	return agent.Pricing{PromptPer1K: p.PromptPer1K, CompletionPer1K: p.CompletionPer1K}
}

// defaultFixes is the built-in failure-signature table for the
// pattern-match level.
func defaultFixes() map[string]string {
	return map[string]string{
		"undefined:":                 "add the missing import or declaration named in the error",
		"imported and not used":      "remove the unused import",
		"declared and not used":      "remove or use the unused variable",
		"missing go.sum entry":       "run go mod tidy",
		"cannot find module":         "run go mod download",
		"nil pointer dereference":    "guard the dereference with a nil check",
		"index out of range":         "bound the index against the slice length",
		"connection refused":         "check the service is running and the port is correct",
		"permission denied":          "check file ownership and mode",
		"context deadline exceeded":  "raise the timeout or reduce the workload",
		"concurrent map writes":      "protect the map with a mutex or use sync.Map",
		"race detected":              "synchronize the reported accesses",
		"too many open files":        "close leaked descriptors or raise the ulimit",
		"certificate has expired":    "renew the TLS certificate",
		"no space left on device":    "free disk space or rotate logs",
	}
}

func readTaskContext(contextFlag, contextFile string) (string, error) {
	if contextFile != "" {
		data, err := os.ReadFile(contextFile)
		if err != nil {
			return "", fmt.Errorf("failed to read context file: %w", err)
		}
		return string(data), nil
	}
	if contextFlag == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return contextFlag, nil
}

func parseMeta(pairs []string) (map[string]string, error) {
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid metadata %q, expected key=value", pair)
		}
		meta[key] = value
	}
	return meta, nil
}

func printResult(res *engine.Result, led *ledger.Ledger) {
	if res.Success {
		color.Green("Resolved %s at level %d (%s) by %s", res.TaskID, int(res.Level), res.Level, res.AgentID)
	} else {
		color.Red("Failed %s: %s", res.TaskID, res.Error)
	}
	fmt.Printf("Attempts: %d  Cost: $%.4f\n", res.Attempts, res.TotalCost)

	if len(res.Trail) > 0 {
		fmt.Println("\nTrail:")
		for _, entry := range res.Trail {
			mark := color.RedString("✗")
			detail := entry.Error
			if entry.Success {
				mark = color.GreenString("✓")
				detail = "resolved"
			}
			agentID := entry.AgentID
			if agentID == "" {
				agentID = "-"
			}
			fmt.Printf("  %s level %d  %-20s %s\n", mark, int(entry.Level), agentID, detail)
		}
	}

	if led.GetDailyBudget() > 0 {
		fmt.Printf("\nBudget remaining today: $%.2f\n", led.RemainingBudget())
	}

	if res.Success && res.Data != "" {
		fmt.Println("\n" + res.Data)
	}
}
