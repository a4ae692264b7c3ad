package agent

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jbdevprimary/triage/pkg/state"
	"github.com/jbdevprimary/triage/pkg/task"
)

// CloudAgent drives a hosted Claude session. The same type serves the
// first-pass, boosted-context and premium rungs; they differ only in
// model, token ceiling and pricing.
type CloudAgent struct {
	id        string
	client    anthropic.Client
	model     string
	maxTokens int64
	pricing   Pricing
}

// CloudAgentConfig configures a CloudAgent.
type CloudAgentConfig struct {
	ID        string
	APIKey    string
	Model     string
	MaxTokens int64
	Pricing   Pricing
}

// NewCloudAgent creates an Anthropic-backed agent.
func NewCloudAgent(cfg CloudAgentConfig) (*CloudAgent, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}
	if cfg.ID == "" {
		cfg.ID = "cloud-agent"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &CloudAgent{
		id:        cfg.ID,
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		pricing:   cfg.Pricing,
	}, nil
}

// ID returns the agent identifier.
func (a *CloudAgent) ID() string {
	return a.id
}

// Execute sends the task to Claude and interprets the response.
func (a *CloudAgent) Execute(ctx context.Context, t *task.Task, st *state.AttemptState) Outcome {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(t, st))),
		},
	})
	if err != nil {
		return outcomeForError(fmt.Errorf("anthropic API error: %w", err), 0)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	spent := a.pricing.CostOf(Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	})
	if content == "" {
		return Retry{Err: fmt.Sprintf("%s returned no output", a.id), Spent: spent}
	}
	return Success{Data: content, Spent: spent}
}
