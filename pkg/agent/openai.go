package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jbdevprimary/triage/pkg/state"
	"github.com/jbdevprimary/triage/pkg/task"
)

// LocalModelAgent talks to an OpenAI-compatible endpoint, typically a
// local inference server (ollama, llama.cpp, vLLM). It is a free worker
// level by default; pricing applies only when pointed at a hosted API.
type LocalModelAgent struct {
	id      string
	client  openai.Client
	model   string
	pricing Pricing
}

// LocalModelAgentConfig configures a LocalModelAgent.
type LocalModelAgentConfig struct {
	ID      string
	APIKey  string
	BaseURL string
	Model   string
	Pricing Pricing
}

// NewLocalModelAgent creates an agent for an OpenAI-compatible server.
func NewLocalModelAgent(cfg LocalModelAgentConfig) (*LocalModelAgent, error) {
	if cfg.BaseURL == "" && cfg.APIKey == "" {
		return nil, fmt.Errorf("local model agent requires a base URL or API key")
	}
	if cfg.ID == "" {
		cfg.ID = "local-model"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen2.5-coder"
	}

	var opts []option.RequestOption
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}

	return &LocalModelAgent{
		id:      cfg.ID,
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		pricing: cfg.Pricing,
	}, nil
}

// ID returns the agent identifier.
func (a *LocalModelAgent) ID() string {
	return a.id
}

// Execute sends the task to the model and interprets the response.
func (a *LocalModelAgent) Execute(ctx context.Context, t *task.Task, st *state.AttemptState) Outcome {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildPrompt(t, st)),
		},
		MaxCompletionTokens: openai.Int(4096),
	})
	if err != nil {
		return outcomeForError(fmt.Errorf("local model error: %w", err), 0)
	}

	if len(resp.Choices) == 0 {
		return Retry{Err: fmt.Sprintf("%s returned no choices", a.id)}
	}

	spent := a.pricing.CostOf(Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	})
	content := resp.Choices[0].Message.Content
	if content == "" {
		return Retry{Err: fmt.Sprintf("%s returned empty output", a.id), Spent: spent}
	}
	return Success{Data: content, Spent: spent}
}
