package agent

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/jbdevprimary/triage/pkg/state"
	"github.com/jbdevprimary/triage/pkg/task"
)

// ReviewAgent asks Gemini for a resolution, used as a second-opinion
// rung between the local worker and the premium cloud session.
type ReviewAgent struct {
	id      string
	client  *genai.Client
	model   string
	pricing Pricing
}

// ReviewAgentConfig configures a ReviewAgent.
type ReviewAgentConfig struct {
	ID      string
	APIKey  string
	Model   string
	Pricing Pricing
}

// NewReviewAgent creates a Gemini-backed agent.
func NewReviewAgent(cfg ReviewAgentConfig) (*ReviewAgent, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}
	if cfg.ID == "" {
		cfg.ID = "review"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-pro"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	return &ReviewAgent{id: cfg.ID, client: client, model: cfg.Model, pricing: cfg.Pricing}, nil
}

// ID returns the agent identifier.
func (a *ReviewAgent) ID() string {
	return a.id
}

// Execute sends the task to Gemini and interprets the response.
func (a *ReviewAgent) Execute(ctx context.Context, t *task.Task, st *state.AttemptState) Outcome {
	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(buildPrompt(t, st)), nil)
	if err != nil {
		return outcomeForError(fmt.Errorf("google API error: %w", err), 0)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return Retry{Err: fmt.Sprintf("%s returned no candidates", a.id)}
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}

	var spent float64
	if resp.UsageMetadata != nil {
		spent = a.pricing.CostOf(Usage{
			PromptTokens:     int64(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		})
	}
	if content == "" {
		return Retry{Err: fmt.Sprintf("%s returned empty output", a.id), Spent: spent}
	}
	return Success{Data: content, Spent: spent}
}
