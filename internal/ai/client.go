// Package ai wraps the external suggestion model. The rest of the pipeline
// only sees Submit: blocking, cancellable and timeout-bounded.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/unionhall/triage-service/internal/config"
	"github.com/unionhall/triage-service/internal/domain"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

// Client produces triage suggestions for redacted ticket text.
type Client interface {
	Submit(ctx context.Context, text string) (*domain.Suggestion, error)
}

type client struct {
	llm       llms.Model
	model     string
	maxTokens int
	cfg       config.ModelConfig
}

// NewClient builds the langchaingo-backed client from configuration.
func NewClient(cfg config.ModelConfig) (Client, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llmModel, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize model client: %w", err)
	}
	return &client{llm: llmModel, model: cfg.Model, maxTokens: cfg.MaxTokens, cfg: cfg}, nil
}

const promptTemplate = `You are the triage assistant for a union membership portal.
Classify the following member request and respond with a single JSON object:
{"category": string, "priority": "LOW"|"NORMAL"|"HIGH"|"CRITICAL",
 "suggested_assignee": string, "confidence": number between 0 and 1,
 "explanation": string,
 "reasoning": {"factors": [string], "risk_factors": [string], "recommendation": string},
 "extracted_entities": [{"kind": string, "value": string}]}

Request:
%s`

// Submit sends the redacted text to the model and parses its suggestion.
// Deadline overruns surface as MODEL_TIMEOUT, everything else as
// MODEL_UNAVAILABLE. The suggestion is immutable once returned.
func (c *client) Submit(ctx context.Context, text string) (*domain.Suggestion, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewInvalidInput("text is required", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout())
	defer cancel()

	completion, err := llms.GenerateFromSinglePrompt(ctx, c.llm,
		fmt.Sprintf(promptTemplate, text),
		llms.WithMaxTokens(c.maxTokens))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.NewModelTimeout(err)
		}
		return nil, apperrors.NewModelUnavailable(err)
	}

	suggestion, err := parseSuggestion(completion)
	if err != nil {
		return nil, apperrors.NewModelUnavailable(err)
	}
	suggestion.Model = c.model
	return suggestion, nil
}

// parseSuggestion extracts the JSON object from a completion that may carry
// surrounding prose or fencing.
func parseSuggestion(completion string) (*domain.Suggestion, error) {
	start := strings.Index(completion, "{")
	end := strings.LastIndex(completion, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("completion contains no JSON object")
	}
	var suggestion domain.Suggestion
	if err := json.Unmarshal([]byte(completion[start:end+1]), &suggestion); err != nil {
		return nil, fmt.Errorf("parse suggestion: %w", err)
	}
	if suggestion.Confidence < 0 {
		suggestion.Confidence = 0
	}
	if suggestion.Confidence > 1 {
		suggestion.Confidence = 1
	}
	return &suggestion, nil
}
