package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/autorca/autorca-core/internal/config"
	"github.com/autorca/autorca-core/internal/models"
)

const defaultModel = "claude-sonnet-4-5"

const systemPrompt = `You are an SRE assistant. You receive the JSON output of a ` +
	`deterministic root-cause analysis over a service dependency graph. Write a ` +
	`concise incident summary in markdown: the symptom, the most likely root ` +
	`cause with its confidence, how the failure propagated, and the suggested ` +
	`remediation steps. Do not invent services or incidents that are not in the ` +
	`input.`

// Anthropic summarizes run results with the Claude API. The API key comes
// from the ANTHROPIC_API_KEY environment variable.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    *slog.Logger
}

// NewAnthropic constructs the Claude-backed summarizer.
func NewAnthropic(cfg config.SummaryConfig, logger *slog.Logger) (*Anthropic, error) {
	if logger == nil {
		logger = slog.Default()
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{
		client:    anthropic.NewClient(),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}, nil
}

func (*Anthropic) Name() string { return "anthropic" }

// Summarize sends the serialized result to the model and returns its prose.
func (a *Anthropic) Summarize(ctx context.Context, result *models.RunResult) (string, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal run result: %w", err)
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(payload))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var parts []string
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			parts = append(parts, resp.Content[i].Text)
		}
	}
	text := strings.Join(parts, "")
	if text == "" {
		return "", fmt.Errorf("anthropic returned an empty summary")
	}

	a.logger.Debug("summary generated",
		slog.String("model", a.model),
		slog.Int64("input_tokens", resp.Usage.InputTokens),
		slog.Int64("output_tokens", resp.Usage.OutputTokens))
	return text, nil
}
