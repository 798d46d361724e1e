// Package summary renders a RunResult into human-readable incident
// summaries. The core analysis never depends on this package; reporting
// collaborators opt in.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/autorca/autorca-core/internal/config"
	"github.com/autorca/autorca-core/internal/models"
)

// Summarizer turns an analysis result into prose. Implementations must not
// mutate the result.
type Summarizer interface {
	Summarize(ctx context.Context, result *models.RunResult) (string, error)
	Name() string
}

// New selects a Summarizer implementation from configuration. The default
// rule-based summarizer is deterministic and needs no credentials.
func New(cfg config.SummaryConfig, logger *slog.Logger) (Summarizer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "rules":
		return NewRuleBased(), nil
	case "anthropic":
		return NewAnthropic(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown summary provider %q", cfg.Provider)
	}
}
