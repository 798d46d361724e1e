package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/autorca/autorca-core/internal/config"
	"github.com/autorca/autorca-core/internal/engine"
	"github.com/autorca/autorca-core/internal/models"
	"github.com/autorca/autorca-core/internal/summary"
	"github.com/autorca/autorca-core/internal/utils"
)

type runOptions struct {
	configPath string
	eventsPath string
	spansPath  string
	symptom    string
	incidentID string
	output     string
	logLevel   string
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a one-shot analysis over event and span files",
		Example: `  autorca run --events events.json --symptom api-gateway
  autorca run --events events.json --spans spans.json --symptom checkout --output markdown`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalysis(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to configuration file")
	cmd.Flags().StringVar(&opts.eventsPath, "events", "", "Path to a JSON array of events (required)")
	cmd.Flags().StringVar(&opts.spansPath, "spans", "", "Path to a JSON array of trace spans")
	cmd.Flags().StringVar(&opts.symptom, "symptom", "", "Service showing the observed failure (required)")
	cmd.Flags().StringVar(&opts.incidentID, "incident", "", "Specific incident id to anchor the trace on")
	cmd.Flags().StringVar(&opts.output, "output", "json", "Output format: json or markdown")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "Log verbosity: debug, info, warn, error")
	cmd.MarkFlagRequired("events")
	cmd.MarkFlagRequired("symptom")

	return cmd
}

func runAnalysis(ctx context.Context, opts *runOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger := utils.NewLogger(opts.logLevel, false)

	var events []models.Event
	if err := readJSONFile(opts.eventsPath, &events); err != nil {
		return fmt.Errorf("load events: %w", err)
	}

	var spans []models.Span
	if opts.spansPath != "" {
		if err := readJSONFile(opts.spansPath, &spans); err != nil {
			return fmt.Errorf("load spans: %w", err)
		}
	}

	eng, err := engine.New(cfg.Analysis, logger)
	if err != nil {
		return err
	}

	result, err := eng.WithoutMetrics().Run(ctx, engine.RunInput{
		Events: events,
		Spans:  spans,
		Symptom: models.Symptom{
			Service:    opts.symptom,
			IncidentID: opts.incidentID,
		},
	})
	if err != nil {
		return err
	}

	switch opts.output {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "markdown":
		summarizer, err := summary.New(cfg.Summary, logger)
		if err != nil {
			return err
		}
		text, err := summarizer.Summarize(ctx, result)
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", opts.output)
	}
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
