package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/autorca/autorca-core/internal/config"
	"github.com/autorca/autorca-core/internal/detect"
	"github.com/autorca/autorca-core/internal/graph"
	"github.com/autorca/autorca-core/internal/metrics"
	"github.com/autorca/autorca-core/internal/models"
	"github.com/autorca/autorca-core/internal/utils"
)

// RunInput carries the fully materialized inputs of one analysis run.
type RunInput struct {
	Events  []models.Event
	Spans   []models.Span
	Symptom models.Symptom
}

// Engine orchestrates one analysis run: graph building and anomaly
// detection in parallel, then chain tracing, then ranking. Runs share no
// state; configuration is copied in at construction and never mutated.
type Engine struct {
	cfg     config.AnalysisConfig
	logger  *slog.Logger
	builder *graph.Builder
	runner  *detect.Runner
	tracer  *Tracer
	ranker  *Ranker
	observe bool
}

// New validates the analysis configuration and constructs an Engine.
// Invalid thresholds, weights, or limits fail here, before any run starts.
func New(cfg config.AnalysisConfig, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:     cfg,
		logger:  logger,
		builder: graph.NewBuilder(cfg.EdgePairingDelta, logger),
		runner:  detect.NewRunner(nil, logger),
		tracer:  NewTracer(cfg.CorrelationHorizon, logger),
		ranker:  NewRanker(cfg, logger),
		observe: true,
	}, nil
}

// WithoutMetrics disables Prometheus observation, used by tests and
// one-shot CLI invocations that carry no registry.
func (e *Engine) WithoutMetrics() *Engine {
	e.observe = false
	return e
}

// Run executes a complete analysis. It either returns a full RunResult or
// an error; aborted runs never yield partial results. The run is bounded
// by the configured event-count and processing-time budgets.
func (e *Engine) Run(ctx context.Context, in RunInput) (*models.RunResult, error) {
	const op = "engine.Run"
	started := time.Now()

	result, err := e.run(ctx, in, op)
	if e.observe {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.ObserveRun(time.Since(started), outcome)
	}
	if err != nil {
		return nil, err
	}
	result.Stats.Elapsed = time.Since(started)
	return result, nil
}

func (e *Engine) run(ctx context.Context, in RunInput, op string) (*models.RunResult, error) {
	if max := e.cfg.Limits.MaxEvents; len(in.Events) > max {
		return nil, utils.ResourceLimitError(op,
			fmt.Sprintf("%d events exceed the %d event budget", len(in.Events), max))
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Limits.MaxProcessingTime)
	defer cancel()

	// Graph building and detection both consume only the immutable event
	// set, so they run concurrently and join at a barrier before tracing.
	var (
		serviceGraph *models.ServiceGraph
		diagnostics  []models.Diagnostic
		incidents    []models.Incident
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		serviceGraph, diagnostics = e.builder.Build(in.Events, in.Spans)
	}()
	incidents = e.runner.Detect(in.Events, e.cfg.Thresholds)
	<-done

	if err := budgetExceeded(ctx, op); err != nil {
		return nil, err
	}

	chains, anchor, err := e.tracer.Trace(serviceGraph, incidents, in.Symptom)
	if err != nil {
		return nil, err
	}
	candidates := e.ranker.Rank(serviceGraph, chains, anchor, incidents)

	if err := budgetExceeded(ctx, op); err != nil {
		return nil, err
	}

	if e.observe {
		for _, inc := range incidents {
			metrics.CountIncident(string(inc.Kind))
		}
	}

	symptom := in.Symptom
	symptom.IncidentID = anchor.ID

	result := &models.RunResult{
		RunID:       runID(in, anchor),
		Graph:       serviceGraph.Snapshot(),
		Incidents:   incidents,
		Chains:      chains,
		RootCauses:  candidates,
		Symptom:     symptom,
		Diagnostics: diagnostics,
		Stats: models.RunStats{
			EventCount:    len(in.Events),
			SpanCount:     len(in.Spans),
			SkippedEvents: countSkipped(diagnostics),
		},
	}

	e.logger.Info("analysis run complete",
		slog.String("run_id", result.RunID),
		slog.String("symptom", symptom.Service),
		slog.Int("incidents", len(incidents)),
		slog.Int("chains", len(chains)),
		slog.Int("root_causes", len(candidates)))
	return result, nil
}

// budgetExceeded maps a tripped context deadline onto the fatal
// resource-limit error kind. Caller cancellation propagates as-is.
func budgetExceeded(ctx context.Context, op string) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return utils.ResourceLimitError(op, "processing time budget exceeded")
	default:
		return ctx.Err()
	}
}

// runID derives a stable identifier for the run. Identical inputs and
// configuration must produce identical results, so the id is a name-based
// UUID over the input shape rather than a random one.
func runID(in RunInput, anchor models.Incident) string {
	name := fmt.Sprintf("%s|%s|%d|%d|%s",
		in.Symptom.Service, anchor.ID, len(in.Events), len(in.Spans), firstTimestamp(in.Events))
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func firstTimestamp(events []models.Event) string {
	for _, event := range events {
		if !event.Timestamp.IsZero() {
			return event.Timestamp.UTC().Format(time.RFC3339Nano)
		}
	}
	return ""
}

func countSkipped(diagnostics []models.Diagnostic) int {
	count := 0
	for _, d := range diagnostics {
		if d.Kind == models.DiagnosticInputValidation {
			count++
		}
	}
	return count
}
