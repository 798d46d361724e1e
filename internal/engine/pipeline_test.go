package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/autorca/autorca-core/internal/config"
	"github.com/autorca/autorca-core/internal/models"
	"github.com/autorca/autorca-core/internal/utils"
)

// cascadeEvents reproduces a three-tier outage: gateway errors caused by
// user-service errors caused by a saturated postgres connection pool.
func cascadeEvents() []models.Event {
	events := make([]models.Event, 0, 12)
	for i := 0; i < 3; i++ {
		base := at(time.Duration(i) * 20 * time.Second)
		corr := fmt.Sprintf("req-%d", i)
		events = append(events,
			models.Event{
				ID: fmt.Sprintf("gw-%d", i), Timestamp: base, Service: "api-gateway",
				Type: models.EventTypeLog, Severity: models.SeverityError,
				Message: "upstream timeout", CorrelationID: corr,
			},
			models.Event{
				ID: fmt.Sprintf("us-%d", i), Timestamp: base.Add(3 * time.Second), Service: "user-service",
				Type: models.EventTypeLog, Severity: models.SeverityError,
				Message: "DB connection pool exhausted", CorrelationID: corr,
			},
			models.Event{
				ID: fmt.Sprintf("pg-warn-%d", i), Timestamp: base.Add(4 * time.Second), Service: "postgres",
				Type: models.EventTypeLog, Severity: models.SeverityWarn,
				Message: "Max connections reached", CorrelationID: corr,
			},
		)
	}
	events = append(events,
		models.Event{
			ID: "pg-m1", Timestamp: at(4 * time.Second), Service: "postgres",
			Type: models.EventTypeMetric, MetricName: "connections_utilization", MetricValue: 95,
		},
		models.Event{
			ID: "pg-m2", Timestamp: at(24 * time.Second), Service: "postgres",
			Type: models.EventTypeMetric, MetricName: "connections_utilization", MetricValue: 96,
		},
	)
	return events
}

func newEngine(t *testing.T, cfg config.AnalysisConfig) *Engine {
	t.Helper()
	eng, err := New(cfg, utils.NewLoggerTo(testWriter{t}, "debug", false))
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}
	return eng.WithoutMetrics()
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestRunCascadeScenario(t *testing.T) {
	eng := newEngine(t, config.DefaultAnalysis())

	result, err := eng.Run(context.Background(), RunInput{
		Events:  cascadeEvents(),
		Symptom: models.Symptom{Service: "api-gateway"},
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	wantEdges := map[string]bool{
		"api-gateway->user-service": false,
		"user-service->postgres":    false,
	}
	for _, edge := range result.Graph.Edges {
		key := edge.Source + "->" + edge.Target
		if _, ok := wantEdges[key]; ok {
			wantEdges[key] = true
		}
	}
	for key, seen := range wantEdges {
		if !seen {
			t.Fatalf("expected edge %s in graph", key)
		}
	}

	kinds := map[string]models.IncidentKind{}
	for _, inc := range result.Incidents {
		kinds[inc.Service] = inc.Kind
	}
	if kinds["api-gateway"] != models.IncidentErrorSpike ||
		kinds["user-service"] != models.IncidentErrorSpike ||
		kinds["postgres"] != models.IncidentResourceExhaustion {
		t.Fatalf("unexpected incident kinds: %v", kinds)
	}

	if len(result.Chains) != 1 {
		t.Fatalf("expected 1 chain, got %d", len(result.Chains))
	}
	services := result.Chains[0].Services()
	want := []string{"api-gateway", "user-service", "postgres"}
	for i := range want {
		if services[i] != want[i] {
			t.Fatalf("expected chain %v, got %v", want, services)
		}
	}

	if len(result.RootCauses) == 0 {
		t.Fatalf("expected root-cause candidates")
	}
	top := result.RootCauses[0]
	if top.Service != "postgres" || top.Kind != models.IncidentResourceExhaustion {
		t.Fatalf("unexpected top candidate: %+v", top)
	}
	if top.Confidence < 0 || top.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", top.Confidence)
	}
	if result.Symptom.IncidentID == "" {
		t.Fatalf("expected resolved anchor incident id on symptom")
	}
}

func TestRunDeterministic(t *testing.T) {
	eng := newEngine(t, config.DefaultAnalysis())
	input := RunInput{Events: cascadeEvents(), Symptom: models.Symptom{Service: "api-gateway"}}

	first, err := eng.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := eng.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.RunID != second.RunID {
		t.Fatalf("run ids differ: %s vs %s", first.RunID, second.RunID)
	}
	if len(first.Incidents) != len(second.Incidents) {
		t.Fatalf("incident counts differ")
	}
	for i := range first.Incidents {
		if first.Incidents[i].ID != second.Incidents[i].ID {
			t.Fatalf("incident order differs at %d", i)
		}
	}
	if len(first.RootCauses) != len(second.RootCauses) {
		t.Fatalf("candidate counts differ")
	}
	for i := range first.RootCauses {
		if first.RootCauses[i].IncidentID != second.RootCauses[i].IncidentID ||
			first.RootCauses[i].Confidence != second.RootCauses[i].Confidence {
			t.Fatalf("candidate order differs at %d", i)
		}
	}
}

func TestRunEventBudget(t *testing.T) {
	cfg := config.DefaultAnalysis()
	cfg.Limits.MaxEvents = 2

	eng := newEngine(t, cfg)
	_, err := eng.Run(context.Background(), RunInput{
		Events:  cascadeEvents(),
		Symptom: models.Symptom{Service: "api-gateway"},
	})
	if !errors.Is(err, utils.ErrResourceLimit) {
		t.Fatalf("expected resource limit error, got %v", err)
	}
}

func TestRunProcessingTimeBudget(t *testing.T) {
	cfg := config.DefaultAnalysis()
	cfg.Limits.MaxProcessingTime = time.Nanosecond

	eng := newEngine(t, cfg)
	result, err := eng.Run(context.Background(), RunInput{
		Events:  cascadeEvents(),
		Symptom: models.Symptom{Service: "api-gateway"},
	})
	if !errors.Is(err, utils.ErrResourceLimit) {
		t.Fatalf("expected resource limit error, got %v", err)
	}
	if result != nil {
		t.Fatalf("aborted run must not return a partial result")
	}
}

func TestRunInvalidConfigRejected(t *testing.T) {
	cfg := config.DefaultAnalysis()
	cfg.Thresholds.ErrorSpikeWindow = -1

	_, err := New(cfg, nil)
	if !errors.Is(err, utils.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunMalformedEventsDiagnosed(t *testing.T) {
	eng := newEngine(t, config.DefaultAnalysis())

	events := cascadeEvents()
	events = append(events, models.Event{ID: "broken", Timestamp: at(0)}) // no service

	result, err := eng.Run(context.Background(), RunInput{
		Events:  events,
		Symptom: models.Symptom{Service: "api-gateway"},
	})
	if err != nil {
		t.Fatalf("malformed event must not abort the run: %v", err)
	}
	if result.Stats.SkippedEvents != 1 {
		t.Fatalf("expected 1 skipped event, got %d", result.Stats.SkippedEvents)
	}
	found := false
	for _, d := range result.Diagnostics {
		if d.Kind == models.DiagnosticInputValidation {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected input validation diagnostic")
	}
}

func TestRunUnresolvableSymptom(t *testing.T) {
	eng := newEngine(t, config.DefaultAnalysis())

	_, err := eng.Run(context.Background(), RunInput{
		Events:  cascadeEvents(),
		Symptom: models.Symptom{Service: "nonexistent"},
	})
	if !errors.Is(err, utils.ErrSymptom) {
		t.Fatalf("expected symptom error, got %v", err)
	}
}
