package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels how an analysis run ended.
type Outcome string

const (
	// OutcomeSuccess labels completed analysis runs.
	OutcomeSuccess Outcome = "success"
	// OutcomeError labels aborted runs (validation, limits, or tracing failures).
	OutcomeError Outcome = "error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autorca",
			Name:      "runs_total",
			Help:      "Total number of analysis runs handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "autorca",
			Name:      "run_seconds",
			Help:      "Analysis run latency in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	incidentsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autorca",
			Name:      "incidents_detected_total",
			Help:      "Total incidents detected, partitioned by kind.",
		},
		[]string{"kind"},
	)
)

// Register attaches autorca collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		incidentsDetected,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records an analysis run duration and outcome label. Outcomes
// outside the known set count as errors so that no failure mode is ever
// misreported as success.
func ObserveRun(duration time.Duration, outcome Outcome) {
	switch outcome {
	case OutcomeSuccess, OutcomeError:
	default:
		outcome = OutcomeError
	}
	runsTotal.WithLabelValues(string(outcome)).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// CountIncident increments the per-kind incident counter.
func CountIncident(kind string) {
	incidentsDetected.WithLabelValues(kind).Inc()
}
