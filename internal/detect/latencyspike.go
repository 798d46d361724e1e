package detect

import (
	"fmt"
	"strings"

	"github.com/autorca/autorca-core/internal/config"
	"github.com/autorca/autorca-core/internal/models"
)

const latencySpikeBase = 0.7

// LatencySpikeDetector flags N or more latency samples above the configured
// ceiling inside a sliding window.
type LatencySpikeDetector struct{}

func (LatencySpikeDetector) Kind() models.IncidentKind { return models.IncidentLatencySpike }

// Detect expects events sorted by timestamp.
func (LatencySpikeDetector) Detect(service string, events []models.Event, cfg config.ThresholdConfig) []models.Incident {
	samples := make([]models.Event, 0)
	for _, event := range events {
		value, ok := latencyValue(event)
		if !ok || value <= cfg.LatencyCeilingMS {
			continue
		}
		samples = append(samples, event)
	}

	triggers := slidingTriggers(samples, cfg.LatencySpikeWindow, cfg.LatencySpikeCount,
		func(n int) float64 {
			return latencySpikeBase + 0.01*float64(n-cfg.LatencySpikeCount)
		},
		func(n int, w models.TimeWindow) string {
			return fmt.Sprintf("%d samples above %.0fms", n, cfg.LatencyCeilingMS)
		})

	return mergeOverlapping(service, models.IncidentLatencySpike, triggers)
}

// latencyValue extracts a latency magnitude in milliseconds from an event,
// either from the explicit latency field or from a latency/duration metric.
func latencyValue(event models.Event) (float64, bool) {
	if event.LatencyMS > 0 {
		return event.LatencyMS, true
	}
	name := strings.ToLower(event.MetricName)
	if name == "" {
		return 0, false
	}
	if strings.Contains(name, "latency") || strings.Contains(name, "duration") {
		return event.MetricValue, true
	}
	return 0, false
}
