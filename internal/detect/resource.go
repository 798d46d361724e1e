package detect

import (
	"fmt"
	"strings"

	"github.com/autorca/autorca-core/internal/config"
	"github.com/autorca/autorca-core/internal/models"
)

const resourceExhaustionBase = 0.9

// resourceMetricHints match metric names carrying utilization percentages.
var resourceMetricHints = []string{"cpu", "memory", "utilization", "usage", "connections", "disk"}

// ResourceExhaustionDetector flags N or more utilization samples above the
// configured percentage inside a sliding window.
type ResourceExhaustionDetector struct{}

func (ResourceExhaustionDetector) Kind() models.IncidentKind {
	return models.IncidentResourceExhaustion
}

// Detect expects events sorted by timestamp.
func (ResourceExhaustionDetector) Detect(service string, events []models.Event, cfg config.ThresholdConfig) []models.Incident {
	samples := make([]models.Event, 0)
	for _, event := range events {
		if !isResourceMetric(event.MetricName) {
			continue
		}
		if event.MetricValue > cfg.ResourcePercent {
			samples = append(samples, event)
		}
	}

	triggers := slidingTriggers(samples, cfg.ResourceWindow, cfg.ResourceCount,
		func(n int) float64 {
			return resourceExhaustionBase + 0.01*float64(n-cfg.ResourceCount)
		},
		func(n int, w models.TimeWindow) string {
			return fmt.Sprintf("%d utilization samples above %.0f%%", n, cfg.ResourcePercent)
		})

	return mergeOverlapping(service, models.IncidentResourceExhaustion, triggers)
}

func isResourceMetric(name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, hint := range resourceMetricHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
