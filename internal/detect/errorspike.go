package detect

import (
	"fmt"

	"github.com/autorca/autorca-core/internal/config"
	"github.com/autorca/autorca-core/internal/models"
)

// errorSpikeBase is the magnitude floor for error spikes; extra errors
// beyond the threshold nudge it upward.
const errorSpikeBase = 0.8

// ErrorSpikeDetector flags N or more error-level events inside a sliding
// window on one service.
type ErrorSpikeDetector struct{}

func (ErrorSpikeDetector) Kind() models.IncidentKind { return models.IncidentErrorSpike }

// Detect expects events sorted by timestamp.
func (ErrorSpikeDetector) Detect(service string, events []models.Event, cfg config.ThresholdConfig) []models.Incident {
	samples := make([]models.Event, 0)
	for _, event := range events {
		if event.IsError() {
			samples = append(samples, event)
		}
	}

	triggers := slidingTriggers(samples, cfg.ErrorSpikeWindow, cfg.ErrorSpikeCount,
		func(n int) float64 {
			return errorSpikeBase + 0.01*float64(n-cfg.ErrorSpikeCount)
		},
		func(n int, w models.TimeWindow) string {
			return fmt.Sprintf("%d errors in %.0fs", n, w.Duration().Seconds())
		})

	return mergeOverlapping(service, models.IncidentErrorSpike, triggers)
}
