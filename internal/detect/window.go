package detect

import (
	"time"

	"github.com/autorca/autorca-core/internal/models"
)

// slidingTriggers scans time-sorted samples with a sliding window and emits
// a raw trigger for every window position holding at least count samples.
// Overlapping triggers are merged by the caller, so emitting one trigger per
// qualifying start position is sufficient and keeps the scan linear.
func slidingTriggers(samples []models.Event, window time.Duration, count int, magnitude func(n int) float64, describe func(n int, w models.TimeWindow) string) []models.Incident {
	if count <= 0 || len(samples) < count {
		return nil
	}

	triggers := make([]models.Incident, 0)
	j := 0
	for i := range samples {
		if j < i {
			j = i
		}
		for j+1 < len(samples) && samples[j+1].Timestamp.Sub(samples[i].Timestamp) <= window {
			j++
		}
		n := j - i + 1
		if n < count {
			continue
		}

		w := models.TimeWindow{Start: samples[i].Timestamp, End: samples[j].Timestamp}
		evidence := make([]string, 0, n)
		for _, s := range samples[i : j+1] {
			if s.ID != "" {
				evidence = append(evidence, s.ID)
			}
		}
		triggers = append(triggers, models.Incident{
			Window:      w,
			Magnitude:   clamp01(magnitude(n)),
			Description: describe(n, w),
			Evidence:    evidence,
		})
	}
	return triggers
}
