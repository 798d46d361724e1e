package detect

import (
	"github.com/autorca/autorca-core/internal/config"
	"github.com/autorca/autorca-core/internal/models"
)

const configChangeMagnitude = 0.6

// ConfigChangeDetector emits a marker incident for every configuration or
// deployment change. Markers anchor ranking correlation but never become
// the terminal root cause while any other incident kind exists on the node.
type ConfigChangeDetector struct{}

func (ConfigChangeDetector) Kind() models.IncidentKind { return models.IncidentConfigChange }

// Detect expects events sorted by timestamp.
func (ConfigChangeDetector) Detect(service string, events []models.Event, cfg config.ThresholdConfig) []models.Incident {
	triggers := make([]models.Incident, 0)
	for _, event := range events {
		if event.Type != models.EventTypeConfig && event.Change == nil {
			continue
		}

		description := "configuration change"
		if event.Change != nil {
			if event.Change.Description != "" {
				description = event.Change.Description
			} else if event.Change.Kind != "" {
				description = event.Change.Kind
			}
		}

		evidence := []string{}
		if event.ID != "" {
			evidence = append(evidence, event.ID)
		}
		triggers = append(triggers, models.Incident{
			Window:      models.TimeWindow{Start: event.Timestamp, End: event.Timestamp},
			Magnitude:   configChangeMagnitude,
			Description: description,
			Evidence:    evidence,
		})
	}

	return mergeOverlapping(service, models.IncidentConfigChange, triggers)
}
