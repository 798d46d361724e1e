package models

import (
	"sort"
	"time"
)

// IncidentKind enumerates detected anomaly categories.
type IncidentKind string

const (
	IncidentErrorSpike         IncidentKind = "error_spike"
	IncidentLatencySpike       IncidentKind = "latency_spike"
	IncidentResourceExhaustion IncidentKind = "resource_exhaustion"
	IncidentConfigChange       IncidentKind = "config_change"
)

// IsMarker reports whether the kind is a correlation marker rather than a
// standalone anomaly. Marker incidents never become root-cause candidates
// on their own unless the node has no other incident.
func (k IncidentKind) IsMarker() bool {
	return k == IncidentConfigChange
}

// TimeWindow is a closed [Start, End] interval.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two windows intersect.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return !w.Start.After(other.End) && !other.Start.After(w.End)
}

// Union widens the window to cover both intervals.
func (w TimeWindow) Union(other TimeWindow) TimeWindow {
	merged := w
	if other.Start.Before(merged.Start) {
		merged.Start = other.Start
	}
	if other.End.After(merged.End) {
		merged.End = other.End
	}
	return merged
}

// Duration returns the window length.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Incident is a detected anomaly window on exactly one service. Incidents
// are immutable after the detector emits them; overlapping same-kind
// detections on a node are merged before emission.
type Incident struct {
	ID          string       `json:"id"`
	Service     string       `json:"service"`
	Kind        IncidentKind `json:"kind"`
	Window      TimeWindow   `json:"window"`
	Magnitude   float64      `json:"magnitude"`
	Description string       `json:"description,omitempty"`
	Evidence    []string     `json:"evidence"`
}

// CausalChain is an ordered incident sequence: head is the incident nearest
// the declared symptom, tail the most upstream temporally-consistent one.
// Chains are transient analysis artifacts and are not mutated after creation.
type CausalChain struct {
	IncidentIDs []string   `json:"incidents"`
	Incidents   []Incident `json:"-"`
}

// Head returns the incident nearest the symptom.
func (c CausalChain) Head() Incident { return c.Incidents[0] }

// Tail returns the most upstream incident.
func (c CausalChain) Tail() Incident { return c.Incidents[len(c.Incidents)-1] }

// Hops returns the number of edges the chain crosses.
func (c CausalChain) Hops() int { return len(c.Incidents) - 1 }

// Services lists the chain's services from symptom toward the tail.
func (c CausalChain) Services() []string {
	services := make([]string, len(c.Incidents))
	for i, inc := range c.Incidents {
		services[i] = inc.Service
	}
	return services
}

// RootCauseCandidate is a scored root-cause hypothesis derived from a
// chain's tail incident. Confidence is an absolute [0,1] ranking score, not
// a probability; scores across candidates need not sum to 1.
type RootCauseCandidate struct {
	Service         string       `json:"service"`
	Kind            IncidentKind `json:"kind"`
	IncidentID      string       `json:"incident_id"`
	Confidence      float64      `json:"confidence"`
	Rank            int          `json:"rank"`
	Evidence        []string     `json:"evidence"`
	ChainRef        int          `json:"chain_ref"`
	Explanation     string       `json:"explanation,omitempty"`
	Remediation     []string     `json:"remediation,omitempty"`
	ConfigChangeRef string       `json:"config_change_ref,omitempty"`
}

// Symptom designates the observed failure the analysis starts from. When
// IncidentID is empty the most severe incident on the service anchors the
// trace.
type Symptom struct {
	Service    string `json:"service"`
	IncidentID string `json:"incident_id,omitempty"`
}

// Diagnostic records a recoverable data-quality issue encountered during a
// run. Diagnostics never abort processing; they let callers audit inputs.
type Diagnostic struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

// Diagnostic kinds.
const (
	DiagnosticInputValidation    = "input_validation"
	DiagnosticGraphInconsistency = "graph_inconsistency"
)

// RunStats carries run bookkeeping for reporting collaborators.
type RunStats struct {
	EventCount    int           `json:"event_count"`
	SpanCount     int           `json:"span_count"`
	SkippedEvents int           `json:"skipped_events"`
	Elapsed       time.Duration `json:"elapsed_ns"`
}

// RunResult aggregates everything a single analysis run produced. A result
// is only returned for complete runs; aborted runs surface an error instead
// of a partial result.
type RunResult struct {
	RunID       string               `json:"run_id"`
	Graph       GraphSnapshot        `json:"service_graph"`
	Incidents   []Incident           `json:"incidents"`
	Chains      []CausalChain        `json:"causal_chains"`
	RootCauses  []RootCauseCandidate `json:"root_causes"`
	Symptom     Symptom              `json:"primary_symptom"`
	Diagnostics []Diagnostic         `json:"diagnostics"`
	Stats       RunStats             `json:"stats"`
}

// IncidentByID looks up an incident in the result set.
func (r RunResult) IncidentByID(id string) (Incident, bool) {
	for _, inc := range r.Incidents {
		if inc.ID == id {
			return inc, true
		}
	}
	return Incident{}, false
}

// Timeline returns the run's incidents ordered by window start, then
// service, giving the chronological progression of the incident.
func (r RunResult) Timeline() []Incident {
	timeline := make([]Incident, len(r.Incidents))
	copy(timeline, r.Incidents)
	sortIncidents(timeline)
	return timeline
}

// ServiceHotspot aggregates incident load on one service.
type ServiceHotspot struct {
	Service      string  `json:"service"`
	Incidents    int     `json:"incidents"`
	MaxMagnitude float64 `json:"max_magnitude"`
}

// Hotspots returns services ordered by incident count, then maximum
// magnitude, then name. The busiest services come first.
func (r RunResult) Hotspots() []ServiceHotspot {
	byService := make(map[string]*ServiceHotspot)
	for _, inc := range r.Incidents {
		spot, ok := byService[inc.Service]
		if !ok {
			spot = &ServiceHotspot{Service: inc.Service}
			byService[inc.Service] = spot
		}
		spot.Incidents++
		if inc.Magnitude > spot.MaxMagnitude {
			spot.MaxMagnitude = inc.Magnitude
		}
	}

	hotspots := make([]ServiceHotspot, 0, len(byService))
	for _, spot := range byService {
		hotspots = append(hotspots, *spot)
	}
	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Incidents != hotspots[j].Incidents {
			return hotspots[i].Incidents > hotspots[j].Incidents
		}
		if hotspots[i].MaxMagnitude != hotspots[j].MaxMagnitude {
			return hotspots[i].MaxMagnitude > hotspots[j].MaxMagnitude
		}
		return hotspots[i].Service < hotspots[j].Service
	})
	return hotspots
}

// sortIncidents orders incidents deterministically by (start, service, kind).
func sortIncidents(incidents []Incident) {
	sort.Slice(incidents, func(i, j int) bool {
		return incidentLess(incidents[i], incidents[j])
	})
}

func incidentLess(a, b Incident) bool {
	if !a.Window.Start.Equal(b.Window.Start) {
		return a.Window.Start.Before(b.Window.Start)
	}
	if a.Service != b.Service {
		return a.Service < b.Service
	}
	return a.Kind < b.Kind
}

// SortIncidents orders a slice of incidents deterministically in place.
func SortIncidents(incidents []Incident) {
	sortIncidents(incidents)
}
