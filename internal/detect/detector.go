// Package detect implements threshold-based anomaly detection over
// per-service event partitions. Detectors are deterministic and
// order-insensitive; statistical or learned models are out of scope.
package detect

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/autorca/autorca-core/internal/config"
	"github.com/autorca/autorca-core/internal/models"
)

// Detector evaluates one service's events against configured thresholds.
// Implementations must be stateless: the runner calls them concurrently
// across service partitions.
type Detector interface {
	Kind() models.IncidentKind
	Detect(service string, events []models.Event, cfg config.ThresholdConfig) []models.Incident
}

// DefaultDetectors returns the built-in detector set. The list is open:
// callers may append their own kinds without touching existing detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		ErrorSpikeDetector{},
		LatencySpikeDetector{},
		ResourceExhaustionDetector{},
		ConfigChangeDetector{},
	}
}

// Runner fans detection out across service partitions and merges the
// per-kind results deterministically.
type Runner struct {
	detectors []Detector
	logger    *slog.Logger
}

// NewRunner constructs a Runner; a nil detector list selects the defaults.
func NewRunner(detectors []Detector, logger *slog.Logger) *Runner {
	if detectors == nil {
		detectors = DefaultDetectors()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{detectors: detectors, logger: logger}
}

// Detect partitions valid events by service, evaluates every detector on
// each partition in parallel, and returns the merged incident set in
// deterministic order. Malformed events are ignored here; the graph builder
// owns their diagnostics.
func (r *Runner) Detect(events []models.Event, cfg config.ThresholdConfig) []models.Incident {
	partitions := make(map[string][]models.Event)
	for _, event := range events {
		if event.Service == "" || event.Timestamp.IsZero() {
			continue
		}
		partitions[event.Service] = append(partitions[event.Service], event)
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		incidents []models.Incident
	)
	for service, partition := range partitions {
		wg.Add(1)
		go func(service string, partition []models.Event) {
			defer wg.Done()
			found := r.detectService(service, partition, cfg)
			if len(found) == 0 {
				return
			}
			mu.Lock()
			incidents = append(incidents, found...)
			mu.Unlock()
		}(service, partition)
	}
	wg.Wait()

	models.SortIncidents(incidents)
	r.logger.Debug("anomaly detection finished",
		slog.Int("services", len(partitions)),
		slog.Int("incidents", len(incidents)))
	return incidents
}

func (r *Runner) detectService(service string, events []models.Event, cfg config.ThresholdConfig) []models.Incident {
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	incidents := make([]models.Incident, 0)
	for _, detector := range r.detectors {
		incidents = append(incidents, detector.Detect(service, sorted, cfg)...)
	}
	return incidents
}

// mergeOverlapping collapses overlapping same-kind raw triggers on one node
// into single incidents: window union, magnitude maximum, evidence union.
// Input triggers must be sorted by window start.
func mergeOverlapping(service string, kind models.IncidentKind, triggers []models.Incident) []models.Incident {
	if len(triggers) == 0 {
		return nil
	}

	merged := make([]models.Incident, 0, 1)
	current := triggers[0]
	for _, next := range triggers[1:] {
		if current.Window.Overlaps(next.Window) {
			current.Window = current.Window.Union(next.Window)
			if next.Magnitude > current.Magnitude {
				current.Magnitude = next.Magnitude
				current.Description = next.Description
			}
			current.Evidence = appendUnique(current.Evidence, next.Evidence...)
			continue
		}
		merged = append(merged, finalize(service, kind, current))
		current = next
	}
	merged = append(merged, finalize(service, kind, current))
	return merged
}

// finalize stamps the deterministic incident identity. Identical inputs must
// produce identical ids, so the id is a name-based UUID over the incident's
// natural key rather than a random one.
func finalize(service string, kind models.IncidentKind, inc models.Incident) models.Incident {
	inc.Service = service
	inc.Kind = kind
	inc.ID = IncidentID(service, kind, inc)
	return inc
}

// IncidentID derives the stable identifier for an incident.
func IncidentID(service string, kind models.IncidentKind, inc models.Incident) string {
	name := service + "|" + string(kind) + "|" + inc.Window.Start.UTC().Format("2006-01-02T15:04:05.000000000Z")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
