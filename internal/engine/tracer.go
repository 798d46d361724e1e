// Package engine runs the causal analysis stages that sit on top of the
// service graph and the detected incident set: chain tracing, root-cause
// ranking, and run orchestration.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/autorca/autorca-core/internal/models"
	"github.com/autorca/autorca-core/internal/utils"
)

// Tracer walks the dependency graph upstream from a symptom incident and
// produces every maximal temporally-consistent causal chain. Traversal is
// bounded by a per-chain visited set, so cyclic graphs terminate and no
// chain is longer than the node count.
type Tracer struct {
	horizon time.Duration
	logger  *slog.Logger
}

// NewTracer constructs a Tracer with the given correlation horizon.
func NewTracer(horizon time.Duration, logger *slog.Logger) *Tracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracer{horizon: horizon, logger: logger}
}

// Trace resolves the symptom to an anchor incident and explores upstream
// dependencies from it. It returns the chains plus the resolved anchor.
// A symptom naming an unknown service, or a service with no incident,
// cannot anchor anything and fails with utils.ErrSymptom.
func (t *Tracer) Trace(graph *models.ServiceGraph, incidents []models.Incident, symptom models.Symptom) ([]models.CausalChain, models.Incident, error) {
	const op = "engine.Trace"

	if symptom.Service == "" {
		return nil, models.Incident{}, utils.NewAppError(op, "symptom service is required", utils.ErrSymptom)
	}
	if !graph.HasNode(symptom.Service) {
		return nil, models.Incident{}, utils.NewAppError(op,
			fmt.Sprintf("service %q not present in dependency graph", symptom.Service), utils.ErrSymptom)
	}

	byService := indexByService(incidents)

	anchor, err := resolveAnchor(byService, symptom)
	if err != nil {
		return nil, models.Incident{}, err
	}

	visited := map[string]bool{anchor.Service: true}
	chains := make([]models.CausalChain, 0, 1)
	t.extend(graph, byService, []models.Incident{anchor}, visited, &chains)

	t.logger.Debug("chain tracing finished",
		slog.String("symptom", symptom.Service),
		slog.String("anchor", anchor.ID),
		slog.Int("chains", len(chains)))
	return chains, anchor, nil
}

// extend performs a depth-first walk from the chain's tip toward its
// dependencies, branching once per qualifying upstream incident. A chain
// that cannot grow any further is emitted as maximal.
func (t *Tracer) extend(graph *models.ServiceGraph, byService map[string][]models.Incident, chain []models.Incident, visited map[string]bool, chains *[]models.CausalChain) {
	tip := chain[len(chain)-1]

	extended := false
	for _, edge := range graph.OutEdges(tip.Service) {
		if visited[edge.Target] {
			continue
		}
		for _, upstream := range byService[edge.Target] {
			if !t.temporallyConsistent(tip, upstream) {
				continue
			}
			visited[edge.Target] = true
			next := make([]models.Incident, 0, len(chain)+1)
			next = append(next, chain...)
			next = append(next, upstream)
			t.extend(graph, byService, next, visited, chains)
			delete(visited, edge.Target)
			extended = true
		}
	}

	if !extended {
		*chains = append(*chains, newChain(chain))
	}
}

// temporallyConsistent gates a step from a downstream incident onto an
// upstream one. The upstream incident must begin before the downstream
// window closes, and the gap between the two window starts must stay
// inside the correlation horizon. Cascades propagate downstream within
// seconds, so the start-gap bound applies in both directions.
func (t *Tracer) temporallyConsistent(downstream, upstream models.Incident) bool {
	if upstream.Window.Start.After(downstream.Window.End) {
		return false
	}
	gap := downstream.Window.Start.Sub(upstream.Window.Start)
	if gap < 0 {
		gap = -gap
	}
	return gap <= t.horizon
}

// resolveAnchor picks the incident the trace starts from. An explicit
// incident id wins; otherwise the most severe incident on the symptom
// service is chosen, with ties broken by earlier start then kind.
func resolveAnchor(byService map[string][]models.Incident, symptom models.Symptom) (models.Incident, error) {
	const op = "engine.Trace"

	candidates := byService[symptom.Service]
	if len(candidates) == 0 {
		return models.Incident{}, utils.NewAppError(op,
			fmt.Sprintf("no incident detected on service %q", symptom.Service), utils.ErrSymptom)
	}

	if symptom.IncidentID != "" {
		for _, inc := range candidates {
			if inc.ID == symptom.IncidentID {
				return inc, nil
			}
		}
		return models.Incident{}, utils.NewAppError(op,
			fmt.Sprintf("incident %q not found on service %q", symptom.IncidentID, symptom.Service), utils.ErrSymptom)
	}

	anchor := candidates[0]
	for _, inc := range candidates[1:] {
		if moreSevere(inc, anchor) {
			anchor = inc
		}
	}
	return anchor, nil
}

func moreSevere(a, b models.Incident) bool {
	if a.Magnitude != b.Magnitude {
		return a.Magnitude > b.Magnitude
	}
	if !a.Window.Start.Equal(b.Window.Start) {
		return a.Window.Start.Before(b.Window.Start)
	}
	return a.Kind < b.Kind
}

// indexByService groups incidents per service in deterministic order.
func indexByService(incidents []models.Incident) map[string][]models.Incident {
	byService := make(map[string][]models.Incident)
	for _, inc := range incidents {
		byService[inc.Service] = append(byService[inc.Service], inc)
	}
	for _, group := range byService {
		models.SortIncidents(group)
	}
	return byService
}

func newChain(incidents []models.Incident) models.CausalChain {
	ids := make([]string, len(incidents))
	copied := make([]models.Incident, len(incidents))
	copy(copied, incidents)
	for i, inc := range incidents {
		ids[i] = inc.ID
	}
	return models.CausalChain{IncidentIDs: ids, Incidents: copied}
}
