package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/autorca/autorca-core/internal/config"
	"github.com/autorca/autorca-core/internal/models"
)

// A service called by at least this many distinct dependents counts as
// foundational infrastructure (databases, caches) and its candidates carry
// a fixed confidence boost.
const (
	foundationalDependents = 2
	foundationalBonus      = 0.1
)

// Ranker scores chain tails into ordered root-cause candidates. Scoring is
// a pure computation over the chains produced for one run; no state is
// shared across runs.
type Ranker struct {
	weights      config.RankWeights
	horizon      time.Duration
	changeWindow time.Duration
	topN         int
	logger       *slog.Logger
}

// NewRanker constructs a Ranker from the run's analysis configuration.
func NewRanker(cfg config.AnalysisConfig, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{
		weights:      cfg.Weights,
		horizon:      cfg.CorrelationHorizon,
		changeWindow: cfg.Thresholds.ChangeCorrelation,
		topN:         cfg.TopN,
		logger:       logger,
	}
}

// Rank derives one candidate per chain tail, folds config-change markers
// into the incidents they correlate with, boosts tails sitting on
// foundational services, deduplicates tails shared by several chains, and
// returns candidates sorted by descending confidence. A nil graph skips
// the foundational boost.
func (r *Ranker) Rank(serviceGraph *models.ServiceGraph, chains []models.CausalChain, anchor models.Incident, incidents []models.Incident) []models.RootCauseCandidate {
	byService := indexByService(incidents)

	candidates := make([]models.RootCauseCandidate, 0, len(chains))
	for ref, chain := range chains {
		candidates = append(candidates, r.score(serviceGraph, chain, ref, anchor, byService))
	}

	candidates = dedupeByIncident(candidates)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidateLess(candidates[i], candidates[j], incidents)
	})
	for i := range candidates {
		candidates[i].Rank = i + 1
	}

	if r.topN > 0 && len(candidates) > r.topN {
		candidates = candidates[:r.topN]
	}

	r.logger.Debug("ranking finished",
		slog.Int("chains", len(chains)),
		slog.Int("candidates", len(candidates)))
	return candidates
}

// score turns one chain's tail into a candidate. A config-change tail is a
// marker, not a cause: when the tail node carries any other incident the
// candidate derives from that incident instead, with the marker attached
// as correlated evidence.
func (r *Ranker) score(serviceGraph *models.ServiceGraph, chain models.CausalChain, ref int, anchor models.Incident, byService map[string][]models.Incident) models.RootCauseCandidate {
	tail := chain.Tail()

	subject := tail
	configRef := ""
	if tail.Kind.IsMarker() {
		if co, ok := coLocatedNonMarker(byService[tail.Service]); ok {
			subject = co
			configRef = tail.ID
		}
	} else if marker, ok := correlatedMarker(byService[subject.Service], subject, r.changeWindow); ok {
		configRef = marker.ID
	}

	evidence := append([]string{}, subject.Evidence...)
	if configRef != "" {
		if marker, ok := findIncident(byService[subject.Service], configRef); ok {
			for _, ev := range marker.Evidence {
				evidence = appendMissing(evidence, ev)
			}
		}
	}

	gap := anchor.Window.Start.Sub(subject.Window.Start)
	if gap < 0 {
		gap = -gap
	}

	confidence := clamp01(
		r.weights.Severity*subject.Magnitude +
			r.weights.Distance*1/(1+float64(chain.Hops())) +
			r.weights.Temporal*1/(1+gap.Seconds()/r.horizon.Seconds()) +
			r.weights.Evidence*math.Log(1+float64(len(evidence))))

	dependents := 0
	if serviceGraph != nil {
		dependents = serviceGraph.Dependents(subject.Service)
	}
	if dependents >= foundationalDependents {
		confidence = clamp01(confidence + foundationalBonus)
	}

	return models.RootCauseCandidate{
		Service:         subject.Service,
		Kind:            subject.Kind,
		IncidentID:      subject.ID,
		Confidence:      confidence,
		Evidence:        evidence,
		ChainRef:        ref,
		Explanation:     explain(subject, chain, configRef != "", dependents),
		Remediation:     remediationHints(subject.Kind),
		ConfigChangeRef: configRef,
	}
}

// dedupeByIncident keeps the highest-confidence candidate when several
// chains terminate at the same incident.
func dedupeByIncident(candidates []models.RootCauseCandidate) []models.RootCauseCandidate {
	best := make(map[string]models.RootCauseCandidate, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		existing, seen := best[c.IncidentID]
		if !seen {
			best[c.IncidentID] = c
			order = append(order, c.IncidentID)
			continue
		}
		if c.Confidence > existing.Confidence {
			best[c.IncidentID] = c
		}
	}

	deduped := make([]models.RootCauseCandidate, 0, len(order))
	for _, id := range order {
		deduped = append(deduped, best[id])
	}
	return deduped
}

// candidateLess orders by descending confidence, with ties broken by
// higher evidence count, earlier incident start, then service name.
func candidateLess(a, b models.RootCauseCandidate, incidents []models.Incident) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if len(a.Evidence) != len(b.Evidence) {
		return len(a.Evidence) > len(b.Evidence)
	}
	aStart, aOK := incidentStart(incidents, a.IncidentID)
	bStart, bOK := incidentStart(incidents, b.IncidentID)
	if aOK && bOK && !aStart.Equal(bStart) {
		return aStart.Before(bStart)
	}
	return a.Service < b.Service
}

func incidentStart(incidents []models.Incident, id string) (time.Time, bool) {
	for _, inc := range incidents {
		if inc.ID == id {
			return inc.Window.Start, true
		}
	}
	return time.Time{}, false
}

// coLocatedNonMarker returns the most severe non-marker incident on a node.
func coLocatedNonMarker(incidents []models.Incident) (models.Incident, bool) {
	var best models.Incident
	found := false
	for _, inc := range incidents {
		if inc.Kind.IsMarker() {
			continue
		}
		if !found || moreSevere(inc, best) {
			best = inc
			found = true
		}
	}
	return best, found
}

// correlatedMarker finds a config-change marker on the subject's node whose
// change happened within the correlation window before the incident began.
func correlatedMarker(incidents []models.Incident, subject models.Incident, window time.Duration) (models.Incident, bool) {
	for _, inc := range incidents {
		if !inc.Kind.IsMarker() {
			continue
		}
		lead := subject.Window.Start.Sub(inc.Window.Start)
		if lead >= 0 && lead <= window {
			return inc, true
		}
	}
	return models.Incident{}, false
}

func findIncident(incidents []models.Incident, id string) (models.Incident, bool) {
	for _, inc := range incidents {
		if inc.ID == id {
			return inc, true
		}
	}
	return models.Incident{}, false
}

func appendMissing(dst []string, value string) []string {
	for _, v := range dst {
		if v == value {
			return dst
		}
	}
	return append(dst, value)
}

func explain(subject models.Incident, chain models.CausalChain, changeCorrelated bool, dependents int) string {
	msg := fmt.Sprintf("%s on %s, %d hop(s) upstream of the symptom", subject.Kind, subject.Service, chain.Hops())
	if subject.Description != "" {
		msg += ": " + subject.Description
	}
	if dependents >= foundationalDependents {
		msg += fmt.Sprintf(" (foundational dependency of %d services)", dependents)
	}
	if changeCorrelated {
		msg += " (correlated with a recent configuration change)"
	}
	return msg
}

// remediationHints returns kind-specific first steps for responders.
func remediationHints(kind models.IncidentKind) []string {
	switch kind {
	case models.IncidentErrorSpike:
		return []string{
			"Inspect recent logs for the dominant error code",
			"Roll back the most recent deployment if errors began after it",
			"Check the health of downstream dependencies",
		}
	case models.IncidentLatencySpike:
		return []string{
			"Profile slow endpoints and recent query plans",
			"Check for lock contention or thread-pool saturation",
			"Verify downstream dependency latency",
		}
	case models.IncidentResourceExhaustion:
		return []string{
			"Increase capacity or connection pool limits",
			"Add replicas or enable autoscaling",
			"Review recent load changes for saturation",
		}
	case models.IncidentConfigChange:
		return []string{
			"Review the change and consider rolling it back",
			"Compare the configuration with the last known good version",
		}
	default:
		return nil
	}
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
