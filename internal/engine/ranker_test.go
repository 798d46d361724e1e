package engine

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/autorca/autorca-core/internal/config"
	"github.com/autorca/autorca-core/internal/models"
)

func chainOf(incidents ...models.Incident) models.CausalChain {
	return newChain(incidents)
}

func TestRankCascadeScenario(t *testing.T) {
	incidents := cascadeIncidents()
	anchor := incidents[0]
	chain := chainOf(incidents[0], incidents[1], incidents[2])

	ranker := NewRanker(config.DefaultAnalysis(), nil)
	candidates := ranker.Rank(cascadeGraph(), []models.CausalChain{chain}, anchor, incidents)

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	top := candidates[0]
	if top.Service != "postgres" || top.Kind != models.IncidentResourceExhaustion {
		t.Fatalf("unexpected top candidate: %+v", top)
	}
	if top.Rank != 1 {
		t.Fatalf("expected rank 1, got %d", top.Rank)
	}
	if top.Confidence < 0 || top.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", top.Confidence)
	}
	if top.ChainRef != 0 {
		t.Fatalf("unexpected chain ref: %d", top.ChainRef)
	}
	if len(top.Remediation) == 0 {
		t.Fatalf("expected remediation hints")
	}
}

func TestRankConfidenceClamped(t *testing.T) {
	cfg := config.DefaultAnalysis()
	cfg.Weights = config.RankWeights{Severity: 1, Distance: 1, Temporal: 1, Evidence: 1}

	inc := incident("i1", "svc", models.IncidentErrorSpike, at(0), at(time.Minute), 1.0)
	inc.Evidence = []string{"e1", "e2", "e3", "e4", "e5", "e6", "e7", "e8"}

	ranker := NewRanker(cfg, nil)
	candidates := ranker.Rank(nil, []models.CausalChain{chainOf(inc)}, inc, []models.Incident{inc})

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Confidence != 1 {
		t.Fatalf("expected clamped confidence 1, got %f", candidates[0].Confidence)
	}
}

func TestRankConfigChangeBoost(t *testing.T) {
	errInc := incident("i-err", "user-service", models.IncidentErrorSpike, at(30*time.Second), at(90*time.Second), 0.8)
	marker := incident("i-cfg", "user-service", models.IncidentConfigChange, at(0), at(0), 0.6)

	incidents := []models.Incident{errInc, marker}
	chains := []models.CausalChain{
		chainOf(errInc),
		chainOf(marker),
	}

	ranker := NewRanker(config.DefaultAnalysis(), nil)
	candidates := ranker.Rank(nil, chains, errInc, incidents)

	if len(candidates) != 1 {
		t.Fatalf("expected marker folded into one candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.IncidentID != "i-err" {
		t.Fatalf("expected error incident as subject, got %s", c.IncidentID)
	}
	if c.ConfigChangeRef != "i-cfg" {
		t.Fatalf("expected config change reference, got %q", c.ConfigChangeRef)
	}
	if len(c.Evidence) != 2 {
		t.Fatalf("expected boosted evidence from the marker, got %v", c.Evidence)
	}
	for _, cand := range candidates {
		if cand.Kind == models.IncidentConfigChange {
			t.Fatalf("config change must not produce its own candidate here")
		}
	}
}

func TestRankMarkerOnlyNodeBecomesCandidate(t *testing.T) {
	marker := incident("i-cfg", "deployer", models.IncidentConfigChange, at(0), at(0), 0.6)

	ranker := NewRanker(config.DefaultAnalysis(), nil)
	candidates := ranker.Rank(nil, []models.CausalChain{chainOf(marker)}, marker, []models.Incident{marker})

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Kind != models.IncidentConfigChange || candidates[0].IncidentID != "i-cfg" {
		t.Fatalf("expected marker candidate on marker-only node, got %+v", candidates[0])
	}
}

func TestRankOrderingAndTopN(t *testing.T) {
	anchor := incident("i-anchor", "frontend", models.IncidentErrorSpike, at(time.Minute), at(2*time.Minute), 0.8)
	near := incident("i-near", "auth", models.IncidentErrorSpike, at(50*time.Second), at(time.Minute), 0.8)
	far := incident("i-far", "db", models.IncidentResourceExhaustion, at(0), at(30*time.Second), 0.9)

	incidents := []models.Incident{anchor, near, far}
	chains := []models.CausalChain{
		chainOf(anchor, near),
		chainOf(anchor, near, far),
	}

	cfg := config.DefaultAnalysis()
	ranker := NewRanker(cfg, nil)
	candidates := ranker.Rank(nil, chains, anchor, incidents)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Confidence < candidates[1].Confidence {
		t.Fatalf("candidates not sorted by descending confidence")
	}
	for i, c := range candidates {
		if c.Rank != i+1 {
			t.Fatalf("rank mismatch at %d: %d", i, c.Rank)
		}
	}

	cfg.TopN = 1
	top := NewRanker(cfg, nil).Rank(nil, chains, anchor, incidents)
	if len(top) != 1 {
		t.Fatalf("expected topN to truncate to 1, got %d", len(top))
	}
}

func TestRankTieBrokenByEvidence(t *testing.T) {
	anchor := incident("i-anchor", "frontend", models.IncidentErrorSpike, at(0), at(time.Minute), 0.8)
	a := incident("i-a", "auth", models.IncidentErrorSpike, at(0), at(time.Minute), 0.8)
	b := incident("i-b", "billing", models.IncidentErrorSpike, at(0), at(time.Minute), 0.8)
	b.Evidence = []string{"b1", "b2"}

	cfg := config.DefaultAnalysis()
	// Zero out the evidence weight so both score identically.
	cfg.Weights.Evidence = 0

	incidents := []models.Incident{anchor, a, b}
	chains := []models.CausalChain{
		chainOf(anchor, a),
		chainOf(anchor, b),
	}

	candidates := NewRanker(cfg, nil).Rank(nil, chains, anchor, incidents)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].IncidentID != "i-b" {
		t.Fatalf("expected higher-evidence candidate first, got %s", candidates[0].IncidentID)
	}
}

func TestRankDeduplicatesSharedTail(t *testing.T) {
	anchor := incident("i-anchor", "frontend", models.IncidentErrorSpike, at(time.Minute), at(2*time.Minute), 0.8)
	mid := incident("i-mid", "auth", models.IncidentErrorSpike, at(30*time.Second), at(time.Minute), 0.8)
	tail := incident("i-tail", "db", models.IncidentResourceExhaustion, at(0), at(30*time.Second), 0.9)

	incidents := []models.Incident{anchor, mid, tail}
	chains := []models.CausalChain{
		chainOf(anchor, tail),
		chainOf(anchor, mid, tail),
	}

	candidates := NewRanker(config.DefaultAnalysis(), nil).Rank(nil, chains, anchor, incidents)
	tails := 0
	for _, c := range candidates {
		if c.IncidentID == "i-tail" {
			tails++
			// The one-hop chain scores higher on distance, so it must win.
			if c.ChainRef != 0 {
				t.Fatalf("expected shorter chain to win dedupe, got ref %d", c.ChainRef)
			}
		}
	}
	if tails != 1 {
		t.Fatalf("expected one candidate for the shared tail, got %d", tails)
	}
}

func TestRankFoundationalServiceBoost(t *testing.T) {
	anchor := incident("i-anchor", "frontend", models.IncidentErrorSpike, at(time.Minute), at(2*time.Minute), 0.8)
	tail := incident("i-db", "db", models.IncidentResourceExhaustion, at(0), at(30*time.Second), 0.9)

	incidents := []models.Incident{anchor, tail}
	chains := []models.CausalChain{chainOf(anchor, tail)}
	ranker := NewRanker(config.DefaultAnalysis(), nil)

	flat := ranker.Rank(nil, chains, anchor, incidents)

	// One dependent is ordinary topology, no boost.
	solo := models.NewServiceGraph()
	solo.RecordEdge("frontend", "db", at(0), models.ConfidenceInferred)
	plain := ranker.Rank(solo, chains, anchor, incidents)
	if plain[0].Confidence != flat[0].Confidence {
		t.Fatalf("single dependent must not boost: %f vs %f", plain[0].Confidence, flat[0].Confidence)
	}

	// Two dependents mark the service as foundational.
	shared := models.NewServiceGraph()
	shared.RecordEdge("frontend", "db", at(0), models.ConfidenceInferred)
	shared.RecordEdge("billing", "db", at(0), models.ConfidenceInferred)
	boosted := ranker.Rank(shared, chains, anchor, incidents)

	if diff := boosted[0].Confidence - flat[0].Confidence; math.Abs(diff-0.1) > 1e-9 {
		t.Fatalf("expected 0.1 foundational boost, got %f", diff)
	}
	if !strings.Contains(boosted[0].Explanation, "foundational dependency of 2 services") {
		t.Fatalf("expected foundational note in explanation: %s", boosted[0].Explanation)
	}
}
