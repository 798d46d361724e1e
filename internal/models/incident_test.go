package models

import (
	"testing"
	"time"
)

func tw(startOffset, endOffset time.Duration) TimeWindow {
	base := time.Date(2025, 11, 10, 10, 0, 0, 0, time.UTC)
	return TimeWindow{Start: base.Add(startOffset), End: base.Add(endOffset)}
}

func TestTimeWindowOverlaps(t *testing.T) {
	a := tw(0, time.Minute)
	b := tw(30*time.Second, 2*time.Minute)
	c := tw(2*time.Minute, 3*time.Minute)

	if !a.Overlaps(b) || !b.Overlaps(a) {
		t.Fatalf("expected overlap between %v and %v", a, b)
	}
	if a.Overlaps(c) {
		t.Fatalf("expected no overlap between %v and %v", a, c)
	}
	// Closed intervals: touching endpoints overlap.
	if !b.Overlaps(c) {
		t.Fatalf("expected touching windows to overlap")
	}
}

func TestTimeWindowUnion(t *testing.T) {
	u := tw(30*time.Second, time.Minute).Union(tw(0, 45*time.Second))
	if !u.Start.Equal(tw(0, 0).Start) || u.Duration() != time.Minute {
		t.Fatalf("unexpected union: %v", u)
	}
}

func TestChainAccessors(t *testing.T) {
	chain := CausalChain{
		IncidentIDs: []string{"a", "b", "c"},
		Incidents: []Incident{
			{ID: "a", Service: "frontend"},
			{ID: "b", Service: "auth"},
			{ID: "c", Service: "db"},
		},
	}

	if chain.Head().ID != "a" || chain.Tail().ID != "c" {
		t.Fatalf("unexpected head/tail: %s, %s", chain.Head().ID, chain.Tail().ID)
	}
	if chain.Hops() != 2 {
		t.Fatalf("expected 2 hops, got %d", chain.Hops())
	}
	services := chain.Services()
	if len(services) != 3 || services[0] != "frontend" || services[2] != "db" {
		t.Fatalf("unexpected services: %v", services)
	}
}

func TestRunResultTimeline(t *testing.T) {
	result := RunResult{Incidents: []Incident{
		{ID: "late", Service: "a", Window: tw(time.Minute, 2*time.Minute)},
		{ID: "early", Service: "b", Window: tw(0, 30*time.Second)},
	}}

	timeline := result.Timeline()
	if timeline[0].ID != "early" || timeline[1].ID != "late" {
		t.Fatalf("timeline not chronological: %v, %v", timeline[0].ID, timeline[1].ID)
	}
	// Original order is untouched.
	if result.Incidents[0].ID != "late" {
		t.Fatalf("timeline must not reorder the source slice")
	}
}

func TestRunResultHotspots(t *testing.T) {
	result := RunResult{Incidents: []Incident{
		{Service: "db", Kind: IncidentResourceExhaustion, Magnitude: 0.9, Window: tw(0, time.Minute)},
		{Service: "db", Kind: IncidentLatencySpike, Magnitude: 0.7, Window: tw(0, time.Minute)},
		{Service: "web", Kind: IncidentErrorSpike, Magnitude: 0.8, Window: tw(0, time.Minute)},
	}}

	hotspots := result.Hotspots()
	if len(hotspots) != 2 {
		t.Fatalf("expected 2 hotspots, got %d", len(hotspots))
	}
	if hotspots[0].Service != "db" || hotspots[0].Incidents != 2 || hotspots[0].MaxMagnitude != 0.9 {
		t.Fatalf("unexpected top hotspot: %+v", hotspots[0])
	}
}
