package graph

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/autorca/autorca-core/internal/models"
)

// Builder constructs a ServiceGraph from normalized events and optional
// trace span hints. Building is deterministic: identical input always
// yields an identical graph, and malformed records are skipped with a
// diagnostic instead of aborting.
type Builder struct {
	pairingDelta time.Duration
	logger       *slog.Logger
}

// NewBuilder constructs a Builder. pairingDelta bounds how far apart two
// events sharing a correlation id may be to still imply a call dependency.
func NewBuilder(pairingDelta time.Duration, logger *slog.Logger) *Builder {
	if pairingDelta <= 0 {
		pairingDelta = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{pairingDelta: pairingDelta, logger: logger}
}

// Build produces the dependency graph plus diagnostics for every record it
// had to drop.
func (b *Builder) Build(events []models.Event, spans []models.Span) (*models.ServiceGraph, []models.Diagnostic) {
	g := models.NewServiceGraph()
	diags := make([]models.Diagnostic, 0)

	valid := make([]models.Event, 0, len(events))
	for i, event := range events {
		if event.Service == "" || event.Timestamp.IsZero() {
			diags = append(diags, models.Diagnostic{
				Kind:    models.DiagnosticInputValidation,
				Message: "event missing service identifier or timestamp",
				Context: map[string]string{
					"event_id": event.ID,
					"index":    fmt.Sprintf("%d", i),
				},
			})
			continue
		}
		g.EnsureNode(event.Service, event.Timestamp)
		valid = append(valid, event)
	}

	diags = append(diags, b.addSpanEdges(g, spans)...)
	b.addInferredEdges(g, valid)

	b.logger.Debug("graph built",
		slog.Int("nodes", g.NodeCount()),
		slog.Int("edges", g.EdgeCount()),
		slog.Int("dropped", len(diags)))

	return g, diags
}

// addSpanEdges records observed edges from parent/child span relationships
// within each trace. A child referencing a span id absent from its trace is
// inconsistent topology: the edge is dropped and reported, never fatal.
func (b *Builder) addSpanEdges(g *models.ServiceGraph, spans []models.Span) []models.Diagnostic {
	diags := make([]models.Diagnostic, 0)

	byTrace := make(map[string]map[string]models.Span)
	for i, span := range spans {
		if span.Service == "" || span.SpanID == "" || span.Timestamp.IsZero() {
			diags = append(diags, models.Diagnostic{
				Kind:    models.DiagnosticInputValidation,
				Message: "span missing service, span id, or timestamp",
				Context: map[string]string{
					"trace_id": span.TraceID,
					"index":    fmt.Sprintf("%d", i),
				},
			})
			continue
		}
		if byTrace[span.TraceID] == nil {
			byTrace[span.TraceID] = make(map[string]models.Span)
		}
		byTrace[span.TraceID][span.SpanID] = span
	}

	for _, span := range spans {
		if span.ParentSpanID == "" || span.Service == "" || span.SpanID == "" || span.Timestamp.IsZero() {
			continue
		}
		parent, ok := byTrace[span.TraceID][span.ParentSpanID]
		if !ok {
			diags = append(diags, models.Diagnostic{
				Kind:    models.DiagnosticGraphInconsistency,
				Message: "span references nonexistent parent",
				Context: map[string]string{
					"trace_id": span.TraceID,
					"span_id":  span.SpanID,
					"parent":   span.ParentSpanID,
				},
			})
			continue
		}
		if parent.Service == span.Service {
			continue
		}
		g.RecordEdge(parent.Service, span.Service, span.Timestamp, models.ConfidenceObserved)
	}

	return diags
}

// addInferredEdges pairs events sharing a correlation id. Within each group,
// time-adjacent events of distinct services within the pairing delta imply a
// call from the earlier to the later one. Equal timestamps are ordered by
// ascending lexical service name so the result is deterministic.
func (b *Builder) addInferredEdges(g *models.ServiceGraph, events []models.Event) {
	groups := make(map[string][]models.Event)
	for _, event := range events {
		if event.CorrelationID == "" {
			continue
		}
		groups[event.CorrelationID] = append(groups[event.CorrelationID], event)
	}

	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].Timestamp.Equal(group[j].Timestamp) {
				return group[i].Timestamp.Before(group[j].Timestamp)
			}
			return group[i].Service < group[j].Service
		})

		for i := 1; i < len(group); i++ {
			prev, cur := group[i-1], group[i]
			if prev.Service == cur.Service {
				continue
			}
			if cur.Timestamp.Sub(prev.Timestamp) > b.pairingDelta {
				continue
			}
			g.RecordEdge(prev.Service, cur.Service, cur.Timestamp, models.ConfidenceInferred)
		}
	}
}
