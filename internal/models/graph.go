package models

import (
	"sort"
	"time"
)

// ConfidenceTag records how a dependency edge was established.
type ConfidenceTag string

const (
	// ConfidenceObserved marks edges derived from trace parent/child spans.
	ConfidenceObserved ConfidenceTag = "observed"
	// ConfidenceInferred marks edges derived from correlation-id pairing.
	ConfidenceInferred ConfidenceTag = "inferred"
)

// ServiceNode is a service identity in the dependency graph. Nodes are
// created lazily on first observation and never deleted within a run.
type ServiceNode struct {
	ID        string    `json:"id"`
	FirstSeen time.Time `json:"first_seen"`
}

// DependencyEdge is a directed call dependency between two services.
// Repeated observations of the same (source, target) pair merge into one
// edge: the evidence counter increments and the seen window widens.
type DependencyEdge struct {
	Source        string        `json:"source"`
	Target        string        `json:"target"`
	EvidenceCount int           `json:"evidence_count"`
	Confidence    ConfidenceTag `json:"confidence_tag"`
	FirstSeen     time.Time     `json:"first_seen"`
	LastSeen      time.Time     `json:"last_seen"`
}

type edgeKey struct {
	source string
	target string
}

// ServiceGraph holds the directed service-dependency topology for one run.
// It is built once by the graph builder and read-only afterwards; keys are
// stable service identifiers rather than pointers so traversal state can be
// carried per chain.
type ServiceGraph struct {
	nodes map[string]*ServiceNode
	edges map[edgeKey]*DependencyEdge
	out   map[string][]edgeKey
}

// NewServiceGraph returns an empty graph.
func NewServiceGraph() *ServiceGraph {
	return &ServiceGraph{
		nodes: make(map[string]*ServiceNode),
		edges: make(map[edgeKey]*DependencyEdge),
		out:   make(map[string][]edgeKey),
	}
}

// EnsureNode creates the node for a service identifier if it does not exist.
func (g *ServiceGraph) EnsureNode(service string, seen time.Time) *ServiceNode {
	if node, ok := g.nodes[service]; ok {
		if !seen.IsZero() && (node.FirstSeen.IsZero() || seen.Before(node.FirstSeen)) {
			node.FirstSeen = seen
		}
		return node
	}
	node := &ServiceNode{ID: service, FirstSeen: seen}
	g.nodes[service] = node
	return node
}

// HasNode reports whether the service identifier is present.
func (g *ServiceGraph) HasNode(service string) bool {
	_, ok := g.nodes[service]
	return ok
}

// RecordEdge merges one observation of a directed dependency into the graph.
// An edge's tag becomes observed as soon as any observation is span-derived.
func (g *ServiceGraph) RecordEdge(source, target string, at time.Time, tag ConfidenceTag) {
	g.EnsureNode(source, at)
	g.EnsureNode(target, at)

	key := edgeKey{source: source, target: target}
	edge, ok := g.edges[key]
	if !ok {
		g.edges[key] = &DependencyEdge{
			Source:        source,
			Target:        target,
			EvidenceCount: 1,
			Confidence:    tag,
			FirstSeen:     at,
			LastSeen:      at,
		}
		g.out[source] = append(g.out[source], key)
		return
	}

	edge.EvidenceCount++
	if tag == ConfidenceObserved {
		edge.Confidence = ConfidenceObserved
	}
	if at.Before(edge.FirstSeen) {
		edge.FirstSeen = at
	}
	if at.After(edge.LastSeen) {
		edge.LastSeen = at
	}
}

// NodeCount returns the number of distinct services.
func (g *ServiceGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of deduplicated directed edges.
func (g *ServiceGraph) EdgeCount() int { return len(g.edges) }

// Nodes returns service identifiers in ascending lexical order.
func (g *ServiceGraph) Nodes() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns all edges ordered by (source, target).
func (g *ServiceGraph) Edges() []DependencyEdge {
	edges := make([]DependencyEdge, 0, len(g.edges))
	for _, edge := range g.edges {
		edges = append(edges, *edge)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	return edges
}

// OutEdges returns edges whose source is the given service, ordered by target.
func (g *ServiceGraph) OutEdges(service string) []DependencyEdge {
	keys := g.out[service]
	edges := make([]DependencyEdge, 0, len(keys))
	for _, key := range keys {
		edges = append(edges, *g.edges[key])
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Target < edges[j].Target })
	return edges
}

// Dependents returns the number of distinct services calling into the given
// service. Services with several dependents behave as foundational
// infrastructure (databases, caches) during ranking.
func (g *ServiceGraph) Dependents(service string) int {
	count := 0
	for key := range g.edges {
		if key.target == service {
			count++
		}
	}
	return count
}

// Snapshot returns the serializable view of the graph used in RunResult.
func (g *ServiceGraph) Snapshot() GraphSnapshot {
	return GraphSnapshot{Nodes: g.Nodes(), Edges: g.Edges()}
}

// GraphSnapshot is the immutable node/edge listing exposed to reporting
// collaborators.
type GraphSnapshot struct {
	Nodes []string         `json:"nodes"`
	Edges []DependencyEdge `json:"edges"`
}
