package models

import "time"

// EventType enumerates the signal category an Event was normalized from.
type EventType string

const (
	EventTypeLog    EventType = "log"
	EventTypeMetric EventType = "metric"
	EventTypeTrace  EventType = "trace"
	EventTypeConfig EventType = "config"
)

// Severity captures the level attached to a normalized event.
type Severity string

const (
	SeverityDebug    Severity = "DEBUG"
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Event is the normalized, immutable record every component consumes.
// Ingestion collaborators produce Events; the engine never mutates them.
// Optional fields are zero-valued when the source signal did not carry them.
type Event struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Service       string    `json:"service"`
	Type          EventType `json:"type"`
	Severity      Severity  `json:"severity,omitempty"`
	Message       string    `json:"message,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	LatencyMS     float64   `json:"latency_ms,omitempty"`
	ErrorCode     string    `json:"error_code,omitempty"`
	MetricName    string    `json:"metric_name,omitempty"`
	MetricValue   float64   `json:"metric_value,omitempty"`
	Change        *Change   `json:"change,omitempty"`
}

// Change describes a configuration or deployment change attached to an event.
type Change struct {
	Kind          string `json:"kind"`
	Description   string `json:"description,omitempty"`
	VersionBefore string `json:"version_before,omitempty"`
	VersionAfter  string `json:"version_after,omitempty"`
	ChangedBy     string `json:"changed_by,omitempty"`
}

// IsError reports whether the event carries an error-level severity.
func (e Event) IsError() bool {
	return e.Severity == SeverityError || e.Severity == SeverityCritical
}

// Span is an optional trace hint: a parent/child relation between services.
// Spans are not Events; the graph builder consumes them to record observed
// call dependencies.
type Span struct {
	TraceID      string    `json:"trace_id"`
	SpanID       string    `json:"span_id"`
	ParentSpanID string    `json:"parent_span_id,omitempty"`
	Service      string    `json:"service"`
	Operation    string    `json:"operation,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	DurationMS   float64   `json:"duration_ms,omitempty"`
	Error        bool      `json:"error,omitempty"`
}

// severityRank orders severities for picking the most severe incident anchor.
var severityRank = map[Severity]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeverityWarn:     2,
	SeverityError:    3,
	SeverityCritical: 4,
}

// SeverityRank returns a comparable rank for a severity, higher is worse.
func SeverityRank(s Severity) int {
	return severityRank[s]
}
