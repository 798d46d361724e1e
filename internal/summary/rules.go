package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/autorca/autorca-core/internal/models"
)

// RuleBased renders a deterministic markdown report from the run result.
// Identical results always produce identical text.
type RuleBased struct{}

// NewRuleBased constructs the default summarizer.
func NewRuleBased() *RuleBased { return &RuleBased{} }

func (*RuleBased) Name() string { return "rules" }

// Summarize never fails; the error return satisfies the interface shared
// with remote implementations.
func (*RuleBased) Summarize(_ context.Context, result *models.RunResult) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# Root Cause Analysis: %s\n\n", result.Symptom.Service)

	fmt.Fprintf(&b, "## Symptom\n\n")
	if anchor, ok := result.IncidentByID(result.Symptom.IncidentID); ok {
		fmt.Fprintf(&b, "%s on `%s` starting %s.\n\n",
			anchor.Kind, anchor.Service, anchor.Window.Start.UTC().Format("2006-01-02 15:04:05 MST"))
	} else {
		fmt.Fprintf(&b, "Reported failure on `%s`.\n\n", result.Symptom.Service)
	}

	b.WriteString("## Most Likely Root Cause\n\n")
	if len(result.RootCauses) == 0 {
		b.WriteString("No root-cause candidate was identified from the available evidence.\n\n")
	} else {
		top := result.RootCauses[0]
		fmt.Fprintf(&b, "**%s** on `%s` (confidence %.2f).\n\n", top.Kind, top.Service, top.Confidence)
		if top.Explanation != "" {
			fmt.Fprintf(&b, "%s\n\n", top.Explanation)
		}
		if top.ConfigChangeRef != "" {
			if change, ok := result.IncidentByID(top.ConfigChangeRef); ok {
				fmt.Fprintf(&b, "A configuration change preceded this incident: %s.\n\n", change.Description)
			}
		}
		if len(top.Remediation) > 0 {
			b.WriteString("### Suggested Remediation\n\n")
			for _, hint := range top.Remediation {
				fmt.Fprintf(&b, "- %s\n", hint)
			}
			b.WriteString("\n")
		}
	}

	if len(result.Chains) > 0 {
		b.WriteString("## Failure Propagation\n\n")
		for _, chain := range result.Chains {
			fmt.Fprintf(&b, "- %s\n", strings.Join(reversed(chain.Services()), " -> "))
		}
		b.WriteString("\n")
	}

	if others := result.RootCauses; len(others) > 1 {
		b.WriteString("## Other Candidates\n\n")
		for _, c := range others[1:] {
			fmt.Fprintf(&b, "%d. %s on `%s` (confidence %.2f)\n", c.Rank, c.Kind, c.Service, c.Confidence)
		}
		b.WriteString("\n")
	}

	if timeline := result.Timeline(); len(timeline) > 0 {
		b.WriteString("## Incident Timeline\n\n")
		for _, inc := range timeline {
			fmt.Fprintf(&b, "- %s  %s on `%s`\n",
				inc.Window.Start.UTC().Format("15:04:05"), inc.Kind, inc.Service)
		}
		b.WriteString("\n")
	}

	if hotspots := result.Hotspots(); len(hotspots) > 1 {
		b.WriteString("## Hotspots\n\n")
		for _, spot := range hotspots {
			fmt.Fprintf(&b, "- `%s`: %d incident(s), peak magnitude %.2f\n",
				spot.Service, spot.Incidents, spot.MaxMagnitude)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Run Details\n\n")
	fmt.Fprintf(&b, "- Services observed: %d\n", len(result.Graph.Nodes))
	fmt.Fprintf(&b, "- Incidents detected: %d\n", len(result.Incidents))
	fmt.Fprintf(&b, "- Causal chains explored: %d\n", len(result.Chains))
	if n := len(result.Diagnostics); n > 0 {
		fmt.Fprintf(&b, "- Data quality diagnostics: %d\n", n)
	}

	return b.String(), nil
}

// reversed orders chain services from root cause toward the symptom, the
// direction a reader narrates an outage in.
func reversed(services []string) []string {
	out := make([]string, len(services))
	for i, s := range services {
		out[len(services)-1-i] = s
	}
	return out
}
