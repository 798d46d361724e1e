package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("re-registration must be tolerated: %v", err)
	}
}

func TestObserveRunOutcomeLabels(t *testing.T) {
	successBefore := testutil.ToFloat64(runsTotal.WithLabelValues(string(OutcomeSuccess)))
	errorBefore := testutil.ToFloat64(runsTotal.WithLabelValues(string(OutcomeError)))

	ObserveRun(time.Millisecond, OutcomeSuccess)
	ObserveRun(time.Millisecond, OutcomeError)
	ObserveRun(time.Millisecond, Outcome("interrupted"))

	successDelta := testutil.ToFloat64(runsTotal.WithLabelValues(string(OutcomeSuccess))) - successBefore
	errorDelta := testutil.ToFloat64(runsTotal.WithLabelValues(string(OutcomeError))) - errorBefore
	if successDelta != 1 {
		t.Fatalf("expected 1 success, got %f", successDelta)
	}
	// The unknown outcome must land on the error label, never on success.
	if errorDelta != 2 {
		t.Fatalf("expected 2 errors including the unknown outcome, got %f", errorDelta)
	}
}
