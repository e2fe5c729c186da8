package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordActionIncrementsCounter(t *testing.T) {
	m := Metrics()
	m.RecordAction("finance", "DENY")
	got := testutil.ToFloat64(m.actionsByDecision.WithLabelValues("finance", "DENY"))
	if got < 1 {
		t.Fatalf("actions_total{finance,DENY} = %v, want >= 1", got)
	}
}

func TestObserveTickRecordsIntoHistogram(t *testing.T) {
	m := Metrics()
	m.ObserveTick("saas", 10*time.Millisecond)
	count := testutil.CollectAndCount(m.tickDuration)
	if count == 0 {
		t.Fatal("expected tick_duration_seconds to have at least one series")
	}
}

func TestRecordCheckpointOperationTracksOutcome(t *testing.T) {
	m := Metrics()
	m.RecordCheckpointOperation("restore", false)
	got := testutil.ToFloat64(m.checkpointOperations.WithLabelValues("restore", "failure"))
	if got < 1 {
		t.Fatalf("checkpoint_operations_total{restore,failure} = %v, want >= 1", got)
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *simMetrics
	m.RecordAction("x", "APPROVE")
	m.ObserveTick("x", time.Millisecond)
	m.RecordLedgerAppend("x")
	m.RecordInvariantViolation("x")
	m.RecordCheckpointOperation("x", true)
}
