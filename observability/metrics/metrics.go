// Package metrics exposes the Prometheus counters and histograms for the
// simulation core's tick loop and decision cycle (the orchestrator records
// actions and ledger appends; Engine.Tick records nothing), following the
// namespace/subsystem layout the rest of the corpus uses for its
// module metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type simMetrics struct {
	tickDuration         *prometheus.HistogramVec
	actionsByDecision    *prometheus.CounterVec
	ledgerAppends        *prometheus.CounterVec
	invariantViolations  *prometheus.CounterVec
	checkpointOperations *prometheus.CounterVec
}

var (
	once     sync.Once
	registry *simMetrics
)

// Metrics returns the lazily-initialized, process-wide metrics registry.
func Metrics() *simMetrics {
	once.Do(func() {
		registry = &simMetrics{
			tickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "chronicle_sim",
				Subsystem: "engine",
				Name:      "tick_duration_seconds",
				Help:      "Latency distribution for one Engine.Tick call.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"industry"}),
			actionsByDecision: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "chronicle_sim",
				Subsystem: "orchestrator",
				Name:      "actions_total",
				Help:      "Total proposed actions segmented by policy decision.",
			}, []string{"agent_role", "decision"}),
			ledgerAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "chronicle_sim",
				Subsystem: "ledger",
				Name:      "appends_total",
				Help:      "Total audit ledger entries appended, segmented by entry type.",
			}, []string{"entry_type"}),
			invariantViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "chronicle_sim",
				Subsystem: "policy",
				Name:      "invariant_violations_total",
				Help:      "Total post-commit invariant violations observed, segmented by invariant.",
			}, []string{"invariant"}),
			checkpointOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "chronicle_sim",
				Subsystem: "engine",
				Name:      "checkpoint_operations_total",
				Help:      "Total checkpoint create/restore operations, segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
		}
		prometheus.MustRegister(
			registry.tickDuration,
			registry.actionsByDecision,
			registry.ledgerAppends,
			registry.invariantViolations,
			registry.checkpointOperations,
		)
	})
	return registry
}

// ObserveTick records the wall-clock duration of one Engine.Tick call.
func (m *simMetrics) ObserveTick(industry string, d time.Duration) {
	if m == nil {
		return
	}
	if industry == "" {
		industry = "none"
	}
	m.tickDuration.WithLabelValues(industry).Observe(d.Seconds())
}

// RecordAction increments the action counter for one policy decision.
func (m *simMetrics) RecordAction(agentRole, decision string) {
	if m == nil {
		return
	}
	if agentRole == "" {
		agentRole = "unknown"
	}
	m.actionsByDecision.WithLabelValues(agentRole, decision).Inc()
}

// RecordLedgerAppend increments the ledger append counter for one entry
// type.
func (m *simMetrics) RecordLedgerAppend(entryType string) {
	if m == nil {
		return
	}
	m.ledgerAppends.WithLabelValues(entryType).Inc()
}

// RecordInvariantViolation increments the invariant-violation counter.
func (m *simMetrics) RecordInvariantViolation(invariant string) {
	if m == nil {
		return
	}
	m.invariantViolations.WithLabelValues(invariant).Inc()
}

// RecordCheckpointOperation increments the checkpoint operation counter.
func (m *simMetrics) RecordCheckpointOperation(operation string, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.checkpointOperations.WithLabelValues(operation, outcome).Inc()
}
