// Package telemetry exposes the engine's Prometheus metrics: package-level
// promauto vars registered against the default registry at import time,
// one var block per concern.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lexiloop/adaptengine/internal/domain"
	"github.com/lexiloop/adaptengine/internal/engine"
	"github.com/lexiloop/adaptengine/internal/ensemble"
)

// ─── Circuit Breaker Metrics ────────────────────────────────────────────────

// CircuitState reports the current circuit breaker state
// (0=closed, 1=open, 2=half-open).
var CircuitState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "adaptengine",
	Subsystem: "circuit_breaker",
	Name:      "state",
	Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open).",
})

// ─── Pipeline Metrics ───────────────────────────────────────────────────────

// EventsProcessed counts processEvent calls by outcome ("ok" or "degraded").
var EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "adaptengine",
	Subsystem: "pipeline",
	Name:      "events_processed_total",
	Help:      "Total events processed, labeled by outcome.",
}, []string{"outcome"})

// FallbackReasons counts intelligentFallback invocations by reason.
var FallbackReasons = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "adaptengine",
	Subsystem: "pipeline",
	Name:      "fallback_reasons_total",
	Help:      "Total fallback invocations, labeled by reason.",
}, []string{"reason"})

// ProcessingLatency tracks end-to-end processEvent latency in milliseconds.
var ProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "adaptengine",
	Subsystem: "pipeline",
	Name:      "latency_ms",
	Help:      "processEvent latency in milliseconds.",
	Buckets:   []float64{1, 5, 10, 25, 50, 75, 100, 150, 250, 500},
})

// RewardObserved tracks the immediate reward signal's distribution.
var RewardObserved = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "adaptengine",
	Subsystem: "pipeline",
	Name:      "reward",
	Help:      "Immediate reward value computed per event.",
	Buckets:   []float64{-1, -0.5, -0.2, 0, 0.2, 0.5, 0.8, 1},
})

// ─── Ensemble / Cold-Start Metrics ──────────────────────────────────────────

// EnsembleContribution tracks each member's contribution weight in the
// latest aggregated decision, labeled by member name.
var EnsembleContribution = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "adaptengine",
	Subsystem: "ensemble",
	Name:      "member_contribution",
	Help:      "Latest per-member contribution weight in ensemble aggregation.",
}, []string{"member"})

// ColdStartPhase reports, per user bucket, the count of users currently in
// each cold-start phase. Cardinality-bounded: labeled only by phase, not by
// user ID.
var ColdStartPhase = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "adaptengine",
	Subsystem: "coldstart",
	Name:      "users_in_phase",
	Help:      "Number of users currently observed in each cold-start phase.",
}, []string{"phase"})

// ObserveCircuit mirrors a CircuitBreaker's current state into CircuitState.
func ObserveCircuit(cb *engine.CircuitBreaker) {
	switch cb.State() {
	case engine.CircuitClosed:
		CircuitState.Set(0)
	case engine.CircuitOpen:
		CircuitState.Set(1)
	case engine.CircuitHalfOpen:
		CircuitState.Set(2)
	}
}

// ObserveResult records a completed ProcessResult's outcome, fallback
// reason (when degraded), latency, and reward. Ensemble contributions are
// recorded separately by ObserveContributions.
func ObserveResult(result domain.ProcessResult, latencyMs float64) {
	outcome := "ok"
	if result.Degraded {
		outcome = "degraded"
		FallbackReasons.WithLabelValues(result.FallbackReason).Inc()
	}
	EventsProcessed.WithLabelValues(outcome).Inc()
	ProcessingLatency.Observe(latencyMs)
	RewardObserved.Observe(result.Reward)
}

// ObserveContributions mirrors an ensemble aggregation's per-member weights.
func ObserveContributions(contributions map[ensemble.MemberName]float64) {
	for member, weight := range contributions {
		EnsembleContribution.WithLabelValues(string(member)).Set(weight)
	}
}
