// Package stats provides observability counters for the bridge.
// It tracks invocation outcomes per capability, child-process latency, and
// agent usage so operators can see what the bridge has been asked to do and
// how the external CLI has been behaving.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Failure kinds recorded against failureByKind.
const (
	FailureExit       = "exit"
	FailureTimeout    = "timeout"
	FailureSpawn      = "spawn"
	FailureCanceled   = "canceled"
	FailureValidation = "validation"
)

// Registry tracks all bridge invocations for observability.
type Registry struct {
	// Counters track cumulative counts of events
	invocationsTotal     atomic.Int64
	invocationsSucceeded atomic.Int64
	invocationsFailed    atomic.Int64
	invocationsTimedOut  atomic.Int64
	spawnFailures        atomic.Int64
	validationRejections atomic.Int64
	agentsUsedTotal      atomic.Int64

	// Per-capability invocation counters
	byCapabilityMu sync.RWMutex
	byCapability   map[string]int64

	// Failure kind counters
	failureByKindMu sync.RWMutex
	failureByKind   map[string]int64

	// Latency tracking (in milliseconds)
	latencyMu      sync.RWMutex
	latencySamples []int64
	maxSamples     int

	// Gauges track current state
	activeProcesses atomic.Int64

	// Timestamps for rate calculations
	startTime time.Time
}

// New creates a Registry keeping at most maxSamples latency measurements
// for average/min/max calculations.
func New(maxSamples int) *Registry {
	if maxSamples <= 0 {
		maxSamples = 1000
	}

	return &Registry{
		byCapability:   make(map[string]int64),
		failureByKind:  make(map[string]int64),
		latencySamples: make([]int64, 0, maxSamples),
		maxSamples:     maxSamples,
		startTime:      time.Now(),
	}
}

// RecordStart counts an invocation entering the runner and raises the
// in-flight gauge. Call it only after validation has passed.
func (r *Registry) RecordStart(capability string) {
	r.invocationsTotal.Add(1)
	r.activeProcesses.Add(1)

	r.byCapabilityMu.Lock()
	r.byCapability[capability]++
	r.byCapabilityMu.Unlock()
}

// RecordSuccess counts a zero-exit completion and records its latency.
func (r *Registry) RecordSuccess(latencyMs int64) {
	r.invocationsSucceeded.Add(1)
	r.activeProcesses.Add(-1)
	r.recordLatency(latencyMs)
}

// RecordFailure counts a failed invocation of the given kind.
func (r *Registry) RecordFailure(kind string, latencyMs int64) {
	r.invocationsFailed.Add(1)
	r.activeProcesses.Add(-1)
	switch kind {
	case FailureTimeout:
		r.invocationsTimedOut.Add(1)
	case FailureSpawn:
		r.spawnFailures.Add(1)
	}
	if latencyMs > 0 {
		r.recordLatency(latencyMs)
	}

	r.failureByKindMu.Lock()
	r.failureByKind[kind]++
	r.failureByKindMu.Unlock()
}

// RecordValidationRejection counts a request rejected before any process
// was spawned. The in-flight gauge is untouched because nothing started.
func (r *Registry) RecordValidationRejection() {
	r.validationRejections.Add(1)
}

// RecordAgents accumulates the agent count extracted from swarm output.
func (r *Registry) RecordAgents(n int) {
	if n > 0 {
		r.agentsUsedTotal.Add(int64(n))
	}
}

// recordLatency adds a latency sample, keeping only the most recent
// maxSamples measurements.
func (r *Registry) recordLatency(latencyMs int64) {
	r.latencyMu.Lock()
	defer r.latencyMu.Unlock()

	r.latencySamples = append(r.latencySamples, latencyMs)
	if len(r.latencySamples) > r.maxSamples {
		r.latencySamples = r.latencySamples[len(r.latencySamples)-r.maxSamples:]
	}
}

// Snapshot returns a point-in-time copy of all counters. Safe to call
// concurrently with recording.
func (r *Registry) Snapshot() *Snapshot {
	r.byCapabilityMu.RLock()
	byCapabilityCopy := make(map[string]int64, len(r.byCapability))
	for k, v := range r.byCapability {
		byCapabilityCopy[k] = v
	}
	r.byCapabilityMu.RUnlock()

	r.failureByKindMu.RLock()
	failureByKindCopy := make(map[string]int64, len(r.failureByKind))
	for k, v := range r.failureByKind {
		failureByKindCopy[k] = v
	}
	r.failureByKindMu.RUnlock()

	r.latencyMu.RLock()
	latencyStats := r.calculateLatencyStats()
	r.latencyMu.RUnlock()

	return &Snapshot{
		InvocationsTotal:     r.invocationsTotal.Load(),
		InvocationsSucceeded: r.invocationsSucceeded.Load(),
		InvocationsFailed:    r.invocationsFailed.Load(),
		InvocationsTimedOut:  r.invocationsTimedOut.Load(),
		SpawnFailures:        r.spawnFailures.Load(),
		ValidationRejections: r.validationRejections.Load(),
		AgentsUsedTotal:      r.agentsUsedTotal.Load(),

		ByCapability:  byCapabilityCopy,
		FailureByKind: failureByKindCopy,

		LatencyStats: latencyStats,

		ActiveProcesses: r.activeProcesses.Load(),

		UptimeSeconds: int64(time.Since(r.startTime).Seconds()),
		Timestamp:     time.Now(),
	}
}

// calculateLatencyStats computes statistics from the latency samples.
// Must be called with latencyMu held.
func (r *Registry) calculateLatencyStats() LatencyStats {
	if len(r.latencySamples) == 0 {
		return LatencyStats{}
	}

	var sum int64
	min := r.latencySamples[0]
	max := r.latencySamples[0]

	for _, sample := range r.latencySamples {
		sum += sample
		if sample < min {
			min = sample
		}
		if sample > max {
			max = sample
		}
	}

	return LatencyStats{
		AverageMs: sum / int64(len(r.latencySamples)),
		MinMs:     min,
		MaxMs:     max,
		Samples:   int64(len(r.latencySamples)),
	}
}

// Reset clears all counters. This is primarily useful for testing.
func (r *Registry) Reset() {
	r.invocationsTotal.Store(0)
	r.invocationsSucceeded.Store(0)
	r.invocationsFailed.Store(0)
	r.invocationsTimedOut.Store(0)
	r.spawnFailures.Store(0)
	r.validationRejections.Store(0)
	r.agentsUsedTotal.Store(0)
	r.activeProcesses.Store(0)

	r.byCapabilityMu.Lock()
	r.byCapability = make(map[string]int64)
	r.byCapabilityMu.Unlock()

	r.failureByKindMu.Lock()
	r.failureByKind = make(map[string]int64)
	r.failureByKindMu.Unlock()

	r.latencyMu.Lock()
	r.latencySamples = make([]int64, 0, r.maxSamples)
	r.latencyMu.Unlock()

	r.startTime = time.Now()
}

// Snapshot is a point-in-time view of bridge activity, safe to serialize
// and expose via the stats endpoint.
type Snapshot struct {
	InvocationsTotal     int64 `json:"invocations_total"`
	InvocationsSucceeded int64 `json:"invocations_succeeded"`
	InvocationsFailed    int64 `json:"invocations_failed"`
	InvocationsTimedOut  int64 `json:"invocations_timed_out"`
	SpawnFailures        int64 `json:"spawn_failures"`
	ValidationRejections int64 `json:"validation_rejections"`
	AgentsUsedTotal      int64 `json:"agents_used_total"`

	ByCapability  map[string]int64 `json:"by_capability"`
	FailureByKind map[string]int64 `json:"failure_by_kind"`

	LatencyStats LatencyStats `json:"latency_stats"`

	ActiveProcesses int64 `json:"active_processes"`

	UptimeSeconds int64     `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// LatencyStats contains statistical information about invocation latencies.
type LatencyStats struct {
	AverageMs int64 `json:"average_ms"`
	MinMs     int64 `json:"min_ms"`
	MaxMs     int64 `json:"max_ms"`
	Samples   int64 `json:"samples"`
}

// SuccessRate calculates the invocation success rate as a percentage
// (0-100). Returns 0 when nothing has run yet.
func (s *Snapshot) SuccessRate() float64 {
	if s.InvocationsTotal == 0 {
		return 0.0
	}
	return (float64(s.InvocationsSucceeded) / float64(s.InvocationsTotal)) * 100.0
}

// Global registry shared across the bridge.
var globalRegistry *Registry
var once sync.Once

// Global returns the shared Registry, initializing it if necessary.
func Global() *Registry {
	once.Do(func() {
		globalRegistry = New(1000)
	})
	return globalRegistry
}
