// Package monitoring collects in-process run counters for the engine:
// outcomes per action, error kinds, and latency aggregates. Snapshot
// merges in cache statistics so one read serves the stats endpoint.
package monitoring

import (
	"sync"
	"time"

	"github.com/sells-group/integration-desk/internal/cache"
	"github.com/sells-group/integration-desk/internal/model"
)

// Collector accumulates counters. Safe for concurrent use.
type Collector struct {
	mu           sync.Mutex
	runsByAction map[model.Action]int64
	errorsByKind map[string]int64
	totalLatency time.Duration
	maxLatency   time.Duration
	runs         int64
	modelCalls   int64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		runsByAction: make(map[model.Action]int64),
		errorsByKind: make(map[string]int64),
	}
}

// ObserveRun records one completed workflow run.
func (c *Collector) ObserveRun(action model.Action, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs++
	c.runsByAction[action]++
	c.totalLatency += elapsed
	if elapsed > c.maxLatency {
		c.maxLatency = elapsed
	}
}

// ObserveError records an error by kind ("ModelUnavailable", "panic", ...).
func (c *Collector) ObserveError(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorsByKind[kind]++
}

// ObserveModelCall counts one language-model invocation.
func (c *Collector) ObserveModelCall() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modelCalls++
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Runs         int64                  `json:"runs"`
	RunsByAction map[model.Action]int64 `json:"runs_by_action"`
	ErrorsByKind map[string]int64       `json:"errors_by_kind"`
	AvgLatencyMS int64                  `json:"avg_latency_ms"`
	MaxLatencyMS int64                  `json:"max_latency_ms"`
	ModelCalls   int64                  `json:"model_calls"`
	Cache        *cache.Stats           `json:"cache,omitempty"`
}

// Snapshot copies the counters, merging cache stats when a cache is
// provided.
func (c *Collector) Snapshot(store cache.Cache) Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		Runs:         c.runs,
		RunsByAction: make(map[model.Action]int64, len(c.runsByAction)),
		ErrorsByKind: make(map[string]int64, len(c.errorsByKind)),
		MaxLatencyMS: c.maxLatency.Milliseconds(),
		ModelCalls:   c.modelCalls,
	}
	for k, v := range c.runsByAction {
		snap.RunsByAction[k] = v
	}
	for k, v := range c.errorsByKind {
		snap.ErrorsByKind[k] = v
	}
	if c.runs > 0 {
		snap.AvgLatencyMS = (c.totalLatency / time.Duration(c.runs)).Milliseconds()
	}
	c.mu.Unlock()

	if store != nil {
		stats := store.Stats()
		snap.Cache = &stats
	}
	return snap
}
