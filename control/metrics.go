// control/metrics.go
// License: Apache-2.0
//
// Runtime counters of the dispatch loop.

package control

import (
	"sync"
)

// Counter names maintained by the daemon.
const (
	MetricIterations     = "dispatch.iterations"
	MetricTunnelFrames   = "tunnel.frames"
	MetricTunnelTrunc    = "tunnel.truncated"
	MetricTasksExecuted  = "tasks.executed"
	MetricTasksPurged    = "tasks.purged"
	MetricSocketErrors   = "socket.errors"
	MetricPeerResets     = "peer.resets"
	MetricBytesForwarded = "bytes.forwarded"
	MetricMalformed      = "packets.malformed"
)

// MetricsRegistry holds named counters.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]int64
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]int64),
	}
}

// Add increments key by delta.
func (mr *MetricsRegistry) Add(key string, delta int64) {
	mr.mu.Lock()
	mr.metrics[key] += delta
	mr.mu.Unlock()
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value int64) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.mu.Unlock()
}

// Get returns the value of key.
func (mr *MetricsRegistry) Get(key string) int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.metrics[key]
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]int64, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}
