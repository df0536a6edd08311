// control/debug.go
// License: Apache-2.0
//
// Named hooks evaluated on demand for state dumps.

package control

import (
	"sort"
	"sync"

	"github.com/jpillora/sizestr"
)

// DebugHooks holds registered hook functions.
type DebugHooks struct {
	mu    sync.RWMutex
	hooks map[string]func() any
}

// NewDebugHooks creates a hook registry.
func NewDebugHooks() *DebugHooks {
	return &DebugHooks{
		hooks: make(map[string]func() any),
	}
}

// RegisterHook inserts a named debug hook, replacing any previous one.
func (dp *DebugHooks) RegisterHook(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.hooks[name] = fn
}

// RegisterMetrics exposes every counter of mr as a hook. Byte counters are
// rendered human readable.
func (dp *DebugHooks) RegisterMetrics(mr *MetricsRegistry) {
	dp.RegisterHook("metrics", func() any {
		snap := mr.GetSnapshot()
		out := make(map[string]any, len(snap))
		for k, v := range snap {
			out[k] = v
		}
		out[MetricBytesForwarded] = sizestr.ToString(snap[MetricBytesForwarded])
		return out
	})
}

// Names returns the registered hook names in sorted order.
func (dp *DebugHooks) Names() []string {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	names := make([]string, 0, len(dp.hooks))
	for k := range dp.hooks {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DumpState returns output of all hooks.
func (dp *DebugHooks) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any, len(dp.hooks))
	for k, fn := range dp.hooks {
		out[k] = fn()
	}
	return out
}
