// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Runtime debug probe registry for pool inspection.

package control

import (
	"sync"

	"github.com/momentics/hioload-mempool/api"
)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts a named debug hook.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// RegisterPool exposes a pool's statistics under "pool.<owner>".
func (dp *DebugProbes) RegisterPool(src api.StatsSource) {
	dp.RegisterProbe("pool."+src.Stats().Owner, func() any {
		return src.Stats()
	})
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any, len(dp.probes))
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}
