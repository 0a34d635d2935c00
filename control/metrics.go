// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for the memory core.
// Striped counters keep hot-path accounting off the shard locks.

package control

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Metrics aggregates cache and allocator counters. All fields are safe
// for concurrent update from any goroutine.
type Metrics struct {
	CacheHits      *xsync.Counter
	CacheMisses    *xsync.Counter
	CacheSteals    *xsync.Counter
	CacheEvictions *xsync.Counter

	FrameAllocs  *xsync.Counter
	FrameFrees   *xsync.Counter
	FrameShares  *xsync.Counter
	FrameRefills *xsync.Counter // allocations served from a remote shard
}

// NewMetrics creates a registry with all counters at zero.
func NewMetrics() *Metrics {
	return &Metrics{
		CacheHits:      xsync.NewCounter(),
		CacheMisses:    xsync.NewCounter(),
		CacheSteals:    xsync.NewCounter(),
		CacheEvictions: xsync.NewCounter(),
		FrameAllocs:    xsync.NewCounter(),
		FrameFrees:     xsync.NewCounter(),
		FrameShares:    xsync.NewCounter(),
		FrameRefills:   xsync.NewCounter(),
	}
}

// Snapshot returns the current counter values keyed by name.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"cache.hits":      m.CacheHits.Value(),
		"cache.misses":    m.CacheMisses.Value(),
		"cache.steals":    m.CacheSteals.Value(),
		"cache.evictions": m.CacheEvictions.Value(),
		"frame.allocs":    m.FrameAllocs.Value(),
		"frame.frees":     m.FrameFrees.Value(),
		"frame.shares":    m.FrameShares.Value(),
		"frame.refills":   m.FrameRefills.Value(),
	}
}
