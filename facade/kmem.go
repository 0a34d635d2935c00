// File: facade/kmem.go
// Unified facade layer for the kmem-core library.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This file defines the Core struct, which aggregates the block cache
// and the frame allocator behind a single facade. Both pools are
// process-wide singletons: Core is the one initialization entry point,
// created once at startup, passed to every consumer, and never torn
// down.

package facade

import (
	"github.com/momentics/kmem-core/api"
	"github.com/momentics/kmem-core/control"
	"github.com/momentics/kmem-core/core/cache"
	"github.com/momentics/kmem-core/core/frame"
)

// Config holds parameters immutable per run. Pool geometry cannot be
// changed after initialization.
type Config struct {
	Cache control.CacheConfig
	Alloc control.AllocConfig

	// EnableDebug registers introspection probes on the Core.
	EnableDebug bool
}

// DefaultConfig returns default geometry for a memory arena of
// numFrames frames.
func DefaultConfig(numFrames int) *Config {
	return &Config{
		Cache:       control.DefaultCacheConfig(),
		Alloc:       control.DefaultAllocConfig(numFrames),
		EnableDebug: true,
	}
}

// Core is the main facade type: the memory-management context of the
// system.
type Core struct {
	cache   *cache.Cache
	frames  *frame.Allocator
	metrics *control.Metrics
	probes  *control.DebugProbes
}

// New initializes both pools over the given disk driver. The shared
// metrics registry spans cache and allocator counters.
func New(disk api.BlockDevice, cfg *Config) (*Core, error) {
	metrics := control.NewMetrics()

	c, err := cache.New(disk, cfg.Cache, metrics)
	if err != nil {
		return nil, err
	}
	a, err := frame.New(cfg.Alloc, metrics)
	if err != nil {
		return nil, err
	}

	core := &Core{cache: c, frames: a, metrics: metrics}
	if cfg.EnableDebug {
		core.probes = control.NewDebugProbes()
		core.probes.RegisterCounters("metrics", metrics)
	}
	return core, nil
}

// Cache returns the block cache.
func (c *Core) Cache() api.BlockCache { return c.cache }

// Frames returns the frame allocator.
func (c *Core) Frames() api.FrameAllocator { return c.frames }

// Metrics returns the shared counter registry.
func (c *Core) Metrics() *control.Metrics { return c.metrics }

// DumpState runs all registered debug probes. Returns nil when debug
// is disabled.
func (c *Core) DumpState() map[string]any {
	if c.probes == nil {
		return nil
	}
	return c.probes.DumpState()
}
