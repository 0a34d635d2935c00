// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Pool geometry configuration. All values are fixed at initialization;
// the pools live as long as the process and are never resized.

package control

import (
	"fmt"
	"runtime"

	"github.com/momentics/kmem-core/api"
)

// CacheConfig sets the block cache geometry.
type CacheConfig struct {
	// NumBuffers is the total buffer pool size, spread round-robin
	// across buckets at init.
	NumBuffers int

	// NumBuckets is the hash shard count. Independent of pool size.
	NumBuckets int

	// BlockSize is the payload size of one buffer.
	BlockSize int
}

// AllocConfig sets the frame allocator geometry.
type AllocConfig struct {
	// NumFrames is the total number of frames in the managed arena.
	NumFrames int

	// NumShards is the free-list shard count, one per processor.
	NumShards int

	// FrameSize is the size of one frame.
	FrameSize int
}

// DefaultCacheConfig mirrors the geometry of a small teaching kernel:
// 30 buffers over 13 buckets of 1 KiB blocks.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		NumBuffers: 30,
		NumBuckets: api.NumBuckets,
		BlockSize:  api.BlockSize,
	}
}

// DefaultAllocConfig shards the free lists one per logical CPU.
func DefaultAllocConfig(numFrames int) AllocConfig {
	return AllocConfig{
		NumFrames: numFrames,
		NumShards: runtime.NumCPU(),
		FrameSize: api.FrameSize,
	}
}

// Validate rejects degenerate cache geometry.
func (c CacheConfig) Validate() error {
	if c.NumBuffers <= 0 || c.NumBuckets <= 0 || c.BlockSize <= 0 {
		return fmt.Errorf("control: cache geometry must be positive: %+v", c)
	}
	return nil
}

// Validate rejects degenerate allocator geometry.
func (c AllocConfig) Validate() error {
	if c.NumFrames <= 0 || c.NumShards <= 0 || c.FrameSize <= 0 {
		return fmt.Errorf("control: allocator geometry must be positive: %+v", c)
	}
	return nil
}
