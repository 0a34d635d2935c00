// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations and contract constants.

package api

// DeviceID identifies a block device managed by the cache.
type DeviceID uint32

// BlockNum is a block index on a device.
type BlockNum uint32

// FrameRef is a handle to one physical frame: its index into the
// allocator's arena. Frame payloads are only reachable through the
// allocator that issued the handle.
type FrameRef int32

// NilFrame is returned by allocators when no frame is available.
const NilFrame FrameRef = -1

const (
	// BlockSize is the fixed size of one cached disk block.
	BlockSize = 1024

	// FrameSize is the fixed size of one physical frame (one page).
	FrameSize = 4096

	// NumBuckets is the number of hash shards in the block cache.
	// Prime, independent of pool size, so blocks spread evenly.
	NumBuckets = 13
)
