// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package api

// BlockDevice abstracts the disk driver collaborator. Both transfers are
// synchronous: they return only after the payload has moved. The cache
// calls them while holding the buffer's content lock, never a spinlock.
type BlockDevice interface {
	// ReadBlock fills dst (len BlockSize) with the block's content.
	ReadBlock(dev DeviceID, num BlockNum, dst []byte) error

	// WriteBlock persists src (len BlockSize) as the block's content.
	WriteBlock(dev DeviceID, num BlockNum, src []byte) error
}

// CacheBuffer is one cached block as seen by cache clients. The holder
// of the buffer's content lock has exclusive right to Data.
type CacheBuffer interface {
	Device() DeviceID
	Num() BlockNum
	Data() []byte
}

// BlockCache multiplexes a fixed pool of in-memory buffers across all
// devices. Every buffer handed out is returned locked; callers must
// Release promptly, holding buffers only for the duration of one use.
type BlockCache interface {
	// Read returns the buffer for (dev, num) with valid content, locked.
	Read(dev DeviceID, num BlockNum) (CacheBuffer, error)

	// Write flushes the buffer's content to disk. The caller must hold
	// the buffer's content lock.
	Write(b CacheBuffer) error

	// Release unlocks the buffer and drops one reference.
	Release(b CacheBuffer)

	// Pin and Unpin adjust the reference count without touching the
	// content lock, keeping a buffer resident across asynchronous use.
	Pin(b CacheBuffer)
	Unpin(b CacheBuffer)
}

// FrameAllocator hands out fixed-size physical frames with counted
// shared ownership for copy-on-write mappings.
type FrameAllocator interface {
	// Alloc returns an owned frame with reference count 1, or
	// (NilFrame, ErrNoFreeFrame) on exhaustion.
	Alloc() (FrameRef, error)

	// Free drops one reference; the frame is recycled at count zero.
	Free(f FrameRef)

	// Share adds one reference to an allocated frame.
	Share(f FrameRef)

	// Bytes exposes the frame's payload. The slice stays valid while
	// the caller holds a reference.
	Bytes(f FrameRef) []byte
}
