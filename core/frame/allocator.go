// File: core/frame/allocator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Sharded free lists plus a reference-count table. The table has its
// own lock, separate from the shard locks, so frame handout and
// refcount bookkeeping never contend with each other.

package frame

import (
	"github.com/eapache/queue"

	"github.com/momentics/kmem-core/api"
	"github.com/momentics/kmem-core/control"
	"github.com/momentics/kmem-core/core/concurrency"
	pin "github.com/momentics/kmem-core/internal/concurrency"
)

// Poison fills: a freshly allocated frame is overwritten with
// allocPoison to surface reads of uninitialized memory, a freed frame
// with freePoison to catch dangling references.
const (
	allocPoison byte = 0x05
	freePoison  byte = 0x01
)

// shard is one processor's free list: a spin lock plus a queue of free
// frame indices. Frames circulate among shards over time; a frame is
// freed onto the list of whichever processor frees it.
type shard struct {
	lock concurrency.SpinLock
	free *queue.Queue
}

// Allocator is the process-wide physical frame allocator. Created once
// at startup and never torn down.
type Allocator struct {
	cfg   control.AllocConfig
	arena []byte

	shards []shard

	// refLock guards refcnt. Only user-visible counts live here: a
	// frame on a free list always has count zero.
	refLock concurrency.SpinLock
	refcnt  []int32

	metrics *control.Metrics
}

// New builds an allocator over a fresh arena of cfg.NumFrames frames
// and sweeps every frame onto the free lists, spreading them evenly
// across the shards.
func New(cfg control.AllocConfig, m *control.Metrics) (*Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m == nil {
		m = control.NewMetrics()
	}
	a := &Allocator{
		cfg:     cfg,
		arena:   make([]byte, cfg.NumFrames*cfg.FrameSize),
		shards:  make([]shard, cfg.NumShards),
		refcnt:  make([]int32, cfg.NumFrames),
		metrics: m,
	}
	for i := range a.shards {
		a.shards[i].free = queue.New()
	}
	for f := 0; f < cfg.NumFrames; f++ {
		fill(a.frameBytes(f), freePoison)
		a.shards[f%cfg.NumShards].free.Add(f)
	}
	return a, nil
}

// Metrics returns the allocator's counter registry.
func (a *Allocator) Metrics() *control.Metrics { return a.metrics }

// Alloc returns an owned frame with reference count 1, or ErrNoFreeFrame
// when every shard is empty. The calling thread is pinned for the whole
// call so the shard it pops from stays the local one.
func (a *Allocator) Alloc() (api.FrameRef, error) {
	cpu := pin.Pin(len(a.shards))
	defer pin.Unpin()

	f, ok := a.pop(cpu)
	remote := false
	if !ok {
		// Local shard empty: refill from the others in a fixed order,
		// one shard lock at a time.
		for i := range a.shards {
			if i == cpu {
				continue
			}
			if f, ok = a.pop(i); ok {
				remote = true
				break
			}
		}
	}
	if !ok {
		return api.NilFrame, api.ErrNoFreeFrame
	}

	fill(a.frameBytes(f), allocPoison)
	a.refLock.Lock()
	a.refcnt[f] = 1
	a.refLock.Unlock()

	a.metrics.FrameAllocs.Inc()
	if remote {
		a.metrics.FrameRefills.Inc()
	}
	return api.FrameRef(f), nil
}

// Free drops one reference to f. While other owners remain the frame
// stays allocated; at count zero it is poisoned and pushed onto the
// freeing processor's shard. Freeing an out-of-range or unallocated
// frame indicates corruption and panics.
func (a *Allocator) Free(f api.FrameRef) {
	a.check(f)

	a.refLock.Lock()
	n := a.refcnt[f] - 1
	if n < 0 {
		a.refLock.Unlock()
		panic("frame: free of unallocated frame")
	}
	a.refcnt[f] = n
	a.refLock.Unlock()

	a.metrics.FrameFrees.Inc()
	if n > 0 {
		return // still shared
	}

	fill(a.frameBytes(int(f)), freePoison)

	cpu := pin.Pin(len(a.shards))
	defer pin.Unpin()
	s := &a.shards[cpu]
	s.lock.Lock()
	s.free.Add(int(f))
	s.lock.Unlock()
}

// Share adds one reference to an allocated frame, for copy-on-write
// duplication. Sharing a free frame panics.
func (a *Allocator) Share(f api.FrameRef) {
	a.check(f)

	a.refLock.Lock()
	if a.refcnt[f] <= 0 {
		a.refLock.Unlock()
		panic("frame: share of unallocated frame")
	}
	a.refcnt[f]++
	a.refLock.Unlock()

	a.metrics.FrameShares.Inc()
}

// Bytes exposes f's payload. The slice stays valid while the caller
// holds a reference.
func (a *Allocator) Bytes(f api.FrameRef) []byte {
	a.check(f)
	return a.frameBytes(int(f))
}

// pop takes one frame index off shard i's free list.
func (a *Allocator) pop(i int) (int, bool) {
	s := &a.shards[i]
	s.lock.Lock()
	if s.free.Length() == 0 {
		s.lock.Unlock()
		return 0, false
	}
	f := s.free.Remove().(int)
	s.lock.Unlock()
	return f, true
}

// check panics on a handle outside the managed range.
func (a *Allocator) check(f api.FrameRef) {
	if f < 0 || int(f) >= a.cfg.NumFrames {
		panic("frame: handle outside managed range")
	}
}

func (a *Allocator) frameBytes(f int) []byte {
	off := f * a.cfg.FrameSize
	return a.arena[off : off+a.cfg.FrameSize]
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

var _ api.FrameAllocator = (*Allocator)(nil)
