// File: core/cache/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Buffer arena and per-bucket index lists.

package cache

import (
	"github.com/momentics/kmem-core/api"
	"github.com/momentics/kmem-core/core/concurrency"
)

// Buf is one slot of the buffer arena, recycled between (device, block)
// identities for the lifetime of the cache. The identity fields (dev,
// num, refcnt, stamp) are guarded by the owning bucket's spin lock;
// valid and data are guarded by the content sleep lock.
type Buf struct {
	dev    api.DeviceID
	num    api.BlockNum
	valid  bool
	refcnt int
	stamp  uint64

	lock *concurrency.SleepLock
	data []byte

	// idx is the slot's handle into the arena's link table. Fixed at
	// construction.
	idx int
}

// Device returns the buffer's current device identity.
func (b *Buf) Device() api.DeviceID { return b.dev }

// Num returns the buffer's current block number.
func (b *Buf) Num() api.BlockNum { return b.num }

// Data returns the block payload. Only the content-lock holder may
// read or mutate it.
func (b *Buf) Data() []byte { return b.data }

var _ api.CacheBuffer = (*Buf)(nil)

// link is one node of the arena's doubly linked index lists. Slots
// 0..n-1 belong to buffers; slot n+i is bucket i's sentinel, making
// every bucket list circular without pointer aliasing.
type link struct {
	prev, next int
}

// bucket is one shard of the cache's hash table: a spin lock plus the
// sentinel of its circular buffer list. The set of all bucket lists
// partitions the buffer pool; no buffer is ever on two lists.
type bucket struct {
	lock concurrency.SpinLock
	// sentinel is the bucket's fixed index into the link table.
	sentinel int
}

// unlink removes slot i from whatever list it is on.
func (c *Cache) unlink(i int) {
	l := &c.links[i]
	c.links[l.prev].next = l.next
	c.links[l.next].prev = l.prev
	l.prev, l.next = i, i
}

// pushFront splices slot i in right after bucket b's sentinel, the
// most-recently-used end.
func (c *Cache) pushFront(b *bucket, i int) {
	s := b.sentinel
	first := c.links[s].next
	c.links[i].prev = s
	c.links[i].next = first
	c.links[first].prev = i
	c.links[s].next = i
}
