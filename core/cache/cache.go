// File: core/cache/cache.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lookup, recycle and cross-bucket steal for the block cache.

package cache

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/kmem-core/api"
	"github.com/momentics/kmem-core/control"
	"github.com/momentics/kmem-core/core/concurrency"
)

// Cache is the process-wide block cache. Created once at startup and
// never torn down; all buffers are preallocated and recycled in place.
type Cache struct {
	disk    api.BlockDevice
	bufs    []Buf
	buckets []bucket
	links   []link
	ticks   atomic.Uint64
	metrics *control.Metrics
}

// New builds a cache over disk with the given geometry. All buffers are
// distributed round-robin across the buckets; the partition only shifts
// afterwards through the steal protocol.
func New(disk api.BlockDevice, cfg control.CacheConfig, m *control.Metrics) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if disk == nil {
		return nil, fmt.Errorf("%w: nil block device", api.ErrInvalidArgument)
	}
	if m == nil {
		m = control.NewMetrics()
	}
	n, nb := cfg.NumBuffers, cfg.NumBuckets
	c := &Cache{
		disk:    disk,
		bufs:    make([]Buf, n),
		buckets: make([]bucket, nb),
		links:   make([]link, n+nb),
		metrics: m,
	}
	for i := range c.buckets {
		s := n + i
		c.buckets[i].sentinel = s
		c.links[s] = link{prev: s, next: s}
	}
	for i := range c.bufs {
		b := &c.bufs[i]
		b.idx = i
		b.lock = concurrency.NewSleepLock()
		b.data = make([]byte, cfg.BlockSize)
		c.pushFront(&c.buckets[i%nb], i)
	}
	return c, nil
}

// Metrics returns the cache's counter registry.
func (c *Cache) Metrics() *control.Metrics { return c.metrics }

func (c *Cache) bucketFor(num api.BlockNum) int {
	return int(num) % len(c.buckets)
}

// get returns the buffer for (dev, num) with its reference count raised
// and its content lock held. The content lock is always taken after the
// bucket spin lock is released: the content lock may block, and
// blocking under a spin lock is forbidden.
func (c *Cache) get(dev api.DeviceID, num api.BlockNum) *Buf {
	target := c.bucketFor(num)
	if b := c.getFromBucket(dev, num, target); b != nil {
		b.lock.Lock()
		return b
	}

	// Nothing evictable in the target bucket: steal from the others in
	// a fixed order. Phase one removes-and-reserves under the donor's
	// lock, phase two splices under the target's. At most one bucket
	// lock is ever held at a time.
	for donor := range c.buckets {
		if donor == target {
			continue
		}
		b := c.stealFromBucket(dev, num, donor)
		if b == nil {
			continue
		}
		tb := &c.buckets[target]
		tb.lock.Lock()
		c.pushFront(tb, b.idx)
		tb.lock.Unlock()
		c.metrics.CacheMisses.Inc()
		c.metrics.CacheSteals.Inc()
		b.lock.Lock()
		return b
	}

	// Every buffer in every bucket is pinned. That is a caller leak,
	// not transient load: buffers must be released promptly.
	panic("cache: no free buffer")
}

// getFromBucket looks (dev, num) up in bucket idx, recycling the least
// recently released free buffer on a miss. Returns nil if the bucket
// holds neither the block nor anything evictable.
func (c *Cache) getFromBucket(dev api.DeviceID, num api.BlockNum, idx int) *Buf {
	bk := &c.buckets[idx]
	bk.lock.Lock()

	for i := c.links[bk.sentinel].next; i != bk.sentinel; i = c.links[i].next {
		b := &c.bufs[i]
		if b.dev == dev && b.num == num {
			b.refcnt++
			bk.lock.Unlock()
			c.metrics.CacheHits.Inc()
			return b
		}
	}

	if b := c.evictLocked(bk); b != nil {
		b.dev, b.num = dev, num
		b.valid = false
		b.refcnt = 1
		bk.lock.Unlock()
		c.metrics.CacheMisses.Inc()
		c.metrics.CacheEvictions.Inc()
		return b
	}

	bk.lock.Unlock()
	return nil
}

// evictLocked selects the buffer with the smallest release stamp among
// those with reference count zero in bk's list. Caller holds bk.lock.
func (c *Cache) evictLocked(bk *bucket) *Buf {
	var victim *Buf
	for i := c.links[bk.sentinel].next; i != bk.sentinel; i = c.links[i].next {
		b := &c.bufs[i]
		if b.refcnt == 0 && (victim == nil || b.stamp < victim.stamp) {
			victim = b
		}
	}
	return victim
}

// stealFromBucket is phase one of the steal protocol: under the donor's
// lock, reserve its least recently released free buffer for the new
// identity and unlink it from the donor's list. Once unlinked and
// pinned the buffer is invisible to every other lookup, so the donor
// lock can be dropped before the target bucket is touched.
func (c *Cache) stealFromBucket(dev api.DeviceID, num api.BlockNum, donor int) *Buf {
	bk := &c.buckets[donor]
	bk.lock.Lock()
	b := c.evictLocked(bk)
	if b == nil {
		bk.lock.Unlock()
		return nil
	}
	b.dev, b.num = dev, num
	b.valid = false
	b.refcnt = 1
	c.unlink(b.idx)
	bk.lock.Unlock()
	return b
}

// Read returns the locked buffer for (dev, num) with valid content,
// filling it from the device on a miss.
func (c *Cache) Read(dev api.DeviceID, num api.BlockNum) (api.CacheBuffer, error) {
	b := c.get(dev, num)
	if !b.valid {
		if err := c.disk.ReadBlock(b.dev, b.num, b.data); err != nil {
			c.Release(b)
			return nil, deviceError("block read failed", dev, num, err)
		}
		b.valid = true
	}
	return b, nil
}

// Write flushes the buffer's content to the device. The caller must
// hold the content lock.
func (c *Cache) Write(cb api.CacheBuffer) error {
	b := c.own(cb)
	if !b.lock.Held() {
		panic("cache: write without content lock")
	}
	if err := c.disk.WriteBlock(b.dev, b.num, b.data); err != nil {
		return deviceError("block write failed", b.dev, b.num, err)
	}
	return nil
}

// deviceError wraps a driver failure with the transfer's identity.
func deviceError(msg string, dev api.DeviceID, num api.BlockNum, err error) *api.Error {
	return api.NewError(api.ErrCodeDeviceIO, fmt.Sprintf("%s: %v", msg, err)).
		WithContext("dev", dev).
		WithContext("block", num)
}

// Release unlocks the buffer and drops one reference. At reference
// count zero the buffer moves to the most-recently-used end of its
// bucket and is stamped with the current tick, which later drives LRU
// selection.
func (c *Cache) Release(cb api.CacheBuffer) {
	b := c.own(cb)
	if !b.lock.Held() {
		panic("cache: release without content lock")
	}
	b.lock.Unlock()

	bk := &c.buckets[c.bucketFor(b.num)]
	bk.lock.Lock()
	if b.refcnt <= 0 {
		bk.lock.Unlock()
		panic("cache: release of unreferenced buffer")
	}
	b.refcnt--
	if b.refcnt == 0 {
		c.unlink(b.idx)
		c.pushFront(bk, b.idx)
		b.stamp = c.ticks.Add(1)
	}
	bk.lock.Unlock()
}

// Pin raises the buffer's reference count without touching the content
// lock, keeping it resident across asynchronous use.
func (c *Cache) Pin(cb api.CacheBuffer) {
	b := c.own(cb)
	bk := &c.buckets[c.bucketFor(b.num)]
	bk.lock.Lock()
	b.refcnt++
	bk.lock.Unlock()
}

// Unpin drops one reference taken by Pin.
func (c *Cache) Unpin(cb api.CacheBuffer) {
	b := c.own(cb)
	bk := &c.buckets[c.bucketFor(b.num)]
	bk.lock.Lock()
	if b.refcnt <= 0 {
		bk.lock.Unlock()
		panic("cache: unpin of unreferenced buffer")
	}
	b.refcnt--
	bk.lock.Unlock()
}

// own asserts that cb is a buffer of this cache's arena.
func (c *Cache) own(cb api.CacheBuffer) *Buf {
	b, ok := cb.(*Buf)
	if !ok || b.idx < 0 || b.idx >= len(c.bufs) || &c.bufs[b.idx] != b {
		panic("cache: buffer does not belong to this cache")
	}
	return b
}

var _ api.BlockCache = (*Cache)(nil)
