package cache

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/momentics/kmem-core/api"
	"github.com/momentics/kmem-core/control"
	"github.com/momentics/kmem-core/fake"
)

func testCache(t *testing.T, numBuffers, numBuckets int) (*Cache, *fake.Disk) {
	t.Helper()
	disk := fake.NewDisk()
	cfg := control.CacheConfig{
		NumBuffers: numBuffers,
		NumBuckets: numBuckets,
		BlockSize:  64,
	}
	c, err := New(disk, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, disk
}

func TestReadCachesBlock(t *testing.T) {
	c, disk := testCache(t, 4, 2)

	b1, err := c.Read(1, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	c.Release(b1)

	b2, err := c.Read(1, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	c.Release(b2)

	if b1 != b2 {
		t.Errorf("same block resolved to two buffers: %p vs %p", b1, b2)
	}
	if disk.Reads() != 1 {
		t.Errorf("expected one device read, got %d", disk.Reads())
	}
}

func TestWriteReadBack(t *testing.T) {
	c, _ := testCache(t, 4, 2)

	b, err := c.Read(1, 3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	copy(b.Data(), []byte("payload"))
	if err := c.Write(b); err != nil {
		t.Fatalf("Write: %v", err)
	}
	c.Release(b)

	// Evict block 3 by cycling enough other blocks through its bucket,
	// then re-read it from the device.
	for n := api.BlockNum(5); n < 13; n += 2 {
		b, err := c.Read(1, n)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		c.Release(b)
	}

	b2, err := c.Read(1, 3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer c.Release(b2)
	if b2 == b {
		t.Fatalf("block 3 was not evicted")
	}
	if !bytes.Equal(b2.Data()[:7], []byte("payload")) {
		t.Errorf("read back %q, want %q", b2.Data()[:7], "payload")
	}
}

// Eviction must pick the buffer with the smallest release stamp among
// those with reference count zero.
func TestEvictionPicksLeastRecentlyReleased(t *testing.T) {
	c, _ := testCache(t, 4, 2)

	b0, err := c.Read(1, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	b1, err := c.Read(1, 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	c.Release(b0)
	c.Release(b1)

	// Burn the still-pristine buffers of bucket 0 and 1.
	b2, err := c.Read(1, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	b3, err := c.Read(1, 5)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	c.Release(b2)
	c.Release(b3)

	// Bucket 0 now holds block 0 (oldest stamp) and block 2. A new
	// block in bucket 0 must recycle block 0's buffer.
	b4, err := c.Read(1, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer c.Release(b4)
	if b4 != b0 {
		t.Errorf("evicted %p, want least recently released %p", b4, b0)
	}
}

func TestStealFromOtherBucket(t *testing.T) {
	c, _ := testCache(t, 2, 2)

	// Pin bucket 0's only buffer, then demand a second block in
	// bucket 0: it must be stolen from bucket 1.
	b0, err := c.Read(1, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	b2, err := c.Read(1, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := c.Metrics().CacheSteals.Value(); got != 1 {
		t.Errorf("steals = %d, want 1", got)
	}
	if b2 != &c.bufs[1] {
		t.Errorf("steal returned %p, want bucket 1's buffer %p", b2, &c.bufs[1])
	}
	c.Release(b0)
	c.Release(b2)

	// The stolen buffer now lives in bucket 0 and stays reachable.
	b2b, err := c.Read(1, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer c.Release(b2b)
	if b2b != b2 {
		t.Errorf("stolen buffer lost: %p vs %p", b2b, b2)
	}
}

// When the donor bucket offers several evictable buffers, stealing must
// take the one with the smallest release stamp.
func TestStealPicksLeastRecentlyReleasedInDonor(t *testing.T) {
	c, disk := testCache(t, 4, 2)

	// Give bucket 1's two buffers distinct release stamps.
	bOld, err := c.Read(1, 1)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	c.Release(bOld)
	bNew, err := c.Read(1, 3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	c.Release(bNew)

	// Pin both of bucket 0's buffers so the next bucket 0 block must
	// steal from bucket 1.
	b0, err := c.Read(1, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	b2, err := c.Read(1, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	b4, err := c.Read(1, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if b4 != bOld {
		t.Errorf("steal took %p, want donor's least recently released %p", b4, bOld)
	}
	if got := c.Metrics().CacheSteals.Value(); got != 1 {
		t.Errorf("steals = %d, want 1", got)
	}

	// The donor keeps its newer buffer: block 3 is still cached.
	before := disk.Reads()
	b3, err := c.Read(1, 3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if b3 != bNew {
		t.Errorf("donor's newer buffer was stolen: %p vs %p", b3, bNew)
	}
	if disk.Reads() != before {
		t.Errorf("block 3 was re-read from the device")
	}

	c.Release(b0)
	c.Release(b2)
	c.Release(b3)
	c.Release(b4)
}

func TestAllPinnedPanics(t *testing.T) {
	c, _ := testCache(t, 4, 2)

	var held []api.CacheBuffer
	for n := api.BlockNum(0); n < 4; n++ {
		b, err := c.Read(1, n)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		held = append(held, b)
	}

	defer func() {
		if recover() == nil {
			t.Errorf("expected no-free-buffer panic")
		}
		for _, b := range held {
			c.Release(b)
		}
	}()
	c.Read(1, 4)
}

func TestWriteWithoutLockPanics(t *testing.T) {
	c, _ := testCache(t, 4, 2)

	b, err := c.Read(1, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	c.Release(b)

	defer func() {
		if recover() == nil {
			t.Errorf("expected contract-violation panic")
		}
	}()
	c.Write(b)
}

func TestReleaseWithoutLockPanics(t *testing.T) {
	c, _ := testCache(t, 4, 2)

	b, err := c.Read(1, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	c.Release(b)

	defer func() {
		if recover() == nil {
			t.Errorf("expected contract-violation panic")
		}
	}()
	c.Release(b)
}

func TestPinKeepsBufferResident(t *testing.T) {
	c, disk := testCache(t, 4, 2)

	b, err := c.Read(1, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	c.Pin(b)
	c.Release(b)

	// Heavy eviction pressure on both buckets must not recycle the
	// pinned buffer.
	for n := api.BlockNum(2); n < 20; n++ {
		bn, err := c.Read(1, n)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		c.Release(bn)
	}

	before := disk.Reads()
	b2, err := c.Read(1, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if b2 != b {
		t.Errorf("pinned buffer was recycled: %p vs %p", b2, b)
	}
	if disk.Reads() != before {
		t.Errorf("pinned buffer lost its content and was re-read")
	}
	c.Unpin(b2)
	c.Release(b2)
}

func TestDeviceFailurePropagates(t *testing.T) {
	c, disk := testCache(t, 4, 2)
	disk.FailReads = true

	_, err := c.Read(1, 0)
	if err == nil {
		t.Fatalf("expected device error")
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type %T, want *api.Error", err)
	}
	if apiErr.Code != api.ErrCodeDeviceIO {
		t.Errorf("code = %d, want ErrCodeDeviceIO", apiErr.Code)
	}
	if apiErr.Context["dev"] != api.DeviceID(1) || apiErr.Context["block"] != api.BlockNum(0) {
		t.Errorf("context = %+v, want dev 1 block 0", apiErr.Context)
	}
	if !errors.Is(err, api.ErrDeviceIO) {
		t.Errorf("error does not match ErrDeviceIO sentinel")
	}

	// The failed buffer must be released, not leaked: the cache still
	// has a free buffer for every slot.
	disk.FailReads = false
	for n := api.BlockNum(0); n < 4; n++ {
		b, err := c.Read(1, n)
		if err != nil {
			t.Fatalf("Read after failure: %v", err)
		}
		c.Release(b)
	}
}

// Concurrent lookups for one block must resolve to one buffer while it
// is pinned, and reference counts must drain back to zero.
func TestConcurrentLookupUniqueness(t *testing.T) {
	c, _ := testCache(t, 8, 2)

	anchor, err := c.Read(1, 7)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	c.Pin(anchor)
	c.Release(anchor)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b, err := c.Read(1, 7)
				if err != nil {
					t.Errorf("Read: %v", err)
					return
				}
				if b != anchor {
					t.Errorf("duplicate buffer for pinned block: %p vs %p", b, anchor)
					c.Release(b)
					return
				}
				c.Release(b)
			}
		}()
	}
	wg.Wait()

	b := c.own(anchor)
	c.Unpin(anchor)
	if b.refcnt != 0 {
		t.Errorf("refcnt = %d after drain, want 0", b.refcnt)
	}
}

// Stress mixed blocks across buckets with forced eviction and stealing;
// afterwards every reference count must be zero and no identity may be
// claimed twice.
func TestConcurrentChurn(t *testing.T) {
	c, _ := testCache(t, 6, 2)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 300; i++ {
				n := api.BlockNum((seed*7 + i) % 24)
				b, err := c.Read(2, n)
				if err != nil {
					t.Errorf("Read: %v", err)
					return
				}
				if b.Device() != 2 || b.Num() != n {
					t.Errorf("identity mismatch: got (%d,%d) want (2,%d)", b.Device(), b.Num(), n)
				}
				c.Release(b)
			}
		}(g)
	}
	wg.Wait()

	seen := make(map[[2]uint32]bool)
	for i := range c.bufs {
		b := &c.bufs[i]
		if b.refcnt != 0 {
			t.Errorf("buffer %d refcnt = %d after drain, want 0", i, b.refcnt)
		}
		if b.valid {
			key := [2]uint32{uint32(b.dev), uint32(b.num)}
			if seen[key] {
				t.Errorf("duplicate identity (%d,%d)", b.dev, b.num)
			}
			seen[key] = true
		}
	}
}
