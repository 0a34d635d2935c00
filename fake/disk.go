// Package fake
// Author: momentics <momentics@gmail.com>
//
// In-memory block device for testing.

package fake

import (
	"fmt"
	"sync"

	"github.com/momentics/kmem-core/api"
)

// Disk is an api.BlockDevice backed by a map of block payloads. Blocks
// never written read back as zeroes. It records transfer counts so
// tests can assert on cache hit behavior.
type Disk struct {
	mu     sync.Mutex
	blocks map[blockKey][]byte

	reads  int
	writes int

	// FailReads makes every ReadBlock return an error, for exercising
	// the cache's device-failure path.
	FailReads bool
}

type blockKey struct {
	dev api.DeviceID
	num api.BlockNum
}

// NewDisk creates an empty in-memory device.
func NewDisk() *Disk {
	return &Disk{blocks: make(map[blockKey][]byte)}
}

// ReadBlock fills dst with the block's stored content.
func (d *Disk) ReadBlock(dev api.DeviceID, num api.BlockNum, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailReads {
		return fmt.Errorf("fake: read failure injected")
	}
	d.reads++
	stored, ok := d.blocks[blockKey{dev, num}]
	if !ok {
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}
	copy(dst, stored)
	return nil
}

// WriteBlock stores src as the block's content.
func (d *Disk) WriteBlock(dev api.DeviceID, num api.BlockNum, src []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes++
	stored := make([]byte, len(src))
	copy(stored, src)
	d.blocks[blockKey{dev, num}] = stored
	return nil
}

// Reads returns the number of completed block reads.
func (d *Disk) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Writes returns the number of completed block writes.
func (d *Disk) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

var _ api.BlockDevice = (*Disk)(nil)
