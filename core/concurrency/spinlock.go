// File: core/concurrency/spinlock.go
// Package concurrency provides the lock primitives for kmem-core.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Test-and-test-and-set spin lock for short metadata sections.

package concurrency

import (
	"runtime"
	"sync/atomic"
)

// SpinLock guards short metadata operations: bucket lists, shard free
// lists, the refcount table. A holder must never block, sleep or wait
// on I/O while holding it; critical sections stay O(shard size).
type SpinLock struct {
	locked uint32
}

// Lock spins until the lock is acquired. Yields the processor between
// rounds so a preempted holder can make progress.
func (l *SpinLock) Lock() {
	for {
		if atomic.LoadUint32(&l.locked) == 0 &&
			atomic.CompareAndSwapUint32(&l.locked, 0, 1) {
			return
		}
		runtime.Gosched()
	}
}

// Unlock releases the lock. Calling Unlock on an unlocked SpinLock is a
// contract violation and panics.
func (l *SpinLock) Unlock() {
	if !atomic.CompareAndSwapUint32(&l.locked, 1, 0) {
		panic("concurrency: unlock of unlocked SpinLock")
	}
}
