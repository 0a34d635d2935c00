// File: internal/concurrency/pin.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Migration pinning: a shard owner needs the running processor's
// identity to stay stable while its shard lock is held.

package concurrency

import (
	"runtime"
	"sync/atomic"
)

// Pin locks the calling goroutine to its OS thread and returns the
// running processor's shard index in [0, shards). The identity stays
// stable until the matching Unpin.
func Pin(shards int) int {
	runtime.LockOSThread()
	return currentCPU() % shards
}

// Unpin releases the thread pinned by Pin.
func Unpin() {
	runtime.UnlockOSThread()
}

// rr spreads callers across shards on platforms where the real CPU id
// is unavailable.
var rr atomic.Uint32

func nextRR() int {
	return int(rr.Add(1) - 1)
}
