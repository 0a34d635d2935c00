// Package concurrency
// Author: momentics <momentics@gmail.com>
//
// Processor identity and migration pinning for the sharded allocator.
// Platform-specific CPU lookup lives in pin_linux.go and pin_stub.go,
// guarded by build tags; the generic dispatcher is in pin.go.
package concurrency
