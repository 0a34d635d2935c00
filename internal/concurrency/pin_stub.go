//go:build !linux
// +build !linux

// File: internal/concurrency/pin_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable fallback when the running CPU cannot be queried: spread
// callers across shards round-robin.

package concurrency

func currentCPU() int {
	return nextRR()
}
