//go:build linux
// +build linux

// File: internal/concurrency/pin_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux lookup of the running CPU via getcpu(2).

package concurrency

import "golang.org/x/sys/unix"

// currentCPU returns the id of the CPU the calling thread runs on.
// Falls back to round-robin if the syscall is unavailable.
func currentCPU() int {
	cpu, _, err := unix.Getcpu()
	if err != nil {
		return nextRR()
	}
	return cpu
}
