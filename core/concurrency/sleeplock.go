// File: core/concurrency/sleeplock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Blocking lock held across whole device transfers.

package concurrency

import "sync"

// SleepLock protects a single buffer's content across a disk transfer.
// Unlike SpinLock, the holder may block while other goroutines proceed.
// Acquiring a SleepLock while holding any SpinLock is forbidden.
type SleepLock struct {
	mu     sync.Mutex
	cond   *sync.Cond
	locked bool
}

// NewSleepLock returns an unlocked SleepLock.
func NewSleepLock() *SleepLock {
	l := &SleepLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Lock blocks until the lock is available.
func (l *SleepLock) Lock() {
	l.mu.Lock()
	for l.locked {
		l.cond.Wait()
	}
	l.locked = true
	l.mu.Unlock()
}

// Unlock releases the lock and wakes one waiter. Unlocking a SleepLock
// that is not held is a contract violation and panics.
func (l *SleepLock) Unlock() {
	l.mu.Lock()
	if !l.locked {
		l.mu.Unlock()
		panic("concurrency: unlock of unlocked SleepLock")
	}
	l.locked = false
	l.mu.Unlock()
	l.cond.Signal()
}

// Held reports whether the lock is currently held. The cache uses this
// to back its fatal write/release contract checks.
func (l *SleepLock) Held() bool {
	l.mu.Lock()
	held := l.locked
	l.mu.Unlock()
	return held
}
