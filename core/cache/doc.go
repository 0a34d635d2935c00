// Package cache
// Author: momentics <momentics@gmail.com>
//
// Sharded block cache for kmem-core.
// A fixed pool of buffers is partitioned across hash buckets keyed by
// block number; each bucket carries its own spin lock so lookups on
// different blocks proceed in parallel, while a per-buffer sleep lock
// protects content across whole device transfers.
// See buffer.go for the arena layout and cache.go for the operations.
package cache
