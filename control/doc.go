// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics, and debug introspection layer.
// Part of the kmem-core memory-management core.
//
// Provides concurrent-safe state handling primitives including:
//   - Fixed pool geometry with validated defaults
//   - Striped metrics counters for hot-path accounting
//   - Debug hooks and probe registration
package control
