// Package frame
// Author: momentics <momentics@gmail.com>
//
// Physical frame allocator for kmem-core.
// All frames live in one arena owned by the allocator; free frames sit
// on per-processor sharded free lists, and allocated frames carry a
// reference count so copy-on-write mappings can share one frame until
// the last owner frees it.
package frame
