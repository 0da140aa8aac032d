//go:build !unix

// File: pool/heap_mmap_other.go
// Author: momentics <momentics@gmail.com>
//
// Platforms without anonymous mappings fall back to the Go heap.

package pool

// MmapHeap behaves like GoHeap on this platform.
type MmapHeap struct{ GoHeap }
