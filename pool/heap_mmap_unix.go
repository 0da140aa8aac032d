//go:build unix

// File: pool/heap_mmap_unix.go
// Author: momentics <momentics@gmail.com>
//
// Off-heap blob storage via anonymous private mappings.

package pool

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MmapHeap maps every blob as anonymous memory outside the Go heap. Blocks
// must not hold Go pointers.
type MmapHeap struct{}

func (MmapHeap) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmap heap: invalid size %d", size)
	}
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

func (MmapHeap) Free(b []byte) error {
	return unix.Munmap(b)
}
