// File: pool/heap.go
// Author: momentics <momentics@gmail.com>
//
// Backing storage providers for pool blobs.

package pool

import (
	"fmt"
	"unsafe"

	"github.com/momentics/hioload-mempool/api"
)

// GoHeap allocates blobs as ordinary byte slices. The garbage collector does
// not scan them, so blocks must not hold the only reference to Go memory.
type GoHeap struct{}

func (GoHeap) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("go heap: invalid size %d", size)
	}
	return make([]byte, size), nil
}

func (GoHeap) Free([]byte) error { return nil }

// sliceHeap allocates blobs as []T so that pointers held by pooled objects
// stay visible to the garbage collector.
type sliceHeap[T any] struct {
	live map[unsafe.Pointer][]T
}

func newSliceHeap[T any]() *sliceHeap[T] {
	return &sliceHeap[T]{live: make(map[unsafe.Pointer][]T)}
}

func (h *sliceHeap[T]) Alloc(size int) ([]byte, error) {
	var zero T
	esz := int(unsafe.Sizeof(zero))
	if size <= 0 || esz == 0 {
		return nil, fmt.Errorf("slice heap: invalid size %d", size)
	}
	s := make([]T, (size+esz-1)/esz)
	base := unsafe.Pointer(unsafe.SliceData(s))
	h.live[base] = s
	return unsafe.Slice((*byte)(base), size), nil
}

func (h *sliceHeap[T]) Free(b []byte) error {
	base := unsafe.Pointer(unsafe.SliceData(b))
	if _, ok := h.live[base]; !ok {
		return fmt.Errorf("slice heap: %p was not allocated here", base)
	}
	delete(h.live, base)
	return nil
}

var (
	_ api.Heap = GoHeap{}
	_ api.Heap = (*sliceHeap[int])(nil)
)
