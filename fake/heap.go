// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake heap implementation for testing pool growth and teardown.

package fake

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/momentics/hioload-mempool/api"
)

// ErrHeapRefused is returned once a Heap's allocation budget is spent.
var ErrHeapRefused = errors.New("fake heap: allocation refused")

// Heap is a counting api.Heap that can refuse allocations on demand.
type Heap struct {
	// FailAfter is the number of successful Alloc calls before every further
	// call fails. Negative means never fail.
	FailAfter int
	// Short makes Alloc return only half of the requested bytes.
	Short bool

	Allocs int
	Frees  int
	Bytes  int

	live map[unsafe.Pointer]int
}

// NewHeap creates a heap that never fails.
func NewHeap() *Heap {
	return &Heap{FailAfter: -1}
}

// Alloc hands out a zeroed region unless the budget is exhausted.
func (h *Heap) Alloc(size int) ([]byte, error) {
	if h.FailAfter >= 0 && h.Allocs >= h.FailAfter {
		return nil, ErrHeapRefused
	}
	if h.live == nil {
		h.live = make(map[unsafe.Pointer]int)
	}
	n := size
	if h.Short {
		n /= 2
	}
	b := make([]byte, n)
	h.live[unsafe.Pointer(unsafe.SliceData(b))] = n
	h.Allocs++
	h.Bytes += n
	return b, nil
}

// Free releases a region previously returned by Alloc.
func (h *Heap) Free(b []byte) error {
	base := unsafe.Pointer(unsafe.SliceData(b))
	n, ok := h.live[base]
	if !ok {
		return fmt.Errorf("fake heap: %p not allocated here", base)
	}
	delete(h.live, base)
	h.Frees++
	h.Bytes -= n
	return nil
}

// Live returns the number of regions not yet freed.
func (h *Heap) Live() int {
	return len(h.live)
}

var _ api.Heap = (*Heap)(nil)
