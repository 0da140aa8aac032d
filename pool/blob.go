// File: pool/blob.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "unsafe"

// blob is one contiguous region carved into fixed-size blocks. Blobs form a
// circular doubly-linked list anchored by a sentinel that owns no storage.
type blob struct {
	prev, next *blob
	mem        []byte // region as returned by the heap
	data       []byte // aligned view holding the blocks
	blocks     int
}

func (b *blob) init() {
	b.prev, b.next = b, b
}

func (b *blob) empty() bool {
	return b.next == b
}

// pushBack links nb just before the sentinel b.
func (b *blob) pushBack(nb *blob) {
	nb.prev = b.prev
	nb.next = b
	b.prev.next = nb
	b.prev = nb
}

func (b *blob) start() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b.data)))
}

func (b *blob) contains(p unsafe.Pointer) bool {
	a := uintptr(p)
	s := b.start()
	return a >= s && a < s+uintptr(len(b.data))
}

func (b *blob) block(i, stride int) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(unsafe.SliceData(b.data)), i*stride)
}
