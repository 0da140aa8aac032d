// File: pool/freelist.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import "unsafe"

// freeList threads unused blocks together through their first word.
//
// Links are stored as plain integers. A pointer store would carry a write
// barrier that inspects the word being overwritten, and on the unchecked
// path that word is arbitrary caller data. Blob memory is kept reachable by
// the blob list and the Go heap does not move objects, so the addresses stay
// valid without the collector tracing them.
type freeList struct {
	head uintptr
}

func (f *freeList) empty() bool {
	return f.head == 0
}

func (f *freeList) push(p unsafe.Pointer) {
	*(*uintptr)(p) = f.head
	f.head = uintptr(p)
}

func (f *freeList) pop() unsafe.Pointer {
	if f.head == 0 {
		return nil
	}
	p := unsafe.Add(unsafe.Pointer(nil), f.head)
	f.head = *(*uintptr)(p)
	return p
}

func (f *freeList) reset() {
	f.head = 0
}

func (f *freeList) each(fn func(unsafe.Pointer)) {
	for a := f.head; a != 0; {
		p := unsafe.Add(unsafe.Pointer(nil), a)
		next := *(*uintptr)(p)
		fn(p)
		a = next
	}
}

func (f *freeList) contains(target unsafe.Pointer) bool {
	t := uintptr(target)
	for a := f.head; a != 0; a = *(*uintptr)(unsafe.Add(unsafe.Pointer(nil), a)) {
		if a == t {
			return true
		}
	}
	return false
}

// thread pushes every block of b in reverse so block 0 pops first.
func (f *freeList) thread(b *blob, stride int) {
	for i := b.blocks - 1; i >= 0; i-- {
		f.push(b.block(i, stride))
	}
}
