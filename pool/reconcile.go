// File: pool/reconcile.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"unsafe"

	"github.com/google/btree"
)

const freeSetDegree = 32

// ForEachLive calls fn for every block that is not on the free list, blob by
// blob in address order within each blob, until fn returns false.
//
// Liveness is not stored per block. It is recovered by collecting the free
// list into an ordered set and walking every blob against it, so the cost is
// O(F log F) to build plus O(B log F) to walk B blocks. fn must not allocate
// from or free to the pool.
func (p *Pool) ForEachLive(fn func(unsafe.Pointer) bool) {
	free := btree.NewG[uintptr](freeSetDegree, func(a, b uintptr) bool { return a < b })
	p.free.each(func(b unsafe.Pointer) {
		free.ReplaceOrInsert(uintptr(b))
	})
	for b := p.head.next; b != &p.head; b = b.next {
		for i := 0; i < b.blocks; i++ {
			slot := b.block(i, p.blockSize)
			if free.Has(uintptr(slot)) {
				continue
			}
			if !fn(slot) {
				return
			}
		}
	}
}
