// Package pool: zero-alloc block batching.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Batch of raw blocks taken from one Pool. Like the pool itself, a batch is
// NOT thread-safe.

package pool

import "unsafe"

// BlockBatch is a minimal zero-alloc batch of blocks.
type BlockBatch struct {
	blocks []unsafe.Pointer
}

// NewBlockBatch creates a new batch with given capacity.
func NewBlockBatch(capacity int) *BlockBatch {
	return &BlockBatch{
		blocks: make([]unsafe.Pointer, 0, capacity),
	}
}

// Append adds a block to the batch.
func (b *BlockBatch) Append(p unsafe.Pointer) {
	b.blocks = append(b.blocks, p)
}

// Len returns number of items in the batch.
func (b *BlockBatch) Len() int {
	return len(b.blocks)
}

// Get retrieves item at index.
func (b *BlockBatch) Get(idx int) unsafe.Pointer {
	return b.blocks[idx]
}

// Slice returns zero-copy sub-batch [start:end).
func (b *BlockBatch) Slice(start, end int) *BlockBatch {
	return &BlockBatch{blocks: b.blocks[start:end]}
}

// Underlying returns the underlying slice.
func (b *BlockBatch) Underlying() []unsafe.Pointer {
	return b.blocks
}

// Split divides the batch at idx into two sub-batches.
func (b *BlockBatch) Split(idx int) (first, second *BlockBatch) {
	return &BlockBatch{blocks: b.blocks[:idx]}, &BlockBatch{blocks: b.blocks[idx:]}
}

// Reset clears the batch retaining underlying storage.
func (b *BlockBatch) Reset() {
	clear(b.blocks)
	b.blocks = b.blocks[:0]
}

// AllocBatch appends n blocks from the pool to b. On failure the blocks
// taken so far stay in b and the allocation error is returned.
func (p *Pool) AllocBatch(b *BlockBatch, n int) error {
	for i := 0; i < n; i++ {
		blk, err := p.Alloc()
		if err != nil {
			return err
		}
		b.Append(blk)
	}
	return nil
}

// FreeBatch returns every block in b to the pool and resets b.
func (p *Pool) FreeBatch(b *BlockBatch) {
	for _, blk := range b.blocks {
		p.Free(blk)
	}
	b.Reset()
}
