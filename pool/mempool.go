// File: pool/mempool.go
// Package pool implements fixed-block allocation over lazily grown blobs.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"fmt"
	"unsafe"

	"github.com/momentics/hioload-mempool/api"
)

// poisonByte fills freed blocks on the checked path.
const poisonByte = 0xDD

// Pool is a fixed-block allocator. All blocks share one size; freed blocks
// are kept on an intrusive free list and reused before any new blob is
// requested from the heap. A Pool must be driven by a single owner.
type Pool struct {
	blockSize     int // stride between blocks, alignment included
	blocksPerBlob int
	growth        GrowthMode
	align         int
	owner         string

	free      freeList
	head      blob // sentinel
	numBlobs  int
	allocated int
	peak      int

	heap    api.Heap
	report  ReportFunc
	checked bool
	poison  bool
	release func(unsafe.Pointer)
}

// New builds an empty pool. No memory is taken from the heap until the
// first allocation.
func New(cfg Config) (*Pool, error) {
	return newPool(cfg, true)
}

func newPool(cfg Config, poison bool) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	p := &Pool{
		blockSize:     cfg.stride(),
		blocksPerBlob: cfg.ElementCount,
		growth:        cfg.Growth,
		align:         cfg.blockAlign(),
		owner:         cfg.OwnerTag,
		heap:          cfg.Heap,
		report:        cfg.Report,
		checked:       cfg.Checked || debugBuild,
		poison:        poison,
	}
	p.head.init()
	if p.checked {
		p.release = p.freeChecked
	} else {
		p.release = p.freeFast
	}
	return p, nil
}

// Alloc returns an uninitialized block of BlockSize bytes.
func (p *Pool) Alloc() (unsafe.Pointer, error) {
	return p.alloc(p.blockSize, false)
}

// AllocSize serves callers that need n <= BlockSize bytes.
func (p *Pool) AllocSize(n int) (unsafe.Pointer, error) {
	return p.alloc(n, false)
}

// AllocZero returns a block whose BlockSize bytes are zero.
func (p *Pool) AllocZero() (unsafe.Pointer, error) {
	return p.alloc(p.blockSize, true)
}

// AllocZeroSize is AllocSize with a zero-filled block.
func (p *Pool) AllocZeroSize(n int) (unsafe.Pointer, error) {
	return p.alloc(n, true)
}

func (p *Pool) alloc(n int, zero bool) (unsafe.Pointer, error) {
	if n < 0 || n > p.blockSize {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "requested size exceeds block size").
			WithContext("owner", p.owner).
			WithContext("requested", n).
			WithContext("block_size", p.blockSize)
	}
	if p.free.empty() {
		if err := p.addBlob(); err != nil {
			return nil, err
		}
	}
	b := p.free.pop()
	p.allocated++
	if p.allocated > p.peak {
		p.peak = p.allocated
	}
	if zero {
		clear(p.Block(b))
	}
	return b, nil
}

// addBlob creates the next blob under the growth policy and threads all of
// its blocks onto the free list.
func (p *Pool) addBlob() error {
	blocks, ok := p.growth.blobBlocks(p.blocksPerBlob, p.numBlobs)
	if !ok {
		return api.NewError(api.ErrCodeExhausted, "pool exhausted and growth is disabled").
			WithContext("owner", p.owner).
			WithContext("count", p.allocated)
	}
	size := blocks * p.blockSize
	mem, err := p.heap.Alloc(size + p.align - 1)
	if err != nil {
		return api.NewError(api.ErrCodeHeapFailure, "blob allocation failed").
			WithCause(err).
			WithContext("owner", p.owner).
			WithContext("bytes", size)
	}
	pad := 0
	if len(mem) > 0 {
		if rem := int(uintptr(unsafe.Pointer(unsafe.SliceData(mem))) % uintptr(p.align)); rem != 0 {
			pad = p.align - rem
		}
	}
	if len(mem) < pad+size {
		_ = p.heap.Free(mem)
		return api.NewError(api.ErrCodeHeapFailure, "heap returned a short region").
			WithContext("owner", p.owner).
			WithContext("want", pad+size).
			WithContext("got", len(mem))
	}
	b := &blob{mem: mem, data: mem[pad : pad+size : pad+size], blocks: blocks}
	p.free.thread(b, p.blockSize)
	p.head.pushBack(b)
	p.numBlobs++
	return nil
}

// Free returns a block to the pool. Free(nil) is a no-op. On the checked
// path a foreign, misaligned or doubly freed block panics with an
// *api.Error carrying ErrCodeCorruption.
func (p *Pool) Free(b unsafe.Pointer) {
	if b == nil {
		return
	}
	p.release(b)
}

func (p *Pool) freeFast(b unsafe.Pointer) {
	p.allocated--
	p.free.push(b)
}

func (p *Pool) freeChecked(b unsafe.Pointer) {
	p.verifyFree(b)
	p.freeVerified(b)
}

// freeVerified is the tail of the checked path for a block that already
// passed verifyFree.
func (p *Pool) freeVerified(b unsafe.Pointer) {
	if p.poison {
		blk := p.Block(b)
		for i := range blk {
			blk[i] = poisonByte
		}
	}
	p.freeFast(b)
}

// verifyFree panics unless b is the start of a live block inside one of the
// blobs. Double frees are caught when the block still carries the poison
// pattern, or always on pools that cannot poison.
func (p *Pool) verifyFree(b unsafe.Pointer) {
	bl := p.blobFor(b)
	if bl == nil {
		panic(p.corruption("free of address outside pool", b))
	}
	if (uintptr(b)-bl.start())%uintptr(p.blockSize) != 0 {
		panic(p.corruption("free of address not on a block boundary", b))
	}
	if (!p.poison || p.looksFreed(p.Block(b))) && p.free.contains(b) {
		panic(p.corruption("double free", b))
	}
	if p.allocated == 0 {
		panic(p.corruption("free with no live blocks", b))
	}
}

// looksFreed reports whether everything past the link word still carries
// the poison pattern.
func (p *Pool) looksFreed(blk []byte) bool {
	if len(blk) <= ptrSize {
		return true
	}
	for _, c := range blk[ptrSize:] {
		if c != poisonByte {
			return false
		}
	}
	return true
}

func (p *Pool) corruption(msg string, b unsafe.Pointer) *api.Error {
	return api.NewError(api.ErrCodeCorruption, msg).
		WithContext("owner", p.owner).
		WithContext("addr", fmt.Sprintf("%p", b))
}

// Clear releases every blob back to the heap regardless of live blocks and
// returns the pool to its just-constructed state. No destructors run.
// PeakCount survives.
func (p *Pool) Clear() {
	for b := p.head.next; b != &p.head; {
		next := b.next
		if err := p.heap.Free(b.mem); err != nil {
			p.reportf("mempool %s: releasing blob: %v", p.owner, err)
		}
		b.prev, b.next, b.mem, b.data = nil, nil, nil, nil
		b = next
	}
	p.numBlobs = 0
	p.allocated = 0
	p.free.reset()
	p.head.init()
}

// Close reports outstanding blocks through the diagnostic sink and clears
// the pool.
func (p *Pool) Close() {
	p.reportLeaks()
	p.Clear()
}

func (p *Pool) reportLeaks() {
	if p.allocated <= 0 {
		return
	}
	p.reportf("Memory leak: mempool blocks left in memory: %d (owner %s)", p.allocated, p.owner)
	if !p.checked {
		return
	}
	for b := p.head.next; b != &p.head; b = b.next {
		p.reportf("   blob %#x: %d blocks of %d bytes", b.start(), b.blocks, p.blockSize)
	}
}

func (p *Pool) reportf(format string, args ...any) {
	if p.report != nil {
		p.report(format, args...)
		return
	}
	CurrentReportFunc()(format, args...)
}

// IsAllocationWithinPool reports whether b lies inside one of the blobs.
func (p *Pool) IsAllocationWithinPool(b unsafe.Pointer) bool {
	return p.blobFor(b) != nil
}

func (p *Pool) blobFor(b unsafe.Pointer) *blob {
	for cur := p.head.next; cur != &p.head; cur = cur.next {
		if cur.contains(b) {
			return cur
		}
	}
	return nil
}

// Block returns a byte view of the block at b.
func (p *Pool) Block(b unsafe.Pointer) []byte {
	return unsafe.Slice((*byte)(b), p.blockSize)
}

// Count returns the number of live blocks.
func (p *Pool) Count() int { return p.allocated }

// PeakCount returns the highest Count ever observed.
func (p *Pool) PeakCount() int { return p.peak }

// BlockSize returns the distance between blocks, alignment included.
func (p *Pool) BlockSize() int { return p.blockSize }

// NumBlobs returns the number of blobs currently held.
func (p *Pool) NumBlobs() int { return p.numBlobs }

// Owner returns the diagnostic owner tag.
func (p *Pool) Owner() string { return p.owner }

// Checked reports whether the pool runs the checked free path.
func (p *Pool) Checked() bool { return p.checked }

// Size returns NumBlobs*ElementCount*BlockSize. Under GrowFast later blobs
// are larger, so this undercounts; use Capacity for the exact figure.
func (p *Pool) Size() int {
	return p.numBlobs * p.blocksPerBlob * p.blockSize
}

// Capacity returns the exact number of block bytes held in blobs.
func (p *Pool) Capacity() int {
	n := 0
	for b := p.head.next; b != &p.head; b = b.next {
		n += len(b.data)
	}
	return n
}

func (p *Pool) totalBlocks() int {
	n := 0
	for b := p.head.next; b != &p.head; b = b.next {
		n += b.blocks
	}
	return n
}

// Stats exposes accounting for observability.
func (p *Pool) Stats() api.PoolStats {
	return api.PoolStats{
		Owner:         p.owner,
		BlockSize:     p.blockSize,
		Count:         p.allocated,
		PeakCount:     p.peak,
		Blobs:         p.numBlobs,
		SizeBytes:     p.Size(),
		CapacityBytes: p.Capacity(),
		FreeBlocks:    p.totalBlocks() - p.allocated,
	}
}

var _ api.BlockAllocator = (*Pool)(nil)
