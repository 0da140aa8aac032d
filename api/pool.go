// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines abstract pooling APIs: fixed-block allocators over raw memory and
// typed object allocators layered on top of them.

package api

import "unsafe"

// Heap supplies the backing storage for pool blobs.
type Heap interface {
	// Alloc returns a zeroed region of exactly size bytes.
	Alloc(size int) ([]byte, error)

	// Free returns a region previously obtained from Alloc.
	Free(b []byte) error
}

// BlockAllocator hands out same-sized blocks of raw memory.
type BlockAllocator interface {
	// Alloc returns an uninitialized block of BlockSize bytes.
	Alloc() (unsafe.Pointer, error)

	// AllocZero returns a zero-filled block.
	AllocZero() (unsafe.Pointer, error)

	// Free returns a block to the allocator. Free(nil) is a no-op.
	Free(p unsafe.Pointer)

	// Clear releases every block at once.
	Clear()

	// IsAllocationWithinPool reports whether p lies inside pool storage.
	IsAllocationWithinPool(p unsafe.Pointer) bool

	// Stats exposes accounting for observability.
	Stats() PoolStats
}

// ObjectAllocator hands out constructed objects of a single type.
type ObjectAllocator[T any] interface {
	Alloc() (*T, error)
	AllocZero() (*T, error)
	Free(obj *T)
	Clear()
	Stats() PoolStats
}

// Constructor is implemented by pooled types that initialize themselves
// after their slot is zeroed.
type Constructor interface {
	Construct()
}

// Destructor is implemented by pooled types that release resources before
// their slot is returned to the pool.
type Destructor interface {
	Destruct()
}

// StatsSource is anything that can report pool statistics.
type StatsSource interface {
	Stats() PoolStats
}

// PoolStats aggregates block accounting for one pool.
type PoolStats struct {
	Owner     string
	BlockSize int
	Count     int
	PeakCount int
	Blobs     int
	// SizeBytes follows the historical blobs*blocksPerBlob*blockSize formula
	// and undercounts once FAST growth has produced larger blobs.
	SizeBytes     int
	CapacityBytes int
	FreeBlocks    int
}
