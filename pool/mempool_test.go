// Copyright 2025 momentics@gmail.com
// Licensed under the Apache License, Version 2.0.

// mempool_test.go: raw pool allocation, growth, teardown and checked frees.
package pool_test

import (
	"errors"
	"fmt"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-mempool/api"
	"github.com/momentics/hioload-mempool/fake"
	"github.com/momentics/hioload-mempool/pool"
)

const wordSize = int(unsafe.Sizeof(uintptr(0)))

func newTestPool(t *testing.T, cfg pool.Config) *pool.Pool {
	t.Helper()
	p, err := pool.New(cfg)
	require.NoError(t, err)
	t.Cleanup(p.Clear)
	return p
}

func requireCorruption(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected fail-fast panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		require.ErrorIs(t, err, api.ErrCorruption)
		assert.Equal(t, api.ErrCodeCorruption, api.CodeOf(err))
	}()
	fn()
}

func TestExhaustionWithGrowNone(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 4, Growth: pool.GrowNone})

	for i := 0; i < 4; i++ {
		b, err := p.Alloc()
		require.NoError(t, err)
		require.NotNil(t, b)
	}

	b, err := p.Alloc()
	assert.Nil(t, b)
	require.ErrorIs(t, err, api.ErrResourceExhausted)
	assert.Equal(t, api.ErrCodeExhausted, api.CodeOf(err))
	assert.Equal(t, 4, p.Count())
	assert.Equal(t, 1, p.NumBlobs())
}

func TestGrowNoneReusesFreedBlocks(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 2, Growth: pool.GrowNone})

	a, err := p.Alloc()
	require.NoError(t, err)
	_, err = p.Alloc()
	require.NoError(t, err)

	p.Free(a)
	c, err := p.Alloc()
	require.NoError(t, err)
	assert.Equal(t, a, c, "freed block goes back to the head of the free list")
}

func TestCountAndPeak(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 32, ElementCount: 4, Growth: pool.GrowSlow})

	var blocks []unsafe.Pointer
	for i := 0; i < 10; i++ {
		b, err := p.Alloc()
		require.NoError(t, err)
		blocks = append(blocks, b)
	}
	for _, b := range blocks[:3] {
		p.Free(b)
	}
	assert.Equal(t, 7, p.Count())
	assert.Equal(t, 10, p.PeakCount())

	_, err := p.Alloc()
	require.NoError(t, err)
	assert.Equal(t, 8, p.Count())
	assert.Equal(t, 10, p.PeakCount())
}

func TestAllocationsWithinPool(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 24, ElementCount: 3, Growth: pool.GrowFast})

	var outside [64]byte
	assert.False(t, p.IsAllocationWithinPool(unsafe.Pointer(&outside[0])))

	var live []unsafe.Pointer
	for i := 0; i < 20; i++ {
		b, err := p.Alloc()
		require.NoError(t, err)
		live = append(live, b)
	}
	for _, b := range live {
		assert.True(t, p.IsAllocationWithinPool(b))
	}
	assert.False(t, p.IsAllocationWithinPool(unsafe.Pointer(&outside[0])))

	p.Clear()
	for _, b := range live {
		assert.False(t, p.IsAllocationWithinPool(b))
	}
}

func TestBlocksDoNotOverlap(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 40, ElementCount: 5, Growth: pool.GrowSlow})

	seen := make(map[uintptr]bool)
	for i := 0; i < 23; i++ {
		b, err := p.Alloc()
		require.NoError(t, err)
		blk := p.Block(b)
		for j := range blk {
			blk[j] = byte(i)
		}
		seen[uintptr(b)] = true
	}
	assert.Len(t, seen, 23)
	p.ForEachLive(func(b unsafe.Pointer) bool {
		blk := p.Block(b)
		for _, c := range blk[1:] {
			if c != blk[0] {
				t.Fatalf("block %p was overwritten by a neighbour", b)
			}
		}
		return true
	})
}

func TestGrowFastBlobSizes(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 8, ElementCount: 3, Growth: pool.GrowFast})
	stride := p.BlockSize()

	expected := []int{3, 3 + 6, 3 + 6 + 9}
	allocated := 0
	for k, total := range expected {
		for allocated < total {
			_, err := p.Alloc()
			require.NoError(t, err)
			allocated++
		}
		assert.Equal(t, k+1, p.NumBlobs())
		assert.Equal(t, total*stride, p.Capacity())
	}

	// Size keeps the historical formula and undercounts unequal blobs.
	assert.Equal(t, 3*3*stride, p.Size())
	assert.Less(t, p.Size(), p.Capacity())
}

func TestGrowSlowBlobSizes(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 8, ElementCount: 3, Growth: pool.GrowSlow})

	for i := 0; i < 10; i++ {
		_, err := p.Alloc()
		require.NoError(t, err)
	}
	assert.Equal(t, 4, p.NumBlobs())
	assert.Equal(t, 4*3*p.BlockSize(), p.Capacity())
	assert.Equal(t, p.Capacity(), p.Size())
}

func TestAllocZero(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 48, ElementCount: 2, Growth: pool.GrowSlow})

	b, err := p.Alloc()
	require.NoError(t, err)
	blk := p.Block(b)
	for i := range blk {
		blk[i] = 0xAB
	}
	p.Free(b)

	z, err := p.AllocZero()
	require.NoError(t, err)
	require.Equal(t, b, z)
	assert.Equal(t, make([]byte, p.BlockSize()), p.Block(z))

	_, err = p.AllocZeroSize(8)
	require.NoError(t, err)
}

func TestAllocSizeBounds(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 2, Growth: pool.GrowSlow})

	b, err := p.AllocSize(p.BlockSize() + 1)
	assert.Nil(t, b)
	require.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = p.AllocSize(-1)
	require.ErrorIs(t, err, api.ErrInvalidArgument)

	b, err = p.AllocSize(4)
	require.NoError(t, err)
	assert.True(t, p.IsAllocationWithinPool(b))
	assert.Equal(t, 1, p.Count())
}

func TestAlignment(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 24, ElementCount: 5, Growth: pool.GrowSlow, Alignment: 64})
	assert.Equal(t, 64, p.BlockSize())

	for i := 0; i < 12; i++ {
		b, err := p.Alloc()
		require.NoError(t, err)
		assert.Zero(t, uintptr(b)%64, "block %d at %p", i, b)
	}
}

func TestNaturalAlignmentRoundsToWord(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: wordSize + 4, ElementCount: 4, Growth: pool.GrowSlow})
	assert.Equal(t, 2*wordSize, p.BlockSize())

	for i := 0; i < 9; i++ {
		b, err := p.Alloc()
		require.NoError(t, err)
		assert.Zero(t, uintptr(b)%uintptr(wordSize))
	}
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  pool.Config
		ok   bool
	}{
		{"valid", pool.Config{BlockSize: wordSize, ElementCount: 1}, true},
		{"block below link size", pool.Config{BlockSize: wordSize / 2, ElementCount: 4}, false},
		{"alignment rounds block up", pool.Config{BlockSize: wordSize / 2, ElementCount: 4, Alignment: wordSize}, true},
		{"zero block", pool.Config{ElementCount: 4}, false},
		{"zero elements", pool.Config{BlockSize: 16}, false},
		{"negative elements", pool.Config{BlockSize: 16, ElementCount: -3}, false},
		{"alignment not power of two", pool.Config{BlockSize: 16, ElementCount: 4, Alignment: 24}, false},
		{"negative alignment", pool.Config{BlockSize: 16, ElementCount: 4, Alignment: -8}, false},
		{"unknown growth", pool.Config{BlockSize: 16, ElementCount: 4, Growth: pool.GrowthMode(9)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := pool.New(tt.cfg)
			if tt.ok {
				require.NoError(t, err)
				require.NotNil(t, p)
				return
			}
			assert.Nil(t, p)
			require.ErrorIs(t, err, api.ErrInvalidConfig)
			assert.Equal(t, api.ErrCodeInvalidConfig, api.CodeOf(err))
		})
	}
}

func TestDefaultOwnerTag(t *testing.T) {
	a := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 1})
	b := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 1})
	assert.Contains(t, a.Owner(), "mempool-")
	assert.NotEqual(t, a.Owner(), b.Owner())

	c := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 1, OwnerTag: "frames"})
	assert.Equal(t, "frames", c.Owner())
}

func TestClearReleasesEverything(t *testing.T) {
	heap := fake.NewHeap()
	p := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 2, Growth: pool.GrowSlow, Heap: heap})

	for i := 0; i < 5; i++ {
		_, err := p.Alloc()
		require.NoError(t, err)
	}
	require.Equal(t, 3, heap.Live())

	p.Clear()
	assert.Zero(t, heap.Live())
	assert.Equal(t, 3, heap.Frees)
	assert.Zero(t, p.Count())
	assert.Zero(t, p.NumBlobs())
	assert.Zero(t, p.Capacity())
	assert.Equal(t, 5, p.PeakCount())

	_, err := p.Alloc()
	require.NoError(t, err)
	assert.Equal(t, 1, p.NumBlobs())
	assert.Equal(t, 4, heap.Allocs)
}

func TestHeapFailurePropagates(t *testing.T) {
	heap := fake.NewHeap()
	heap.FailAfter = 1
	p := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 2, Growth: pool.GrowSlow, Heap: heap})

	for i := 0; i < 2; i++ {
		_, err := p.Alloc()
		require.NoError(t, err)
	}
	b, err := p.Alloc()
	assert.Nil(t, b)
	require.ErrorIs(t, err, api.ErrHeapFailure)
	require.ErrorIs(t, err, fake.ErrHeapRefused)
	assert.Equal(t, 2, p.Count())
	assert.Equal(t, 1, p.NumBlobs())
}

func TestShortHeapRegionIsReturned(t *testing.T) {
	heap := fake.NewHeap()
	heap.Short = true
	p := newTestPool(t, pool.Config{BlockSize: 64, ElementCount: 8, Heap: heap})

	_, err := p.Alloc()
	require.ErrorIs(t, err, api.ErrHeapFailure)
	assert.Zero(t, heap.Live())
	assert.Zero(t, p.NumBlobs())
}

func TestCloseReportsLeaks(t *testing.T) {
	var msgs []string
	report := func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf(format, args...))
	}
	p := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 4, OwnerTag: "leaky", Report: report})

	a, err := p.Alloc()
	require.NoError(t, err)
	_, err = p.Alloc()
	require.NoError(t, err)
	_, err = p.Alloc()
	require.NoError(t, err)
	p.Free(a)

	p.Close()
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0], "blocks left in memory: 2")
	assert.Contains(t, msgs[0], "leaky")
	assert.Zero(t, p.Count())

	msgs = nil
	p.Close()
	assert.Empty(t, msgs)
}

func TestProcessWideReportFunc(t *testing.T) {
	var got []string
	prev := pool.SetReportFunc(func(format string, args ...any) {
		got = append(got, fmt.Sprintf(format, args...))
	})
	defer pool.SetReportFunc(prev)

	p := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 4, OwnerTag: "global"})
	_, err := p.Alloc()
	require.NoError(t, err)
	p.Close()

	require.NotEmpty(t, got)
	assert.Contains(t, got[0], "global")

	pool.SetReportFunc(nil)
	assert.NotNil(t, pool.CurrentReportFunc())
}

func TestFreeNilIsNoop(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 4, Checked: true})
	assert.NotPanics(t, func() { p.Free(nil) })
	assert.Zero(t, p.Count())
}

func TestCheckedFreeForeignAddress(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 4, Checked: true})
	_, err := p.Alloc()
	require.NoError(t, err)

	var foreign [32]byte
	requireCorruption(t, func() { p.Free(unsafe.Pointer(&foreign[0])) })
	assert.Equal(t, 1, p.Count(), "free list must be untouched")
}

func TestCheckedFreeMisaligned(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 4, Checked: true})
	b, err := p.Alloc()
	require.NoError(t, err)
	requireCorruption(t, func() { p.Free(unsafe.Add(b, 1)) })
}

func TestCheckedDoubleFree(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 32, ElementCount: 4, Checked: true})
	a, err := p.Alloc()
	require.NoError(t, err)
	_, err = p.Alloc()
	require.NoError(t, err)

	p.Free(a)
	requireCorruption(t, func() { p.Free(a) })
	assert.Equal(t, 1, p.Count())
}

func TestCheckedFreePoisons(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 32, ElementCount: 4, Checked: true})
	a, err := p.Alloc()
	require.NoError(t, err)
	_, err = p.Alloc()
	require.NoError(t, err)

	blk := p.Block(a)
	for i := range blk {
		blk[i] = 0x11
	}
	p.Free(a)
	for i, c := range blk[wordSize:] {
		assert.Equal(t, byte(0xDD), c, "byte %d", i+wordSize)
	}
}

func TestUncheckedFreeLeavesContents(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 32, ElementCount: 4})
	if p.Checked() {
		t.Skip("checked build")
	}
	a, err := p.Alloc()
	require.NoError(t, err)
	blk := p.Block(a)
	for i := range blk {
		blk[i] = 0x11
	}
	p.Free(a)
	assert.Equal(t, byte(0x11), blk[len(blk)-1])
}

func TestMmapHeap(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 128, ElementCount: 16, Growth: pool.GrowFast, Heap: pool.MmapHeap{}, Checked: true})

	var live []unsafe.Pointer
	for i := 0; i < 40; i++ {
		b, err := p.AllocZero()
		require.NoError(t, err)
		p.Block(b)[0] = byte(i)
		live = append(live, b)
	}
	for i, b := range live {
		assert.Equal(t, byte(i), p.Block(b)[0])
	}
	for _, b := range live[:10] {
		p.Free(b)
	}
	assert.Equal(t, 30, p.Count())
	p.Clear()
	assert.Zero(t, p.NumBlobs())
}

func TestRawForEachLive(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 3, Growth: pool.GrowSlow})

	live := make(map[unsafe.Pointer]bool)
	var freed []unsafe.Pointer
	for i := 0; i < 7; i++ {
		b, err := p.Alloc()
		require.NoError(t, err)
		if i%3 == 0 {
			freed = append(freed, b)
		} else {
			live[b] = true
		}
	}
	for _, b := range freed {
		p.Free(b)
	}

	visited := make(map[unsafe.Pointer]bool)
	p.ForEachLive(func(b unsafe.Pointer) bool {
		visited[b] = true
		return true
	})
	assert.Equal(t, live, visited)

	n := 0
	p.ForEachLive(func(unsafe.Pointer) bool {
		n++
		return false
	})
	assert.Equal(t, 1, n)
}

func TestStats(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 4, Growth: pool.GrowFast, OwnerTag: "stats"})
	for i := 0; i < 6; i++ {
		_, err := p.Alloc()
		require.NoError(t, err)
	}
	st := p.Stats()
	assert.Equal(t, "stats", st.Owner)
	assert.Equal(t, 16, st.BlockSize)
	assert.Equal(t, 6, st.Count)
	assert.Equal(t, 6, st.PeakCount)
	assert.Equal(t, 2, st.Blobs)
	assert.Equal(t, 2*4*16, st.SizeBytes)
	assert.Equal(t, (4+8)*16, st.CapacityBytes)
	assert.Equal(t, 12-6, st.FreeBlocks)
}

func TestErrorsCarryContext(t *testing.T) {
	p := newTestPool(t, pool.Config{BlockSize: 16, ElementCount: 1, Growth: pool.GrowNone, OwnerTag: "ctx"})
	_, err := p.Alloc()
	require.NoError(t, err)
	_, err = p.Alloc()

	var perr *api.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "ctx", perr.Context["owner"])
	assert.Contains(t, err.Error(), "exhausted")
}
