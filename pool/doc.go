// Package pool
// Author: momentics <momentics@gmail.com>
//
// Fixed-block memory pools. A Pool carves blobs obtained from an api.Heap into
// same-sized blocks and threads the unused ones into an intrusive free list
// stored in the blocks themselves. Blobs are created lazily under a growth
// policy and released only in bulk. TypedPool[T] layers construction and
// destruction on top and recovers liveness at teardown by reconciling the
// free list against blob contents.
//
// Pools are single-owner and perform no locking. Wrap a pool with your own
// mutex if it must be shared.
//
// Building with -tags mempooldebug forces the checked free path (range check,
// poison fill, opportunistic double-free detection) for every pool.
package pool
