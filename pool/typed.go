// File: pool/typed.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"reflect"
	"unsafe"

	"github.com/momentics/hioload-mempool/api"
)

// TypedOptions configures a TypedPool. The block size is the size of T.
type TypedOptions[T any] struct {
	ElementCount int
	Growth       GrowthMode // zero value is GrowFast
	Alignment    int
	OwnerTag     string // defaults to the type name
	Checked      bool
	Heap         api.Heap   // pointer-free T only
	Report       ReportFunc // nil uses the process-wide sink

	Construct func(*T) // runs after the slot is set to T's zero value
	Destruct  func(*T) // runs before the slot goes back to the pool
}

// TypedPool hands out *T carved from a raw Pool and runs construction and
// destruction around each slot's lifetime.
//
// When T contains pointers its blobs are allocated as []T so the garbage
// collector sees them; such pools reject custom heaps and alignments above
// T's own, and zero destructed slots instead of poisoning them.
type TypedPool[T any] struct {
	raw       *Pool
	construct func(*T)
	destruct  func(*T)
	scanned   bool
}

// NewTyped builds an empty typed pool.
func NewTyped[T any](opts TypedOptions[T]) (*TypedPool[T], error) {
	var zero T
	typ := reflect.TypeOf((*T)(nil)).Elem()
	scanned := hasPointers(typ)

	cfg := Config{
		BlockSize:    int(unsafe.Sizeof(zero)),
		ElementCount: opts.ElementCount,
		Growth:       opts.Growth,
		Alignment:    opts.Alignment,
		OwnerTag:     opts.OwnerTag,
		Checked:      opts.Checked,
		Heap:         opts.Heap,
		Report:       opts.Report,
	}
	if cfg.OwnerTag == "" {
		cfg.OwnerTag = typ.String()
	}
	if scanned {
		if opts.Heap != nil {
			return nil, configError("custom heap requires a pointer-free element type").
				WithContext("type", typ.String())
		}
		if opts.Alignment > int(unsafe.Alignof(zero)) {
			return nil, configError("alignment above the element's own requires a pointer-free element type").
				WithContext("type", typ.String()).
				WithContext("alignment", opts.Alignment)
		}
		cfg.Heap = newSliceHeap[T]()
	}

	raw, err := newPool(cfg, !scanned)
	if err != nil {
		return nil, err
	}
	return &TypedPool[T]{
		raw:       raw,
		construct: opts.Construct,
		destruct:  opts.Destruct,
		scanned:   scanned,
	}, nil
}

// Alloc returns a constructed object. Raw failures are returned without
// running construction.
func (tp *TypedPool[T]) Alloc() (*T, error) {
	return tp.alloc(false)
}

// AllocZero zero-fills the whole slot, padding included, before construction.
func (tp *TypedPool[T]) AllocZero() (*T, error) {
	return tp.alloc(true)
}

func (tp *TypedPool[T]) alloc(zero bool) (*T, error) {
	var (
		b   unsafe.Pointer
		err error
	)
	if zero && !tp.scanned {
		b, err = tp.raw.AllocZero()
	} else {
		b, err = tp.raw.Alloc()
	}
	if err != nil {
		return nil, err
	}
	obj := (*T)(b)
	tp.constructAt(obj)
	return obj, nil
}

func (tp *TypedPool[T]) constructAt(obj *T) {
	var zero T
	*obj = zero
	if tp.construct != nil {
		tp.construct(obj)
	}
	if c, ok := any(obj).(api.Constructor); ok {
		c.Construct()
	}
}

func (tp *TypedPool[T]) destructAt(obj *T) {
	if d, ok := any(obj).(api.Destructor); ok {
		d.Destruct()
	}
	if tp.destruct != nil {
		tp.destruct(obj)
	}
	if tp.scanned {
		var zero T
		*obj = zero
	}
}

// Free destructs obj and returns its slot. Free(nil) is a no-op.
func (tp *TypedPool[T]) Free(obj *T) {
	if obj == nil {
		return
	}
	b := unsafe.Pointer(obj)
	if !tp.raw.checked {
		tp.destructAt(obj)
		tp.raw.freeFast(b)
		return
	}
	// Verify before destructing so a bad free never runs a destructor.
	tp.raw.verifyFree(b)
	tp.destructAt(obj)
	tp.raw.freeVerified(b)
}

// Clear destructs every live object and releases all storage.
func (tp *TypedPool[T]) Clear() {
	tp.raw.ForEachLive(func(b unsafe.Pointer) bool {
		tp.destructAt((*T)(b))
		return true
	})
	tp.raw.Clear()
}

// Close reports live objects through the diagnostic sink, then clears.
func (tp *TypedPool[T]) Close() {
	tp.raw.reportLeaks()
	tp.Clear()
}

// ForEachLive calls fn for every live object until fn returns false.
func (tp *TypedPool[T]) ForEachLive(fn func(*T) bool) {
	tp.raw.ForEachLive(func(b unsafe.Pointer) bool {
		return fn((*T)(b))
	})
}

// Contains reports whether obj lies inside the pool's storage.
func (tp *TypedPool[T]) Contains(obj *T) bool {
	return tp.raw.IsAllocationWithinPool(unsafe.Pointer(obj))
}

func (tp *TypedPool[T]) Count() int     { return tp.raw.Count() }
func (tp *TypedPool[T]) PeakCount() int { return tp.raw.PeakCount() }
func (tp *TypedPool[T]) Owner() string  { return tp.raw.Owner() }

// Stats exposes accounting for observability.
func (tp *TypedPool[T]) Stats() api.PoolStats { return tp.raw.Stats() }

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func,
		reflect.Interface, reflect.Slice, reflect.String, reflect.UnsafePointer:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

var _ api.ObjectAllocator[int64] = (*TypedPool[int64])(nil)
