package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-mempool/api"
	"github.com/momentics/hioload-mempool/pool"
)

// pattern selects which live block a free operation releases.
type pattern string

const (
	patternFIFO   pattern = "fifo"
	patternLIFO   pattern = "lifo"
	patternRandom pattern = "random"
)

func parsePattern(s string) (pattern, error) {
	switch p := pattern(strings.ToLower(s)); p {
	case patternFIFO, patternLIFO, patternRandom:
		return p, nil
	}
	return "", fmt.Errorf("unknown pattern: %s (must be fifo, lifo, or random)", s)
}

// chunk is the number of operations run under one hold of the lock.
const chunk = 1024

type workloadResult struct {
	Profile   string        `json:"profile"`
	Pattern   pattern       `json:"pattern"`
	Ops       int           `json:"ops"`
	Allocs    int           `json:"allocs"`
	Frees     int           `json:"frees"`
	Exhausted int           `json:"exhausted"`
	Peak      int           `json:"peak"`
	Blobs     int           `json:"blobs"`
	Capacity  int           `json:"capacity_bytes"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// workload keeps up to window blocks live and releases them in pattern order.
type workload struct {
	p       *pool.Pool
	mu      *sync.Mutex
	pattern pattern
	window  int
	rng     *rand.Rand

	fifo  *queue.Queue
	stack []unsafe.Pointer
	bag   []unsafe.Pointer

	res workloadResult
}

func newWorkload(p *pool.Pool, mu *sync.Mutex, pat pattern, window int, seed uint64) *workload {
	w := &workload{
		p:       p,
		mu:      mu,
		pattern: pat,
		window:  max(window, 1),
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	if pat == patternFIFO {
		w.fifo = queue.New()
	}
	w.res.Pattern = pat
	return w
}

func (w *workload) live() int {
	switch w.pattern {
	case patternFIFO:
		return w.fifo.Length()
	case patternLIFO:
		return len(w.stack)
	default:
		return len(w.bag)
	}
}

func (w *workload) push(b unsafe.Pointer) {
	switch w.pattern {
	case patternFIFO:
		w.fifo.Add(b)
	case patternLIFO:
		w.stack = append(w.stack, b)
	default:
		w.bag = append(w.bag, b)
	}
}

func (w *workload) pop() unsafe.Pointer {
	switch w.pattern {
	case patternFIFO:
		return w.fifo.Remove().(unsafe.Pointer)
	case patternLIFO:
		b := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		return b
	default:
		i := w.rng.IntN(len(w.bag))
		b := w.bag[i]
		w.bag[i] = w.bag[len(w.bag)-1]
		w.bag = w.bag[:len(w.bag)-1]
		return b
	}
}

func (w *workload) step(i int) error {
	n := w.live()
	if n > 0 && (n >= w.window || w.rng.IntN(2) == 0) {
		w.p.Free(w.pop())
		w.res.Frees++
		return nil
	}
	b, err := w.p.Alloc()
	if errors.Is(err, api.ErrResourceExhausted) {
		w.res.Exhausted++
		if n > 0 {
			w.p.Free(w.pop())
			w.res.Frees++
		}
		return nil
	}
	if err != nil {
		return err
	}
	w.p.Block(b)[0] = byte(i)
	w.push(b)
	w.res.Allocs++
	return nil
}

// run executes ops steps, then returns every live block to the pool.
func (w *workload) run(ctx context.Context, ops int) (workloadResult, error) {
	start := time.Now()
	for done := 0; done < ops; {
		if err := ctx.Err(); err != nil {
			return w.res, err
		}
		w.mu.Lock()
		end := min(done+chunk, ops)
		var err error
		for ; done < end && err == nil; done++ {
			err = w.step(done)
		}
		w.mu.Unlock()
		if err != nil {
			return w.res, err
		}
		w.res.Ops = done
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	batch := pool.NewBlockBatch(w.live())
	for w.live() > 0 {
		batch.Append(w.pop())
	}
	w.res.Frees += batch.Len()
	w.p.FreeBatch(batch)

	st := w.p.Stats()
	w.res.Peak = st.PeakCount
	w.res.Blobs = st.Blobs
	w.res.Capacity = st.CapacityBytes
	w.res.Elapsed = time.Since(start)
	return w.res, nil
}

// lockedStats reads pool statistics under the workload lock so scrapes never
// observe the pool mid-operation.
type lockedStats struct {
	mu *sync.Mutex
	p  *pool.Pool
}

func (l lockedStats) Stats() api.PoolStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p.Stats()
}
