// Package workpool provides the bounded worker pool the integration
// pipeline shards each frame phase across (spec.md §5: "phases sharded
// over a bounded worker pool with join barriers; no coroutines").
//
// Grounded on motionplan/nearestNeighbor.go's neighborManager
// (channel-of-work-items plus go.viam.com/utils.PanicCapturingGo workers),
// generalized from "compute one distance per key" to "run one closure per
// index," and replaced that file's busy-poll completion counting
// (`select { case ...; default: }` spinning on a `ready` flag) with a
// plain sync.WaitGroup join barrier.
package workpool

import (
	"context"
	"runtime"
	"sync"

	"go.viam.com/utils"
)

// Pool runs indexed work items across a fixed number of goroutines.
type Pool struct {
	workers int
}

// New returns a Pool with the given worker count. A count <= 0 uses
// runtime.NumCPU().
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Workers returns the pool's configured worker count.
func (p *Pool) Workers() int { return p.workers }

// Run shards work over indices [0, n) across the pool's workers and blocks
// until every index has been processed or ctx is cancelled. work must be
// safe to call concurrently for distinct indices; Run itself is the join
// barrier between one frame phase and the next (spec.md §5).
func (p *Pool) Run(ctx context.Context, n int, work func(ctx context.Context, i int)) {
	if n <= 0 {
		return
	}
	workers := p.workers
	if workers > n {
		workers = n
	}

	indices := make(chan int, n)
	for i := 0; i < n; i++ {
		indices <- i
	}
	close(indices)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		utils.PanicCapturingGo(func() {
			defer wg.Done()
			for i := range indices {
				select {
				case <-ctx.Done():
					return
				default:
				}
				work(ctx, i)
			}
		})
	}
	wg.Wait()
}
