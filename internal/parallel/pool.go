package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a pool of goroutines for parallel tile computation.
//
// Work is distributed across per-worker queues. Workers primarily pull from
// their own queue but steal from other workers when it is empty, which
// balances load when some tiles are much slower than others.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	// workers is the number of worker goroutines.
	workers int

	// queues holds per-worker work queues.
	queues []chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// running indicates whether the pool is accepting work.
	running atomic.Bool
}

// NewPool creates a pool with the specified number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// Workers start immediately and wait for work.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// A few items of slack per queue hides submission latency.
	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

// worker is the main loop for each worker goroutine.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	mine := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(mine)
			return

		case work := <-mine:
			if work != nil {
				work()
			}

		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
			} else {
				// Nothing anywhere; block on the own queue.
				select {
				case <-p.done:
					p.drain(mine)
					return
				case work := <-mine:
					if work != nil {
						work()
					}
				}
			}
		}
	}
}

// drain executes all remaining work in a queue.
func (p *Pool) drain(queue chan func()) {
	for {
		select {
		case work := <-queue:
			if work != nil {
				work()
			}
		default:
			return
		}
	}
}

// steal attempts to take work from another worker's queue.
// Returns nil if no work is available.
func (p *Pool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.queues[i]:
			return work
		default:
		}
	}
	return nil
}

// Execute distributes the work items across workers and waits until every
// started item has finished. Submission stops when ctx is cancelled; items
// not yet submitted are skipped and ctx.Err is returned. Work already queued
// still runs to completion, so callers observing cancellation must check ctx
// inside the work functions too.
func (p *Pool) Execute(ctx context.Context, work []func()) error {
	if len(work) == 0 || !p.running.Load() {
		return nil
	}

	var pending sync.WaitGroup
	for i, fn := range work {
		if err := ctx.Err(); err != nil {
			pending.Wait()
			return err
		}

		workFn := fn
		pending.Add(1)
		wrapped := func() {
			defer pending.Done()
			workFn()
		}

		select {
		case p.queues[i%p.workers] <- wrapped:
		case <-ctx.Done():
			pending.Done()
			pending.Wait()
			return ctx.Err()
		case <-p.done:
			// Pool is closing; run inline so the caller still gets results.
			wrapped()
		}
	}

	pending.Wait()
	return ctx.Err()
}

// Submit sends a single work item to the worker with the shortest queue.
// If the pool is closed, this is a no-op.
func (p *Pool) Submit(fn func()) {
	if fn == nil || !p.running.Load() {
		return
	}

	minIdx := 0
	minLen := len(p.queues[0])
	for i := 1; i < p.workers; i++ {
		if n := len(p.queues[i]); n < minLen {
			minLen, minIdx = n, i
		}
	}

	select {
	case p.queues[minIdx] <- fn:
	case <-p.done:
	}
}

// Close gracefully shuts down the pool. It stops accepting new work, waits
// for queued work to complete, and then stops all workers.
// Close is safe to call multiple times.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *Pool) IsRunning() bool {
	return p.running.Load()
}
