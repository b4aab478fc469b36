// Package worker runs independent jobs on a bounded set of goroutines.
package worker

import (
	"context"
	"sync"
)

// Task is a unit of work producing a value of type R
type Task[R any] func(ctx context.Context) R

// Pool executes tasks on a fixed number of workers
type Pool[R any] struct {
	workers    int
	tasks      chan Task[R]
	results    chan R
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	stopOnce   sync.Once
}

// NewPool creates a pool whose tasks run under a child of ctx.
// workers <= 0 means one worker.
func NewPool[R any](ctx context.Context, workers int) *Pool[R] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool[R]{
		workers:    workers,
		tasks:      make(chan Task[R], workers*2),
		results:    make(chan R, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers
func (p *Pool[R]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool[R]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			result := task(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a task. It reports false when the pool has been shut down.
func (p *Pool[R]) Submit(task Task[R]) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.tasks <- task:
		return true
	}
}

// Close stops accepting tasks. Results is closed once queued tasks finish.
func (p *Pool[R]) Close() {
	p.stopOnce.Do(func() {
		close(p.tasks)
		go func() {
			p.wg.Wait()
			p.closeResults()
		}()
	})
}

// Results streams results in completion order
func (p *Pool[R]) Results() <-chan R {
	return p.results
}

// Wait stops accepting tasks and returns all results in completion order
func (p *Pool[R]) Wait() []R {
	p.Close()

	var results []R
	for result := range p.results {
		results = append(results, result)
	}
	p.cancelFunc()
	return results
}

// Shutdown cancels running tasks and stops the workers
func (p *Pool[R]) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[R]) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}
