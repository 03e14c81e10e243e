// Package queue runs investigations on a bounded worker pool. Investigations
// are independent: workers run them in parallel, each under its own
// cancellable context tracked in a registry so the API can cancel by id.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrQueueFull is returned when the submission buffer is at capacity.
	ErrQueueFull = errors.New("investigation queue is full")

	// ErrDuplicate is returned when an id is already queued or running.
	ErrDuplicate = errors.New("investigation id already active")

	// ErrStopped is returned after Stop.
	ErrStopped = errors.New("worker pool is stopped")
)

// Job is one unit of work. The context is cancelled by Cancel or Stop.
type Job func(ctx context.Context)

type queued struct {
	id  string
	job Job
}

// Pool is the investigation worker pool.
type Pool struct {
	jobs   chan queued
	logger *slog.Logger

	mu      sync.Mutex
	active  map[string]context.CancelFunc
	stopped bool

	wg sync.WaitGroup
}

// NewPool starts workerCount workers over a queue of the given depth.
func NewPool(workerCount, queueDepth int) *Pool {
	p := &Pool{
		jobs:   make(chan queued, queueDepth),
		active: make(map[string]context.CancelFunc),
		logger: slog.With("component", "worker_pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(n int) {
	defer p.wg.Done()
	for item := range p.jobs {
		ctx, ok := p.begin(item.id)
		if !ok {
			continue // cancelled while queued
		}
		p.logger.Debug("Worker picked up investigation", "worker", n, "investigation_id", item.id)
		item.job(ctx)
		p.finish(item.id)
	}
}

// Submit enqueues a job under the given id. The id stays active until the
// job returns or is cancelled.
func (p *Pool) Submit(id string, job Job) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	if _, exists := p.active[id]; exists {
		p.mu.Unlock()
		return ErrDuplicate
	}
	// Reserve the id immediately; the worker swaps in the real cancel func.
	p.active[id] = nil
	p.mu.Unlock()

	select {
	case p.jobs <- queued{id: id, job: job}:
		return nil
	default:
		p.release(id)
		return ErrQueueFull
	}
}

// begin creates the job context unless the id was cancelled while queued.
func (p *Pool) begin(id string) (context.Context, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.active[id]; !exists {
		return nil, false
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.active[id] = cancel
	return ctx, true
}

func (p *Pool) finish(id string) {
	p.mu.Lock()
	if cancel := p.active[id]; cancel != nil {
		cancel()
	}
	delete(p.active, id)
	p.mu.Unlock()
}

func (p *Pool) release(id string) {
	p.mu.Lock()
	delete(p.active, id)
	p.mu.Unlock()
}

// Cancel aborts a queued or running investigation. Reports whether the id
// was active.
func (p *Pool) Cancel(id string) bool {
	p.mu.Lock()
	cancel, exists := p.active[id]
	if exists && cancel == nil {
		// Still queued: removing the reservation makes the worker skip it.
		delete(p.active, id)
	}
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return exists
}

// Active reports the number of queued or running investigations.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Stop rejects new submissions, cancels everything in flight and waits for
// the workers, honouring the context deadline.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	for id, cancel := range p.active {
		if cancel != nil {
			cancel()
		} else {
			delete(p.active, id)
		}
	}
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
