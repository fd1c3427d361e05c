package gateway

import (
	"context"
	"sync"

	"hermes/internal/domain/record"
	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// task is one queued invocation request.
type task struct {
	actionID string
	ref      record.Ref
	vars     map[string]interface{}
	done     chan result
}

type result struct {
	inv *Invocation
	err error
}

// Pool runs invocations on a fixed set of workers behind a bounded queue.
// When the queue is full, Submit fails immediately instead of blocking the
// caller; triggers must stay cheap even under provider slowness.
type Pool struct {
	gw      *Gateway
	queue   chan task
	size    int
	log     *logger.Logger
	wg      sync.WaitGroup
	stopped chan struct{}
	once    sync.Once
}

// NewPool creates a dispatch pool. size is the worker count, depth the
// queue capacity; both fall back to sane minimums.
func NewPool(gw *Gateway, size, depth int, log *logger.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if depth <= 0 {
		depth = size
	}
	return &Pool{
		gw:      gw,
		queue:   make(chan task, depth),
		size:    size,
		log:     log,
		stopped: make(chan struct{}),
	}
}

// Start launches the workers. They run until ctx is cancelled or Close is
// called, finishing any task already picked up.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.log.Infow("dispatch pool started", "workers", p.size, "queue_depth", cap(p.queue))
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		case t, ok := <-p.queue:
			if !ok {
				return
			}
			metrics.QueueDepth.Set(float64(len(p.queue)))

			inv, err := p.gw.Execute(ctx, t.actionID, t.ref, t.vars)
			if t.done != nil {
				t.done <- result{inv: inv, err: err}
			}
		}
	}
}

// Submit enqueues an invocation and returns immediately. A full queue
// fails with errors.ErrQueueFull.
func (p *Pool) Submit(actionID string, ref record.Ref, vars map[string]interface{}) error {
	return p.enqueue(task{actionID: actionID, ref: ref, vars: vars})
}

// SubmitWait enqueues an invocation and blocks until it finishes or ctx
// is cancelled. Used by synchronous triggers that need the outcome.
func (p *Pool) SubmitWait(ctx context.Context, actionID string, ref record.Ref, vars map[string]interface{}) (*Invocation, error) {
	done := make(chan result, 1)
	if err := p.enqueue(task{actionID: actionID, ref: ref, vars: vars, done: done}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, errors.Wrapf(errors.ErrCanceled, "wait for invocation canceled: %v", ctx.Err())
	case r := <-done:
		return r.inv, r.err
	}
}

func (p *Pool) enqueue(t task) error {
	select {
	case <-p.stopped:
		return errors.Wrap(errors.ErrQueueFull, "dispatch pool is shut down")
	default:
	}

	select {
	case p.queue <- t:
		metrics.QueueDepth.Set(float64(len(p.queue)))
		return nil
	default:
		metrics.QueueRejections.Inc()
		return errors.Newf(errors.ErrQueueFull, "dispatch queue is full (%d pending)", cap(p.queue))
	}
}

// Pending returns the number of queued invocations.
func (p *Pool) Pending() int {
	return len(p.queue)
}

// Close stops accepting work and waits for in-flight invocations.
// Tasks still queued are completed with errors.ErrCanceled so SubmitWait
// callers are released instead of blocking until their own deadline.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.stopped)
	})
	p.wg.Wait()

	for {
		select {
		case t := <-p.queue:
			if t.done != nil {
				t.done <- result{err: errors.Wrap(errors.ErrCanceled, "dispatch pool closed before execution")}
			}
		default:
			metrics.QueueDepth.Set(0)
			return
		}
	}
}
