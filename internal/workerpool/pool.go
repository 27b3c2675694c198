// Package workerpool runs Service.Run invocations off the Dispatcher
// thread (spec.md §4.6), grounded on the fan-out/fan-in shape of
// internal/search's IndexerPool.Search: a fixed set of goroutines reading
// work off a channel, each result re-wrapped and pushed onward.
package workerpool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/services"
)

// Submission is a unit of work: run svc with item (item is nil for
// schedule-driven services that enumerate their own input).
type Submission struct {
	Service services.Service
	Item    media.Item
}

// Yield is a single item a service produced, tagged with the service that
// produced it so the Dispatcher can build the next event.
type Yield struct {
	Emitter services.Name
	Item    media.Item
}

// Pool is a bounded worker pool. Submissions queue once every worker is
// busy (back-pressure, spec.md §5); the queue holds size*4 submissions, and
// Submit blocks its caller while that queue is full.
type Pool struct {
	work   chan Submission
	out    chan Yield
	log    *slog.Logger
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New starts size workers draining from an internally buffered queue and
// publishing yields to Out(). size <= 0 defaults to the number of logical
// CPUs, matching the teacher's IndexerPool sizing convention.
func New(ctx context.Context, size int, log *slog.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		work:   make(chan Submission, size*4),
		out:    make(chan Yield, size*4),
		log:    log.With("component", "workerpool"),
		cancel: cancel,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	return p
}

// Submit queues a service invocation. It blocks only if the internal queue
// is full, which is the pool's intended back-pressure signal.
func (p *Pool) Submit(s Submission) {
	p.work <- s
}

// Out returns the channel of yields produced by completed invocations.
// The Dispatcher is the sole consumer.
func (p *Pool) Out() <-chan Yield {
	return p.out
}

// Close stops accepting new work, waits for in-flight invocations to
// finish, and closes Out(). Safe to call once.
func (p *Pool) Close() {
	p.cancel()
	close(p.work)
	p.wg.Wait()
	close(p.out)
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case sub, ok := <-p.work:
			if !ok {
				return
			}
			p.run(ctx, sub)
		}
	}
}

// run invokes a single service call, recovering from panics and logging
// exceptions per the error taxonomy in spec.md §7.1 (item 1: "service
// failure" never propagates, and produces no event).
func (p *Pool) run(ctx context.Context, sub Submission) {
	name := sub.Service.Name()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("service panicked", "service", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	items, err := sub.Service.Run(ctx, sub.Item)
	if err != nil {
		p.log.Error("service failed", "service", name, "error", err)
		return
	}
	for _, item := range items {
		if item == nil {
			// Non-item yield (spec.md §7.1 item 2): there is no
			// heterogeneous-yield concept in a typed Run signature, but a
			// nil slice element is the Go analogue and is dropped the
			// same way.
			p.log.Warn("service yielded nil item, dropping", "service", name)
			continue
		}
		select {
		case p.out <- Yield{Emitter: name, Item: item}:
		case <-ctx.Done():
			return
		}
	}
}

// ErrServiceNotRunnable is returned by callers that attempt to submit work
// to a service that failed its own startup validation.
var ErrServiceNotRunnable = fmt.Errorf("workerpool: service not initialized")
