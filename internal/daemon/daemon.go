// Package daemon wires the Dispatcher, Scheduler and Worker Pool into one
// supervised process: an errgroup.Group carrying a shared context so any
// component's failure tears the others down.
package daemon

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/pipeline/internal/dispatcher"
	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/registry"
	"github.com/vmunix/pipeline/internal/scheduler"
	"github.com/vmunix/pipeline/internal/services"
	"github.com/vmunix/pipeline/internal/workerpool"
)

// Daemon runs the core engine's three long-lived components.
type Daemon struct {
	graph      *media.Graph
	registry   *registry.Registry
	pool       *workerpool.Pool
	dispatcher *dispatcher.Dispatcher
	scheduler  *scheduler.Scheduler
	log        *slog.Logger
}

// New assembles a Daemon from its already-constructed parts. Building the
// Router, Registry, Pool and Dispatcher is the caller's job (typically
// cmd/arrgod), since it requires concrete service instances.
func New(graph *media.Graph, reg *registry.Registry, pool *workerpool.Pool, disp *dispatcher.Dispatcher, sched *scheduler.Scheduler, log *slog.Logger) *Daemon {
	if log == nil {
		log = slog.Default()
	}
	return &Daemon{
		graph:      graph,
		registry:   reg,
		pool:       pool,
		dispatcher: disp,
		scheduler:  sched,
		log:        log.With("component", "daemon"),
	}
}

// Submit implements scheduler.Submitter: a service tick goes straight to
// the Worker Pool, bypassing the event queue (it carries no emitter to
// route on, just a direct invocation).
func (d *Daemon) Submit(service services.Service, item media.Item) {
	d.pool.Submit(workerpool.Submission{Service: service, Item: item})
}

// Enqueue implements scheduler.Submitter: the retry sweep's re-enqueues go
// through the Dispatcher's event queue like any other event.
func (d *Daemon) Enqueue(emitter services.Name, item media.Item) {
	d.dispatcher.Enqueue(emitter, item)
}

// AddToQueue implements the core's public enqueue interface (spec.md §6):
// external callers submit an item tagged with the Self sentinel.
func (d *Daemon) AddToQueue(item media.Item) bool {
	switch item.(type) {
	case *media.Movie, *media.Show, *media.Season, *media.Episode:
		d.dispatcher.Enqueue(services.Self, item)
		return true
	default:
		return false
	}
}

// Validate implements the readiness predicate (spec.md §4.7).
func (d *Daemon) Validate() bool {
	return d.registry.Validate()
}

// Run starts the Scheduler and Dispatcher and blocks until ctx is
// canceled or either component fails.
func (d *Daemon) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.log.Info("starting dispatcher")
		return d.dispatcher.Run(ctx)
	})

	g.Go(func() error {
		d.scheduler.Start()
		<-ctx.Done()
		return d.scheduler.Stop(context.Background())
	})

	g.Go(func() error {
		<-ctx.Done()
		d.pool.Close()
		return nil
	})

	return g.Wait()
}
