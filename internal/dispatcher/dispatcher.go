// Package dispatcher implements the Dispatcher (spec.md §4.4): the single
// loop thread that owns all Item Graph mutation, consults the Router, and
// hands submissions to the Worker Pool. One long-running goroutine
// supervised through a context and a drain-then-wait shutdown.
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/pipeline"
	"github.com/vmunix/pipeline/internal/services"
	"github.com/vmunix/pipeline/internal/workerpool"
)

// SeasonScrapeCutoff is the dispatcher-level hard stop (spec.md §9 "Open
// question — Season cutoff values"): independent of and lower than the
// Router's own SeasonFanOutThreshold, by design.
const SeasonScrapeCutoff = 3

// Event is an incoming (emitter, item) pair, queued either by a service
// yield, a Scheduler tick, or an external enqueue.
type Event struct {
	Emitter services.Name
	Item    media.Item
}

// Graph is the subset of media.Graph the Dispatcher needs.
type Graph interface {
	Get(itemID string) media.Item
	Upsert(item media.Item) media.Item
}

// Registry is the subset of the Service Registry the Dispatcher needs to
// resolve a Stage to a concrete Service instance and to gate startup.
type Registry interface {
	One(stage services.Stage) services.Service
	Validate() bool
}

// Dispatcher is the single mutator of the Item Graph (spec.md §5).
type Dispatcher struct {
	graph    Graph
	registry Registry
	router   *pipeline.Router
	pool     *workerpool.Pool
	queue    chan Event
	log      *slog.Logger

	pollInterval    time.Duration
	notReadyBackoff time.Duration
	shutdownTimeout time.Duration
}

// Config tunes the Dispatcher's polling and shutdown behavior.
type Config struct {
	PollInterval    time.Duration // default 1s, matches spec.md §4.4 step 1
	NotReadyBackoff time.Duration // default 1s, matches §4.4 step 2
	ShutdownTimeout time.Duration // default 30s
	QueueSize       int           // default 1024; capacity of the buffered event queue
}

// New creates a Dispatcher. pool.Out() is drained internally as a second
// input stream alongside externally enqueued events.
func New(graph Graph, registry Registry, router *pipeline.Router, pool *workerpool.Pool, cfg Config, log *slog.Logger) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.NotReadyBackoff <= 0 {
		cfg.NotReadyBackoff = time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		graph:           graph,
		registry:        registry,
		router:          router,
		pool:            pool,
		queue:           make(chan Event, cfg.QueueSize),
		log:             log.With("component", "dispatcher"),
		pollInterval:    cfg.PollInterval,
		notReadyBackoff: cfg.NotReadyBackoff,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Enqueue accepts an externally or internally produced event. The queue is
// a buffered channel of QueueSize events; it does not grow, and Enqueue
// blocks while the queue is full.
func (d *Dispatcher) Enqueue(emitter services.Name, item media.Item) {
	d.queue <- Event{Emitter: emitter, Item: item}
}

// Run is the Dispatcher's single loop (spec.md §4.4). It blocks until ctx
// is canceled, then drains outstanding work up to shutdownTimeout.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return d.shutdown()
		case ev := <-d.queue:
			if !d.registry.Validate() {
				d.log.Debug("registry not yet valid, deferring queued event")
				d.Enqueue(ev.Emitter, ev.Item)
				time.Sleep(d.notReadyBackoff)
				continue
			}
			d.process(ev)
		case y := <-d.pool.Out():
			if !d.registry.Validate() {
				d.log.Debug("registry not yet valid, deferring pool event")
				d.Enqueue(y.Emitter, y.Item)
				time.Sleep(d.notReadyBackoff)
				continue
			}
			d.process(Event{Emitter: y.Emitter, Item: y.Item})
		case <-ticker.C:
			if !d.registry.Validate() {
				d.log.Debug("registry not yet valid, waiting")
				time.Sleep(d.notReadyBackoff)
			}
		}
	}
}

// shutdown drains any events already queued, discarding them, then
// returns; outstanding pool work is the caller's responsibility to close
// (the Pool owns its own bounded wait).
func (d *Dispatcher) shutdown() error {
	deadline := time.Now().Add(d.shutdownTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-d.queue:
		default:
			return nil
		}
	}
	return nil
}

// process implements §4.4 steps 3-5 for a single event.
func (d *Dispatcher) process(ev Event) {
	existing := d.graph.Get(ev.Item.ID())

	merged, next, submissions := d.router.ProcessEvent(existing, ev.Emitter, ev.Item)
	if merged != nil {
		merged = d.graph.Upsert(merged)
	}
	if next == "" {
		return
	}

	svc := d.registry.One(next)
	if svc == nil {
		d.log.Warn("no initialized service for stage, dropping submissions", "stage", next)
		return
	}

	for _, sub := range submissions {
		if season, ok := sub.(*media.Season); ok && next == services.StageScraper && season.ScrapedTimes >= SeasonScrapeCutoff {
			d.log.Debug("season scrape cutoff reached, dropping", "season", season.ID(), "scraped_times", season.ScrapedTimes)
			continue
		}
		d.pool.Submit(workerpool.Submission{Service: svc, Item: sub})
	}
}
