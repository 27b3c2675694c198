// Package scheduler holds the Scheduler (spec.md §4.5): one job per
// interval-driven service plus a retry sweep. Grounded on the gocron/v2
// job table from the SlipStream scheduler, adapted to log/slog (this
// codebase's logging library, unlike that one's zerolog) and to the two
// job classes the spec actually calls for.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/services"
)

// RetrySweepInterval is the fixed period between retry sweeps (spec.md §4.5).
const RetrySweepInterval = 600 * time.Second

// Submitter is how the Scheduler hands work to the rest of the core: a
// service tick submits (service, nil); the retry sweep enqueues one event
// per incomplete item with emitter=Self.
type Submitter interface {
	Submit(service services.Service, item media.Item)
	Enqueue(emitter services.Name, item media.Item)
}

// Graph is the subset of the Item Graph the retry sweep needs.
type Graph interface {
	GetIncompleteItems() []media.Item
}

// Scheduler wraps a gocron.Scheduler with the two job classes spec.md §4.5
// defines: per-service ticks and the retry sweep.
type Scheduler struct {
	gocron gocron.Scheduler
	log    *slog.Logger
	jobIDs map[services.Name]gocron.Job
}

// New creates a Scheduler. Call RegisterService for every IntervalService
// and RegisterRetrySweep once before Start.
func New(log *slog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("scheduler: create gocron scheduler: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		gocron: gs,
		log:    log.With("component", "scheduler"),
		jobIDs: make(map[services.Name]gocron.Job),
	}, nil
}

// RegisterService schedules svc's Run(nil) call on its UpdateInterval,
// replacing any prior job for the same name (spec.md §4.5
// replace_existing = true). A non-positive interval disables scheduling.
func (s *Scheduler) RegisterService(svc services.IntervalService, sub Submitter) error {
	interval := svc.UpdateInterval()
	if interval <= 0 {
		return nil
	}

	if old, ok := s.jobIDs[svc.Name()]; ok {
		if err := s.gocron.RemoveJob(old.ID()); err != nil {
			return fmt.Errorf("scheduler: remove existing job for %q: %w", svc.Name(), err)
		}
	}

	job, err := s.gocron.NewJob(
		gocron.DurationJob(time.Duration(interval)*time.Second),
		gocron.NewTask(func() {
			s.log.Debug("service tick", "service", svc.Name())
			sub.Submit(svc, nil)
		}),
		gocron.WithName(string(svc.Name())),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartDateTime(time.Now())),
	)
	if err != nil {
		return fmt.Errorf("scheduler: schedule service %q: %w", svc.Name(), err)
	}
	s.jobIDs[svc.Name()] = job
	s.log.Info("registered service tick", "service", svc.Name(), "interval_seconds", interval)
	return nil
}

// RegisterRetrySweep schedules the 600s retry sweep (spec.md §4.5): every
// non-Completed item in the graph is re-enqueued with emitter=Self.
func (s *Scheduler) RegisterRetrySweep(graph Graph, sub Submitter) error {
	_, err := s.gocron.NewJob(
		gocron.DurationJob(RetrySweepInterval),
		gocron.NewTask(func() {
			items := graph.GetIncompleteItems()
			s.log.Debug("retry sweep", "incomplete_items", len(items))
			for _, item := range items {
				sub.Enqueue(services.Self, item)
			}
		}),
		gocron.WithName("retry-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduler: schedule retry sweep: %w", err)
	}
	return nil
}

// Start begins firing scheduled jobs. Immediate-run jobs fire once
// shortly after Start returns.
func (s *Scheduler) Start() {
	s.log.Info("starting scheduler")
	s.gocron.Start()
}

// Stop gracefully shuts the scheduler down, waiting for in-flight jobs.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.log.Info("stopping scheduler")
	done := make(chan error, 1)
	go func() { done <- s.gocron.Shutdown() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
