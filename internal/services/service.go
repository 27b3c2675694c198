// Package services defines the external collaborator contract the core
// engine drives: constructor-validated services grouped into stages, run
// off the worker pool, optionally exposing capability probes and a
// polling interval.
package services

import (
	"context"

	"github.com/vmunix/pipeline/internal/media"
)

// Name identifies a concrete service instance (e.g. "overseerr",
// "tvdb_indexer", "newznab_scraper"). Self is the sentinel emitter used
// for internal retries and external enqueues; it names no service.
type Name string

const Self Name = "self"

// Stage is the role a service plays in the pipeline; the Router matches
// on Stage, never on a specific Name, so multiple interchangeable
// services (several sources, several indexers) can share a stage.
type Stage string

const (
	StageSource          Stage = "source"
	StageIndexer         Stage = "indexer"
	StageScraper         Stage = "scraper"
	StageDownloader      Stage = "downloader"
	StageSymlinker       Stage = "symlinker"
	StageLibraryNotifier Stage = "library_notifier"
	StageLibrary         Stage = "library" // bootstrap/library scan sources
)

// Service is the contract every pipeline stage implementation satisfies.
type Service interface {
	// Name returns the service's registry key.
	Name() Name
	// Stage returns the pipeline role this service plays.
	Stage() Stage
	// Initialized reports whether the service passed self-validation at
	// construction time.
	Initialized() bool
	// Run executes the unit of work. item is nil for services invoked on
	// a schedule with no input (they enumerate new "wanted" items
	// themselves). Run must be safe to call concurrently with itself.
	Run(ctx context.Context, item media.Item) ([]media.Item, error)
}

// IntervalService is implemented by services with a periodic tick
// (sources and library services); the Scheduler registers one job per
// IntervalService.
type IntervalService interface {
	Service
	UpdateInterval() int // seconds; <= 0 disables scheduling
}

// Scraper is the capability probe used by the Router to decide whether an
// item is eligible for scraping.
type Scraper interface {
	Service
	CanWeScrape(item media.Item) bool
}

// SymlinkEligible is the capability probe used by the Router to decide whether
// an item is eligible for symlinking.
type SymlinkEligible interface {
	Service
	ShouldSubmit(item media.Item) bool
}

// Indexable is the capability probe used by the Router to decide whether
// an already-indexed item is stale enough to resubmit to the Indexer.
type Indexable interface {
	Service
	ShouldSubmit(item media.Item) bool
}
