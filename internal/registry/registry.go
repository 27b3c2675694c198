// Package registry holds the name-keyed table of initialized service
// instances, grouped by stage, plus the capability probes the Router
// consults (CanWeScrape, ShouldSubmitSymlink, ShouldSubmitIndex).
package registry

import (
	"fmt"
	"sync"

	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/services"
)

// Registry is the Service Registry (spec.md §4.7).
type Registry struct {
	mu sync.RWMutex

	byStage map[services.Stage][]services.Service
	byName  map[services.Name]services.Service

	scraper   services.Scraper
	symlinker services.SymlinkEligible
	indexer   services.Indexable
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byStage: make(map[services.Stage][]services.Service),
		byName:  make(map[services.Name]services.Service),
	}
}

// Register adds a service instance to the registry. Registering a
// Scraper, SymlinkEligible or Indexable also wires it as the Router's
// capability probe for that role.
func (r *Registry) Register(svc services.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[svc.Name()]; exists {
		return fmt.Errorf("registry: service %q already registered", svc.Name())
	}

	r.byName[svc.Name()] = svc
	r.byStage[svc.Stage()] = append(r.byStage[svc.Stage()], svc)

	if sc, ok := svc.(services.Scraper); ok && svc.Stage() == services.StageScraper {
		r.scraper = sc
	}
	if sy, ok := svc.(services.SymlinkEligible); ok && svc.Stage() == services.StageSymlinker {
		r.symlinker = sy
	}
	if ix, ok := svc.(services.Indexable); ok && svc.Stage() == services.StageIndexer {
		r.indexer = ix
	}
	return nil
}

// Get returns the service registered under name, or nil.
func (r *Registry) Get(name services.Name) services.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Stage returns every service registered for a stage, in registration
// order.
func (r *Registry) Stage(stage services.Stage) []services.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]services.Service, len(r.byStage[stage]))
	copy(out, r.byStage[stage])
	return out
}

// One returns the first initialized service registered for a stage,
// which is how the Dispatcher resolves singular stages (Indexer, Scraper,
// Downloader, Symlinker, LibraryNotifier) to a concrete instance to
// submit work to.
func (r *Registry) One(stage services.Stage) services.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, svc := range r.byStage[stage] {
		if svc.Initialized() {
			return svc
		}
	}
	return nil
}

// StageOf returns the pipeline stage a given emitter name plays, or ""
// with ok=false if unknown. The sentinel services.Self always reports
// ok=false.
func (r *Registry) StageOf(name services.Name) (services.Stage, bool) {
	if name == services.Self {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.byName[name]
	if !ok {
		return "", false
	}
	return svc.Stage(), true
}

// IsSource reports whether name is in the Sources set (spec.md's
// "emitter ∈ Sources").
func (r *Registry) IsSource(name services.Name) bool {
	stage, ok := r.StageOf(name)
	return ok && stage == services.StageSource
}

// CanWeScrape is the Scraper capability probe (nil scraper => false).
func (r *Registry) CanWeScrape(item media.Item) bool {
	r.mu.RLock()
	scraper := r.scraper
	r.mu.RUnlock()
	if scraper == nil {
		return false
	}
	return scraper.CanWeScrape(item)
}

// ShouldSubmitSymlink is the Symlinker capability probe (nil => false).
func (r *Registry) ShouldSubmitSymlink(item media.Item) bool {
	r.mu.RLock()
	symlinker := r.symlinker
	r.mu.RUnlock()
	if symlinker == nil {
		return false
	}
	return symlinker.ShouldSubmit(item)
}

// ShouldSubmitIndex is the Indexer capability probe (nil => true, so an
// unconfigured indexer never blocks submission).
func (r *Registry) ShouldSubmitIndex(item media.Item) bool {
	r.mu.RLock()
	indexer := r.indexer
	r.mu.RUnlock()
	if indexer == nil {
		return true
	}
	return indexer.ShouldSubmit(item)
}

// Validate implements the startup readiness predicate (spec.md §4.7):
// at least one source, one library, one indexer initialized, and every
// processing service (scraper, downloader, symlinker, library notifier)
// initialized.
func (r *Registry) Validate() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !anyInitialized(r.byStage[services.StageSource]) {
		return false
	}
	if !anyInitialized(r.byStage[services.StageLibrary]) {
		return false
	}
	if !anyInitialized(r.byStage[services.StageIndexer]) {
		return false
	}
	for _, stage := range []services.Stage{
		services.StageScraper, services.StageDownloader,
		services.StageSymlinker, services.StageLibraryNotifier,
	} {
		if !allInitialized(r.byStage[stage]) {
			return false
		}
	}
	return true
}

func anyInitialized(svcs []services.Service) bool {
	for _, s := range svcs {
		if s.Initialized() {
			return true
		}
	}
	return false
}

func allInitialized(svcs []services.Service) bool {
	if len(svcs) == 0 {
		return false
	}
	for _, s := range svcs {
		if !s.Initialized() {
			return false
		}
	}
	return true
}
