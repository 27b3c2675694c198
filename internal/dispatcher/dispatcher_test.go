package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/pipeline"
	"github.com/vmunix/pipeline/internal/services"
	"github.com/vmunix/pipeline/internal/workerpool"
)

type fakeGraph struct {
	mu    sync.Mutex
	items map[string]media.Item
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{items: map[string]media.Item{}}
}

func (g *fakeGraph) Get(itemID string) media.Item {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.items[itemID]
}

func (g *fakeGraph) Upsert(item media.Item) media.Item {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items[item.ID()] = item
	return item
}

type fakeCaps struct{}

func (fakeCaps) IsSource(services.Name) bool                  { return false }
func (fakeCaps) StageOf(services.Name) (services.Stage, bool) { return "", false }
func (fakeCaps) CanWeScrape(media.Item) bool                  { return true }
func (fakeCaps) ShouldSubmitSymlink(media.Item) bool          { return true }
func (fakeCaps) ShouldSubmitIndex(media.Item) bool            { return true }

type fakeRegistry struct {
	mu      sync.Mutex
	byStage map[services.Stage]services.Service
	valid   bool
}

func (r *fakeRegistry) One(stage services.Stage) services.Service { return r.byStage[stage] }
func (r *fakeRegistry) Validate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.valid
}
func (r *fakeRegistry) setValid(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.valid = v
}

type recordingService struct {
	name   services.Name
	stage  services.Stage
	yields []media.Item
	calls  chan media.Item
}

func (s *recordingService) Name() services.Name   { return s.name }
func (s *recordingService) Stage() services.Stage { return s.stage }
func (s *recordingService) Initialized() bool     { return true }
func (s *recordingService) Run(_ context.Context, item media.Item) ([]media.Item, error) {
	if s.calls != nil {
		s.calls <- item
	}
	return s.yields, nil
}

func TestDispatcherRoutesFreshItemToIndexer(t *testing.T) {
	graph := newFakeGraph()

	indexerCalls := make(chan media.Item, 4)
	indexer := &recordingService{name: "tvdb_indexer", stage: services.StageIndexer, calls: indexerCalls}
	registry := &fakeRegistry{valid: true, byStage: map[services.Stage]services.Service{
		services.StageIndexer: indexer,
	}}

	router := pipeline.New(fakeCaps{}, pipeline.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	pool := workerpool.New(ctx, 2, nil)
	d := New(graph, registry, router, pool, Config{PollInterval: 10 * time.Millisecond}, nil)

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	movie := media.NewMovie("m1")
	d.Enqueue(services.Self, movie)

	select {
	case got := <-indexerCalls:
		require.NotNil(t, got)
		assert.Equal(t, "m1", got.ID())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for indexer invocation")
	}

	cancel()
	pool.Close()
	require.NoError(t, <-done)
}

func TestDispatcherDefersQueuedEventsUntilRegistryValid(t *testing.T) {
	graph := newFakeGraph()

	indexerCalls := make(chan media.Item, 4)
	indexer := &recordingService{name: "tvdb_indexer", stage: services.StageIndexer, calls: indexerCalls}
	registry := &fakeRegistry{valid: false, byStage: map[services.Stage]services.Service{
		services.StageIndexer: indexer,
	}}

	router := pipeline.New(fakeCaps{}, pipeline.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	pool := workerpool.New(ctx, 2, nil)
	d := New(graph, registry, router, pool, Config{PollInterval: 10 * time.Millisecond, NotReadyBackoff: 10 * time.Millisecond}, nil)

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	movie := media.NewMovie("m3")
	d.Enqueue(services.Self, movie)

	select {
	case got := <-indexerCalls:
		t.Fatalf("expected event to be deferred while registry is invalid, got %+v", got)
	case <-time.After(100 * time.Millisecond):
	}

	registry.setValid(true)

	select {
	case got := <-indexerCalls:
		require.NotNil(t, got)
		assert.Equal(t, "m3", got.ID())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for indexer invocation after registry became valid")
	}

	cancel()
	pool.Close()
	require.NoError(t, <-done)
}

func TestDispatcherDropsSubmissionsWhenServiceMissing(t *testing.T) {
	graph := newFakeGraph()
	registry := &fakeRegistry{valid: true, byStage: map[services.Stage]services.Service{}}
	router := pipeline.New(fakeCaps{}, pipeline.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := workerpool.New(ctx, 1, nil)
	defer pool.Close()

	d := New(graph, registry, router, pool, Config{}, nil)

	movie := media.NewMovie("m2")
	d.process(Event{Emitter: services.Self, Item: movie})

	select {
	case y := <-pool.Out():
		t.Fatalf("expected no submission when the target stage has no service, got %+v", y)
	case <-time.After(100 * time.Millisecond):
	}
}
