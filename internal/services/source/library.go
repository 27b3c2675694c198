// Package source implements the pipeline's Source stage: services that
// enumerate "wanted" items from an external watchlist. LibrarySource
// adapts the existing library.Store's content tracker into one.
package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vmunix/pipeline/internal/library"
	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/services"
	"github.com/vmunix/pipeline/internal/services/mediaid"
)

const Name services.Name = "library_wanted"

// LibrarySource emits a bare Movie or Show item for every library.Content
// row still in library.StatusWanted. It carries no metadata beyond what
// the content row already has; the Indexer fills in the rest.
type LibrarySource struct {
	store    *library.Store
	interval int
	log      *slog.Logger
}

func New(store *library.Store, updateIntervalSeconds int, log *slog.Logger) *LibrarySource {
	if log == nil {
		log = slog.Default()
	}
	if updateIntervalSeconds <= 0 {
		updateIntervalSeconds = 300
	}
	return &LibrarySource{store: store, interval: updateIntervalSeconds, log: log.With("component", "source.library_wanted")}
}

func (s *LibrarySource) Name() services.Name    { return Name }
func (s *LibrarySource) Stage() services.Stage  { return services.StageSource }
func (s *LibrarySource) Initialized() bool      { return s.store != nil }
func (s *LibrarySource) UpdateInterval() int    { return s.interval }

// Run enumerates wanted content and emits one bare item per row. item is
// always nil for a Source (spec.md §4.5: ticks fire Run(nil)).
func (s *LibrarySource) Run(_ context.Context, _ media.Item) ([]media.Item, error) {
	wanted := library.StatusWanted
	rows, _, err := s.store.ListContent(library.ContentFilter{Status: &wanted})
	if err != nil {
		return nil, fmt.Errorf("source: list wanted content: %w", err)
	}

	items := make([]media.Item, 0, len(rows))
	for _, c := range rows {
		switch c.Type {
		case library.ContentTypeMovie:
			m := media.NewMovie(mediaid.Movie(c.ID))
			m.Title = c.Title
			m.LogString = logString(c)
			items = append(items, m)
		case library.ContentTypeSeries:
			sh := media.NewShow(mediaid.Show(c.ID))
			sh.Title = c.Title
			sh.LogString = logString(c)
			items = append(items, sh)
		default:
			s.log.Warn("unknown content type, skipping", "content_id", c.ID, "type", c.Type)
		}
	}
	return items, nil
}

func logString(c *library.Content) string {
	if c.Year > 0 {
		return fmt.Sprintf("%s (%d)", c.Title, c.Year)
	}
	return c.Title
}
