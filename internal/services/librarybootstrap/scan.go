// Package librarybootstrap implements the cold-start library scan
// (spec.md §9's "Lifecycle: items enter the graph via a source service
// or a bootstrap scan of the existing library"; supplemented from
// original_source/backend/program/program.py's SymlinkLibrary seed run).
// It is invoked once, directly, before the Dispatcher starts: its
// output is upserted straight into the Item Graph rather than routed
// through the Router, since these items are already Completed.
package librarybootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/vmunix/pipeline/internal/library"
	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/services"
	"github.com/vmunix/pipeline/internal/services/mediaid"
)

const Name services.Name = "library_bootstrap"

// Scanner adapts the library.Store into the pipeline's Library stage.
// It also satisfies services.Service so the Registry's startup
// readiness check (spec.md §4.7: "at least one library initialized")
// can be satisfied by it, even though its real work happens once via
// Scan rather than through the Dispatcher/Worker Pool.
type Scanner struct {
	store *library.Store
	log   *slog.Logger
}

func New(store *library.Store, log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{store: store, log: log.With("component", "librarybootstrap")}
}

func (s *Scanner) Name() services.Name   { return Name }
func (s *Scanner) Stage() services.Stage { return services.StageLibrary }
func (s *Scanner) Initialized() bool     { return s.store != nil }

// Run satisfies services.Service; it is equivalent to Scan but fits the
// Registry/Scheduler's uniform shape (e.g. if a future periodic
// re-scan is registered alongside the one-shot bootstrap call).
func (s *Scanner) Run(ctx context.Context, _ media.Item) ([]media.Item, error) {
	return s.Scan(ctx)
}

// Scan builds a Completed media.Item for every already-available piece
// of content on disk, so the Item Graph starts warm instead of
// rediscovering everything the pipeline has already finished.
func (s *Scanner) Scan(_ context.Context) ([]media.Item, error) {
	available := library.StatusAvailable
	rows, _, err := s.store.ListContent(library.ContentFilter{Status: &available})
	if err != nil {
		return nil, fmt.Errorf("librarybootstrap: list available content: %w", err)
	}

	var items []media.Item
	for _, c := range rows {
		switch c.Type {
		case library.ContentTypeMovie:
			item, ok, err := s.movieItem(c)
			if err != nil {
				return nil, err
			}
			if ok {
				items = append(items, item)
			}
		case library.ContentTypeSeries:
			item, ok, err := s.showItem(c)
			if err != nil {
				return nil, err
			}
			if ok {
				items = append(items, item)
			}
		}
	}
	return items, nil
}

func (s *Scanner) movieItem(c *library.Content) (media.Item, bool, error) {
	files, err := s.store.GetFiles(c.ID)
	if err != nil {
		return nil, false, fmt.Errorf("librarybootstrap: get files for content %d: %w", c.ID, err)
	}
	if len(files) == 0 {
		return nil, false, nil
	}

	m := media.NewMovie(mediaid.Movie(c.ID))
	m.Title = c.Title
	markCompleted(&m.Attrs, files[0].Path)
	return m, true, nil
}

func (s *Scanner) showItem(c *library.Content) (media.Item, bool, error) {
	episodes, err := s.store.GetEpisodes(c.ID)
	if err != nil {
		return nil, false, fmt.Errorf("librarybootstrap: get episodes for content %d: %w", c.ID, err)
	}
	files, err := s.store.GetFiles(c.ID)
	if err != nil {
		return nil, false, fmt.Errorf("librarybootstrap: get files for content %d: %w", c.ID, err)
	}
	fileByEpisode := make(map[int64]*library.File, len(files))
	for _, f := range files {
		if f.EpisodeID != nil {
			fileByEpisode[*f.EpisodeID] = f
		}
	}

	show := media.NewShow(mediaid.Show(c.ID))
	show.Title = c.Title

	found := false
	for _, e := range episodes {
		if e.Season == 0 {
			continue
		}
		f, ok := fileByEpisode[e.ID]
		if !ok {
			continue
		}
		found = true

		season := show.SeasonByNumber(e.Season)
		if season == nil {
			season = media.NewSeason(mediaid.Season(c.ID, e.Season), e.Season)
			season.Show = show
			show.Seasons = append(show.Seasons, season)
		}
		ep := media.NewEpisode(mediaid.Episode(c.ID, e.Season, e.Episode), e.Episode)
		ep.Title = e.Title
		ep.Season = season
		markCompleted(&ep.Attrs, f.Path)
		season.Episodes = append(season.Episodes, ep)
	}
	if !found {
		return nil, false, nil
	}
	return show, true, nil
}

func markCompleted(h *media.Attrs, path string) {
	dir := filepath.Dir(path)
	file := path
	h.File = &file
	h.Folder = &dir
	h.Symlinked = true
	h.UpdateFolder = media.UpdateFolderConfirmed
}
