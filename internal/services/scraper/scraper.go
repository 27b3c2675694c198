// Package scraper implements the pipeline's Scraper stage: selecting a
// viable release for an item via the existing internal/search.Searcher
// (Newznab indexers + quality scoring).
package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vmunix/pipeline/internal/library"
	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/search"
	"github.com/vmunix/pipeline/internal/services"
	"github.com/vmunix/pipeline/internal/services/mediaid"
)

const Name services.Name = "newznab_scraper"

// MaxScrapeAttempts bounds CanWeScrape: beyond this, an item is
// considered exhausted and is left for the library's own
// quality-unavailable bookkeeping rather than hammering indexers forever.
const MaxScrapeAttempts = 10

// Searcher is the subset of *search.Searcher the Scraper calls.
type Searcher interface {
	Search(ctx context.Context, q search.Query, profile string) (*search.SearchResult, error)
}

// Scraper adapts Searcher to the pipeline's Scraper stage.
type Scraper struct {
	store    *library.Store
	searcher Searcher
	log      *slog.Logger
}

func New(store *library.Store, searcher Searcher, log *slog.Logger) *Scraper {
	if log == nil {
		log = slog.Default()
	}
	return &Scraper{store: store, searcher: searcher, log: log.With("component", "scraper.newznab")}
}

func (s *Scraper) Name() services.Name   { return Name }
func (s *Scraper) Stage() services.Stage { return services.StageScraper }
func (s *Scraper) Initialized() bool     { return s.searcher != nil && s.store != nil }

// CanWeScrape is the Router's scrape-eligibility probe (spec.md §4.3).
func (s *Scraper) CanWeScrape(item media.Item) bool {
	if item == nil {
		return false
	}
	h := item.Header()
	if h.ActiveStream != nil {
		return false
	}
	return h.ScrapedTimes < MaxScrapeAttempts
}

// Run searches for and selects a release, incrementing scraped_times
// regardless of whether a match was found (invariant 5: scraped_times is
// monotonically non-decreasing). No match found is not an error: the
// item is returned unchanged but for the counter, and the retry sweep
// will bring it back around.
func (s *Scraper) Run(ctx context.Context, item media.Item) ([]media.Item, error) {
	if item == nil {
		return nil, nil
	}

	id, err := mediaid.Parse(item.ID())
	if err != nil {
		return nil, fmt.Errorf("scraper: %w", err)
	}
	content, err := s.store.GetContent(id.ContentID)
	if err != nil {
		return nil, fmt.Errorf("scraper: get content %d: %w", id.ContentID, err)
	}

	query := buildQuery(content, item, id)
	clone := item.Clone()
	clone.Header().ScrapedTimes++

	result, err := s.searcher.Search(ctx, query, content.QualityProfile)
	if err != nil {
		s.log.Warn("search failed", "item", item.ID(), "error", err)
		return []media.Item{clone}, nil
	}
	if len(result.Releases) == 0 {
		return []media.Item{clone}, nil
	}

	top := result.Releases[0]
	clone.Header().ActiveStream = &media.Stream{
		InfoHash:    top.GUID,
		Title:       top.Title,
		DownloadURL: top.DownloadURL,
		Indexer:     top.Indexer,
	}
	return []media.Item{clone}, nil
}

func buildQuery(content *library.Content, item media.Item, id mediaid.ID) search.Query {
	q := search.Query{
		Text:   content.Title,
		TMDBID: content.TMDBID,
		TVDBID: content.TVDBID,
	}
	switch content.Type {
	case library.ContentTypeMovie:
		q.Type = "movie"
	case library.ContentTypeSeries:
		q.Type = "series"
	}
	if id.Kind == mediaid.KindSeason || id.Kind == mediaid.KindEpisode {
		season := id.Season
		q.Season = &season
	}
	if id.Kind == mediaid.KindEpisode {
		episode := id.Episode
		q.Episode = &episode
	}
	_ = item
	return q
}
