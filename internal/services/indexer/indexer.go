// Package indexer implements the pipeline's Indexer stage: enriching a
// bare Movie/Show with canonical metadata and, for Show, its season and
// episode structure. Grounded on pkg/tvdb's client (TVDB API v4) and the
// existing library.Store episode rows as a local fallback.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmunix/pipeline/internal/library"
	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/services"
	"github.com/vmunix/pipeline/internal/services/mediaid"
	"github.com/vmunix/pipeline/pkg/tvdb"
)

const Name services.Name = "tvdb_indexer"

// Freshness is how long a prior index pass is trusted before the Indexer
// accepts resubmission of the same item.
const Freshness = 12 * time.Hour

// TVDBClient is the subset of *tvdb.Client the Indexer calls; tests
// supply a fake.
type TVDBClient interface {
	GetSeries(ctx context.Context, id int) (*tvdb.Series, error)
	GetEpisodes(ctx context.Context, seriesID int) ([]tvdb.Episode, error)
}

// Indexer enriches Movie items with a fresh indexed_at and builds Show
// items' Season/Episode children from TVDB (if configured) or the local
// library store.
type Indexer struct {
	store *library.Store
	tvdb  TVDBClient // nil when no TVDB API key is configured
	log   *slog.Logger
}

func New(store *library.Store, client TVDBClient, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{store: store, tvdb: client, log: log.With("component", "indexer.tvdb")}
}

func (x *Indexer) Name() services.Name   { return Name }
func (x *Indexer) Stage() services.Stage { return services.StageIndexer }
func (x *Indexer) Initialized() bool     { return x.store != nil }

// ShouldSubmit reports whether item is stale enough to warrant another
// index pass. An item never indexed, or indexed longer than Freshness ago,
// is eligible; a recently indexed item is not (spec.md §4.3 first row's
// "skip if existing already freshly indexed").
func (x *Indexer) ShouldSubmit(item media.Item) bool {
	indexedAt := item.Header().IndexedAt
	if indexedAt == nil {
		return true
	}
	return time.Since(*indexedAt) >= Freshness
}

// Run enriches item in place (on a copy) and returns it. The Indexer has
// no UpdateInterval; it only ever runs on a submitted item.
func (x *Indexer) Run(ctx context.Context, item media.Item) ([]media.Item, error) {
	if item == nil {
		return nil, nil
	}

	now := time.Now()
	switch v := item.(type) {
	case *media.Movie:
		clone := v.Clone().(*media.Movie)
		clone.IndexedAt = &now
		return []media.Item{clone}, nil
	case *media.Show:
		clone := v.Clone().(*media.Show)
		clone.IndexedAt = &now
		if err := x.fillSeasons(ctx, clone); err != nil {
			return nil, fmt.Errorf("indexer: fill seasons for %s: %w", clone.ItemID, err)
		}
		return []media.Item{clone}, nil
	case *media.Season, *media.Episode:
		// The Router only ever promotes these up to their parent Show
		// before routing to the Indexer (spec.md §4.3's promote-to-Show
		// rule); reaching here directly is not expected, but indexing a
		// lone Season/Episode is still well-defined: mark it seen.
		clone := v.Clone()
		clone.Header().IndexedAt = &now
		return []media.Item{clone}, nil
	default:
		return nil, fmt.Errorf("indexer: unsupported item kind %T", item)
	}
}

// fillSeasons populates show.Seasons from TVDB when available, falling
// back to whatever episodes the library store already has on record.
// Season 0 ("specials") is always skipped (invariant 6).
func (x *Indexer) fillSeasons(ctx context.Context, show *media.Show) error {
	id, err := mediaid.Parse(show.ItemID)
	if err != nil {
		return err
	}

	type epKey struct {
		season, episode int
	}
	byKey := make(map[epKey]string) // episode title, best-effort

	if x.tvdb != nil {
		tvdbID, ok, err := x.tvdbSeriesID(id.ContentID)
		if err != nil {
			return err
		}
		if ok {
			eps, err := x.tvdb.GetEpisodes(ctx, tvdbID)
			if err != nil {
				x.log.Warn("tvdb episode fetch failed, falling back to library store", "content_id", id.ContentID, "error", err)
			}
			for _, e := range eps {
				if e.Season == 0 {
					continue
				}
				byKey[epKey{e.Season, e.Episode}] = e.Name
			}
		}
	}

	if len(byKey) == 0 {
		rows, err := x.store.GetEpisodes(id.ContentID)
		if err != nil {
			return fmt.Errorf("list episodes: %w", err)
		}
		for _, e := range rows {
			if e.Season == 0 {
				continue
			}
			byKey[epKey{e.Season, e.Episode}] = e.Title
		}
	}

	now := time.Now()
	for key, title := range byKey {
		season := show.SeasonByNumber(key.season)
		if season == nil {
			season = media.NewSeason(mediaid.Season(id.ContentID, key.season), key.season)
			season.Show = show
			season.IndexedAt = &now
			show.Seasons = append(show.Seasons, season)
		}
		if season.EpisodeByNumber(key.episode) == nil {
			ep := media.NewEpisode(mediaid.Episode(id.ContentID, key.season, key.episode), key.episode)
			ep.Title = title
			ep.Season = season
			ep.IndexedAt = &now
			season.Episodes = append(season.Episodes, ep)
		}
	}
	return nil
}

// tvdbSeriesID resolves the library content row's TVDBID. ok is false
// when the content has none on record (e.g. not yet matched).
func (x *Indexer) tvdbSeriesID(contentID int64) (int, bool, error) {
	content, err := x.store.GetContent(contentID)
	if err != nil {
		return 0, false, fmt.Errorf("get content %d: %w", contentID, err)
	}
	if content.TVDBID == nil {
		return 0, false, nil
	}
	return int(*content.TVDBID), true, nil
}
