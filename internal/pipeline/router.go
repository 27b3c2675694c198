// Package pipeline implements the Event Router (spec.md §4.3): a pure
// function from (existing, emitter, incoming) to a merged item, the next
// service stage, and the set of sub-items to submit to it. It is
// transliterated from original_source/backend/program/state_transition.py,
// generalized from the "Service" class table there to the registry's
// Stage/Capabilities abstraction.
package pipeline

import (
	"time"

	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/services"
)

// Capabilities is the subset of the Service Registry the Router consults.
// It is satisfied by *registry.Registry; tests supply a fake.
type Capabilities interface {
	IsSource(name services.Name) bool
	StageOf(name services.Name) (services.Stage, bool)
	CanWeScrape(item media.Item) bool
	ShouldSubmitSymlink(item media.Item) bool
	ShouldSubmitIndex(item media.Item) bool
}

// Config tunes the thresholds the decision table leaves open (spec.md §9
// "Open question — Season cutoff values"): the whole-season-before-fanout
// threshold (4) is the Router's; the hard dispatcher cutoff (3) belongs
// to the Dispatcher, not here, since the two are deliberately asymmetric.
type Config struct {
	// SeasonFanOutThreshold is the scraped_times count at or above which a
	// Season's scrape expansion switches from "submit the season itself"
	// to "submit its still-eligible episodes individually".
	SeasonFanOutThreshold int
	// Now returns the current time; defaults to time.Now if nil. Unused by
	// the decision table itself today, but kept on Config so a future
	// time-gated row doesn't need a signature change; tests inject a fixed
	// clock to keep the Router's environment deterministic.
	Now func() time.Time
}

// DefaultConfig mirrors the teacher's conservative defaults.
func DefaultConfig() Config {
	return Config{
		SeasonFanOutThreshold: 4,
	}
}

// Router evaluates process_event. It holds no mutable state; the same
// Router value may be called concurrently from multiple goroutines
// (Router purity, spec.md §8).
type Router struct {
	caps Capabilities
	cfg  Config
}

func New(caps Capabilities, cfg Config) *Router {
	if cfg.SeasonFanOutThreshold <= 0 {
		cfg.SeasonFanOutThreshold = 4
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Router{caps: caps, cfg: cfg}
}

// ProcessEvent is the Router's sole entry point (spec.md §4.3).
// merged is nil when the graph should not be touched by this event.
func (r *Router) ProcessEvent(existing media.Item, emitter services.Name, incoming media.Item) (merged media.Item, next services.Stage, submissions []media.Item) {
	if existing != nil && media.Classify(existing) == media.StateCompleted {
		// Idempotent re-index: a Completed item re-emitted by anything
		// (a Source re-scanning its watchlist, a stray retry) is already
		// at rest. No row below this needs to see it.
		return existing, "", nil
	}

	if r.isFirstRow(emitter, incoming) {
		promotedItem, promotedExisting := promoteSeasonToShow(incoming, existing)
		if promotedExisting != nil && !r.caps.ShouldSubmitIndex(promotedExisting) {
			// Already freshly indexed: no further processing (spec.md §4.3
			// first row's merge column).
			return nil, "", nil
		}
		return nil, services.StageIndexer, []media.Item{promotedItem}
	}

	item := incoming
	if emitterStage, ok := r.caps.StageOf(emitter); (ok && emitterStage == services.StageIndexer) || media.Classify(item) == media.StateIndexed {
		return r.indexedBranch(existing, item)
	}

	switch media.Classify(item) {
	case media.StatePartiallyCompleted:
		return item, services.StageScraper, r.partiallyCompletedSubmissions(item)
	case media.StateScraped:
		return item, services.StageDownloader, []media.Item{item}
	case media.StateDownloaded:
		return item, services.StageSymlinker, r.downloadedSubmissions(item)
	case media.StateSymlinked:
		return item, services.StageLibraryNotifier, []media.Item{item}
	case media.StateCompleted:
		return nil, "", nil
	default:
		// Unreachable in practice: isFirstRow already catches
		// StateUnknown. Treat defensively as a no-op.
		return nil, "", nil
	}
}

func (r *Router) isFirstRow(emitter services.Name, incoming media.Item) bool {
	return r.caps.IsSource(emitter) || emitter == services.Self || media.Classify(incoming) == media.StateUnknown
}

// promoteSeasonToShow implements "if incoming is a Season, promote to its
// parent Show and promote existing similarly". It leaves non-Seasons
// untouched.
func promoteSeasonToShow(incoming, existing media.Item) (promotedIncoming, promotedExisting media.Item) {
	promotedIncoming = incoming
	promotedExisting = existing

	if season, ok := incoming.(*media.Season); ok && season.Show != nil {
		promotedIncoming = season.Show
	}
	switch e := existing.(type) {
	case *media.Season:
		if e.Show != nil {
			promotedExisting = e.Show
		}
	}
	return promotedIncoming, promotedExisting
}

// indexedBranch implements the "emitter == Indexer ∨ incoming.state ==
// Indexed" row: merge, short-circuit on Completed, then expand into
// Scraper submissions.
func (r *Router) indexedBranch(existing, item media.Item) (media.Item, services.Stage, []media.Item) {
	// Mirrors state_transition.py: updated_item defaults to the incoming
	// item and is only rebound to the (now-filled-in) existing item when
	// existing hadn't been indexed yet.
	merged := item
	working := item

	if existing != nil {
		completedCheck := existing
		if existing.Header().IndexedAt == nil {
			working = mergeIndexedFields(existing, item)
			merged = working
			completedCheck = working
		}
		if media.Classify(completedCheck) == media.StateCompleted {
			return existing, "", nil
		}
	}

	submissions := r.scrapeExpansion(working)
	return merged, services.StageScraper, submissions
}

// mergeIndexedFields implements "fill missing children (Show/Season),
// copy non-structural attrs, set indexed_at" onto a clone of existing.
func mergeIndexedFields(existing, incoming media.Item) media.Item {
	switch e := existing.(type) {
	case *media.Show:
		in, ok := incoming.(*media.Show)
		clone := e.Clone().(*media.Show)
		if ok {
			fillMissingSeasons(clone, in.Seasons)
			copyOtherAttr(&clone.Attrs, &in.Attrs)
		}
		return clone
	case *media.Season:
		in, ok := incoming.(*media.Season)
		clone := e.Clone().(*media.Season)
		if ok {
			fillMissingEpisodes(clone, in.Episodes)
			copyOtherAttr(&clone.Attrs, &in.Attrs)
		}
		return clone
	case *media.Movie:
		in, ok := incoming.(*media.Movie)
		clone := e.Clone().(*media.Movie)
		if ok {
			copyOtherAttr(&clone.Attrs, &in.Attrs)
		}
		return clone
	case *media.Episode:
		in, ok := incoming.(*media.Episode)
		clone := e.Clone().(*media.Episode)
		if ok {
			copyOtherAttr(&clone.Attrs, &in.Attrs)
		}
		return clone
	default:
		return existing
	}
}

func fillMissingSeasons(into *media.Show, incoming []*media.Season) {
	for _, s := range incoming {
		if s == nil || s.Number == 0 {
			continue
		}
		if into.SeasonByNumber(s.Number) == nil {
			clone := s.Clone().(*media.Season)
			clone.Show = into
			into.Seasons = append(into.Seasons, clone)
		}
	}
}

func fillMissingEpisodes(into *media.Season, incoming []*media.Episode) {
	for _, e := range incoming {
		if e == nil {
			continue
		}
		if into.EpisodeByNumber(e.Number) == nil {
			clone := e.Clone().(*media.Episode)
			clone.Season = into
			into.Episodes = append(into.Episodes, clone)
		}
	}
}

// copyOtherAttr copies non-structural attributes and sets indexed_at,
// mirroring copy_other_media_attr in the original.
func copyOtherAttr(dst, in *media.Attrs) {
	if in.Title != "" {
		dst.Title = in.Title
	}
	if in.LogString != "" {
		dst.LogString = in.LogString
	}
	if in.IMDBID != "" {
		dst.IMDBID = in.IMDBID
	}
	dst.IndexedAt = in.IndexedAt
}

// scrapeExpansion implements the Movie/Episode/Show/Season fan-out rules.
func (r *Router) scrapeExpansion(item media.Item) []media.Item {
	switch v := item.(type) {
	case *media.Movie:
		if r.caps.CanWeScrape(v) {
			return []media.Item{v}
		}
		return nil
	case *media.Episode:
		if r.caps.CanWeScrape(v) {
			return []media.Item{v}
		}
		return nil
	case *media.Show:
		var out []media.Item
		for _, s := range v.Seasons {
			if s.Number == 0 {
				continue
			}
			st := media.Classify(s)
			if st == media.StateCompleted || st == media.StateDownloaded || st == media.StateScraped {
				continue
			}
			if r.caps.CanWeScrape(s) {
				out = append(out, s)
			}
		}
		return out
	case *media.Season:
		if v.ScrapedTimes >= r.cfg.SeasonFanOutThreshold {
			var out []media.Item
			for _, e := range v.Episodes {
				st := media.Classify(e)
				if st == media.StateCompleted || st == media.StateDownloaded || st == media.StateScraped {
					continue
				}
				if r.caps.CanWeScrape(e) {
					out = append(out, e)
				}
			}
			return out
		}
		return []media.Item{v}
	default:
		return []media.Item{item}
	}
}

// partiallyCompletedSubmissions implements the PartiallyCompleted row.
func (r *Router) partiallyCompletedSubmissions(item media.Item) []media.Item {
	switch v := item.(type) {
	case *media.Show:
		var out []media.Item
		for _, s := range v.Seasons {
			if s.Number == 0 {
				continue
			}
			st := media.Classify(s)
			if st == media.StateCompleted || st == media.StatePartiallyCompleted {
				continue
			}
			if r.caps.CanWeScrape(s) {
				out = append(out, s)
			}
		}
		return out
	case *media.Season:
		var out []media.Item
		for _, e := range v.Episodes {
			if media.Classify(e) != media.StateIndexed {
				continue
			}
			if r.caps.CanWeScrape(e) {
				out = append(out, e)
			}
		}
		return out
	default:
		return nil
	}
}

// downloadedSubmissions implements the Downloaded row's container-aware
// proposal set, then filters through Symlinker.should_submit. spec.md §9
// notes the source's duplicated Downloaded branch is dead code; only the
// richer, container-aware branch is implemented here.
func (r *Router) downloadedSubmissions(item media.Item) []media.Item {
	var proposed []media.Item

	switch v := item.(type) {
	case *media.Show:
		allReady := true
		var notSymlinked []media.Item
		for _, s := range v.Seasons {
			if s.Number == 0 || s.Symlinked {
				continue
			}
			if s.File == nil || s.Folder == nil {
				allReady = false
			}
			notSymlinked = append(notSymlinked, s)
		}
		if allReady {
			proposed = []media.Item{v}
		} else {
			for _, s := range notSymlinked {
				if s.Header().File != nil && s.Header().Folder != nil {
					proposed = append(proposed, s)
				}
			}
		}
	case *media.Season:
		allReady := true
		var notSymlinked []media.Item
		for _, e := range v.Episodes {
			if e.Symlinked {
				continue
			}
			if e.File == nil || e.Folder == nil {
				allReady = false
			}
			notSymlinked = append(notSymlinked, e)
		}
		if allReady {
			proposed = []media.Item{v}
		} else {
			for _, e := range notSymlinked {
				if e.Header().File != nil && e.Header().Folder != nil {
					proposed = append(proposed, e)
				}
			}
		}
	default:
		proposed = []media.Item{item}
	}

	out := make([]media.Item, 0, len(proposed))
	for _, sub := range proposed {
		if r.caps.ShouldSubmitSymlink(sub) {
			out = append(out, sub)
		}
	}
	return out
}
