// Package media defines the tagged-variant media item model: Movie, Show,
// Season and Episode sharing a common header, plus the state classifier
// derived from attribute presence and children's states.
package media

import "time"

// Kind tags the concrete variant of an Item.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindShow    Kind = "show"
	KindSeason  Kind = "season"
	KindEpisode Kind = "episode"
)

// UpdateFolderConfirmed is the sentinel UpdateFolder value the library
// notifier sets once the media server has confirmed the item is visible
// in its library; it is what promotes Symlinked to Completed.
const UpdateFolderConfirmed = "updated"

// Stream is a selected, viable torrent/release for an item, chosen by the
// scraper. Only its presence matters to the classifier; ranking/scoring is
// the scraper's concern. DownloadURL/Indexer carry enough of the release
// forward for the Downloader to grab it; DownloadID is filled in by the
// Downloader once grabbed so the Symlinker can find the completed job.
type Stream struct {
	InfoHash    string
	Title       string
	DownloadURL string
	Indexer     string
	DownloadID  int64
}

// Attrs carries the fields common to every item kind (spec.md §3).
type Attrs struct {
	ItemID       string
	IMDBID       string
	Title        string
	LogString    string
	IndexedAt    *time.Time
	ScrapedTimes int
	ActiveStream *Stream
	File         *string
	Folder       *string
	Symlinked    bool
	UpdateFolder string
	Type         Kind
}

// Item is implemented by Movie, Show, Season and Episode.
type Item interface {
	ID() string
	Header() *Attrs
	Kind() Kind
	// Clone returns a deep copy of the item, including children but not
	// parent back-references (those are resolved lazily through the graph).
	Clone() Item
}

// Movie is a leaf item.
type Movie struct {
	Attrs
}

func NewMovie(itemID string) *Movie {
	return &Movie{Attrs: Attrs{ItemID: itemID, Type: KindMovie}}
}

func (m *Movie) ID() string      { return m.ItemID }
func (m *Movie) Header() *Attrs  { return &m.Attrs }
func (m *Movie) Kind() Kind      { return KindMovie }
func (m *Movie) Clone() Item {
	c := *m
	c.Attrs = cloneHeader(m.Attrs)
	return &c
}

// Episode is a leaf item with a back-reference to its parent Season.
type Episode struct {
	Attrs
	Number int
	Season *Season // back-reference only, never owning
}

func NewEpisode(itemID string, number int) *Episode {
	return &Episode{Attrs: Attrs{ItemID: itemID, Type: KindEpisode}, Number: number}
}

func (e *Episode) ID() string     { return e.ItemID }
func (e *Episode) Header() *Attrs { return &e.Attrs }
func (e *Episode) Kind() Kind     { return KindEpisode }
func (e *Episode) Clone() Item {
	c := *e
	c.Attrs = cloneHeader(e.Attrs)
	c.Season = nil
	return &c
}

// Season is a container of Episodes, keyed by episode number, with a
// back-reference to its parent Show. Season number 0 ("specials") is
// never stored (invariant 6).
type Season struct {
	Attrs
	Number   int
	Episodes []*Episode
	Show     *Show // back-reference only, never owning
}

func NewSeason(itemID string, number int) *Season {
	return &Season{Attrs: Attrs{ItemID: itemID, Type: KindSeason}, Number: number}
}

func (s *Season) ID() string     { return s.ItemID }
func (s *Season) Header() *Attrs { return &s.Attrs }
func (s *Season) Kind() Kind     { return KindSeason }

func (s *Season) Clone() Item {
	c := *s
	c.Attrs = cloneHeader(s.Attrs)
	c.Show = nil
	c.Episodes = make([]*Episode, len(s.Episodes))
	for i, e := range s.Episodes {
		ce := e.Clone().(*Episode)
		ce.Season = &c
		c.Episodes[i] = ce
	}
	return &c
}

// EpisodeByNumber returns the episode with the given number, or nil.
func (s *Season) EpisodeByNumber(n int) *Episode {
	for _, e := range s.Episodes {
		if e.Number == n {
			return e
		}
	}
	return nil
}

// Show is a container of Seasons, keyed by season number. Season 0 is
// excluded (invariant 6).
type Show struct {
	Attrs
	Seasons []*Season
}

func NewShow(itemID string) *Show {
	return &Show{Attrs: Attrs{ItemID: itemID, Type: KindShow}}
}

func (s *Show) ID() string      { return s.ItemID }
func (s *Show) Header() *Attrs  { return &s.Attrs }
func (s *Show) Kind() Kind     { return KindShow }

func (s *Show) Clone() Item {
	c := *s
	c.Attrs = cloneHeader(s.Attrs)
	c.Seasons = make([]*Season, len(s.Seasons))
	for i, season := range s.Seasons {
		cs := season.Clone().(*Season)
		cs.Show = &c
		c.Seasons[i] = cs
	}
	return &c
}

// SeasonByNumber returns the season with the given number, or nil. Season
// 0 is never returned even if present on the struct by construction error.
func (s *Show) SeasonByNumber(n int) *Season {
	if n == 0 {
		return nil
	}
	for _, season := range s.Seasons {
		if season.Number == n {
			return season
		}
	}
	return nil
}

func cloneHeader(h Attrs) Attrs {
	c := h
	if h.IndexedAt != nil {
		t := *h.IndexedAt
		c.IndexedAt = &t
	}
	if h.ActiveStream != nil {
		s := *h.ActiveStream
		c.ActiveStream = &s
	}
	if h.File != nil {
		f := *h.File
		c.File = &f
	}
	if h.Folder != nil {
		f := *h.Folder
		c.Folder = &f
	}
	return c
}
