package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestClassifyLeafUnknown(t *testing.T) {
	m := NewMovie("m1")
	assert.Equal(t, StateUnknown, Classify(m))
}

func TestClassifyLeafIndexed(t *testing.T) {
	m := NewMovie("m1")
	m.IndexedAt = ptr(time.Now())
	assert.Equal(t, StateIndexed, Classify(m))
}

func TestClassifyLeafScraped(t *testing.T) {
	m := NewMovie("m1")
	m.IndexedAt = ptr(time.Now())
	m.ActiveStream = &Stream{InfoHash: "abc"}
	assert.Equal(t, StateScraped, Classify(m))
}

func TestClassifyLeafDownloaded(t *testing.T) {
	m := NewMovie("m1")
	m.IndexedAt = ptr(time.Now())
	m.ActiveStream = &Stream{InfoHash: "abc"}
	m.File = ptr("movie.mkv")
	m.Folder = ptr("/downloads/movie")
	assert.Equal(t, StateDownloaded, Classify(m))
}

func TestClassifyLeafSymlinkedVsCompleted(t *testing.T) {
	m := NewMovie("m1")
	m.File = ptr("movie.mkv")
	m.Folder = ptr("/downloads/movie")
	m.Symlinked = true
	assert.Equal(t, StateSymlinked, Classify(m))

	m.UpdateFolder = UpdateFolderConfirmed
	assert.Equal(t, StateCompleted, Classify(m))
}

func newEpisode(id string, num int, state State) *Episode {
	e := NewEpisode(id, num)
	switch state {
	case StateIndexed:
		e.IndexedAt = ptr(time.Now())
	case StateScraped:
		e.IndexedAt = ptr(time.Now())
		e.ActiveStream = &Stream{InfoHash: "x"}
	case StateDownloaded:
		e.IndexedAt = ptr(time.Now())
		e.ActiveStream = &Stream{InfoHash: "x"}
		e.File = ptr("f.mkv")
		e.Folder = ptr("/d")
	case StateSymlinked:
		e.File = ptr("f.mkv")
		e.Folder = ptr("/d")
		e.Symlinked = true
	case StateCompleted:
		e.File = ptr("f.mkv")
		e.Folder = ptr("/d")
		e.Symlinked = true
		e.UpdateFolder = UpdateFolderConfirmed
	}
	return e
}

func TestClassifySeasonAllCompleted(t *testing.T) {
	s := NewSeason("s1", 1)
	s.Episodes = []*Episode{newEpisode("e1", 1, StateCompleted), newEpisode("e2", 2, StateCompleted)}
	assert.Equal(t, StateCompleted, Classify(s))
}

func TestClassifySeasonScrapedDominates(t *testing.T) {
	s := NewSeason("s1", 1)
	s.Episodes = []*Episode{
		newEpisode("e1", 1, StateCompleted),
		newEpisode("e2", 2, StateScraped),
		newEpisode("e3", 3, StateDownloaded),
	}
	assert.Equal(t, StateScraped, Classify(s))
}

func TestClassifySeasonPartiallyCompleted(t *testing.T) {
	s := NewSeason("s1", 1)
	s.Episodes = []*Episode{
		newEpisode("e1", 1, StateCompleted),
		newEpisode("e2", 2, StateIndexed),
	}
	assert.Equal(t, StatePartiallyCompleted, Classify(s))
}

func TestClassifySeasonAllIndexed(t *testing.T) {
	s := NewSeason("s1", 1)
	s.Episodes = []*Episode{newEpisode("e1", 1, StateIndexed), newEpisode("e2", 2, StateIndexed)}
	assert.Equal(t, StateIndexed, Classify(s))
}

func TestClassifySeasonUnknownMix(t *testing.T) {
	s := NewSeason("s1", 1)
	s.Episodes = []*Episode{newEpisode("e1", 1, StateIndexed), newEpisode("e2", 2, StateScraped)}
	assert.Equal(t, StateUnknown, Classify(s))
}

func TestClassifyShowIgnoresSeasonZero(t *testing.T) {
	show := NewShow("show1")
	specials := NewSeason("s0", 0)
	specials.Episodes = []*Episode{newEpisode("sp1", 1, StateUnknown)}
	s1 := NewSeason("s1", 1)
	s1.Episodes = []*Episode{newEpisode("e1", 1, StateCompleted)}
	show.Seasons = []*Season{specials, s1}
	assert.Equal(t, StateCompleted, Classify(show))
}
