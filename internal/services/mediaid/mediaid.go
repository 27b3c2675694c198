// Package mediaid maps media.Item identities onto the library package's
// numeric content/episode keys and back. The pipeline stages (source,
// indexer, scraper, downloader, symlinker) all parse and build these ids,
// so the scheme lives in one place rather than being reinvented per stage.
package mediaid

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags which of the four id shapes a string encodes.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindShow    Kind = "show"
	KindSeason  Kind = "season"
	KindEpisode Kind = "episode"
)

// ID is a parsed item_id: content_id anchors every variant to the
// library.Content row it was sourced from; Season/Episode add the
// numbering the Content row doesn't carry by itself.
type ID struct {
	Kind      Kind
	ContentID int64
	Season    int
	Episode   int
}

// Movie builds a Movie item_id for a library content row.
func Movie(contentID int64) string {
	return fmt.Sprintf("movie:%d", contentID)
}

// Show builds a Show item_id for a library content row.
func Show(contentID int64) string {
	return fmt.Sprintf("show:%d", contentID)
}

// Season builds a Season item_id.
func Season(contentID int64, season int) string {
	return fmt.Sprintf("season:%d:%d", contentID, season)
}

// Episode builds an Episode item_id.
func Episode(contentID int64, season, episode int) string {
	return fmt.Sprintf("episode:%d:%d:%d", contentID, season, episode)
}

// Parse decodes an item_id built by one of the constructors above.
func Parse(itemID string) (ID, error) {
	parts := strings.Split(itemID, ":")
	if len(parts) < 2 {
		return ID{}, fmt.Errorf("mediaid: malformed id %q", itemID)
	}

	contentID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("mediaid: invalid content id in %q: %w", itemID, err)
	}

	switch Kind(parts[0]) {
	case KindMovie:
		return ID{Kind: KindMovie, ContentID: contentID}, nil
	case KindShow:
		return ID{Kind: KindShow, ContentID: contentID}, nil
	case KindSeason:
		if len(parts) != 3 {
			return ID{}, fmt.Errorf("mediaid: malformed season id %q", itemID)
		}
		season, err := strconv.Atoi(parts[2])
		if err != nil {
			return ID{}, fmt.Errorf("mediaid: invalid season number in %q: %w", itemID, err)
		}
		return ID{Kind: KindSeason, ContentID: contentID, Season: season}, nil
	case KindEpisode:
		if len(parts) != 4 {
			return ID{}, fmt.Errorf("mediaid: malformed episode id %q", itemID)
		}
		season, err := strconv.Atoi(parts[2])
		if err != nil {
			return ID{}, fmt.Errorf("mediaid: invalid season number in %q: %w", itemID, err)
		}
		episode, err := strconv.Atoi(parts[3])
		if err != nil {
			return ID{}, fmt.Errorf("mediaid: invalid episode number in %q: %w", itemID, err)
		}
		return ID{Kind: KindEpisode, ContentID: contentID, Season: season, Episode: episode}, nil
	default:
		return ID{}, fmt.Errorf("mediaid: unknown kind in %q", itemID)
	}
}
