// Package downloader implements the pipeline's Downloader stage: handing
// the scraped release to the debrid/download backend and resolving
// file/folder once the grab completes. Grounded on internal/download's
// existing Manager and SABnzbd client.
package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/vmunix/pipeline/internal/download"
	"github.com/vmunix/pipeline/internal/library"
	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/services"
	"github.com/vmunix/pipeline/internal/services/mediaid"
)

const Name services.Name = "sabnzbd_downloader"

// Config tunes how long the Downloader waits for a grab to finish before
// giving up for this call (the item is left at Scraped; the retry sweep
// brings it back, per spec.md §7 item 3).
type Config struct {
	PollInterval time.Duration
	MaxPolls     int
}

func DefaultConfig() Config {
	return Config{PollInterval: 2 * time.Second, MaxPolls: 30}
}

// Downloader adapts download.Manager to the pipeline's Downloader stage.
type Downloader struct {
	store   *library.Store
	manager *download.Manager
	cfg     Config
	log     *slog.Logger
}

func New(store *library.Store, manager *download.Manager, cfg Config, log *slog.Logger) *Downloader {
	if log == nil {
		log = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 30
	}
	return &Downloader{store: store, manager: manager, cfg: cfg, log: log.With("component", "downloader.sabnzbd")}
}

func (d *Downloader) Name() services.Name   { return Name }
func (d *Downloader) Stage() services.Stage { return services.StageDownloader }
func (d *Downloader) Initialized() bool     { return d.manager != nil && d.store != nil }

// Run grabs item's ActiveStream and blocks, bounded by Config, waiting
// for the download to complete. If it doesn't complete in time, Run
// returns no items: the item stays at Scraped and is revisited by the
// retry sweep, per the "item not eligible" branch of spec.md §7.
func (d *Downloader) Run(ctx context.Context, item media.Item) ([]media.Item, error) {
	if item == nil {
		return nil, nil
	}
	stream := item.Header().ActiveStream
	if stream == nil {
		return nil, fmt.Errorf("downloader: %s has no active stream", item.ID())
	}

	id, err := mediaid.Parse(item.ID())
	if err != nil {
		return nil, fmt.Errorf("downloader: %w", err)
	}

	episodeID, err := d.resolveEpisodeID(id)
	if err != nil {
		return nil, fmt.Errorf("downloader: %w", err)
	}

	dl, err := d.manager.Grab(ctx, id.ContentID, episodeID, stream.DownloadURL, stream.Title, stream.Indexer)
	if err != nil {
		return nil, fmt.Errorf("downloader: grab %s: %w", item.ID(), err)
	}

	status, ok := d.awaitCompletion(ctx, dl)
	if !ok {
		d.log.Debug("download still in progress, leaving for retry sweep", "item", item.ID(), "download_id", dl.ID)
		return nil, nil
	}

	clone := item.Clone()
	file := status.Path
	folder := filepath.Dir(status.Path)
	clone.Header().File = &file
	clone.Header().Folder = &folder
	clone.Header().ActiveStream.DownloadID = dl.ID
	return []media.Item{clone}, nil
}

func (d *Downloader) resolveEpisodeID(id mediaid.ID) (*int64, error) {
	if id.Kind != mediaid.KindEpisode {
		return nil, nil
	}
	episodes, err := d.store.GetEpisodes(id.ContentID)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	for _, e := range episodes {
		if e.Season == id.Season && e.Episode == id.Episode {
			return &e.ID, nil
		}
	}
	return nil, fmt.Errorf("no library episode row for content %d S%02dE%02d", id.ContentID, id.Season, id.Episode)
}

// awaitCompletion polls the download client directly (bypassing the
// store's own Refresh sweep, which runs on its own schedule) until the
// client reports the download complete or the poll budget is exhausted.
func (d *Downloader) awaitCompletion(ctx context.Context, dl *download.Download) (*download.ClientStatus, bool) {
	client := d.manager.Client()
	for i := 0; i < d.cfg.MaxPolls; i++ {
		status, err := client.Status(ctx, dl.ClientID)
		if err != nil {
			d.log.Warn("status poll failed", "download_id", dl.ID, "error", err)
		} else if status.Status == download.StatusCompleted {
			return status, true
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(d.cfg.PollInterval):
		}
	}
	return nil, false
}
