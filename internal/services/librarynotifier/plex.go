// Package librarynotifier implements the pipeline's Library Notifier
// stage: telling the media server to rescan the section containing a
// newly symlinked item. Grounded on the existing
// internal/importer.PlexClient, the same client the teacher's import
// flow already calls post-copy.
package librarynotifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/services"
)

const Name services.Name = "plex_notifier"

// PlexClient is the subset of *importer.PlexClient the notifier calls.
type PlexClient interface {
	ScanPath(ctx context.Context, filePath string) error
}

// Notifier adapts PlexClient to the pipeline's LibraryNotifier stage.
type Notifier struct {
	client PlexClient
	log    *slog.Logger
}

func New(client PlexClient, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{client: client, log: log.With("component", "librarynotifier.plex")}
}

func (n *Notifier) Name() services.Name   { return Name }
func (n *Notifier) Stage() services.Stage { return services.StageLibraryNotifier }
func (n *Notifier) Initialized() bool     { return n.client != nil }

// Run scans item's folder into the media server and confirms it by
// setting update_folder to media.UpdateFolderConfirmed, which the
// classifier uses to distinguish Symlinked from Completed.
func (n *Notifier) Run(ctx context.Context, item media.Item) ([]media.Item, error) {
	if item == nil {
		return nil, nil
	}
	h := item.Header()
	if h.Folder == nil {
		return nil, fmt.Errorf("librarynotifier: %s has no folder", item.ID())
	}

	if err := n.client.ScanPath(ctx, *h.Folder); err != nil {
		return nil, fmt.Errorf("librarynotifier: scan %s: %w", *h.Folder, err)
	}

	clone := item.Clone()
	clone.Header().UpdateFolder = media.UpdateFolderConfirmed
	return []media.Item{clone}, nil
}
