// Package symlinker implements the pipeline's Symlinker stage:
// materializing a completed download into the on-disk library tree.
// Grounded on the existing internal/importer.Importer, which already
// does the copy/rename/history-record work the teacher's
// handlers/import.go drives from a download-completed event.
package symlinker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/vmunix/pipeline/internal/importer"
	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/services"
)

const Name services.Name = "library_symlinker"

// Importer is the subset of *importer.Importer the Symlinker calls.
type Importer interface {
	Import(ctx context.Context, downloadID int64, downloadPath string) (*importer.ImportResult, error)
}

// Symlinker adapts Importer to the pipeline's Symlinker stage.
type Symlinker struct {
	importer Importer
	log      *slog.Logger
}

func New(imp Importer, log *slog.Logger) *Symlinker {
	if log == nil {
		log = slog.Default()
	}
	return &Symlinker{importer: imp, log: log.With("component", "symlinker")}
}

func (s *Symlinker) Name() services.Name   { return Name }
func (s *Symlinker) Stage() services.Stage { return services.StageSymlinker }
func (s *Symlinker) Initialized() bool     { return s.importer != nil }

// ShouldSubmit is the Router's Symlinker eligibility probe (spec.md
// §4.3): anything not already symlinked is eligible. It does not check
// file/folder itself; the Router's Downloaded row only proposes items
// whose file/folder (or, for a container, every child's) are set.
func (s *Symlinker) ShouldSubmit(item media.Item) bool {
	if item == nil {
		return false
	}
	return !item.Header().Symlinked
}

// Run imports the completed download for item and marks it symlinked.
func (s *Symlinker) Run(ctx context.Context, item media.Item) ([]media.Item, error) {
	if item == nil {
		return nil, nil
	}
	h := item.Header()
	if h.File == nil || h.Folder == nil || h.ActiveStream == nil {
		return nil, fmt.Errorf("symlinker: %s missing file/folder/stream", item.ID())
	}

	result, err := s.importer.Import(ctx, h.ActiveStream.DownloadID, *h.Folder)
	if err != nil {
		return nil, fmt.Errorf("symlinker: import %s: %w", item.ID(), err)
	}

	clone := item.Clone()
	dest := result.DestPath
	destDir := filepath.Dir(dest)
	clone.Header().File = &dest
	clone.Header().Folder = &destDir
	clone.Header().Symlinked = true
	return []media.Item{clone}, nil
}
