package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/vmunix/pipeline/internal/config"
	"github.com/vmunix/pipeline/internal/daemon"
	"github.com/vmunix/pipeline/internal/dispatcher"
	"github.com/vmunix/pipeline/internal/download"
	"github.com/vmunix/pipeline/internal/importer"
	"github.com/vmunix/pipeline/internal/library"
	"github.com/vmunix/pipeline/internal/media"
	"github.com/vmunix/pipeline/internal/migrations"
	"github.com/vmunix/pipeline/internal/pipeline"
	"github.com/vmunix/pipeline/internal/registry"
	"github.com/vmunix/pipeline/internal/scheduler"
	"github.com/vmunix/pipeline/internal/search"
	"github.com/vmunix/pipeline/internal/services"
	"github.com/vmunix/pipeline/internal/services/downloader"
	"github.com/vmunix/pipeline/internal/services/indexer"
	"github.com/vmunix/pipeline/internal/services/librarybootstrap"
	"github.com/vmunix/pipeline/internal/services/librarynotifier"
	"github.com/vmunix/pipeline/internal/services/scraper"
	"github.com/vmunix/pipeline/internal/services/source"
	"github.com/vmunix/pipeline/internal/services/symlinker"
	"github.com/vmunix/pipeline/internal/workerpool"
	"github.com/vmunix/pipeline/pkg/newznab"
	"github.com/vmunix/pipeline/pkg/tvdb"
)

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runServer loads configuration, wires the core state-transition engine
// (spec.md §4) from its external collaborators, and blocks until an
// interrupt signal asks it to shut down.
func runServer(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		return fmt.Errorf("migrate 001: %w", err)
	}
	if _, err := db.Exec(migrations.Migration002LastTransitionAt); err != nil {
		if !strings.Contains(err.Error(), "duplicate column") {
			return fmt.Errorf("migrate 002: %w", err)
		}
	}
	if _, err := db.Exec(migrations.Migration003DownloadsStatusCleaned); err != nil {
		return fmt.Errorf("migrate 003: %w", err)
	}
	if _, err := db.Exec(migrations.Migration005Events); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("migrate 005: %w", err)
		}
	}

	// === Stores ===
	libraryStore := library.NewStore(db)
	downloadStore := download.NewStore(db)

	downloadStore.OnTransition(func(e download.TransitionEvent) {
		logger.Info("download status changed",
			"download_id", e.DownloadID,
			"from", e.From,
			"to", e.To,
		)
	})

	// === Clients (nil if not configured) ===
	var sabClient *download.SABnzbdClient
	if cfg.Downloaders.SABnzbd != nil {
		sabClient = download.NewSABnzbdClient(
			cfg.Downloaders.SABnzbd.URL,
			cfg.Downloaders.SABnzbd.APIKey,
			cfg.Downloaders.SABnzbd.Category,
			logger,
		)
	}

	newznabClients := make([]*newznab.Client, 0, len(cfg.Indexers))
	for name, idxCfg := range cfg.Indexers {
		newznabClients = append(newznabClients, newznab.NewClient(name, idxCfg.URL, idxCfg.APIKey, logger))
	}
	var indexerPool *search.IndexerPool
	if len(newznabClients) > 0 {
		indexerPool = search.NewIndexerPool(newznabClients, logger.With("component", "indexerpool"))
	}

	var plexClient *importer.PlexClient
	if cfg.Notifications.Plex != nil {
		plexClient = importer.NewPlexClient(
			cfg.Notifications.Plex.URL,
			cfg.Notifications.Plex.Token,
			logger,
		)
	}

	var downloadManager *download.Manager
	if sabClient != nil {
		downloadManager = download.NewManager(sabClient, downloadStore, logger.With("component", "download"))
	}

	var searcher *search.Searcher
	if indexerPool != nil {
		scorer := search.NewScorer(cfg.Quality.Profiles)
		searcher = search.NewSearcher(indexerPool, scorer, logger.With("component", "search"))
	}

	imp := importer.New(db, importer.Config{
		MovieRoot:      cfg.Libraries.Movies.Root,
		SeriesRoot:     cfg.Libraries.Series.Root,
		MovieTemplate:  cfg.Libraries.Movies.Naming,
		SeriesTemplate: cfg.Libraries.Series.Naming,
		PlexURL:        plexURLFromConfig(cfg),
		PlexToken:      plexTokenFromConfig(cfg),
		PlexLocalPath:  plexLocalPathFromConfig(cfg),
		PlexRemotePath: plexRemotePathFromConfig(cfg),
	}, logger.With("component", "importer"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := buildCoreDaemon(ctx, cfg, libraryStore, downloadManager, searcher, imp, plexClient, logger)
	if err != nil {
		return fmt.Errorf("build core engine: %w", err)
	}
	if d == nil {
		return fmt.Errorf("build core engine: library store unavailable")
	}

	logger.Info("arrgod starting",
		"database", cfg.Database.Path,
		"sabnzbd", sabClient != nil,
		"indexers", len(cfg.Indexers),
		"plex", plexClient != nil,
		"log_level", cfg.Server.LogLevel,
	)

	runErr := make(chan error, 1)
	go func() {
		runErr <- d.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil {
			return fmt.Errorf("core engine: %w", err)
		}
	}

	logger.Info("arrgod stopped")
	return nil
}

func plexURLFromConfig(cfg *config.Config) string {
	if cfg.Notifications.Plex != nil {
		return cfg.Notifications.Plex.URL
	}
	return ""
}

func plexTokenFromConfig(cfg *config.Config) string {
	if cfg.Notifications.Plex != nil {
		return cfg.Notifications.Plex.Token
	}
	return ""
}

func plexLocalPathFromConfig(cfg *config.Config) string {
	if cfg.Notifications.Plex != nil {
		return cfg.Notifications.Plex.LocalPath
	}
	return ""
}

func plexRemotePathFromConfig(cfg *config.Config) string {
	if cfg.Notifications.Plex != nil {
		return cfg.Notifications.Plex.RemotePath
	}
	return ""
}

// buildCoreDaemon assembles the state-transition engine (Router, Registry,
// Worker Pool, Dispatcher, Scheduler) and seeds its Item Graph from a
// one-shot library scan. It returns nil if the library store itself isn't
// available, which never happens in practice since libraryStore is always
// constructed, but keeps the signature honest about the one hard
// dependency.
func buildCoreDaemon(
	ctx context.Context,
	cfg *config.Config,
	libraryStore *library.Store,
	downloadManager *download.Manager,
	searcher *search.Searcher,
	imp *importer.Importer,
	plexClient *importer.PlexClient,
	logger *slog.Logger,
) (*daemon.Daemon, error) {
	if libraryStore == nil {
		return nil, nil
	}

	pcfg := cfg.Pipeline
	reg := registry.New()

	bootstrap := librarybootstrap.New(libraryStore, logger)
	if err := reg.Register(bootstrap); err != nil {
		return nil, err
	}

	librarySource := source.New(libraryStore, pcfg.SourceIntervalSeconds, logger)
	if err := reg.Register(librarySource); err != nil {
		return nil, err
	}

	var tvdbClient indexer.TVDBClient
	if cfg.TVDB != nil && cfg.TVDB.APIKey != "" {
		tvdbClient = tvdb.New(cfg.TVDB.APIKey, tvdb.WithLogger(logger))
	}
	idx := indexer.New(libraryStore, tvdbClient, logger)
	if err := reg.Register(idx); err != nil {
		return nil, err
	}

	// searcher is a *search.Searcher that may be nil when no indexers are
	// configured; assigning a nil concrete pointer directly to an
	// interface parameter would produce a non-nil interface value, so the
	// nil check happens here rather than inside scraper.Scraper.
	var searcherIface scraper.Searcher
	if searcher != nil {
		searcherIface = searcher
	}
	scr := scraper.New(libraryStore, searcherIface, logger)
	if err := reg.Register(scr); err != nil {
		return nil, err
	}

	dl := downloader.New(libraryStore, downloadManager, downloader.DefaultConfig(), logger)
	if err := reg.Register(dl); err != nil {
		return nil, err
	}

	sym := symlinker.New(imp, logger)
	if err := reg.Register(sym); err != nil {
		return nil, err
	}

	// Same nil-interface hazard as searcherIface above: plexClient is a
	// *importer.PlexClient that may be nil.
	var plexIface librarynotifier.PlexClient
	if plexClient != nil {
		plexIface = plexClient
	}
	notifier := librarynotifier.New(plexIface, logger)
	if err := reg.Register(notifier); err != nil {
		return nil, err
	}

	routerCfg := pipeline.DefaultConfig()
	if pcfg.SeasonFanOutThreshold > 0 {
		routerCfg.SeasonFanOutThreshold = pcfg.SeasonFanOutThreshold
	}
	router := pipeline.New(reg, routerCfg)

	pool := workerpool.New(ctx, pcfg.WorkerPoolSize, logger)

	graph := media.NewGraph()
	disp := dispatcher.New(graph, reg, router, pool, dispatcher.Config{}, logger)

	sched, err := scheduler.New(logger)
	if err != nil {
		return nil, err
	}

	d := daemon.New(graph, reg, pool, disp, sched, logger)

	for _, svc := range []services.Service{librarySource, idx, scr, dl, sym, notifier} {
		if interval, ok := svc.(services.IntervalService); ok {
			if err := sched.RegisterService(interval, d); err != nil {
				return nil, err
			}
		}
	}
	if err := sched.RegisterRetrySweep(graph, d); err != nil {
		return nil, err
	}

	seeded, err := bootstrap.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("library bootstrap scan: %w", err)
	}
	for _, item := range seeded {
		graph.Upsert(item)
	}
	logger.Info("core engine seeded from library", "items", len(seeded))

	return d, nil
}
