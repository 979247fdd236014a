package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sitesync/sitesync/internal/cache"
	"github.com/sitesync/sitesync/internal/cleaner"
	"github.com/sitesync/sitesync/internal/config"
	"github.com/sitesync/sitesync/internal/converter"
	"github.com/sitesync/sitesync/internal/crawler"
	"github.com/sitesync/sitesync/internal/domain"
	"github.com/sitesync/sitesync/internal/fetcher"
	"github.com/sitesync/sitesync/internal/history"
	"github.com/sitesync/sitesync/internal/reconcile"
	"github.com/sitesync/sitesync/internal/remote"
	"github.com/sitesync/sitesync/internal/retention"
	"github.com/sitesync/sitesync/internal/snapshot"
	"github.com/sitesync/sitesync/internal/store"
	"github.com/sitesync/sitesync/internal/utils"
)

// App wires the scrape and upload pipelines together over one content
// store. Commands and the scheduler share a single App.
type App struct {
	cfg       *config.Config
	store     *store.Store
	snapshots *snapshot.Manager
	history   *history.Tracker
	retention *retention.Engine
	logger    *utils.Logger

	showProgress bool

	// test seams; production builds construct clients from config
	fetcherOverride domain.Fetcher
	remoteOverride  domain.KnowledgeClient
}

// Options contains options for creating an App
type Options struct {
	Config       *config.Config
	Verbose      bool
	ShowProgress bool

	// Fetcher and RemoteClient replace the config-built clients when set
	Fetcher      domain.Fetcher
	RemoteClient domain.KnowledgeClient
}

// New creates an App with the given configuration
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logLevel := cfg.Logging.Level
	if logLevel == "" {
		logLevel = "info"
	}
	if opts.Verbose {
		logLevel = "debug"
	}
	logFormat := cfg.Logging.Format
	if logFormat == "" {
		logFormat = "pretty"
	}

	logger := utils.NewLogger(utils.LoggerOptions{
		Level:   logLevel,
		Format:  logFormat,
		Verbose: opts.Verbose,
	})

	root := utils.ExpandPath(cfg.Output.Directory)
	st := store.New(store.StoreOptions{Root: root, Logger: logger})
	snaps := snapshot.NewManager(snapshot.ManagerOptions{Store: st, Logger: logger})

	var archiver *retention.Archiver
	if cfg.Retention.ArchiveDeleted {
		archiveDir := cfg.Retention.ArchiveDir
		if archiveDir == "" {
			archiveDir = filepath.Join(root, "archive")
		}
		archiver = retention.NewArchiver(utils.ExpandPath(archiveDir), logger)
	}

	return &App{
		cfg:       cfg,
		store:     st,
		snapshots: snaps,
		history:   history.NewTracker(history.TrackerOptions{Store: st, Logger: logger}),
		retention: retention.NewEngine(retention.EngineOptions{
			Store:     st,
			Snapshots: snaps,
			Archiver:  archiver,
			Logger:    logger,
		}),
		logger:          logger,
		showProgress:    opts.ShowProgress,
		fetcherOverride: opts.Fetcher,
		remoteOverride:  opts.RemoteClient,
	}, nil
}

// Store returns the content store
func (a *App) Store() *store.Store { return a.store }

// Snapshots returns the snapshot manager
func (a *App) Snapshots() *snapshot.Manager { return a.snapshots }

// History returns the scrape history tracker
func (a *App) History() *history.Tracker { return a.history }

// Retention returns the retention engine
func (a *App) Retention() *retention.Engine { return a.retention }

// Logger returns the application logger
func (a *App) Logger() *utils.Logger { return a.logger }

// ScrapeResult summarizes one completed scrape
type ScrapeResult struct {
	Site      string
	Timestamp string
	Pages     int
	Failed    int
	Diff      *domain.Diff
	Retention *domain.RetentionReport
	Duration  time.Duration
}

// Scrape crawls a site into a new timestamped scrape directory, updates
// the current snapshot from it and applies the retention policy.
func (a *App) Scrape(ctx context.Context, site *config.SiteConfig) (*ScrapeResult, error) {
	start := time.Now()
	logger := a.logger.WithSite(site.Name)

	logger.Info().
		Str("base_url", site.BaseURL).
		Int("workers", a.cfg.Scrape.Workers).
		Msg("Starting scrape")

	fetchClient, closeFetcher, err := a.buildFetcher(site)
	if err != nil {
		return nil, err
	}
	defer closeFetcher()

	cleaningProfile, err := a.resolveCleaner(ctx, site, fetchClient)
	if err != nil {
		return nil, err
	}

	pipeline := converter.NewPipeline(converter.PipelineOptions{
		BaseURL:         site.BaseURL,
		ContentSelector: site.Selector,
		ExcludeSelector: site.ExcludeSelector,
	})

	timestamp := domain.NewTimestamp(start.UTC())
	writer, err := a.store.NewScrape(site.Info(), timestamp, "crawler")
	if err != nil {
		return nil, fmt.Errorf("failed to create scrape directory: %w", err)
	}

	pages, err := crawler.New(crawler.Options{
		Site:         site,
		Config:       a.cfg.Scrape,
		Fetcher:      fetchClient,
		Converter:    pipeline,
		Cleaner:      cleaningProfile,
		Writer:       writer,
		Logger:       a.logger,
		ShowProgress: a.showProgress,
	}).Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn().Msg("Scrape cancelled")
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("crawl failed: %w", err)
	}

	manifest, err := writer.Finalize()
	if err != nil {
		return nil, fmt.Errorf("failed to finalize scrape: %w", err)
	}
	if manifest.Stats.Successful == 0 {
		return nil, fmt.Errorf("scrape produced no pages for %s", site.BaseURL)
	}

	diff, err := a.snapshots.UpdateFrom(site.Name, timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to update snapshot: %w", err)
	}

	keep := a.cfg.Retention.KeepCount
	if site.KeepCount > 0 {
		keep = site.KeepCount
	}
	retentionReport, err := a.retention.Apply(site.Name, keep, false)
	if err != nil {
		logger.Warn().Err(err).Msg("Retention pass failed")
	}

	result := &ScrapeResult{
		Site:      site.Name,
		Timestamp: timestamp,
		Pages:     pages,
		Failed:    len(manifest.FailedURLs),
		Diff:      diff,
		Retention: retentionReport,
		Duration:  time.Since(start),
	}

	logger.Info().
		Str("timestamp", timestamp).
		Int("pages", result.Pages).
		Int("failed", result.Failed).
		Int("added", len(diff.Added)).
		Int("modified", len(diff.Modified)).
		Int("removed", len(diff.Removed)).
		Dur("duration", result.Duration).
		Msg("Scrape completed")

	return result, nil
}

// UploadOptions controls a single upload run
type UploadOptions struct {
	Full         bool   // ignore remote bookkeeping and push everything
	CollectionID string // target an existing collection
}

// Upload pushes the current snapshot to the remote knowledge service and
// records the outcome as the new upload status.
func (a *App) Upload(ctx context.Context, site *config.SiteConfig, opts UploadOptions) (*domain.UploadStatus, error) {
	client, err := a.buildRemoteClient()
	if err != nil {
		return nil, err
	}
	logger := a.logger.WithSite(site.Name)

	incremental := a.cfg.Upload.Incremental && !opts.Full
	plan, err := a.snapshots.PlanUpload(site.Name, incremental)
	if err != nil {
		return nil, fmt.Errorf("failed to plan upload: %w", err)
	}
	if opts.CollectionID != "" {
		plan.CollectionID = opts.CollectionID
	}

	if incremental && a.cfg.Upload.AutoRebuild {
		plan, err = a.rebuildStateIfNeeded(ctx, site, client, plan)
		if err != nil {
			return nil, err
		}
	}

	logger.Info().Str("plan", plan.Summary).Msg("Upload plan ready")
	if len(plan.Upload) == 0 && len(plan.Delete) == 0 {
		logger.Info().Msg("Remote collection already up to date")
		status, err := a.snapshots.ReadUploadStatus(site.Name)
		if errors.Is(err, domain.ErrUploadStateMissing) {
			return nil, nil
		}
		return status, err
	}

	uploader := remote.NewUploader(remote.UploaderOptions{
		Client:       client,
		Snapshots:    a.snapshots,
		Config:       a.cfg.Remote,
		Logger:       a.logger,
		ShowProgress: a.showProgress,
	})

	result, err := uploader.Run(ctx, site.Name, plan, remote.RunOptions{
		CollectionID:     plan.CollectionID,
		CollectionName:   site.CollectionName(),
		Description:      fmt.Sprintf("Documentation scraped from %s", site.BaseURL),
		KeepRemote:       a.cfg.Upload.KeepRemote,
		CleanupUntracked: a.cfg.Upload.CleanupOrphans,
	})
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	status, err := a.snapshots.SaveUploadStatus(site.Name, result)
	if err != nil {
		return nil, fmt.Errorf("upload succeeded but status was not saved: %w", err)
	}

	logger.Info().
		Str("collection", status.CollectionID).
		Int("uploaded", status.FilesUploaded).
		Int("updated", status.FilesUpdated).
		Int("deleted", status.FilesDeleted).
		Msg("Upload completed")

	return status, nil
}

// rebuildStateIfNeeded recovers lost upload bookkeeping from the remote
// collection before an incremental run. When recovery is impossible the
// run degrades to a full upload.
func (a *App) rebuildStateIfNeeded(ctx context.Context, site *config.SiteConfig, client domain.KnowledgeClient, plan *domain.UploadPlan) (*domain.UploadPlan, error) {
	reconciler := reconcile.NewReconciler(reconcile.ReconcilerOptions{
		Client:    client,
		Snapshots: a.snapshots,
		Logger:    a.logger,
	})

	result, err := reconciler.DetectAndRebuild(ctx, site.Name, site.CollectionName(), plan, a.cfg.Remote.MinConfidence())
	if err != nil {
		return nil, fmt.Errorf("remote state detection failed: %w", err)
	}

	logger := a.logger.WithSite(site.Name)
	switch {
	case result.Rebuilt:
		logger.Info().Str("collection", result.CollectionID).
			Msg("Rebuilt upload state from remote collection")
		return a.snapshots.PlanUpload(site.Name, true)
	case result.NeedsRebuild:
		logger.Warn().Str("reason", result.Reason).
			Msg("Remote state unknown, falling back to full upload")
		return a.snapshots.PlanUpload(site.Name, false)
	default:
		return plan, nil
	}
}

// Refresh runs a scrape followed by an upload. This is the scheduler's
// job function.
func (a *App) Refresh(ctx context.Context, site *config.SiteConfig) error {
	if _, err := a.Scrape(ctx, site); err != nil {
		return err
	}
	if a.cfg.Remote.BaseURL == "" && a.remoteOverride == nil {
		a.logger.WithSite(site.Name).Debug().Msg("No remote configured, skipping upload")
		return nil
	}
	_, err := a.Upload(ctx, site, UploadOptions{})
	return err
}

// Reconcile checks the remote collection against local bookkeeping,
// optionally removing tracked files that no longer exist remotely.
func (a *App) Reconcile(ctx context.Context, site *config.SiteConfig, autoFix bool) (*domain.SyncReport, error) {
	reconciler, collectionID, err := a.reconcilerFor(ctx, site)
	if err != nil {
		return nil, err
	}
	return reconciler.Sync(ctx, site.Name, collectionID, autoFix)
}

// Health classifies the state of a site's remote collection
func (a *App) Health(ctx context.Context, site *config.SiteConfig) (*domain.HealthReport, error) {
	client, err := a.buildRemoteClient()
	if err != nil {
		return nil, err
	}
	if pinger, ok := client.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			return nil, fmt.Errorf("remote service unreachable: %w", err)
		}
	}
	reconciler, collectionID, err := a.reconcilerFor(ctx, site)
	if err != nil {
		return nil, err
	}
	return reconciler.Health(ctx, site.Name, collectionID)
}

// RebuildState reconstructs upload bookkeeping from the remote collection
func (a *App) RebuildState(ctx context.Context, site *config.SiteConfig, collectionID string) (*domain.RebuildReport, error) {
	reconciler, resolvedID, err := a.reconcilerFor(ctx, site)
	if err != nil {
		return nil, err
	}
	if collectionID != "" {
		resolvedID = collectionID
	}
	report, _, err := reconciler.RebuildFromRemote(ctx, site.Name, resolvedID, a.cfg.Remote.MinConfidence())
	return report, err
}

func (a *App) reconcilerFor(ctx context.Context, site *config.SiteConfig) (*reconcile.Reconciler, string, error) {
	client, err := a.buildRemoteClient()
	if err != nil {
		return nil, "", err
	}
	reconciler := reconcile.NewReconciler(reconcile.ReconcilerOptions{
		Client:    client,
		Snapshots: a.snapshots,
		Logger:    a.logger,
	})

	status, err := a.snapshots.ReadUploadStatus(site.Name)
	if err == nil && status != nil && status.CollectionID != "" {
		return reconciler, status.CollectionID, nil
	}

	id, err := reconciler.FindCollectionByContent(ctx, site.CollectionName(), site.Name)
	if err != nil {
		return nil, "", fmt.Errorf("no collection found for site %s: %w", site.Name, err)
	}
	return reconciler, id, nil
}

func (a *App) buildFetcher(site *config.SiteConfig) (domain.Fetcher, func(), error) {
	if a.fetcherOverride != nil {
		return a.fetcherOverride, func() {}, nil
	}

	var fetchCache domain.Cache
	if a.cfg.Cache.Enabled {
		c, err := cache.NewBadgerCache(cache.Options{
			Directory: filepath.Join(utils.ExpandPath(a.cfg.Cache.Directory), site.Name),
		})
		if err != nil {
			a.logger.Warn().Err(err).Msg("Cache unavailable, fetching without it")
		} else {
			fetchCache = c
		}
	}

	clientOpts := fetcher.DefaultClientOptions()
	clientOpts.Timeout = a.cfg.Scrape.Timeout
	clientOpts.UserAgent = a.cfg.Scrape.UserAgent
	clientOpts.EnableCache = fetchCache != nil
	clientOpts.CacheTTL = a.cfg.Cache.TTL
	clientOpts.Cache = fetchCache

	client, err := fetcher.NewClient(clientOpts)
	if err != nil {
		if fetchCache != nil {
			fetchCache.Close()
		}
		return nil, nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	cleanup := func() {
		client.Close()
		if fetchCache != nil {
			if err := fetchCache.Close(); err != nil {
				a.logger.Warn().Err(err).Msg("Failed to close cache")
			}
		}
	}
	return client, cleanup, nil
}

// resolveCleaner picks the cleaning profile for a site. An explicit
// configuration wins; otherwise the base URL and, as a last resort, the
// fetched start page decide.
func (a *App) resolveCleaner(ctx context.Context, site *config.SiteConfig, fetchClient domain.Fetcher) (domain.Cleaner, error) {
	name := site.Cleaning
	if name == "" {
		name = DetectProfile(site.BaseURL)
		if name == "none" {
			if resp, err := fetchClient.Get(ctx, site.BaseURL); err == nil && resp != nil {
				name = DetectProfileFromHTML(string(resp.Body))
			}
		}
		if name != "none" {
			a.logger.WithSite(site.Name).Info().
				Str("profile", name).Msg("Detected cleaning profile")
		}
	}
	return cleaner.ForName(name)
}

func (a *App) buildRemoteClient() (domain.KnowledgeClient, error) {
	if a.remoteOverride != nil {
		return a.remoteOverride, nil
	}
	if a.cfg.Remote.BaseURL == "" {
		return nil, fmt.Errorf("remote.base_url is not configured")
	}
	return remote.NewClient(remote.ClientOptions{
		Config: a.cfg.Remote,
		Logger: a.logger,
	}), nil
}
