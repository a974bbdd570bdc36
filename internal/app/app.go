package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/handlers"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/services/browser"
	"github.com/ternarybob/pricewatch/internal/services/extractor"
	"github.com/ternarybob/pricewatch/internal/services/reconcile"
	"github.com/ternarybob/pricewatch/internal/services/scheduler"
	"github.com/ternarybob/pricewatch/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Crawl pipeline
	BrowserDriver    interfaces.BrowserDriver
	ProductExtractor interfaces.ProductExtractor
	DealExtractor    interfaces.DealExtractor
	Reconciler       *reconcile.Engine
	Scheduler        *scheduler.Service

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	CrawlHandler     *handlers.CrawlHandler
	StatusHandler    *handlers.StatusHandler
	SchedulerHandler *handlers.SchedulerHandler

	stops []func()
}

// Option customizes application construction
type Option func(*App)

// WithBrowserDriver replaces the chromedp driver, e.g. with a fake in tests
func WithBrowserDriver(driver interfaces.BrowserDriver) Option {
	return func(a *App) {
		a.BrowserDriver = driver
	}
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger, opts ...Option) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}
	for _, opt := range opts {
		opt(app)
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initServices()
	app.initHandlers()

	logger.Info().
		Bool("headless", cfg.Crawler.Headless).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger) and applies the seed file
func (a *App) initDatabase(ctx context.Context) error {
	storageManager, err := storage.NewStorageManager(ctx, a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = storageManager

	a.Logger.Debug().
		Str("path", a.Config.Storage.Badger.Path).
		Bool("in_memory", a.Config.Storage.Badger.InMemory).
		Msg("Storage layer initialized")
	return nil
}

// initServices wires browser, extractors, reconciliation and scheduler
func (a *App) initServices() {
	if a.BrowserDriver == nil {
		a.BrowserDriver = browser.NewChromeDriver(browser.ChromeConfig{
			Headless:   a.Config.Crawler.Headless,
			NoSandbox:  a.Config.Crawler.NoSandbox,
			ExecPath:   a.Config.Crawler.ChromePath,
			RenderWait: a.Config.RenderWait(),
		}, a.Logger)
	}

	extractorConfig := extractor.NewConfig(a.Config)
	a.ProductExtractor = extractor.NewProductExtractor(a.BrowserDriver, extractorConfig, a.Logger)
	a.DealExtractor = extractor.NewDealExtractor(a.BrowserDriver, extractorConfig, a.Logger)

	a.Reconciler = reconcile.NewEngine(a.StorageManager, a.Logger)

	a.Scheduler = scheduler.NewService(
		a.StorageManager,
		a.ProductExtractor,
		a.DealExtractor,
		a.Reconciler,
		scheduler.NewConfig(a.Config),
		a.Logger,
	)
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.CrawlHandler = handlers.NewCrawlHandler(a.Scheduler, a.StorageManager, a.Config, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StorageManager, a.Config, a.Logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.Scheduler, a.Config, a.Logger)
}

// StartSchedules registers a schedule per active target and configured kind.
// A cron expression replaces the interval loop when set.
func (a *App) StartSchedules(ctx context.Context) error {
	if !a.Config.Scheduler.Enabled {
		a.Logger.Info().Msg("Scheduled crawls disabled")
		return nil
	}

	kinds := make([]models.CrawlKind, 0, len(a.Config.Scheduler.Kinds))
	for _, k := range a.Config.Scheduler.Kinds {
		kind, err := models.ParseCrawlKind(k)
		if err != nil {
			return fmt.Errorf("scheduler.kinds: %w", err)
		}
		kinds = append(kinds, kind)
	}

	targets, err := a.StorageManager.TargetStorage().FindActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active targets: %w", err)
	}

	schedule := a.Config.Scheduler.Schedule
	for _, target := range targets {
		for _, kind := range kinds {
			if schedule != "" {
				if err := a.Scheduler.ScheduleCron(schedule, target.ID, kind); err != nil {
					return fmt.Errorf("failed to schedule %s crawl for %s: %w", kind, target.Slug, err)
				}
				continue
			}
			a.stops = append(a.stops, a.Scheduler.ScheduleDaily(target.ID, kind))
		}
	}

	a.Logger.Info().
		Int("targets", len(targets)).
		Int("kinds", len(kinds)).
		Str("schedule", schedule).
		Msg("Scheduled crawls started")
	return nil
}

// Close closes all application resources
func (a *App) Close() error {
	for _, stop := range a.stops {
		stop()
	}
	a.stops = nil

	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
