// Package scheduler runs crawls with at most one in flight per (target, kind).
//
// The lock table lives in process memory. Two processes sharing one store can
// still crawl the same target at the same time; deployments with replicas need
// an external lease if that must hold across processes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/services/browser"
	"github.com/ternarybob/pricewatch/internal/services/reconcile"
)

// Config controls retries and cadence
type Config struct {
	MaxAttempts   int
	RetryInterval time.Duration
	CrawlInterval time.Duration
}

// NewConfig derives scheduler settings from the application config
func NewConfig(c *common.Config) Config {
	return Config{
		MaxAttempts:   c.Scheduler.MaxAttempts,
		RetryInterval: c.RetryInterval(),
		CrawlInterval: c.CrawlInterval(),
	}
}

// scheduleEntry tracks one registered schedule
type scheduleEntry struct {
	targetID  string
	kind      models.CrawlKind
	mode      string
	schedule  string
	cronID    cron.EntryID
	cancel    context.CancelFunc
	lastRun   *time.Time
	nextRun   *time.Time
	lastError string
}

// Service implements interfaces.CrawlScheduler
type Service struct {
	targets    interfaces.TargetStorage
	runs       interfaces.CrawlRunStorage
	products   interfaces.ProductExtractor
	deals      interfaces.DealExtractor
	reconciler *reconcile.Engine
	config     Config
	logger     arbor.ILogger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error

	lockMu sync.Mutex
	locks  map[string]bool // Running crawls by lockKey

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	cron      *cron.Cron
	schedMu   sync.Mutex
	schedules map[string]*scheduleEntry
	stopped   bool
}

var _ interfaces.CrawlScheduler = (*Service)(nil)

// NewService creates a crawl scheduler. Schedules run until Stop.
func NewService(
	storage interfaces.StorageManager,
	products interfaces.ProductExtractor,
	deals interfaces.DealExtractor,
	reconciler *reconcile.Engine,
	config Config,
	logger arbor.ILogger,
) *Service {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.CrawlInterval <= 0 {
		config.CrawlInterval = 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		targets:    storage.TargetStorage(),
		runs:       storage.CrawlRunStorage(),
		products:   products,
		deals:      deals,
		reconciler: reconciler,
		config:     config,
		logger:     logger,
		now:        time.Now,
		sleep:      browser.SleepContext,
		locks:      make(map[string]bool),
		ctx:        ctx,
		cancel:     cancel,
		cron:       cron.New(),
		schedules:  make(map[string]*scheduleEntry),
	}
}

func lockKey(targetID string, kind models.CrawlKind) string {
	return targetID + "-" + string(kind)
}

// acquire marks key as running; false means a crawl is already in flight
func (s *Service) acquire(key string) bool {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	if s.locks[key] {
		return false
	}
	s.locks[key] = true
	return true
}

func (s *Service) release(key string) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	delete(s.locks, key)
}

// IsRunning reports whether a crawl for (target, kind) is in flight
func (s *Service) IsRunning(targetID string, kind models.CrawlKind) bool {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	return s.locks[lockKey(targetID, kind)]
}

// crawlSummary is the combined extraction and reconciliation result of one run
type crawlSummary struct {
	success bool
	stats   models.CrawlRunStats
	errors  []string
}

// RunCrawl performs one crawl. Configuration problems and a concurrent run
// are reported in the result; an error is returned only when the run record
// itself cannot be written.
func (s *Service) RunCrawl(ctx context.Context, targetID string, kind models.CrawlKind, opts ...models.CrawlOption) (models.CrawlResult, error) {
	key := lockKey(targetID, kind)
	if !s.acquire(key) {
		s.logger.Warn().Str("target_id", targetID).Str("kind", kind.String()).Msg("Crawl already in progress")
		return models.CrawlResult{
			Message: "Crawl already in progress",
			Outcome: models.OutcomeInProgress,
		}, nil
	}
	defer s.release(key)

	target, err := s.targets.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return models.CrawlResult{Message: "Target not found", Outcome: models.OutcomeNotFound}, nil
		}
		return models.CrawlResult{}, fmt.Errorf("failed to load target %s: %w", targetID, err)
	}
	if !target.IsActive {
		return models.CrawlResult{Message: "Target is not active", Outcome: models.OutcomeInactive}, nil
	}

	run := models.NewCrawlRun(common.NewRunID(), target.ID, kind, s.now())
	if err := s.runs.Create(ctx, run); err != nil {
		return models.CrawlResult{}, fmt.Errorf("failed to create crawl run: %w", err)
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Str("target", target.Slug).
		Str("kind", kind.String()).
		Msg("Crawl started")

	summary := s.execute(ctx, target, kind, models.ApplyCrawlOptions(opts...))
	completedAt := s.now()

	var details []string
	if !summary.success {
		details = summary.errors
		if len(details) == 0 {
			details = []string{"unknown error"}
		}
	}
	if err := run.Complete(summary.success, summary.stats, details, completedAt); err != nil {
		return models.CrawlResult{}, err
	}
	if err := s.runs.Update(ctx, run); err != nil {
		return models.CrawlResult{}, fmt.Errorf("failed to update crawl run %s: %w", run.ID, err)
	}

	var firstError string
	if !summary.success {
		firstError = details[0]
	}
	if err := s.targets.RecordCrawl(ctx, target.ID, kind, summary.success, firstError, completedAt); err != nil {
		s.logger.Warn().Err(err).Str("target", target.Slug).Msg("Failed to record last crawl on target")
	}

	result := models.CrawlResult{
		Success: summary.success,
		RunID:   run.ID,
		Stats:   &run.Stats,
	}
	if summary.success {
		result.Outcome = models.OutcomeCompleted
		result.Message = fmt.Sprintf("Crawled %d items, created %d, updated %d",
			summary.stats.ItemsFound, summary.stats.ItemsCreated, summary.stats.ItemsUpdated)
	} else {
		result.Outcome = models.OutcomeFailed
		result.Message = "Crawl failed: " + firstError
	}

	event := s.logger.Info()
	if !summary.success {
		event = s.logger.Warn()
	}
	event.Str("run_id", run.ID).
		Str("target", target.Slug).
		Str("kind", kind.String()).
		Int("items_found", summary.stats.ItemsFound).
		Int("errors", summary.stats.Errors).
		Int64("duration_ms", run.DurationMs).
		Msg(result.Message)

	return result, nil
}

// execute extracts and reconciles one kind. A panic fails the run instead of
// leaving it in the started state.
func (s *Service) execute(ctx context.Context, target *models.Target, kind models.CrawlKind, opts models.CrawlOptions) (summary crawlSummary) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("target", target.Slug).
				Str("kind", kind.String()).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", common.Stack()).
				Msg("Recovered from panic in crawl")
			summary.success = false
			summary.errors = append([]string{fmt.Sprintf("Crawler error: %v", r)}, summary.errors...)
			summary.stats.Errors = len(summary.errors)
		}
	}()

	switch kind {
	case models.CrawlKindProducts:
		return s.crawlProducts(ctx, target, opts)
	case models.CrawlKindDeals:
		return s.crawlDeals(ctx, target)
	default:
		return crawlSummary{errors: []string{fmt.Sprintf("unknown crawl kind %q", kind)}, stats: models.CrawlRunStats{Errors: 1}}
	}
}

func (s *Service) crawlProducts(ctx context.Context, target *models.Target, opts models.CrawlOptions) crawlSummary {
	extracted := s.products.Extract(ctx, target, opts)
	success := productsSucceeded(extracted)

	outcome := s.reconciler.UpsertProducts(ctx, target.ID, extracted.Items)
	errs := append(append([]string(nil), extracted.Errors...), outcome.Errors...)

	return crawlSummary{
		success: success,
		errors:  errs,
		stats: models.CrawlRunStats{
			PagesProcessed: extracted.PagesProcessed,
			ItemsFound:     len(extracted.Items),
			ItemsCreated:   outcome.Created,
			ItemsUpdated:   outcome.Updated,
			Errors:         len(errs),
		},
	}
}

func (s *Service) crawlDeals(ctx context.Context, target *models.Target) crawlSummary {
	extracted := s.deals.Extract(ctx, target)
	success := dealsSucceeded(extracted)

	outcome := s.reconciler.UpsertDeals(ctx, target.ID, extracted.Items)
	errs := append(append([]string(nil), extracted.Errors...), outcome.Errors...)

	return crawlSummary{
		success: success,
		errors:  errs,
		stats: models.CrawlRunStats{
			PagesProcessed: extracted.PagesProcessed,
			ItemsFound:     len(extracted.Items),
			ItemsCreated:   outcome.Created,
			ItemsUpdated:   outcome.Updated,
			Errors:         len(errs),
		},
	}
}

// productsSucceeded requires a clean extraction
func productsSucceeded(r *models.ExtractionResult[models.RawProduct]) bool {
	return len(r.Errors) == 0
}

// dealsSucceeded tolerates page errors as long as something was extracted
func dealsSucceeded(r *models.ExtractionResult[models.RawDeal]) bool {
	return len(r.Errors) == 0 || len(r.Items) > 0
}

// RunWithRetry runs the crawl up to maxAttempts times, waiting the retry
// interval after each failure, and returns the last result. Not found and
// inactive targets are not retried. maxAttempts <= 0 uses the configured default.
func (s *Service) RunWithRetry(ctx context.Context, targetID string, kind models.CrawlKind, maxAttempts int, opts ...models.CrawlOption) (models.CrawlResult, error) {
	if maxAttempts <= 0 {
		maxAttempts = s.config.MaxAttempts
	}

	retryInterval := s.config.RetryInterval
	if o := models.ApplyCrawlOptions(opts...); o.RetryInterval > 0 {
		retryInterval = o.RetryInterval
	}

	var result models.CrawlResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var err error
		result, err = s.RunCrawl(ctx, targetID, kind, opts...)
		if err != nil {
			return result, err
		}
		if !result.Retryable() || attempt == maxAttempts {
			break
		}

		s.logger.Info().
			Str("target_id", targetID).
			Str("kind", kind.String()).
			Int("next_attempt", attempt+1).
			Int("max_attempts", maxAttempts).
			Dur("retry_in", retryInterval).
			Msg("Crawl failed, scheduling retry")

		if err := s.sleep(ctx, retryInterval); err != nil {
			return result, nil
		}
	}

	return result, nil
}

// ScheduleDaily starts a background loop: run with retry, then wait the
// crawl interval. The returned func stops the loop; Stop stops all of them.
func (s *Service) ScheduleDaily(targetID string, kind models.CrawlKind) (stop func()) {
	key := lockKey(targetID, kind)

	s.schedMu.Lock()
	if s.stopped {
		s.schedMu.Unlock()
		return func() {}
	}
	if existing, ok := s.schedules[key]; ok {
		s.schedMu.Unlock()
		s.logger.Debug().Str("schedule", key).Msg("Crawl already scheduled")
		if existing.cancel != nil {
			return existing.cancel
		}
		return func() {}
	}

	ctx, cancel := context.WithCancel(s.ctx)
	entry := &scheduleEntry{
		targetID: targetID,
		kind:     kind,
		mode:     "interval",
		schedule: s.config.CrawlInterval.String(),
	}
	entry.cancel = func() {
		cancel()
		s.schedMu.Lock()
		if s.schedules[key] == entry {
			delete(s.schedules, key)
		}
		s.schedMu.Unlock()
	}
	s.schedules[key] = entry
	s.schedMu.Unlock()

	common.SafeGo(ctx, s.logger, "schedule:"+key, &s.wg, func(ctx context.Context) {
		for {
			s.runScheduled(ctx, entry)

			next := s.now().Add(s.config.CrawlInterval)
			s.schedMu.Lock()
			entry.nextRun = &next
			s.schedMu.Unlock()

			if err := s.sleep(ctx, s.config.CrawlInterval); err != nil {
				s.logger.Debug().Str("schedule", key).Msg("Scheduled crawl loop stopped")
				return
			}
		}
	})

	s.logger.Info().
		Str("target_id", targetID).
		Str("kind", kind.String()).
		Dur("interval", s.config.CrawlInterval).
		Msg("Daily crawl scheduled")

	return entry.cancel
}

// ScheduleCron registers run-with-retry for (target, kind) on a cron expression
func (s *Service) ScheduleCron(schedule, targetID string, kind models.CrawlKind) error {
	if err := common.ValidateJobSchedule(schedule); err != nil {
		return err
	}

	key := lockKey(targetID, kind)

	s.schedMu.Lock()
	defer s.schedMu.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler stopped")
	}
	if _, exists := s.schedules[key]; exists {
		return fmt.Errorf("crawl %s already scheduled", key)
	}

	entry := &scheduleEntry{
		targetID: targetID,
		kind:     kind,
		mode:     "cron",
		schedule: schedule,
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().
					Str("schedule", key).
					Str("panic", fmt.Sprintf("%v", r)).
					Msg("Recovered from panic in scheduled crawl")
			}
		}()
		s.runScheduled(s.ctx, entry)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	entry.cronID = cronID
	s.schedules[key] = entry
	s.cron.Start()

	s.logger.Info().
		Str("target_id", targetID).
		Str("kind", kind.String()).
		Str("schedule", schedule).
		Msg("Cron crawl scheduled")

	return nil
}

func (s *Service) runScheduled(ctx context.Context, entry *scheduleEntry) {
	if ctx.Err() != nil {
		return
	}

	result, err := s.RunWithRetry(ctx, entry.targetID, entry.kind, s.config.MaxAttempts)
	finished := s.now()

	s.schedMu.Lock()
	defer s.schedMu.Unlock()

	entry.lastRun = &finished
	switch {
	case err != nil:
		entry.lastError = err.Error()
	case !result.Success:
		entry.lastError = result.Message
	default:
		entry.lastError = ""
	}
}

// Schedules returns the status of every registered schedule, sorted by target and kind
func (s *Service) Schedules() []interfaces.ScheduleStatus {
	s.schedMu.Lock()
	entries := make([]scheduleEntry, 0, len(s.schedules))
	for _, e := range s.schedules {
		entries = append(entries, *e)
	}
	s.schedMu.Unlock()

	nextByID := make(map[cron.EntryID]time.Time)
	for _, ce := range s.cron.Entries() {
		nextByID[ce.ID] = ce.Next
	}

	statuses := make([]interfaces.ScheduleStatus, 0, len(entries))
	for _, e := range entries {
		status := interfaces.ScheduleStatus{
			TargetID:  e.targetID,
			Kind:      e.kind,
			Mode:      e.mode,
			Schedule:  e.schedule,
			LastRun:   e.lastRun,
			NextRun:   e.nextRun,
			IsRunning: s.IsRunning(e.targetID, e.kind),
			LastError: e.lastError,
		}
		if e.mode == "cron" {
			if next, ok := nextByID[e.cronID]; ok && !next.IsZero() {
				status.NextRun = &next
			}
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].TargetID != statuses[j].TargetID {
			return statuses[i].TargetID < statuses[j].TargetID
		}
		return statuses[i].Kind < statuses[j].Kind
	})
	return statuses
}

// Stop cancels every schedule and waits for running loops to exit
func (s *Service) Stop() error {
	s.schedMu.Lock()
	if s.stopped {
		s.schedMu.Unlock()
		return nil
	}
	s.stopped = true
	s.schedMu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done() // Waits for running cron crawls
	s.wg.Wait()

	s.logger.Info().Msg("Crawl scheduler stopped")
	return nil
}
