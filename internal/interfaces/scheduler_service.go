package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/pricewatch/internal/models"
)

// ScheduleStatus represents the current status of a scheduled crawl
type ScheduleStatus struct {
	TargetID  string           `json:"target_id"`
	Kind      models.CrawlKind `json:"kind"`
	Mode      string           `json:"mode"`     // "interval" or "cron"
	Schedule  string           `json:"schedule"` // Interval duration or cron expression
	LastRun   *time.Time       `json:"last_run,omitempty"`
	NextRun   *time.Time       `json:"next_run,omitempty"`
	IsRunning bool             `json:"is_running"`
	LastError string           `json:"last_error,omitempty"`
}

// CrawlScheduler runs crawls with at most one in flight per (target, kind)
type CrawlScheduler interface {
	// RunCrawl performs one crawl run and returns its summary
	RunCrawl(ctx context.Context, targetID string, kind models.CrawlKind, opts ...models.CrawlOption) (models.CrawlResult, error)

	// RunWithRetry repeats RunCrawl up to maxAttempts times and returns the last result
	RunWithRetry(ctx context.Context, targetID string, kind models.CrawlKind, maxAttempts int, opts ...models.CrawlOption) (models.CrawlResult, error)

	// ScheduleDaily starts a background loop of run-with-retry then sleep; the returned func stops it
	ScheduleDaily(targetID string, kind models.CrawlKind) (stop func())

	// ScheduleCron registers run-with-retry on a cron expression
	ScheduleCron(schedule, targetID string, kind models.CrawlKind) error

	// IsRunning reports whether a crawl for (target, kind) is in flight
	IsRunning(targetID string, kind models.CrawlKind) bool

	// Schedules returns the status of every registered schedule
	Schedules() []ScheduleStatus

	// Stop cancels all schedules and waits for their loops to exit
	Stop() error
}
