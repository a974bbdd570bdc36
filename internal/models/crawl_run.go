package models

import (
	"fmt"
	"time"
)

// Run record status values
const (
	RunStatusStarted = "started"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// MaxFailedURLs caps the follow-on errors stored on a failed run
const MaxFailedURLs = 20

// CrawlRun is the persisted audit record of one crawl attempt
type CrawlRun struct {
	ID           string           `json:"id"`
	TargetID     string           `json:"target_id" badgerhold:"index"`
	Kind         CrawlKind        `json:"kind"`
	Status       string           `json:"status"`
	StartedAt    time.Time        `json:"started_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	DurationMs   int64            `json:"duration_ms"`
	Stats        CrawlRunStats    `json:"stats"`
	ErrorDetails *RunErrorDetails `json:"error_details,omitempty"`
}

// CrawlRunStats are the counters stored on a finished run
type CrawlRunStats struct {
	PagesProcessed int `json:"pages_processed"`
	ItemsFound     int `json:"items_found"`
	ItemsCreated   int `json:"items_created"`
	ItemsUpdated   int `json:"items_updated"`
	Errors         int `json:"errors"`
}

// RunErrorDetails holds the first error and a bounded list of the rest
type RunErrorDetails struct {
	Message    string   `json:"message"`
	FailedURLs []string `json:"failed_urls,omitempty"`
}

// NewCrawlRun returns a run in the started state
func NewCrawlRun(id, targetID string, kind CrawlKind, startedAt time.Time) *CrawlRun {
	return &CrawlRun{
		ID:        id,
		TargetID:  targetID,
		Kind:      kind,
		Status:    RunStatusStarted,
		StartedAt: startedAt,
	}
}

// IsTerminal reports whether the run has left the started state
func (r *CrawlRun) IsTerminal() bool {
	return r.Status == RunStatusSuccess || r.Status == RunStatusFailed
}

// Complete moves a started run to success or failed exactly once
func (r *CrawlRun) Complete(success bool, stats CrawlRunStats, errs []string, at time.Time) error {
	if r.IsTerminal() {
		return fmt.Errorf("crawl run %s already completed with status %s", r.ID, r.Status)
	}

	r.Status = RunStatusFailed
	if success {
		r.Status = RunStatusSuccess
	}
	r.CompletedAt = &at
	r.DurationMs = at.Sub(r.StartedAt).Milliseconds()
	r.Stats = stats

	if len(errs) > 0 {
		details := &RunErrorDetails{Message: errs[0]}
		rest := errs[1:]
		if len(rest) > MaxFailedURLs {
			rest = rest[:MaxFailedURLs]
		}
		if len(rest) > 0 {
			details.FailedURLs = append([]string(nil), rest...)
		}
		r.ErrorDetails = details
	}
	return nil
}
