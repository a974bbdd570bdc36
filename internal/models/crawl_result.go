package models

import "time"

// CrawlOutcome classifies a crawl result for triggers that map it to a status code
type CrawlOutcome string

const (
	OutcomeCompleted  CrawlOutcome = "completed"
	OutcomeFailed     CrawlOutcome = "failed"
	OutcomeInProgress CrawlOutcome = "in_progress"
	OutcomeNotFound   CrawlOutcome = "not_found"
	OutcomeInactive   CrawlOutcome = "inactive"
)

// CrawlResult is what every trigger receives from a crawl
type CrawlResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Outcome CrawlOutcome   `json:"outcome"`
	RunID   string         `json:"run_id,omitempty"`
	Stats   *CrawlRunStats `json:"stats,omitempty"`
}

// Retryable reports whether another attempt could change the outcome
func (r CrawlResult) Retryable() bool {
	return !r.Success && r.Outcome != OutcomeNotFound && r.Outcome != OutcomeInactive
}

// CrawlOptions narrows a single crawl run
type CrawlOptions struct {
	CategorySlug  string        // Products only: crawl one category instead of all
	RetryInterval time.Duration // Overrides the scheduler retry wait for RunWithRetry
}

// CrawlOption mutates CrawlOptions
type CrawlOption func(*CrawlOptions)

// WithCategory restricts a products crawl to one category slug
func WithCategory(slug string) CrawlOption {
	return func(o *CrawlOptions) {
		o.CategorySlug = slug
	}
}

// WithRetryInterval overrides the wait between RunWithRetry attempts
func WithRetryInterval(d time.Duration) CrawlOption {
	return func(o *CrawlOptions) {
		o.RetryInterval = d
	}
}

// ApplyCrawlOptions folds options into a CrawlOptions value
func ApplyCrawlOptions(opts ...CrawlOption) CrawlOptions {
	var o CrawlOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
