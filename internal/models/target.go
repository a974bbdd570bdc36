package models

import (
	"time"
)

// Crawl status values recorded on a target after each run
const (
	CrawlStatusPending = "pending"
	CrawlStatusSuccess = "success"
	CrawlStatusFailed  = "failed"
)

// Target is a retail chain whose catalog and weekly offers are crawled
type Target struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Slug              string      `json:"slug"`
	Website           string      `json:"website"`
	ProductCatalogURL string      `json:"product_catalog_url,omitempty"`
	FlyerURL          string      `json:"flyer_url,omitempty"`
	Locations         []Location  `json:"locations"`
	IsActive          bool        `json:"is_active"`
	CrawlConfig       CrawlConfig `json:"crawl_config"`
	LastCrawl         LastCrawl   `json:"last_crawl"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Location is a single store of a target. Its slug appears in catalog URLs.
type Location struct {
	Name     string `json:"name" toml:"name" yaml:"name" validate:"required"`
	Slug     string `json:"slug" toml:"slug" yaml:"slug" validate:"required"`
	Address  string `json:"address,omitempty" toml:"address" yaml:"address"`
	FlyerURL string `json:"flyer_url,omitempty" toml:"flyer_url" yaml:"flyer_url" validate:"omitempty,url"`
}

// CrawlConfig holds per-target politeness settings and selector overrides
type CrawlConfig struct {
	DelayMs   int               `json:"delay_ms" toml:"delay_ms" yaml:"delay_ms" validate:"gte=0"`
	UserAgent string            `json:"user_agent,omitempty" toml:"user_agent" yaml:"user_agent"`
	Selectors map[string]string `json:"selectors,omitempty" toml:"selectors" yaml:"selectors"`
}

// LastCrawl is the most recent crawl outcome written back to the target
type LastCrawl struct {
	ProductsAt   *time.Time `json:"products_at,omitempty"`
	DealsAt      *time.Time `json:"deals_at,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Delay returns the politeness interval, or fallback when none is configured
func (c CrawlConfig) Delay(fallback time.Duration) time.Duration {
	if c.DelayMs <= 0 {
		return fallback
	}
	return time.Duration(c.DelayMs) * time.Millisecond
}

// PrimaryLocation returns the first configured location, or nil
func (t *Target) PrimaryLocation() *Location {
	if len(t.Locations) == 0 {
		return nil
	}
	return &t.Locations[0]
}

// LastCrawledAt returns the last crawl time for the given kind
func (t *Target) LastCrawledAt(kind CrawlKind) *time.Time {
	if kind == CrawlKindProducts {
		return t.LastCrawl.ProductsAt
	}
	return t.LastCrawl.DealsAt
}

// RecordCrawl writes a finished crawl outcome back onto the target
func (t *Target) RecordCrawl(kind CrawlKind, success bool, errMessage string, at time.Time) {
	if kind == CrawlKindProducts {
		t.LastCrawl.ProductsAt = &at
	} else {
		t.LastCrawl.DealsAt = &at
	}

	if success {
		t.LastCrawl.Status = CrawlStatusSuccess
		t.LastCrawl.ErrorMessage = ""
	} else {
		t.LastCrawl.Status = CrawlStatusFailed
		t.LastCrawl.ErrorMessage = errMessage
	}
	t.UpdatedAt = at
}
