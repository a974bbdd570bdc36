// Package extractor reads raw products and deals from rendered retailer pages
package extractor

import (
	"time"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/services/browser"
)

// Config controls page discovery and pacing for both extractors
type Config struct {
	Session           browser.SessionConfig
	ExcludeCategories []string
	SelectorWait      time.Duration // How long to wait for cards to render
	MaxPages          int           // Page cap per category or flyer
	SettleDelay       time.Duration // Wait after loading a flyer before reading it
	ClickDelay        time.Duration // Wait after clicking a flyer page control
	Now               func() time.Time
}

// NewConfig derives extractor settings from the application config
func NewConfig(c *common.Config) Config {
	return Config{
		Session: browser.SessionConfig{
			UserAgent:          c.Crawler.UserAgent,
			Delay:              c.CrawlDelay(),
			Timeout:            c.RequestTimeout(),
			NavigationAttempts: c.Crawler.NavigationAttempts,
			ViewportWidth:      c.Crawler.ViewportWidth,
			ViewportHeight:     c.Crawler.ViewportHeight,
		},
		ExcludeCategories: c.Crawler.ExcludeCategories,
		SelectorWait:      c.SelectorWait(),
		MaxPages:          c.Crawler.MaxPages,
		SettleDelay:       c.RenderWait(),
		ClickDelay:        time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.SelectorWait <= 0 {
		c.SelectorWait = 10 * time.Second
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.ClickDelay < 0 {
		c.ClickDelay = 0
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func (c Config) excluded(slug string) bool {
	for _, ex := range c.ExcludeCategories {
		if ex == slug {
			return true
		}
	}
	return false
}
