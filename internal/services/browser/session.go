package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
)

// ErrSessionClosed is returned when a page is requested from a session that is not open
var ErrSessionClosed = errors.New("browser session is not open")

// SessionConfig holds the defaults a session applies to its pages
type SessionConfig struct {
	UserAgent          string
	Delay              time.Duration // Politeness delay between navigations
	Timeout            time.Duration // Navigation and operation timeout per page
	NavigationAttempts int
	ViewportWidth      int
	ViewportHeight     int
}

// ForTarget returns a copy with the target's user agent and delay applied
func (c SessionConfig) ForTarget(crawl models.CrawlConfig) SessionConfig {
	if crawl.UserAgent != "" {
		c.UserAgent = crawl.UserAgent
	}
	c.Delay = crawl.Delay(c.Delay)
	return c
}

// Session owns one browser process for the duration of one crawl
type Session struct {
	driver interfaces.BrowserDriver
	config SessionConfig
	logger arbor.ILogger
	sleep  func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	browser interfaces.Browser
}

// NewSession creates a session; no browser is started until Open
func NewSession(driver interfaces.BrowserDriver, config SessionConfig, logger arbor.ILogger) *Session {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.NavigationAttempts <= 0 {
		config.NavigationAttempts = 3
	}
	if config.ViewportWidth <= 0 || config.ViewportHeight <= 0 {
		config.ViewportWidth, config.ViewportHeight = 1920, 1080
	}
	return &Session{
		driver: driver,
		config: config,
		logger: logger,
		sleep:  SleepContext,
	}
}

// Open launches the browser process; calling it on an open session is a no-op
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		return nil
	}

	b, err := s.driver.Launch(ctx)
	if err != nil {
		return err
	}
	s.browser = b
	return nil
}

// Close terminates the browser process. Safe to call repeatedly or without Open.
func (s *Session) Close() error {
	s.mu.Lock()
	b := s.browser
	s.browser = nil
	s.mu.Unlock()

	if b == nil {
		return nil
	}
	return b.Close()
}

// IsOpen reports whether a browser process is held
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.browser != nil
}

// NewPage creates an isolated page with the session user agent, a fixed
// viewport and the configured timeouts
func (s *Session) NewPage(ctx context.Context) (interfaces.Page, error) {
	s.mu.Lock()
	b := s.browser
	s.mu.Unlock()

	if b == nil {
		return nil, ErrSessionClosed
	}

	return b.NewPage(ctx, interfaces.PageOptions{
		UserAgent:      s.config.UserAgent,
		ViewportWidth:  s.config.ViewportWidth,
		ViewportHeight: s.config.ViewportHeight,
		Timeout:        s.config.Timeout,
	})
}

// Navigate loads url into page, retrying failed attempts after attempt × delay.
// It reports failure instead of returning an error so callers can record a
// partial failure and continue. maxAttempts <= 0 uses the configured default.
func (s *Session) Navigate(ctx context.Context, page interfaces.Page, url string, maxAttempts int) bool {
	if maxAttempts <= 0 {
		maxAttempts = s.config.NavigationAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := page.Goto(ctx, url)
		if err == nil {
			return true
		}

		s.logger.Warn().
			Err(err).
			Str("url", url).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Msg("Navigation failed")

		if attempt == maxAttempts {
			break
		}

		backoff := time.Duration(attempt) * s.config.Delay
		if err := s.sleep(ctx, backoff); err != nil {
			return false
		}
	}

	return false
}

// Delay waits for the politeness interval, or the given override
func (s *Session) Delay(ctx context.Context, override ...time.Duration) error {
	d := s.config.Delay
	if len(override) > 0 {
		d = override[0]
	}
	return s.sleep(ctx, d)
}

// Config returns the effective session configuration
func (s *Session) Config() SessionConfig {
	return s.config
}

// SleepContext waits for d or until ctx is cancelled
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
