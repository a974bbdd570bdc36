package interfaces

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// PageOptions configures an isolated browser page
type PageOptions struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Timeout        time.Duration // Applies to navigation and every page operation
}

// BrowserDriver launches headless browser processes
type BrowserDriver interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser is one running browser process
type Browser interface {
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	Close() error
}

// Page is the extraction capability handed to extractors: navigate, wait for
// a selector, click, and read the rendered DOM as a goquery document
type Page interface {
	Goto(ctx context.Context, url string) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) bool
	Click(ctx context.Context, selector string) error
	Document(ctx context.Context) (*goquery.Document, error)
	URL() string
	Close() error
}
