// Package browsertest provides an in-memory BrowserDriver serving static HTML
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/pricewatch/internal/interfaces"
)

// ErrNavigation is returned for URLs that are unknown or set to fail
var ErrNavigation = errors.New("navigation failed")

// Driver is a fake BrowserDriver. Pages maps absolute URLs to HTML.
// Failures maps a URL to the number of times Goto fails before succeeding
// (a negative count fails forever). Clicks maps a CSS selector to the URL
// whose HTML becomes the page content after the click.
type Driver struct {
	mu        sync.Mutex
	Pages     map[string]string
	Failures  map[string]int
	Clicks    map[string]string
	LaunchErr error

	Launches    int
	Closes      int
	Navigations []string
	PageOpts    []interfaces.PageOptions
}

// NewDriver creates a Driver with the given pages
func NewDriver(pages map[string]string) *Driver {
	return &Driver{
		Pages:    pages,
		Failures: make(map[string]int),
		Clicks:   make(map[string]string),
	}
}

// Launch implements interfaces.BrowserDriver
func (d *Driver) Launch(ctx context.Context) (interfaces.Browser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.LaunchErr != nil {
		return nil, d.LaunchErr
	}
	d.Launches++
	return &browser{driver: d}, nil
}

// NavigationCount returns how many Goto calls targeted url
func (d *Driver) NavigationCount(url string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, u := range d.Navigations {
		if u == url {
			n++
		}
	}
	return n
}

// CloseCount returns how many browsers were closed
func (d *Driver) CloseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Closes
}

func (d *Driver) goTo(target string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Navigations = append(d.Navigations, target)

	if n, ok := d.Failures[target]; ok && n != 0 {
		if n > 0 {
			d.Failures[target] = n - 1
		}
		return "", fmt.Errorf("%w: %s", ErrNavigation, target)
	}

	html, ok := d.Pages[target]
	if !ok {
		return "", fmt.Errorf("%w: %s not found", ErrNavigation, target)
	}
	return html, nil
}

type browser struct {
	driver *Driver
	closed bool
}

func (b *browser) NewPage(ctx context.Context, opts interfaces.PageOptions) (interfaces.Page, error) {
	b.driver.mu.Lock()
	defer b.driver.mu.Unlock()

	if b.closed {
		return nil, errors.New("browser closed")
	}
	b.driver.PageOpts = append(b.driver.PageOpts, opts)
	return &page{driver: b.driver}, nil
}

func (b *browser) Close() error {
	b.driver.mu.Lock()
	defer b.driver.mu.Unlock()

	if !b.closed {
		b.closed = true
		b.driver.Closes++
	}
	return nil
}

type page struct {
	driver *Driver
	url    string
	html   string
}

func (p *page) Goto(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	html, err := p.driver.goTo(target)
	if err != nil {
		return err
	}
	p.url = target
	p.html = html
	return nil
}

func (p *page) WaitFor(ctx context.Context, selector string, timeout time.Duration) bool {
	doc, err := p.Document(ctx)
	if err != nil {
		return false
	}
	return doc.Find(selector).Length() > 0
}

func (p *page) Click(ctx context.Context, selector string) error {
	p.driver.mu.Lock()
	target, ok := p.driver.Clicks[selector]
	p.driver.mu.Unlock()

	if !ok {
		return fmt.Errorf("no clickable element for %s", selector)
	}
	return p.Goto(ctx, target)
}

func (p *page) Document(ctx context.Context) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html))
	if err != nil {
		return nil, err
	}
	if u, err := url.Parse(p.url); err == nil {
		doc.Url = u
	}
	return doc, nil
}

func (p *page) URL() string {
	return p.url
}

func (p *page) Close() error {
	return nil
}
