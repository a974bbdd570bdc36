// -----------------------------------------------------------------------
// ChromeDriver - chromedp implementation of the browser capability
// -----------------------------------------------------------------------

package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/interfaces"
)

// ChromeConfig holds the process-level browser options
type ChromeConfig struct {
	Headless       bool
	NoSandbox      bool
	ExecPath       string // Empty = let chromedp locate Chrome
	StartupTimeout time.Duration
	RenderWait     time.Duration // Extra wait after every navigation
}

// ChromeDriver launches headless Chrome through chromedp
type ChromeDriver struct {
	config ChromeConfig
	logger arbor.ILogger
}

// NewChromeDriver creates a ChromeDriver
func NewChromeDriver(config ChromeConfig, logger arbor.ILogger) *ChromeDriver {
	if config.StartupTimeout <= 0 {
		config.StartupTimeout = 30 * time.Second
	}
	return &ChromeDriver{config: config, logger: logger}
}

// Launch starts one browser process and verifies it responds
func (d *ChromeDriver) Launch(ctx context.Context) (interfaces.Browser, error) {
	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.config.Headless),
		chromedp.Flag("no-sandbox", d.config.NoSandbox),
		chromedp.Flag("disable-setuid-sandbox", d.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
	)
	if d.config.ExecPath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(d.config.ExecPath))
	}

	// The process outlives the launching request context; Close ends it
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// The first Run allocates the process under browserCtx; a timeout
	// context here would kill Chrome as soon as Launch returns
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	testCtx, testCancel := context.WithTimeout(browserCtx, d.config.StartupTimeout)
	defer testCancel()
	stop := context.AfterFunc(ctx, testCancel)
	defer stop()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	d.logger.Debug().
		Dur("startup_time", time.Since(startTime)).
		Bool("headless", d.config.Headless).
		Msg("Browser process launched")

	return &chromeBrowser{
		ctx:             browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		renderWait:      d.config.RenderWait,
		logger:          d.logger,
	}, nil
}

type chromeBrowser struct {
	ctx             context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	renderWait      time.Duration
	logger          arbor.ILogger
	closeOnce       sync.Once
}

// NewPage opens a new tab with its own user agent and viewport
func (b *chromeBrowser) NewPage(ctx context.Context, opts interfaces.PageOptions) (interfaces.Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)

	// Attach the tab on its own context so its event loop lives until Close
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	page := &chromePage{
		ctx:        tabCtx,
		cancel:     tabCancel,
		timeout:    opts.Timeout,
		renderWait: b.renderWait,
	}
	if page.timeout <= 0 {
		page.timeout = 30 * time.Second
	}

	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(opts.ViewportWidth), int64(opts.ViewportHeight)),
	}
	if opts.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(opts.UserAgent).WithAcceptLanguage("de-DE,de;q=0.9"))
	}

	if err := page.run(ctx, actions...); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to prepare page: %w", err)
	}
	return page, nil
}

func (b *chromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		// Cancelling the browser context closes Chrome gracefully
		b.browserCancel()
		b.allocatorCancel()
		b.logger.Debug().Msg("Browser process closed")
	})
	return nil
}

type chromePage struct {
	ctx        context.Context
	cancel     context.CancelFunc
	timeout    time.Duration
	renderWait time.Duration

	mu  sync.Mutex
	url string
}

// run executes actions with the page timeout, aborting early if ctx is cancelled
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(opCtx, actions...)
}

func (p *chromePage) Goto(ctx context.Context, target string) error {
	var location string
	actions := []chromedp.Action{chromedp.Navigate(target)}
	if p.renderWait > 0 {
		actions = append(actions, chromedp.Sleep(p.renderWait))
	}
	actions = append(actions, chromedp.Location(&location))

	if err := p.run(ctx, actions...); err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}

	p.setURL(location)
	return nil
}

func (p *chromePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(waitCtx, chromedp.WaitReady(selector, chromedp.ByQuery)) == nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	var location string
	if err := p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible), chromedp.Location(&location)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	p.setURL(location)
	return nil
}

func (p *chromePage) Document(ctx context.Context) (*goquery.Document, error) {
	var html, location string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery), chromedp.Location(&location)); err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	p.setURL(location)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	if u, err := url.Parse(location); err == nil {
		doc.Url = u
	}
	return doc, nil
}

func (p *chromePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *chromePage) setURL(u string) {
	if u == "" {
		return
	}
	p.mu.Lock()
	p.url = u
	p.mu.Unlock()
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
