package extractor

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/normalize"
	"github.com/ternarybob/pricewatch/internal/services/browser"
)

// flyerPageRef points at one flyer page, either by URL or by page index control
type flyerPageRef struct {
	URL   string
	Index string // data-page value
}

// DealExtractor reads the current flyer of a target
type DealExtractor struct {
	driver interfaces.BrowserDriver
	config Config
	logger arbor.ILogger
}

var _ interfaces.DealExtractor = (*DealExtractor)(nil)

// NewDealExtractor creates a deal extractor; each Extract call owns its own browser
func NewDealExtractor(driver interfaces.BrowserDriver, config Config, logger arbor.ILogger) *DealExtractor {
	return &DealExtractor{
		driver: driver,
		config: config.withDefaults(),
		logger: logger,
	}
}

// Extract loads the flyer, determines its validity window and reads deal
// cards page by page. If no page yields a deal, the currently loaded page is
// read once more so a selector mismatch on page discovery still produces output.
func (e *DealExtractor) Extract(ctx context.Context, target *models.Target) (result *models.ExtractionResult[models.RawDeal]) {
	result = &models.ExtractionResult[models.RawDeal]{}

	defer func() {
		if r := recover(); r != nil {
			result.Errorf("Crawler error: %v", r)
		}
	}()

	flyerURL := target.FlyerURL
	var locationSlug *string
	if loc := target.PrimaryLocation(); loc != nil {
		if loc.FlyerURL != "" {
			flyerURL = loc.FlyerURL
		}
		if loc.Slug != "" {
			slug := loc.Slug
			locationSlug = &slug
		}
	}
	if flyerURL == "" {
		result.Errorf("Target %s has no flyer URL", target.Slug)
		return result
	}

	session := browser.NewSession(e.driver, e.config.Session.ForTarget(target.CrawlConfig), e.logger)
	if err := session.Open(ctx); err != nil {
		result.Errorf("Crawler error: %v", err)
		return result
	}
	defer session.Close()

	page, err := session.NewPage(ctx)
	if err != nil {
		result.Errorf("Crawler error: %v", err)
		return result
	}
	defer page.Close()

	selectors := mergeSelectors(defaultDealSelectors, target.CrawlConfig.Selectors)

	if !session.Navigate(ctx, page, flyerURL, 0) {
		result.Errorf("Failed to load flyer: %s", flyerURL)
		return result
	}
	if err := session.Delay(ctx, e.config.SettleDelay); err != nil {
		result.Errorf("Crawl cancelled: %v", err)
		return result
	}

	doc, err := page.Document(ctx)
	if err != nil {
		result.Errorf("Failed to read flyer: %v", err)
		return result
	}

	start, end := validityRange(doc, selectors, e.config.Now())
	week := normalize.FormatCalendarWeek(start)
	pages := flyerPages(doc, selectors, flyerURL)

	e.logger.Info().
		Str("target", target.Slug).
		Str("week", week).
		Int("pages", len(pages)).
		Msg("Reading flyer")

	card := dealCardContext{
		start:        start,
		end:          end,
		locationSlug: locationSlug,
	}

	for i, ref := range pages {
		if ctx.Err() != nil {
			result.Errorf("Crawl cancelled: %v", ctx.Err())
			break
		}

		if i > 0 {
			if err := session.Delay(ctx); err != nil {
				result.Errorf("Crawl cancelled: %v", err)
				break
			}
			if !e.openPage(ctx, session, page, ref, result) {
				continue
			}
		} else if ref.URL != "" && ref.URL != page.URL() {
			if !e.openPage(ctx, session, page, ref, result) {
				continue
			}
		}

		page.WaitFor(ctx, selectors.Get(RoleDealCard), e.config.SelectorWait)
		pageDoc, err := page.Document(ctx)
		if err != nil {
			result.Errorf("Failed to read flyer page %d: %v", i+1, err)
			continue
		}

		card.sourceRef = fmt.Sprintf("%s Seite %d", week, i+1)
		e.extractPage(pageDoc, selectors, card, result)
		result.PagesProcessed++
	}

	// Fall back to whatever is on screen, unless that page was already read
	if len(result.Items) == 0 && result.PagesProcessed == 0 {
		pageDoc, err := page.Document(ctx)
		if err != nil {
			result.Errorf("Failed to read flyer: %v", err)
			return result
		}
		card.sourceRef = fmt.Sprintf("%s Seite 1", week)
		e.extractPage(pageDoc, selectors, card, result)
		result.PagesProcessed = 1
	}

	return result
}

// openPage moves the page to ref, by navigation for links or by clicking the
// page index control
func (e *DealExtractor) openPage(ctx context.Context, session *browser.Session, page interfaces.Page, ref flyerPageRef, result *models.ExtractionResult[models.RawDeal]) bool {
	if ref.URL != "" {
		if !session.Navigate(ctx, page, ref.URL, 0) {
			result.Errorf("Failed to load flyer page: %s", ref.URL)
			return false
		}
		return true
	}

	selector := fmt.Sprintf(`[data-page="%s"]`, ref.Index)
	if err := page.Click(ctx, selector); err != nil {
		result.Errorf("Failed to open flyer page %s: %v", ref.Index, err)
		return false
	}
	if err := session.Delay(ctx, e.config.ClickDelay); err != nil {
		result.Errorf("Crawl cancelled: %v", err)
		return false
	}
	return true
}

// validityRange reads "03.12. - 09.12." style text, falling back to the
// current ISO week
func validityRange(doc *goquery.Document, selectors Selectors, now time.Time) (time.Time, time.Time) {
	text := findText(doc.Selection, selectors.Get(RoleValidity))
	if start, end, ok := normalize.ParseValidityRange(text, now); ok {
		return start, end
	}
	return normalize.WeekRange(now)
}

// flyerPages lists page refs in document order. With no page controls the
// flyer itself is the only page.
func flyerPages(doc *goquery.Document, selectors Selectors, flyerURL string) []flyerPageRef {
	seen := make(map[string]bool)
	var pages []flyerPageRef

	doc.Find(selectors.Get(RoleFlyerPage)).Each(func(_ int, s *goquery.Selection) {
		var ref flyerPageRef
		if href, ok := s.Attr("href"); ok && strings.TrimSpace(href) != "" {
			abs, err := resolveURL(doc.Url, href)
			if err != nil {
				return
			}
			ref.URL = abs
		} else if idx, ok := s.Attr("data-page"); ok && strings.TrimSpace(idx) != "" {
			ref.Index = strings.TrimSpace(idx)
		} else {
			return
		}

		key := ref.URL + "#" + ref.Index
		if seen[key] {
			return
		}
		seen[key] = true
		pages = append(pages, ref)
	})

	if len(pages) == 0 {
		pages = append(pages, flyerPageRef{URL: flyerURL})
	}
	return pages
}

type dealCardContext struct {
	start        time.Time
	end          time.Time
	locationSlug *string
	sourceRef    string
}

func (e *DealExtractor) extractPage(doc *goquery.Document, selectors Selectors, card dealCardContext, result *models.ExtractionResult[models.RawDeal]) {
	doc.Find(selectors.Get(RoleDealCard)).Each(func(_ int, s *goquery.Selection) {
		deal, ok, err := e.extractCard(s, doc.Url, selectors, card)
		if err != nil {
			result.Errorf("Failed to extract deal on %s: %v", card.sourceRef, err)
			return
		}
		if ok {
			result.Items = append(result.Items, deal)
		}
	})
}

// extractCard maps one deal card. Cards without a name or a parseable price are dropped.
func (e *DealExtractor) extractCard(s *goquery.Selection, base *url.URL, selectors Selectors, card dealCardContext) (deal models.RawDeal, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("%v", r)
		}
	}()

	name := findText(s, selectors.Get(RoleDealName))
	if name == "" {
		return deal, false, nil
	}
	price, perr := normalize.ParsePrice(findText(s, selectors.Get(RoleDealPrice)))
	if perr != nil || price <= 0 {
		return deal, false, nil
	}

	sourceRef := card.sourceRef
	deal = models.RawDeal{
		ProductName:  name,
		Brand:        brandFromName(name),
		DealPrice:    price,
		StartDate:    card.start,
		EndDate:      card.end,
		Conditions:   optionalString(findText(s, selectors.Get(RoleConditions))),
		LocationSlug: card.locationSlug,
		Source:       models.DealSourceFlyer,
		SourceRef:    &sourceRef,
	}

	categorySlug := categorySlugFromText(findText(s, selectors.Get(RoleCategory)))
	deal.CategorySlug = &categorySlug

	if base != nil {
		sourceURL := base.String()
		deal.SourceURL = &sourceURL
	}

	if original, err := normalize.ParsePrice(findText(s, selectors.Get(RoleOriginalPrice))); err == nil && original > 0 {
		deal.OriginalPrice = &original
	}

	deal.DiscountPercent = normalize.ParseDiscountText(findText(s, selectors.Get(RoleDiscount)))
	if deal.DiscountPercent == nil {
		deal.DiscountPercent = normalize.CalculateDiscount(deal.OriginalPrice, price)
	}

	deal.UnitType = unitTypeOf(models.UnitPiece)
	if unit, found := normalize.ParseUnitPrice(findText(s, selectors.Get(RoleDealUnitPrice))); found {
		deal.UnitPrice = &unit.Cents
		deal.UnitType = &unit.UnitType
	}

	// The image is optional; a bad src never costs the deal
	if src := findAttr(s, selectors.Get(RoleDealImage), "src", "data-src"); src != "" {
		if img, err := resolveURL(base, src); err == nil {
			deal.ImageURL = &img
		}
	}

	return deal, true, nil
}
