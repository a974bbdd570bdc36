package extractor

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/normalize"
	"github.com/ternarybob/pricewatch/internal/services/browser"
)

// catalogMarker is the path segment that precedes category slugs when a
// target has no location
const catalogMarker = "sortiment"

type categoryPage struct {
	Slug   string
	URL    string
	Marker string // Path segment preceding Slug in catalog URLs
}

// ProductExtractor walks a target's catalog category by category
type ProductExtractor struct {
	driver interfaces.BrowserDriver
	config Config
	logger arbor.ILogger
}

var _ interfaces.ProductExtractor = (*ProductExtractor)(nil)

// NewProductExtractor creates a product extractor; each Extract call owns its own browser
func NewProductExtractor(driver interfaces.BrowserDriver, config Config, logger arbor.ILogger) *ProductExtractor {
	return &ProductExtractor{
		driver: driver,
		config: config.withDefaults(),
		logger: logger,
	}
}

// Extract crawls every product category of the target, or only
// opts.CategorySlug when set. It never returns nil and never panics;
// failures are recorded in the result's Errors.
func (e *ProductExtractor) Extract(ctx context.Context, target *models.Target, opts models.CrawlOptions) (result *models.ExtractionResult[models.RawProduct]) {
	result = &models.ExtractionResult[models.RawProduct]{}

	defer func() {
		if r := recover(); r != nil {
			result.Errorf("Crawler error: %v", r)
		}
	}()

	if target.ProductCatalogURL == "" {
		result.Errorf("Target %s has no product catalog URL", target.Slug)
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

	selectors := mergeSelectors(defaultProductSelectors, target.CrawlConfig.Selectors)

	if !session.Navigate(ctx, page, target.ProductCatalogURL, 0) {
		result.Errorf("Failed to load catalog page: %s", target.ProductCatalogURL)
		return result
	}

	doc, err := page.Document(ctx)
	if err != nil {
		result.Errorf("Failed to read catalog page: %v", err)
		return result
	}

	categories := e.discoverCategories(doc, target, selectors)
	if opts.CategorySlug != "" {
		categories = filterCategory(categories, opts.CategorySlug)
		if len(categories) == 0 {
			result.Errorf("Category not found: %s", opts.CategorySlug)
			return result
		}
	}

	e.logger.Info().
		Str("target", target.Slug).
		Int("categories", len(categories)).
		Msg("Discovered product categories")

	for i, category := range categories {
		if ctx.Err() != nil {
			result.Errorf("Crawl cancelled: %v", ctx.Err())
			break
		}
		if i > 0 {
			if err := session.Delay(ctx); err != nil {
				result.Errorf("Crawl cancelled: %v", err)
				break
			}
		}

		before := len(result.Items)
		e.crawlCategory(ctx, session, page, category, selectors, result)

		e.logger.Debug().
			Str("target", target.Slug).
			Str("category", category.Slug).
			Int("products", len(result.Items)-before).
			Msg("Category crawled")
	}

	return result
}

// discoverCategories collects category links below the target's location
// segment, deduplicated by slug, in document order
func (e *ProductExtractor) discoverCategories(doc *goquery.Document, target *models.Target, selectors Selectors) []categoryPage {
	marker := catalogMarker
	if loc := target.PrimaryLocation(); loc != nil && loc.Slug != "" {
		marker = loc.Slug
	}

	seen := make(map[string]bool)
	var categories []categoryPage

	doc.Find(selectors.Get(RoleCategoryLink)).Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		abs, err := resolveURL(doc.Url, href)
		if err != nil {
			return
		}
		slug := segmentAfter(abs, marker)
		if slug == "" || seen[slug] || e.config.excluded(slug) {
			return
		}
		seen[slug] = true
		categories = append(categories, categoryPage{Slug: slug, URL: abs, Marker: marker})
	})

	return categories
}

func filterCategory(categories []categoryPage, slug string) []categoryPage {
	for _, c := range categories {
		if c.Slug == slug {
			return []categoryPage{c}
		}
	}
	return nil
}

// crawlCategory extracts every page of one category. Pages are numbered by
// the page-count indicator when present, otherwise next links are followed.
func (e *ProductExtractor) crawlCategory(ctx context.Context, session *browser.Session, page interfaces.Page, category categoryPage, selectors Selectors, result *models.ExtractionResult[models.RawProduct]) {
	index := 0

	doc, ok := e.loadListing(ctx, session, page, category.URL, selectors, result)
	if !ok {
		return
	}
	e.extractListing(doc, category, selectors, &index, result)

	total := pageCount(doc.Find(selectors.Get(RolePageCount)).First())
	if total > 1 {
		last := min(total, e.config.MaxPages)
		for n := 2; n <= last; n++ {
			pageURL, err := withPageParam(category.URL, n)
			if err != nil {
				result.Errorf("Malformed category URL %s: %v", category.URL, err)
				return
			}
			if err := session.Delay(ctx); err != nil {
				result.Errorf("Crawl cancelled: %v", err)
				return
			}
			doc, ok := e.loadListing(ctx, session, page, pageURL, selectors, result)
			if !ok {
				continue
			}
			e.extractListing(doc, category, selectors, &index, result)
		}
		return
	}

	visited := map[string]bool{category.URL: true}
	for pages := 1; pages < e.config.MaxPages; pages++ {
		href := findAttr(doc.Selection, selectors.Get(RoleNextPage), "href")
		if href == "" {
			return
		}
		next, err := resolveURL(doc.Url, href)
		if err != nil || visited[next] {
			return
		}
		visited[next] = true

		if err := session.Delay(ctx); err != nil {
			result.Errorf("Crawl cancelled: %v", err)
			return
		}
		doc, ok = e.loadListing(ctx, session, page, next, selectors, result)
		if !ok {
			return
		}
		e.extractListing(doc, category, selectors, &index, result)
	}
}

func (e *ProductExtractor) loadListing(ctx context.Context, session *browser.Session, page interfaces.Page, pageURL string, selectors Selectors, result *models.ExtractionResult[models.RawProduct]) (*goquery.Document, bool) {
	if !session.Navigate(ctx, page, pageURL, 0) {
		result.Errorf("Failed to load page: %s", pageURL)
		return nil, false
	}

	if !page.WaitFor(ctx, selectors.Get(RoleProductCard), e.config.SelectorWait) {
		e.logger.Debug().Str("url", pageURL).Msg("No product cards rendered")
	}

	doc, err := page.Document(ctx)
	if err != nil {
		result.Errorf("Failed to read page %s: %v", pageURL, err)
		return nil, false
	}

	result.PagesProcessed++
	return doc, true
}

// extractListing reads every card on one listing page. index continues
// across the pages of a category so synthetic ids stay unique.
func (e *ProductExtractor) extractListing(doc *goquery.Document, category categoryPage, selectors Selectors, index *int, result *models.ExtractionResult[models.RawProduct]) {
	doc.Find(selectors.Get(RoleProductCard)).Each(func(_ int, card *goquery.Selection) {
		*index++
		product, ok, err := e.extractCard(card, doc.Url, category, *index, selectors)
		if err != nil {
			result.Errorf("Failed to extract product in %s: %v", category.Slug, err)
			return
		}
		if ok {
			result.Items = append(result.Items, product)
		}
	})
}

// extractCard maps one product card. Cards without a name or a positive
// price are skipped without error.
func (e *ProductExtractor) extractCard(card *goquery.Selection, base *url.URL, category categoryPage, index int, selectors Selectors) (product models.RawProduct, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("%v", r)
		}
	}()

	name := findText(card, selectors.Get(RoleProductName))
	if name == "" {
		return product, false, nil
	}
	price, perr := normalize.ParsePrice(findText(card, selectors.Get(RoleProductPrice)))
	if perr != nil || price <= 0 {
		return product, false, nil
	}

	categorySlug := category.Slug
	product = models.RawProduct{
		Name:         name,
		Price:        price,
		Brand:        optionalString(findText(card, selectors.Get(RoleProductBrand))),
		CategorySlug: &categorySlug,
		InStock:      !matchesSelf(card, selectors.Get(RoleOutOfStock)),
	}

	if href := findAttr(card, selectors.Get(RoleProductLink), "href"); href != "" {
		link, err := resolveURL(base, href)
		if err != nil {
			return product, false, err
		}
		product.ProductURL = &link
		product.SubCategorySlug = optionalString(subcategoryFromPath(link, category.Marker, categorySlug))
	}

	if src := findAttr(card, selectors.Get(RoleProductImage), "src", "data-src"); src != "" {
		if img, err := resolveURL(base, src); err == nil {
			product.ImageURL = &img
		}
	}

	if original, err := normalize.ParsePrice(findText(card, selectors.Get(RoleOriginalPrice))); err == nil && original > 0 {
		product.OriginalPrice = &original
	}

	unitText := findText(card, selectors.Get(RoleUnitPrice))
	product.UnitPriceText = optionalString(unitText)
	product.UnitType = unitTypeOf(models.UnitPiece)
	if unit, found := normalize.ParseUnitPrice(unitText); found {
		product.UnitPrice = &unit.Cents
		product.UnitType = &unit.UnitType
	}

	product.ExternalID = externalID(card, selectors.Get(RoleProductIDAttr), product.ProductURL, categorySlug, index)
	return product, true, nil
}

// externalID prefers the id data attribute, then a numeric segment of the
// product link, then a synthetic <category>-<index>
func externalID(card *goquery.Selection, attr string, productURL *string, categorySlug string, index int) string {
	if attr != "" {
		if v, ok := card.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if v, ok := card.Find("[" + attr + "]").First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if productURL != nil {
		if seg := numericSegment(*productURL); seg != "" {
			return seg
		}
	}
	return fmt.Sprintf("%s-%d", categorySlug, index)
}

// matchesSelf reports whether the card or one of its descendants matches selector
func matchesSelf(card *goquery.Selection, selector string) bool {
	if selector == "" {
		return false
	}
	return card.Is(selector) || card.Find(selector).Length() > 0
}
