package extractor

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/pricewatch/internal/models"
)

var (
	whitespacePat = regexp.MustCompile(`\s+`)
	numericPat    = regexp.MustCompile(`^\d+$`)
	pageTotalPat  = regexp.MustCompile(`(?i)\d+\s*(?:von|of|/)\s*(\d+)`)
	brandPat      = regexp.MustCompile(`^([A-Z][a-zA-Z&\s]+?)\s+`)
)

// cleanText trims and collapses whitespace
func cleanText(s string) string {
	return strings.TrimSpace(whitespacePat.ReplaceAllString(s, " "))
}

// findText returns the cleaned text of the first match of selector under sel
func findText(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return cleanText(sel.Find(selector).First().Text())
}

// findAttr returns an attribute of the first match of selector under sel
func findAttr(sel *goquery.Selection, selector string, attrs ...string) string {
	if selector == "" {
		return ""
	}
	node := sel.Find(selector).First()
	for _, attr := range attrs {
		if v, ok := node.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// resolveURL makes href absolute against base
func resolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("malformed link %q: %w", href, err)
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

// pathSegments splits a URL path into its non-empty segments
func pathSegments(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var segments []string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

// numericSegment returns the first purely numeric path segment of a URL
func numericSegment(rawURL string) string {
	for _, seg := range pathSegments(rawURL) {
		if numericPat.MatchString(seg) {
			return seg
		}
	}
	return ""
}

// segmentAfter returns the path segment following marker, or ""
func segmentAfter(rawURL, marker string) string {
	segments := pathSegments(rawURL)
	for i, seg := range segments {
		if seg == marker && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}

// subcategoryFromPath reads the subcategory of a product link shaped like
// /<marker>/<category>/<subcategory>/.../<id>. Links outside the category or
// without a non-numeric second segment yield "".
func subcategoryFromPath(rawURL, marker, categorySlug string) string {
	segments := pathSegments(rawURL)
	for i, seg := range segments {
		if seg != marker {
			continue
		}
		rest := segments[i+1:]
		if len(rest) < 3 || rest[0] != categorySlug || numericPat.MatchString(rest[1]) {
			return ""
		}
		return rest[1]
	}
	return ""
}

// withPageParam returns rawURL with its page query parameter set to n
func withPageParam(rawURL string, n int) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// pageCount reads a total page count from data-total-pages or the number
// after "von"/"of"/"/" in the element text ("Seite 1 von 12"). Other numbers
// such as item counts are ignored; 0 means unknown.
func pageCount(sel *goquery.Selection) int {
	if sel.Length() == 0 {
		return 0
	}
	if v, ok := sel.Attr("data-total-pages"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}

	if m := pageTotalPat.FindStringSubmatch(sel.Text()); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}

// brandFromName takes a leading capitalised word group as the brand, e.g. "Milka Alpenmilch"
func brandFromName(name string) *string {
	m := brandPat.FindStringSubmatch(name)
	if m == nil {
		return nil
	}
	brand := strings.TrimSpace(m[1])
	if brand == "" {
		return nil
	}
	return &brand
}

// slugify lowercases text and joins words with dashes
func slugify(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), "-")
}

// categorySlugFromText derives a category slug from card text, defaulting to "sonstiges"
func categorySlugFromText(text string) string {
	if slug := slugify(text); slug != "" {
		return slug
	}
	return models.DefaultCategorySlug
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func unitTypeOf(u models.UnitType) *models.UnitType {
	return &u
}
