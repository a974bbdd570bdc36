package models

import "fmt"

// CrawlKind selects which extractor a crawl run uses
type CrawlKind string

const (
	CrawlKindProducts CrawlKind = "products"
	CrawlKindDeals    CrawlKind = "deals"
)

// ParseCrawlKind validates a kind string from the CLI or an HTTP body
func ParseCrawlKind(s string) (CrawlKind, error) {
	switch CrawlKind(s) {
	case CrawlKindProducts, CrawlKindDeals:
		return CrawlKind(s), nil
	}
	return "", fmt.Errorf("invalid crawl type %q (expected products or deals)", s)
}

func (k CrawlKind) String() string {
	return string(k)
}

// UnitType is the reference quantity of a unit price
type UnitType string

const (
	UnitPiece UnitType = "piece"
	UnitKg    UnitType = "kg"
	UnitLiter UnitType = "liter"
	Unit100g  UnitType = "100g"
	Unit100ml UnitType = "100ml"
)
