package interfaces

import (
	"context"

	"github.com/ternarybob/pricewatch/internal/models"
)

// ProductExtractor crawls a target's catalog
type ProductExtractor interface {
	Extract(ctx context.Context, target *models.Target, opts models.CrawlOptions) *models.ExtractionResult[models.RawProduct]
}

// DealExtractor crawls a target's current flyer
type DealExtractor interface {
	Extract(ctx context.Context, target *models.Target) *models.ExtractionResult[models.RawDeal]
}
