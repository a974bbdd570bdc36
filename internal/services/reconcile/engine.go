// Package reconcile upserts extracted records into the catalog by natural key
package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/normalize"
)

// Outcome summarises one reconciliation batch
type Outcome struct {
	Created int
	Updated int
	Errors  []string
}

// Engine writes raw products and deals to storage. Records are processed
// sequentially; a failed record is reported and the batch continues.
type Engine struct {
	categories interfaces.CategoryStorage
	products   interfaces.ProductStorage
	deals      interfaces.DealStorage
	logger     arbor.ILogger
	now        func() time.Time
}

// NewEngine creates a reconciliation engine over the given storage
func NewEngine(storage interfaces.StorageManager, logger arbor.ILogger) *Engine {
	return &Engine{
		categories: storage.CategoryStorage(),
		products:   storage.ProductStorage(),
		deals:      storage.DealStorage(),
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the clock used for timestamps and deal activity
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// categoryResolver caches slug lookups for one batch. A missing category
// is a normal state and leaves the reference unset.
type categoryResolver struct {
	engine   *Engine
	targetID string
	cache    map[string]*string
}

func (e *Engine) newCategoryResolver(targetID string) *categoryResolver {
	return &categoryResolver{engine: e, targetID: targetID, cache: make(map[string]*string)}
}

func (r *categoryResolver) resolve(ctx context.Context, slug *string) *string {
	if slug == nil || *slug == "" {
		return nil
	}
	if id, ok := r.cache[*slug]; ok {
		return id
	}

	var id *string
	category, err := r.engine.categories.FindBySlug(ctx, r.targetID, *slug)
	switch {
	case err == nil:
		id = &category.ID
	case !errors.Is(err, interfaces.ErrNotFound):
		r.engine.logger.Warn().Err(err).Str("category", *slug).Msg("Category lookup failed")
	}

	r.cache[*slug] = id
	return id
}

// resolveChild finds the subcategory slug below parentID, creating it the
// first time a product links into it
func (r *categoryResolver) resolveChild(ctx context.Context, parentID, slug *string) *string {
	if parentID == nil || slug == nil || *slug == "" {
		return nil
	}
	key := *parentID + "/" + *slug
	if id, ok := r.cache[key]; ok {
		return id
	}

	var id *string
	category, err := r.engine.categories.FindChild(ctx, r.targetID, *parentID, *slug)
	switch {
	case err == nil:
		id = &category.ID
	case errors.Is(err, interfaces.ErrNotFound):
		child := &models.Category{
			TargetID: r.targetID,
			Slug:     *slug,
			Name:     categoryNameFromSlug(*slug),
			ParentID: parentID,
			IsActive: true,
		}
		if err := r.engine.categories.Save(ctx, child); err != nil {
			r.engine.logger.Warn().Err(err).Str("subcategory", *slug).Msg("Failed to create subcategory")
			break
		}
		r.engine.logger.Debug().Str("subcategory", *slug).Str("parent_id", *parentID).Msg("Subcategory created")
		id = &child.ID
	default:
		r.engine.logger.Warn().Err(err).Str("subcategory", *slug).Msg("Subcategory lookup failed")
	}

	r.cache[key] = id
	return id
}

// categoryNameFromSlug turns "frisches-gemuese" into "Frisches Gemüse"
func categoryNameFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		w = umlauts.Replace(w)
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

var umlauts = strings.NewReplacer("ae", "ä", "oe", "ö", "ue", "ü")

// UpsertProducts creates or updates products keyed by (targetID, ExternalID)
func (e *Engine) UpsertProducts(ctx context.Context, targetID string, raws []models.RawProduct) Outcome {
	var outcome Outcome
	categories := e.newCategoryResolver(targetID)

	for i := range raws {
		raw := &raws[i]
		now := e.now()
		categoryID := categories.resolve(ctx, raw.CategorySlug)
		subCategoryID := categories.resolveChild(ctx, categoryID, raw.SubCategorySlug)

		existing, err := e.products.FindByNaturalKey(ctx, targetID, raw.ExternalID)
		if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
			e.logger.Warn().Err(err).Str("external_id", raw.ExternalID).Msg("Product lookup failed")
			outcome.Errors = append(outcome.Errors, "Failed to save product: "+raw.Name)
			continue
		}

		if existing != nil {
			applyRawProduct(existing, raw)
			if categoryID != nil {
				existing.CategoryID = categoryID
			}
			if subCategoryID != nil {
				existing.SubCategoryID = subCategoryID
			}
			existing.LastSeenAt = now
			existing.UpdatedAt = now

			if err := e.products.Save(ctx, existing); err != nil {
				e.logger.Warn().Err(err).Str("external_id", raw.ExternalID).Msg("Failed to update product")
				outcome.Errors = append(outcome.Errors, "Failed to save product: "+raw.Name)
				continue
			}
			outcome.Updated++
			continue
		}

		product := &models.Product{
			TargetID:      targetID,
			ExternalID:    raw.ExternalID,
			CategoryID:    categoryID,
			SubCategoryID: subCategoryID,
			FirstSeenAt:   now,
			LastSeenAt:    now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		applyRawProduct(product, raw)

		if err := e.products.Save(ctx, product); err != nil {
			e.logger.Warn().Err(err).Str("external_id", raw.ExternalID).Msg("Failed to create product")
			outcome.Errors = append(outcome.Errors, "Failed to save product: "+raw.Name)
			continue
		}
		outcome.Created++
	}

	e.logger.Info().
		Str("target_id", targetID).
		Int("created", outcome.Created).
		Int("updated", outcome.Updated).
		Int("errors", len(outcome.Errors)).
		Msg("Products reconciled")

	return outcome
}

func applyRawProduct(p *models.Product, raw *models.RawProduct) {
	p.Name = raw.Name
	p.Brand = raw.Brand
	p.Description = raw.Description
	p.Price = raw.Price
	p.OriginalPrice = raw.OriginalPrice
	p.UnitPrice = raw.UnitPrice
	p.UnitType = raw.UnitType
	p.UnitPriceText = raw.UnitPriceText
	p.UnitQuantity = raw.UnitQuantity
	p.ImageURL = raw.ImageURL
	p.ProductURL = raw.ProductURL
	p.InStock = raw.InStock
}

// UpsertDeals first deactivates the target's expired deals, then creates or
// updates deals keyed by (targetID, ProductName, StartDate, EndDate).
// Activity is recomputed from the validity window on every write.
func (e *Engine) UpsertDeals(ctx context.Context, targetID string, raws []models.RawDeal) Outcome {
	var outcome Outcome

	if swept, err := e.deals.DeactivateExpired(ctx, targetID, startOfDay(e.now())); err != nil {
		e.logger.Warn().Err(err).Str("target_id", targetID).Msg("Expired deal sweep failed")
		outcome.Errors = append(outcome.Errors, "Failed to deactivate expired deals: "+err.Error())
	} else if swept > 0 {
		e.logger.Info().Str("target_id", targetID).Int("count", swept).Msg("Expired deals deactivated")
	}

	categories := e.newCategoryResolver(targetID)

	for i := range raws {
		raw := &raws[i]
		now := e.now()
		categoryID := categories.resolve(ctx, raw.CategorySlug)

		existing, err := e.deals.FindByNaturalKey(ctx, targetID, raw.ProductName, raw.StartDate, raw.EndDate)
		if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
			e.logger.Warn().Err(err).Str("deal", raw.ProductName).Msg("Deal lookup failed")
			outcome.Errors = append(outcome.Errors, "Failed to save deal: "+raw.ProductName)
			continue
		}

		deal := existing
		if deal == nil {
			deal = &models.Deal{
				TargetID:    targetID,
				ProductName: raw.ProductName,
				StartDate:   raw.StartDate,
				EndDate:     raw.EndDate,
				CreatedAt:   now,
			}
		}

		applyRawDeal(deal, raw)
		if categoryID != nil || existing == nil {
			deal.CategoryID = categoryID
		}
		deal.IsActive = normalize.IsDealActive(raw.StartDate, raw.EndDate, now)
		deal.UpdatedAt = now

		if err := e.deals.Save(ctx, deal); err != nil {
			e.logger.Warn().Err(err).Str("deal", raw.ProductName).Msg("Failed to save deal")
			outcome.Errors = append(outcome.Errors, "Failed to save deal: "+raw.ProductName)
			continue
		}

		if existing != nil {
			outcome.Updated++
		} else {
			outcome.Created++
		}
	}

	e.logger.Info().
		Str("target_id", targetID).
		Int("created", outcome.Created).
		Int("updated", outcome.Updated).
		Int("errors", len(outcome.Errors)).
		Msg("Deals reconciled")

	return outcome
}

// applyRawDeal copies the mutable fields; an explicit discount wins over
// one computed from the price delta
func applyRawDeal(d *models.Deal, raw *models.RawDeal) {
	d.Brand = raw.Brand
	d.Description = raw.Description
	d.DealPrice = raw.DealPrice
	d.OriginalPrice = raw.OriginalPrice
	d.UnitPrice = raw.UnitPrice
	d.UnitType = raw.UnitType
	d.ImageURL = raw.ImageURL
	d.Conditions = raw.Conditions
	d.LocationSlug = raw.LocationSlug
	d.Source = raw.Source
	d.SourceRef = raw.SourceRef
	d.SourceURL = raw.SourceURL

	d.DiscountPercent = raw.DiscountPercent
	if d.DiscountPercent == nil {
		d.DiscountPercent = normalize.CalculateDiscount(raw.OriginalPrice, raw.DealPrice)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
