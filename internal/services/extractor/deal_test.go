package extractor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/services/browser/browsertest"
)

const (
	flyerURL   = "https://shop.test/filiale-a/prospekt"
	flyerPage2 = "https://shop.test/filiale-a/prospekt/2"
)

const flyerHTML = `<html><body>
<p class="validity">Gültig vom 02.12. - 07.12.</p>
<div class="flyer-page" data-page="1"></div>
<div class="flyer-page" data-page="2"></div>
<div class="deal-card">
  <span class="deal-name">Milka Alpenmilch Schokolade</span>
  <span class="deal-price">0,99 €</span>
  <span class="original-price">1,49 €</span>
  <span class="discount">-40%</span>
  <span class="category">Süßwaren</span>
  <div class="deal-image"><img src="/img/milka.jpg"></div>
</div>
<div class="deal-card">
  <span class="deal-name">Frische Bio Eier</span>
  <span class="deal-price">2,49 €</span>
  <span class="original-price">2,99 €</span>
  <span class="conditions">Nur mit Kundenkarte</span>
</div>
</body></html>`

const flyerPage2HTML = `<html><body>
<div class="deal-card"><span class="deal-name">Kaffee</span><span class="deal-price">Aktion</span></div>
<div class="deal-card">
  <span class="deal-name">Butter</span>
  <span class="deal-price">1,79 €</span>
  <span class="category">Milch Produkte</span>
  <span class="unit-price">7,16 € / 1 kg</span>
</div>
</body></html>`

var dealNow = time.Date(2025, time.December, 3, 10, 0, 0, 0, time.Local)

func newTestDealExtractor(driver *browsertest.Driver) *DealExtractor {
	return NewDealExtractor(driver, Config{
		Now: func() time.Time { return dealNow },
	}, arbor.NewLogger())
}

func newFlyerTarget() *models.Target {
	return &models.Target{
		ID:       "tgt_test",
		Slug:     "testmarkt",
		FlyerURL: "https://shop.test/prospekt",
		IsActive: true,
		Locations: []models.Location{
			{Name: "Filiale A", Slug: "filiale-a", FlyerURL: flyerURL},
		},
	}
}

func dealsByName(items []models.RawDeal) map[string]models.RawDeal {
	byName := make(map[string]models.RawDeal, len(items))
	for _, d := range items {
		byName[d.ProductName] = d
	}
	return byName
}

func TestDealExtractor_ReadsAllFlyerPages(t *testing.T) {
	driver := browsertest.NewDriver(map[string]string{
		flyerURL:   flyerHTML,
		flyerPage2: flyerPage2HTML,
	})
	driver.Clicks[`[data-page="2"]`] = flyerPage2
	extractor := newTestDealExtractor(driver)

	result := extractor.Extract(context.Background(), newFlyerTarget())

	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, result.PagesProcessed)
	require.Len(t, result.Items, 3)
	assert.Zero(t, driver.NavigationCount("https://shop.test/prospekt"), "location flyer takes precedence")

	byName := dealsByName(result.Items)
	start := time.Date(2025, time.December, 2, 0, 0, 0, 0, time.Local)
	end := time.Date(2025, time.December, 7, 0, 0, 0, 0, time.Local)

	milka := byName["Milka Alpenmilch Schokolade"]
	assert.Equal(t, int64(99), milka.DealPrice)
	assert.True(t, milka.StartDate.Equal(start))
	assert.True(t, milka.EndDate.Equal(end))
	require.NotNil(t, milka.DiscountPercent)
	assert.Equal(t, 40, *milka.DiscountPercent, "explicit discount wins over the computed one")
	require.NotNil(t, milka.Brand)
	assert.Equal(t, "Milka", *milka.Brand)
	assert.Equal(t, "süßwaren", *milka.CategorySlug)
	assert.Equal(t, "https://shop.test/img/milka.jpg", *milka.ImageURL)
	assert.Equal(t, models.DealSourceFlyer, milka.Source)
	assert.Equal(t, "KW49 Seite 1", *milka.SourceRef)
	assert.Equal(t, "filiale-a", *milka.LocationSlug)

	eggs := byName["Frische Bio Eier"]
	require.NotNil(t, eggs.DiscountPercent)
	assert.Equal(t, 17, *eggs.DiscountPercent, "discount computed from price delta")
	assert.Equal(t, "Nur mit Kundenkarte", *eggs.Conditions)
	assert.Equal(t, models.DefaultCategorySlug, *eggs.CategorySlug)

	butter := byName["Butter"]
	assert.Nil(t, butter.DiscountPercent)
	assert.Equal(t, "milch-produkte", *butter.CategorySlug)
	assert.Equal(t, "KW49 Seite 2", *butter.SourceRef)
	assert.Equal(t, flyerPage2, *butter.SourceURL)
	require.NotNil(t, butter.UnitType)
	assert.Equal(t, models.UnitKg, *butter.UnitType)

	assert.NotContains(t, byName, "Kaffee", "unparseable price drops the deal")
}

func TestDealExtractor_ValidityFallsBackToCurrentWeek(t *testing.T) {
	driver := browsertest.NewDriver(map[string]string{
		flyerURL: `<div class="deal-card"><h3>Bananen</h3><span class="deal-price">1,11 €</span></div>`,
	})
	extractor := newTestDealExtractor(driver)

	result := extractor.Extract(context.Background(), newFlyerTarget())

	assert.Empty(t, result.Errors)
	require.Len(t, result.Items, 1)
	deal := result.Items[0]
	assert.True(t, deal.StartDate.Equal(time.Date(2025, time.December, 1, 0, 0, 0, 0, time.Local)))
	assert.True(t, deal.EndDate.Equal(time.Date(2025, time.December, 7, 0, 0, 0, 0, time.Local)))
	assert.Equal(t, 1, driver.NavigationCount(flyerURL), "the flyer itself is the only page")
}

func TestDealExtractor_FallsBackToLoadedPage(t *testing.T) {
	driver := browsertest.NewDriver(map[string]string{
		flyerURL: `<html><body>
<a class="flyer-page" href="/filiale-a/prospekt/seite-1">1</a>
<a class="flyer-page" href="/filiale-a/prospekt/seite-2">2</a>
<div class="offer-card"><h2>Joghurt</h2><span class="offer-price">0,45 €</span></div>
</body></html>`,
	})
	driver.Failures["https://shop.test/filiale-a/prospekt/seite-1"] = -1
	driver.Failures["https://shop.test/filiale-a/prospekt/seite-2"] = -1
	extractor := newTestDealExtractor(driver)

	result := extractor.Extract(context.Background(), newFlyerTarget())

	assert.Len(t, result.Errors, 2)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "Joghurt", result.Items[0].ProductName)
	assert.Equal(t, 1, result.PagesProcessed)
}

func TestDealExtractor_MalformedImageKeepsDeal(t *testing.T) {
	driver := browsertest.NewDriver(map[string]string{
		flyerURL: `<html><body>
<div class="deal-card">
  <span class="deal-name">Gouda jung</span>
  <span class="deal-price">1,29 €</span>
  <div class="deal-image"><img src="http://[::1"></div>
</div>
</body></html>`,
	})
	extractor := newTestDealExtractor(driver)

	result := extractor.Extract(context.Background(), newFlyerTarget())

	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.PagesProcessed)
	require.Len(t, result.Items, 1)
	deal := result.Items[0]
	assert.Equal(t, "Gouda jung", deal.ProductName)
	assert.Nil(t, deal.ImageURL)
	require.NotNil(t, deal.UnitType)
	assert.Equal(t, models.UnitPiece, *deal.UnitType)
}

func TestDealExtractor_EmptyFlyerIsReadOnce(t *testing.T) {
	driver := browsertest.NewDriver(map[string]string{
		flyerURL: `<html><body>
<div class="flyer-page" data-page="1"></div>
<div class="flyer-page" data-page="2"></div>
<div class="deal-card"><span class="deal-name">Kaffee</span><span class="deal-price">Aktion</span></div>
</body></html>`,
		flyerPage2: `<div class="deal-card"><span class="deal-name">Tee</span></div>`,
	})
	driver.Clicks[`[data-page="2"]`] = flyerPage2
	extractor := newTestDealExtractor(driver)

	result := extractor.Extract(context.Background(), newFlyerTarget())

	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Items)
	assert.Equal(t, 2, result.PagesProcessed, "extracted pages are not re-read as a fallback")
}

func TestDealExtractor_MissingFlyer(t *testing.T) {
	driver := browsertest.NewDriver(nil)
	extractor := newTestDealExtractor(driver)

	result := extractor.Extract(context.Background(), &models.Target{Slug: "leer"})

	require.Len(t, result.Errors, 1)
	assert.Zero(t, driver.Launches)
}

func TestDealExtractor_FlyerUnreachable(t *testing.T) {
	driver := browsertest.NewDriver(nil)
	extractor := newTestDealExtractor(driver)

	result := extractor.Extract(context.Background(), newFlyerTarget())

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], flyerURL)
	assert.Empty(t, result.Items)
	assert.Equal(t, 1, driver.CloseCount())
}
