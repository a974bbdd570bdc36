package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/storage/badger"
)

var fixedNow = time.Date(2025, time.December, 3, 10, 0, 0, 0, time.Local)

const targetID = "tgt_reconcile"

func newTestStorage(t *testing.T) *badger.Manager {
	t.Helper()
	manager, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func newTestEngine(storage interfaces.StorageManager) *Engine {
	return NewEngine(storage, arbor.NewLogger()).WithClock(func() time.Time { return fixedNow })
}

func ptr[T any](v T) *T { return &v }

func rawProducts() []models.RawProduct {
	return []models.RawProduct{
		{ExternalID: "4001", Name: "Äpfel", Price: 199, InStock: true, CategorySlug: ptr("obst")},
		{ExternalID: "4002", Name: "Birnen", Price: 249, InStock: true, CategorySlug: ptr("unbekannt")},
		{ExternalID: "4003", Name: "Kirschen", Price: 399},
	}
}

func TestUpsertProducts_Idempotent(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	engine := newTestEngine(storage)

	first := engine.UpsertProducts(ctx, targetID, rawProducts())
	assert.Equal(t, 3, first.Created)
	assert.Equal(t, 0, first.Updated)
	assert.Empty(t, first.Errors)

	second := engine.UpsertProducts(ctx, targetID, rawProducts())
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.Updated)
	assert.Empty(t, second.Errors)

	count, err := storage.ProductStorage().CountByTarget(ctx, targetID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestUpsertProducts_UpdatesMutableFields(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	created := time.Date(2025, time.November, 1, 8, 0, 0, 0, time.Local)
	engine := NewEngine(storage, arbor.NewLogger()).WithClock(func() time.Time { return created })
	engine.UpsertProducts(ctx, targetID, rawProducts())

	engine.WithClock(func() time.Time { return fixedNow })
	changed := rawProducts()[:1]
	changed[0].Price = 149
	changed[0].InStock = false
	outcome := engine.UpsertProducts(ctx, targetID, changed)
	assert.Equal(t, 1, outcome.Updated)

	product, err := storage.ProductStorage().FindByNaturalKey(ctx, targetID, "4001")
	require.NoError(t, err)
	assert.Equal(t, int64(149), product.Price)
	assert.False(t, product.InStock)
	assert.True(t, product.FirstSeenAt.Equal(created), "first seen is kept")
	assert.True(t, product.LastSeenAt.Equal(fixedNow), "last seen is bumped")
}

func TestUpsertProducts_CategoryIsBestEffort(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	engine := newTestEngine(storage)

	category := &models.Category{TargetID: targetID, Slug: "obst", Name: "Obst", IsActive: true}
	require.NoError(t, storage.CategoryStorage().Save(ctx, category))

	outcome := engine.UpsertProducts(ctx, targetID, rawProducts())
	assert.Empty(t, outcome.Errors)

	apples, err := storage.ProductStorage().FindByNaturalKey(ctx, targetID, "4001")
	require.NoError(t, err)
	require.NotNil(t, apples.CategoryID)
	assert.Equal(t, category.ID, *apples.CategoryID)

	pears, err := storage.ProductStorage().FindByNaturalKey(ctx, targetID, "4002")
	require.NoError(t, err)
	assert.Nil(t, pears.CategoryID, "unknown category leaves the reference unset")
}

func TestUpsertProducts_SubcategoryCreatedUnderParent(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	engine := newTestEngine(storage)

	parent := &models.Category{TargetID: targetID, Slug: "obst-gemuese", Name: "Obst & Gemüse", IsActive: true}
	require.NoError(t, storage.CategoryStorage().Save(ctx, parent))

	raws := []models.RawProduct{
		{ExternalID: "5001", Name: "Eisbergsalat", Price: 99, CategorySlug: ptr("obst-gemuese"), SubCategorySlug: ptr("frisches-gemuese"), UnitPriceText: ptr("1 Stück")},
		{ExternalID: "5002", Name: "Gurke", Price: 69, CategorySlug: ptr("obst-gemuese"), SubCategorySlug: ptr("frisches-gemuese")},
		{ExternalID: "5003", Name: "Kiwi", Price: 50, CategorySlug: ptr("unbekannt"), SubCategorySlug: ptr("exoten")},
	}
	outcome := engine.UpsertProducts(ctx, targetID, raws)
	assert.Empty(t, outcome.Errors)
	assert.Equal(t, 3, outcome.Created)

	child, err := storage.CategoryStorage().FindChild(ctx, targetID, parent.ID, "frisches-gemuese")
	require.NoError(t, err)
	assert.Equal(t, "Frisches Gemüse", child.Name)

	categories, err := storage.CategoryStorage().ListByTarget(ctx, targetID)
	require.NoError(t, err)
	assert.Len(t, categories, 2, "one subcategory for both products, none without a parent")

	salad, err := storage.ProductStorage().FindByNaturalKey(ctx, targetID, "5001")
	require.NoError(t, err)
	require.NotNil(t, salad.SubCategoryID)
	assert.Equal(t, child.ID, *salad.SubCategoryID)
	assert.Equal(t, parent.ID, *salad.CategoryID)
	require.NotNil(t, salad.UnitPriceText)
	assert.Equal(t, "1 Stück", *salad.UnitPriceText)

	kiwi, err := storage.ProductStorage().FindByNaturalKey(ctx, targetID, "5003")
	require.NoError(t, err)
	assert.Nil(t, kiwi.SubCategoryID)

	// The parent still resolves by slug once a child exists
	found, err := storage.CategoryStorage().FindBySlug(ctx, targetID, "obst-gemuese")
	require.NoError(t, err)
	assert.Equal(t, parent.ID, found.ID)
}

func TestCategoryNameFromSlug(t *testing.T) {
	assert.Equal(t, "Frisches Gemüse", categoryNameFromSlug("frisches-gemuese"))
	assert.Equal(t, "Käse", categoryNameFromSlug("kaese"))
	assert.Equal(t, "Obst", categoryNameFromSlug("obst"))
}

// failingProducts fails Save for one product name
type failingProducts struct {
	interfaces.ProductStorage
	name string
}

func (f *failingProducts) Save(ctx context.Context, product *models.Product) error {
	if product.Name == f.name {
		return errors.New("disk full")
	}
	return f.ProductStorage.Save(ctx, product)
}

type failingStorage struct {
	interfaces.StorageManager
	products interfaces.ProductStorage
}

func (f *failingStorage) ProductStorage() interfaces.ProductStorage { return f.products }

func TestUpsertProducts_FailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	engine := newTestEngine(&failingStorage{
		StorageManager: storage,
		products:       &failingProducts{ProductStorage: storage.ProductStorage(), name: "Birnen"},
	})

	outcome := engine.UpsertProducts(ctx, targetID, rawProducts())

	assert.Equal(t, 2, outcome.Created)
	assert.Equal(t, []string{"Failed to save product: Birnen"}, outcome.Errors)
}

func TestUpsertDeals_NaturalKeyDedup(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	engine := newTestEngine(storage)

	start := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2025, time.December, 7, 0, 0, 0, 0, time.Local)
	raws := []models.RawDeal{
		{ProductName: "Butter", DealPrice: 199, StartDate: start, EndDate: end, Source: models.DealSourceFlyer},
		{ProductName: "Butter", DealPrice: 179, OriginalPrice: ptr(int64(239)), StartDate: start, EndDate: end, Source: models.DealSourceFlyer},
	}

	outcome := engine.UpsertDeals(ctx, targetID, raws)
	assert.Equal(t, 1, outcome.Created)
	assert.Equal(t, 1, outcome.Updated)
	assert.Empty(t, outcome.Errors)

	active, err := storage.DealStorage().ListActive(ctx, targetID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(179), active[0].DealPrice, "last processed values win")
	require.NotNil(t, active[0].DiscountPercent)
	assert.Equal(t, 25, *active[0].DiscountPercent)
	assert.True(t, active[0].IsActive)
}

func TestUpsertDeals_ExplicitDiscountKept(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	engine := newTestEngine(storage)

	start := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2025, time.December, 7, 0, 0, 0, 0, time.Local)
	engine.UpsertDeals(ctx, targetID, []models.RawDeal{
		{ProductName: "Kaffee", DealPrice: 499, OriginalPrice: ptr(int64(999)), DiscountPercent: ptr(30), StartDate: start, EndDate: end},
	})

	deal, err := storage.DealStorage().FindByNaturalKey(ctx, targetID, "Kaffee", start, end)
	require.NoError(t, err)
	assert.Equal(t, 30, *deal.DiscountPercent)
}

func TestUpsertDeals_SweepsExpired(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	engine := newTestEngine(storage)

	expired := &models.Deal{
		TargetID:    targetID,
		ProductName: "Alte Milch",
		DealPrice:   89,
		StartDate:   time.Date(2025, time.November, 24, 0, 0, 0, 0, time.Local),
		EndDate:     time.Date(2025, time.November, 30, 0, 0, 0, 0, time.Local),
		IsActive:    true,
	}
	endsToday := &models.Deal{
		TargetID:    targetID,
		ProductName: "Joghurt",
		DealPrice:   45,
		StartDate:   time.Date(2025, time.November, 27, 0, 0, 0, 0, time.Local),
		EndDate:     time.Date(2025, time.December, 3, 0, 0, 0, 0, time.Local),
		IsActive:    true,
	}
	require.NoError(t, storage.DealStorage().Save(ctx, expired))
	require.NoError(t, storage.DealStorage().Save(ctx, endsToday))

	outcome := engine.UpsertDeals(ctx, targetID, nil)
	assert.Empty(t, outcome.Errors)

	active, err := storage.DealStorage().ListActive(ctx, targetID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Joghurt", active[0].ProductName, "a deal ending today stays active")
}

func TestUpsertDeals_FutureDealInactive(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	engine := newTestEngine(storage)

	start := time.Date(2025, time.December, 8, 0, 0, 0, 0, time.Local)
	end := time.Date(2025, time.December, 14, 0, 0, 0, 0, time.Local)
	outcome := engine.UpsertDeals(ctx, targetID, []models.RawDeal{{ProductName: "Stollen", DealPrice: 599, StartDate: start, EndDate: end}})
	assert.Equal(t, 1, outcome.Created)

	deal, err := storage.DealStorage().FindByNaturalKey(ctx, targetID, "Stollen", start, end)
	require.NoError(t, err)
	assert.False(t, deal.IsActive)
}
