package badger

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestTargetStorage_FindBySlugAndActive(t *testing.T) {
	ctx := context.Background()
	storage := newTestManager(t).TargetStorage()

	active := &models.Target{Name: "Globus", Slug: "globus", IsActive: true}
	inactive := &models.Target{Name: "Kaufland", Slug: "kaufland", IsActive: false}
	require.NoError(t, storage.Save(ctx, active))
	require.NoError(t, storage.Save(ctx, inactive))
	assert.NotEmpty(t, active.ID)

	found, err := storage.FindBySlug(ctx, "globus")
	require.NoError(t, err)
	assert.Equal(t, active.ID, found.ID)

	byID, err := storage.FindByID(ctx, inactive.ID)
	require.NoError(t, err)
	assert.Equal(t, "kaufland", byID.Slug)

	actives, err := storage.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, actives, 1)
	assert.Equal(t, "globus", actives[0].Slug)

	_, err = storage.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	_, err = storage.FindBySlug(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestTargetStorage_RecordCrawlIsPerKind(t *testing.T) {
	ctx := context.Background()
	storage := newTestManager(t).TargetStorage()

	target := &models.Target{Name: "Globus", Slug: "globus", IsActive: true}
	require.NoError(t, storage.Save(ctx, target))

	at := time.Date(2025, 3, 12, 6, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, storage.RecordCrawl(ctx, target.ID, models.CrawlKindProducts, true, "", at))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, storage.RecordCrawl(ctx, target.ID, models.CrawlKindDeals, true, "", at.Add(time.Hour)))
		}()
	}
	wg.Wait()

	found, err := storage.FindByID(ctx, target.ID)
	require.NoError(t, err)
	require.NotNil(t, found.LastCrawl.ProductsAt)
	require.NotNil(t, found.LastCrawl.DealsAt)
	assert.True(t, at.Equal(*found.LastCrawl.ProductsAt))
	assert.True(t, at.Add(time.Hour).Equal(*found.LastCrawl.DealsAt))
	assert.Equal(t, "globus", found.Slug)

	// A failed deals run leaves the products timestamp alone
	require.NoError(t, storage.RecordCrawl(ctx, target.ID, models.CrawlKindDeals, false, "timeout", at.Add(2*time.Hour)))
	found, err = storage.FindByID(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, at.Equal(*found.LastCrawl.ProductsAt))
	assert.Equal(t, models.CrawlStatusFailed, found.LastCrawl.Status)
	assert.Equal(t, "timeout", found.LastCrawl.ErrorMessage)

	err = storage.RecordCrawl(ctx, "missing", models.CrawlKindDeals, true, "", at)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestProductStorage_NaturalKey(t *testing.T) {
	ctx := context.Background()
	storage := newTestManager(t).ProductStorage()

	product := &models.Product{TargetID: "tgt_1", ExternalID: "4001234", Name: "Milch", Price: 109}
	require.NoError(t, storage.Save(ctx, product))

	found, err := storage.FindByNaturalKey(ctx, "tgt_1", "4001234")
	require.NoError(t, err)
	assert.Equal(t, product.ID, found.ID)

	_, err = storage.FindByNaturalKey(ctx, "tgt_2", "4001234")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	count, err := storage.CountByTarget(ctx, "tgt_1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDealStorage_NaturalKeyAndSweep(t *testing.T) {
	ctx := context.Background()
	storage := newTestManager(t).DealStorage()

	lastWeekStart := time.Date(2025, 11, 24, 0, 0, 0, 0, time.Local)
	lastWeekEnd := time.Date(2025, 11, 30, 0, 0, 0, 0, time.Local)
	thisWeekStart := time.Date(2025, 12, 1, 0, 0, 0, 0, time.Local)
	thisWeekEnd := time.Date(2025, 12, 7, 0, 0, 0, 0, time.Local)

	expired := &models.Deal{TargetID: "tgt_1", ProductName: "Butter", StartDate: lastWeekStart, EndDate: lastWeekEnd, IsActive: true}
	current := &models.Deal{TargetID: "tgt_1", ProductName: "Butter", StartDate: thisWeekStart, EndDate: thisWeekEnd, IsActive: true}
	other := &models.Deal{TargetID: "tgt_2", ProductName: "Käse", StartDate: lastWeekStart, EndDate: lastWeekEnd, IsActive: true}
	for _, d := range []*models.Deal{expired, current, other} {
		require.NoError(t, storage.Save(ctx, d))
	}

	found, err := storage.FindByNaturalKey(ctx, "tgt_1", "Butter", thisWeekStart, thisWeekEnd)
	require.NoError(t, err)
	assert.Equal(t, current.ID, found.ID)

	_, err = storage.FindByNaturalKey(ctx, "tgt_1", "Butter", thisWeekStart, thisWeekEnd.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	changed, err := storage.DeactivateExpired(ctx, "tgt_1", thisWeekStart)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	active, err := storage.ListActive(ctx, "tgt_1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, current.ID, active[0].ID)

	// Other targets are untouched
	otherActive, err := storage.ListActive(ctx, "tgt_2")
	require.NoError(t, err)
	assert.Len(t, otherActive, 1)
}

func TestCrawlRunStorage_CreateUpdateList(t *testing.T) {
	ctx := context.Background()
	storage := newTestManager(t).CrawlRunStorage()

	base := time.Now().Add(-time.Hour)
	first := models.NewCrawlRun("run_1", "tgt_1", models.CrawlKindDeals, base)
	second := models.NewCrawlRun("run_2", "tgt_1", models.CrawlKindDeals, base.Add(time.Minute))
	require.NoError(t, storage.Create(ctx, first))
	require.NoError(t, storage.Create(ctx, second))
	assert.Error(t, storage.Create(ctx, first), "duplicate run ID must be rejected")

	require.NoError(t, first.Complete(true, models.CrawlRunStats{ItemsFound: 2}, nil, base.Add(time.Second)))
	require.NoError(t, storage.Update(ctx, first))

	runs, err := storage.ListByTarget(ctx, "tgt_1", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run_2", runs[0].ID)
	assert.Equal(t, models.RunStatusSuccess, runs[1].Status)

	limited, err := storage.ListByTarget(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	missing := models.NewCrawlRun("run_x", "tgt_1", models.CrawlKindDeals, base)
	assert.Error(t, storage.Update(ctx, missing))
}

func TestLoadTargetsFromFile(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t)
	logger := arbor.NewLogger()

	path := filepath.Join(t.TempDir(), "targets.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[targets]]
name = "Globus"
slug = "globus"
website = "https://www.globus.de"
product_catalog_url = "https://produkte.globus.de/halle-dieselstrasse/"

[targets.crawl_config]
delay_ms = 2000

[[targets.locations]]
name = "Halle Dieselstraße"
slug = "halle-dieselstrasse"

[[targets.categories]]
slug = "obst-gemuese"
name = "Obst & Gemüse"
`), 0644))

	require.NoError(t, LoadTargetsFromFile(ctx, manager.TargetStorage(), manager.CategoryStorage(), path, logger))

	target, err := manager.TargetStorage().FindBySlug(ctx, "globus")
	require.NoError(t, err)
	assert.True(t, target.IsActive)
	assert.Equal(t, 2000, target.CrawlConfig.DelayMs)
	require.NotNil(t, target.PrimaryLocation())
	assert.Equal(t, "halle-dieselstrasse", target.PrimaryLocation().Slug)
	assert.Equal(t, models.CrawlStatusPending, target.LastCrawl.Status)

	category, err := manager.CategoryStorage().FindBySlug(ctx, target.ID, "obst-gemuese")
	require.NoError(t, err)
	assert.Equal(t, "Obst & Gemüse", category.Name)

	// Reloading keeps the same target ID
	require.NoError(t, LoadTargetsFromFile(ctx, manager.TargetStorage(), manager.CategoryStorage(), path, logger))
	all, err := manager.TargetStorage().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, target.ID, all[0].ID)
}

func TestParseTargetsFile_YAMLAndValidation(t *testing.T) {
	file, err := ParseTargetsFile("targets.yaml", []byte(`
targets:
  - name: Globus
    slug: globus
    active: false
    flyer_url: https://www.globus.de/prospekte
    locations:
      - name: Halle
        slug: halle-dieselstrasse
`))
	require.NoError(t, err)
	require.Len(t, file.Targets, 1)
	require.NotNil(t, file.Targets[0].Active)
	assert.False(t, *file.Targets[0].Active)

	_, err = ParseTargetsFile("targets.yaml", []byte(`
targets:
  - name: Missing slug
`))
	assert.Error(t, err)

	_, err = ParseTargetsFile("targets.toml", []byte(`
[[targets]]
name = "Bad URL"
slug = "bad"
website = "not a url"
`))
	assert.Error(t, err)

	_, err = ParseTargetsFile("targets.json", []byte(`{}`))
	assert.Error(t, err)
}
