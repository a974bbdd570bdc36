package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/normalize"
)

// StatusHandler reports the freshness of a target's data
type StatusHandler struct {
	targets  interfaces.TargetStorage
	products interfaces.ProductStorage
	deals    interfaces.DealStorage
	config   *common.Config
	logger   arbor.ILogger
	now      func() time.Time
}

// NewStatusHandler creates the public status handler
func NewStatusHandler(storage interfaces.StorageManager, config *common.Config, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		targets:  storage.TargetStorage(),
		products: storage.ProductStorage(),
		deals:    storage.DealStorage(),
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

type targetSummary struct {
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	LastUpdated  *time.Time `json:"last_updated"`
	LastStatus   string     `json:"last_status"`
	IsStale      bool       `json:"is_stale"`
	ProductCount int        `json:"product_count"`
	ActiveDeals  int        `json:"active_deals"`
	CurrentWeek  string     `json:"current_week"`
}

// StatusHandler returns last crawl and record counts for one target.
// GET /api/status?target=<slug>
func (h *StatusHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	slug := r.URL.Query().Get("target")
	if slug == "" {
		WriteError(w, http.StatusBadRequest, "target is required")
		return
	}

	ctx := r.Context()
	target, err := h.targets.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Target not found")
			return
		}
		h.logger.Error().Err(err).Str("slug", slug).Msg("Failed to load target")
		WriteError(w, http.StatusInternalServerError, "Failed to load target")
		return
	}

	products, err := h.products.CountByTarget(ctx, target.ID)
	if err != nil {
		h.logger.Warn().Err(err).Str("target_id", target.ID).Msg("Failed to count products")
	}
	deals, err := h.deals.ListActive(ctx, target.ID)
	if err != nil {
		h.logger.Warn().Err(err).Str("target_id", target.ID).Msg("Failed to list active deals")
	}

	now := h.now()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": targetSummary{
			Name:         target.Name,
			Slug:         target.Slug,
			LastUpdated:  target.LastCrawl.DealsAt,
			LastStatus:   target.LastCrawl.Status,
			IsStale:      normalize.IsDataStale(target.LastCrawl.DealsAt, h.config.StaleAfter(), now),
			ProductCount: products,
			ActiveDeals:  len(deals),
			CurrentWeek:  normalize.FormatCalendarWeek(now),
		},
	})
}
