package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
	"github.com/ternarybob/pricewatch/internal/normalize"
)

// CronSecretHeader is the alternative to a bearer token for the timer trigger
const CronSecretHeader = "X-Cron-Secret"

// CrawlHandler exposes the crawl triggers: admin, API key and timer
type CrawlHandler struct {
	scheduler interfaces.CrawlScheduler
	targets   interfaces.TargetStorage
	runs      interfaces.CrawlRunStorage
	config    *common.Config
	validate  *validator.Validate
	logger    arbor.ILogger
	now       func() time.Time
}

// NewCrawlHandler creates the crawl trigger handler
func NewCrawlHandler(scheduler interfaces.CrawlScheduler, storage interfaces.StorageManager, config *common.Config, logger arbor.ILogger) *CrawlHandler {
	return &CrawlHandler{
		scheduler: scheduler,
		targets:   storage.TargetStorage(),
		runs:      storage.CrawlRunStorage(),
		config:    config,
		validate:  validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// crawlRequest is the body of POST /api/admin/crawl and POST /api/crawl
type crawlRequest struct {
	TargetID   string `json:"target_id" validate:"required_without=TargetSlug"`
	TargetSlug string `json:"target_slug"`
	Type       string `json:"type" validate:"omitempty,oneof=products deals"`
	Category   string `json:"category"`
}

type targetRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type crawlResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Outcome models.CrawlOutcome   `json:"outcome"`
	RunID   string                `json:"run_id,omitempty"`
	Stats   *models.CrawlRunStats `json:"stats,omitempty"`
	Target  *targetRef            `json:"target,omitempty"`
	Type    models.CrawlKind      `json:"type"`
}

// authorized checks a shared secret from the bearer token or any of the
// extra headers. An unset secret is accepted only outside production.
func (h *CrawlHandler) authorized(r *http.Request, secret string, headers ...string) bool {
	if secret == "" {
		return !h.config.IsProduction()
	}
	if secretMatches(BearerToken(r), secret) {
		return true
	}
	for _, header := range headers {
		if secretMatches(r.Header.Get(header), secret) {
			return true
		}
	}
	return false
}

// AdminCrawlHandler runs one crawl for a target id.
// POST /api/admin/crawl {"target_id": "...", "type": "products|deals"}
func (h *CrawlHandler) AdminCrawlHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if !h.authorized(r, h.config.Triggers.AdminToken) {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	req, kind, ok := h.parseCrawlRequest(w, r)
	if !ok {
		return
	}
	if req.TargetID == "" {
		WriteError(w, http.StatusBadRequest, "target_id is required")
		return
	}

	h.runCrawl(w, r, req.TargetID, kind, nil)
}

// TriggerHandler runs one crawl for a target id or slug.
// POST /api/crawl {"target_id"|"target_slug", "type", "category"}
func (h *CrawlHandler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if !h.authorized(r, h.config.Triggers.APIKey) {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	req, kind, ok := h.parseCrawlRequest(w, r)
	if !ok {
		return
	}

	var target *models.Target
	var err error
	if req.TargetID != "" {
		target, err = h.targets.FindByID(r.Context(), req.TargetID)
	} else {
		target, err = h.targets.FindBySlug(r.Context(), req.TargetSlug)
	}
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Target not found")
			return
		}
		h.logger.Error().Err(err).Msg("Failed to load target")
		WriteError(w, http.StatusInternalServerError, "Failed to load target")
		return
	}

	var opts []models.CrawlOption
	if req.Category != "" && kind == models.CrawlKindProducts {
		opts = append(opts, models.WithCategory(req.Category))
	}

	h.runCrawl(w, r, target.ID, kind, &targetRef{ID: target.ID, Name: target.Name, Slug: target.Slug}, opts...)
}

func (h *CrawlHandler) parseCrawlRequest(w http.ResponseWriter, r *http.Request) (crawlRequest, models.CrawlKind, bool) {
	var req crawlRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return req, "", false
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Type" {
			WriteError(w, http.StatusBadRequest, `Invalid crawl type. Use "products" or "deals".`)
			return req, "", false
		}
		WriteError(w, http.StatusBadRequest, "Provide target_id or target_slug")
		return req, "", false
	}

	kind := models.CrawlKindDeals
	if req.Type != "" {
		parsed, err := models.ParseCrawlKind(req.Type)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return req, "", false
		}
		kind = parsed
	}
	return req, kind, true
}

func (h *CrawlHandler) runCrawl(w http.ResponseWriter, r *http.Request, targetID string, kind models.CrawlKind, target *targetRef, opts ...models.CrawlOption) {
	result, err := h.scheduler.RunCrawl(r.Context(), targetID, kind, opts...)
	if err != nil {
		h.logger.Error().Err(err).Str("target_id", targetID).Str("kind", kind.String()).Msg("Crawl trigger failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, StatusForOutcome(result.Outcome), crawlResponse{
		Success: result.Success,
		Message: result.Message,
		Outcome: result.Outcome,
		RunID:   result.RunID,
		Stats:   result.Stats,
		Target:  target,
		Type:    kind,
	})
}

type targetStatus struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Slug      string           `json:"slug"`
	LastCrawl models.LastCrawl `json:"last_crawl"`
	IsStale   bool             `json:"is_stale"`
}

// ListHandler returns active targets with their last crawl.
// GET /api/crawl
func (h *CrawlHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if !h.authorized(r, h.config.Triggers.APIKey) {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	targets, err := h.targets.FindActive(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list targets")
		WriteError(w, http.StatusInternalServerError, "Failed to list targets")
		return
	}

	now := h.now()
	data := make([]targetStatus, 0, len(targets))
	for _, t := range targets {
		data = append(data, targetStatus{
			ID:        t.ID,
			Name:      t.Name,
			Slug:      t.Slug,
			LastCrawl: t.LastCrawl,
			IsStale:   normalize.IsDataStale(t.LastCrawl.DealsAt, h.config.StaleAfter(), now),
		})
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

type cronResult struct {
	Target  string           `json:"target"`
	Type    models.CrawlKind `json:"type"`
	Success bool             `json:"success"`
	Message string           `json:"message"`
}

// CronCrawlHandler crawls the deals of every active target with retry.
// GET /api/cron/crawl, secret in "Authorization: Bearer" or X-Cron-Secret
func (h *CrawlHandler) CronCrawlHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if !h.authorized(r, h.config.Triggers.CronSecret, CronSecretHeader) {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	targets, err := h.targets.FindActive(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list targets")
		WriteError(w, http.StatusInternalServerError, "Failed to list targets")
		return
	}

	if len(targets) == 0 {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "No active targets to crawl",
			"results": []cronResult{},
		})
		return
	}

	results, failed := h.crawlAll(r.Context(), targets)
	succeeded := len(results) - failed

	status := http.StatusOK
	if failed > 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, map[string]interface{}{
		"success":   failed == 0,
		"message":   fmt.Sprintf("Crawl complete: %d succeeded, %d failed", succeeded, failed),
		"results":   results,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// crawlAll runs the deals crawl for each target in turn
func (h *CrawlHandler) crawlAll(ctx context.Context, targets []*models.Target) ([]cronResult, int) {
	results := make([]cronResult, 0, len(targets))
	failed := 0

	for _, t := range targets {
		result, err := h.scheduler.RunWithRetry(ctx, t.ID, models.CrawlKindDeals,
			h.config.Triggers.CronMaxAttempts, models.WithRetryInterval(h.config.CronRetryInterval()))

		entry := cronResult{Target: t.Name, Type: models.CrawlKindDeals, Success: result.Success, Message: result.Message}
		if err != nil {
			entry.Success = false
			entry.Message = err.Error()
		}
		if !entry.Success {
			failed++
		}
		results = append(results, entry)
	}

	h.logger.Info().
		Int("targets", len(targets)).
		Int("failed", failed).
		Msg("Cron crawl complete")

	return results, failed
}

// RunsHandler lists recent run records.
// GET /api/crawl/runs?target_id=&limit=
func (h *CrawlHandler) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if !h.authorized(r, h.config.Triggers.APIKey) {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := QueryInt(r, "limit", 20, 100)
	runs, err := h.runs.ListByTarget(r.Context(), r.URL.Query().Get("target_id"), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list crawl runs")
		WriteError(w, http.StatusInternalServerError, "Failed to list crawl runs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    runs,
	})
}
