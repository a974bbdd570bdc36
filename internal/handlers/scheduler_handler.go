package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
)

// SchedulerHandler exposes the registered crawl schedules
type SchedulerHandler struct {
	scheduler interfaces.CrawlScheduler
	config    *common.Config
	logger    arbor.ILogger
}

func NewSchedulerHandler(scheduler interfaces.CrawlScheduler, config *common.Config, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler, config: config, logger: logger}
}

// SchedulesHandler - GET /api/admin/schedules
func (h *SchedulerHandler) SchedulesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if !adminAuthorized(r, h.config) {
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	schedules := h.scheduler.Schedules()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"enabled":   h.config.Scheduler.Enabled,
		"schedules": schedules,
	})
}
