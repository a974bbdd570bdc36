package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	api := s.app.APIHandler

	// System
	mux.HandleFunc("/api/health", api.HealthHandler)
	mux.HandleFunc("/api/version", api.VersionHandler)
	mux.HandleFunc("/api/status", s.app.StatusHandler.StatusHandler) // GET ?target=<slug>

	// Crawl triggers
	mux.HandleFunc("/api/admin/crawl", s.app.CrawlHandler.AdminCrawlHandler) // POST - admin token
	mux.HandleFunc("/api/admin/schedules", s.app.SchedulerHandler.SchedulesHandler)
	mux.HandleFunc("/api/crawl", RouteByMethod(MethodRouter{
		http.MethodPost: s.app.CrawlHandler.TriggerHandler, // API key
		http.MethodGet:  s.app.CrawlHandler.ListHandler,
	}))
	mux.HandleFunc("/api/crawl/runs", s.app.CrawlHandler.RunsHandler)
	mux.HandleFunc("/api/cron/crawl", s.app.CrawlHandler.CronCrawlHandler) // GET - cron secret

	mux.HandleFunc("/", exactPath("/", api.HealthHandler, api.NotFoundHandler))

	return mux
}
