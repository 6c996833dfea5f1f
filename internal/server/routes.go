package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (dashboard log and status stream)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Clients
	mux.HandleFunc("/api/clients", s.handleClientsRoute)  // GET (list), POST (create)
	mux.HandleFunc("/api/clients/", s.handleClientRoutes) // GET/PUT/DELETE /{id} + subresources

	// API routes - Audit tasks
	mux.HandleFunc("/api/tasks", s.app.TaskHandler.ListTasksHandler)
	mux.HandleFunc("/api/tasks/", s.handleTaskRoutes) // GET /{id}, GET /{id}/status

	// API routes - Analyses
	mux.HandleFunc("/api/analyses", s.app.AnalysisHandler.ListAnalysesHandler)
	mux.HandleFunc("/api/analyses/", s.handleAnalysisRoutes)

	// API routes - Issue catalog
	mux.HandleFunc("/api/catalog", s.app.CatalogHandler.ListCatalogHandler)
	mux.HandleFunc("/api/catalog/sync", s.app.CatalogHandler.SyncCatalogHandler)
	mux.HandleFunc("/api/catalog/", s.app.CatalogHandler.GetCatalogEntryHandler)

	// API routes - Variables (key/value store)
	mux.HandleFunc("/api/kv", s.handleKVRoute)
	mux.HandleFunc("/api/kv/", s.handleKVRoutes)

	// API routes - Scheduler
	mux.HandleFunc("/api/scheduler/jobs", s.app.SchedulerHandler.ListJobsHandler)
	mux.HandleFunc("/api/scheduler/jobs/", s.handleSchedulerJobRoutes)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.SystemHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.SystemHandler.HealthHandler)
	mux.HandleFunc("/api/config", s.app.SystemHandler.GetConfigHandler)
	mux.HandleFunc("/api/status", s.app.SystemHandler.GetStatusHandler)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler) // Graceful shutdown endpoint (dev mode)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.SystemHandler.NotFoundHandler)

	return mux
}

// handleClientsRoute routes /api/clients requests (list and create)
func (s *Server) handleClientsRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r,
		s.app.ClientHandler.ListClientsHandler,
		s.app.ClientHandler.CreateClientHandler)
}

// handleClientRoutes routes /api/clients/{id} requests and the audit
// subresources hanging off a client.
func (s *Server) handleClientRoutes(w http.ResponseWriter, r *http.Request) {
	// POST /api/clients/{id}/analyze
	// GET  /api/clients/{id}/analyses
	// GET  /api/clients/{id}/comparison
	matched := RouteByPathSuffix(w, r, "/api/clients/", []PathSuffixRouter{
		{Suffix: "/analyze", Handler: s.app.ClientHandler.AnalyzeClientHandler},
		{Suffix: "/analyses", Handler: s.app.ClientHandler.ClientAnalysesHandler},
		{Suffix: "/comparison", Handler: s.app.ClientHandler.ClientComparisonHandler},
	})
	if matched {
		return
	}

	RouteResourceItem(w, r,
		s.app.ClientHandler.GetClientHandler,
		s.app.ClientHandler.UpdateClientHandler,
		s.app.ClientHandler.DeleteClientHandler)
}

// handleTaskRoutes routes /api/tasks/{id} requests. The status subresource
// drives a poll step; the bare id is a plain read.
func (s *Server) handleTaskRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/status") {
		s.app.TaskHandler.TaskStatusHandler(w, r)
		return
	}

	RouteByMethod(w, r, MethodRouter{
		"GET": s.app.TaskHandler.GetTaskHandler,
	})
}

// handleAnalysisRoutes routes /api/analyses/{id} requests and the issue,
// insight and report subresources.
func (s *Server) handleAnalysisRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// GET /api/analyses/{id}/errors
	if strings.HasSuffix(path, "/errors") {
		s.app.AnalysisHandler.AnalysisErrorsHandler(w, r)
		return
	}

	// GET /api/analyses/{id}/insights - read the generated document
	// POST /api/analyses/{id}/insights - regenerate it
	if strings.HasSuffix(path, "/insights") {
		RouteByMethod(w, r, MethodRouter{
			"GET":  s.app.AnalysisHandler.InsightsHandler,
			"POST": s.app.AnalysisHandler.RegenerateInsightsHandler,
		})
		return
	}

	// GET /api/analyses/{id}/report.pdf
	if strings.HasSuffix(path, "/report.pdf") {
		s.app.AnalysisHandler.ReportHandler(w, r)
		return
	}

	RouteCRUD(w, r,
		s.app.AnalysisHandler.GetAnalysisHandler,
		nil,
		nil,
		s.app.AnalysisHandler.DeleteAnalysisHandler)
}

// handleKVRoute routes /api/kv requests (list and create)
func (s *Server) handleKVRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r,
		s.app.KVHandler.ListKVHandler,
		s.app.KVHandler.CreateKVHandler)
}

// handleKVRoutes routes /api/kv/{key} requests
func (s *Server) handleKVRoutes(w http.ResponseWriter, r *http.Request) {
	RouteResourceItem(w, r,
		s.app.KVHandler.GetKVHandler,
		s.app.KVHandler.UpdateKVHandler,
		s.app.KVHandler.DeleteKVHandler)
}

// handleSchedulerJobRoutes routes /api/scheduler/jobs/{name} requests and
// the trigger/enable/disable actions.
func (s *Server) handleSchedulerJobRoutes(w http.ResponseWriter, r *http.Request) {
	matched := RouteByPathSuffix(w, r, "/api/scheduler/jobs/", []PathSuffixRouter{
		{Suffix: "/trigger", Handler: s.app.SchedulerHandler.TriggerJobHandler},
		{Suffix: "/enable", Handler: s.app.SchedulerHandler.EnableJobHandler},
		{Suffix: "/disable", Handler: s.app.SchedulerHandler.DisableJobHandler},
	})
	if matched {
		return
	}

	RouteByMethod(w, r, MethodRouter{
		"GET": s.app.SchedulerHandler.GetJobHandler,
	})
}
