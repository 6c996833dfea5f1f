package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
	"github.com/afpkennettt/semanalyzer/internal/services/status"
)

// SystemHandler handles version, health, config and status endpoints
type SystemHandler struct {
	config    *common.Config
	status    *status.Service
	storage   interfaces.StorageManager
	scheduler interfaces.SchedulerService
	ws        *WebSocketHandler
	logger    arbor.ILogger
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(config *common.Config, statusService *status.Service, storage interfaces.StorageManager, scheduler interfaces.SchedulerService, ws *WebSocketHandler, logger arbor.ILogger) *SystemHandler {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &SystemHandler{
		config:    config,
		status:    statusService,
		storage:   storage,
		scheduler: scheduler,
		ws:        ws,
		logger:    logger,
	}
}

// VersionHandler returns version information
func (h *SystemHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	})
}

// HealthHandler returns health check status
func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// GetStatusHandler handles GET /api/status - reports the audit activity
// state together with storage counts, scheduler jobs and connected
// dashboard clients
func (h *SystemHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	resp := h.status.GetStatus()
	resp["version"] = common.GetVersion()
	resp["counts"] = h.storageCounts(r)

	if h.scheduler != nil {
		jobs := h.scheduler.GetAllJobStatuses()
		resp["scheduler"] = map[string]interface{}{
			"running": h.scheduler.IsRunning(),
			"jobs":    jobs,
		}
	}

	if h.ws != nil {
		resp["websocket_clients"] = h.ws.ClientCount()
	}

	WriteJSON(w, http.StatusOK, resp)
}

// storageCounts collects entity counts for the status response. Failures
// are logged and the entry omitted rather than failing the whole endpoint.
func (h *SystemHandler) storageCounts(r *http.Request) map[string]interface{} {
	ctx := r.Context()
	counts := make(map[string]interface{})

	if n, err := h.storage.ClientStorage().CountClients(ctx); err == nil {
		counts["clients"] = n
	} else {
		h.logger.Warn().Err(err).Msg("Failed to count clients for status")
	}

	if n, err := h.storage.TaskStorage().CountTasks(ctx); err == nil {
		counts["tasks"] = n
	} else {
		h.logger.Warn().Err(err).Msg("Failed to count tasks for status")
	}

	if n, err := h.storage.TaskStorage().CountTasksByStatus(ctx, models.TaskStatusPending); err == nil {
		counts["pending_tasks"] = n
	}
	if n, err := h.storage.TaskStorage().CountTasksByStatus(ctx, models.TaskStatusRunning); err == nil {
		counts["running_tasks"] = n
	}

	if n, err := h.storage.AnalysisStorage().CountAnalyses(ctx); err == nil {
		counts["analyses"] = n
	} else {
		h.logger.Warn().Err(err).Msg("Failed to count analyses for status")
	}

	if n, err := h.storage.CatalogStorage().CountDefinitions(ctx); err == nil {
		counts["issue_definitions"] = n
	}

	return counts
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Version string         `json:"version"`
	Build   string         `json:"build"`
	Port    int            `json:"port"`
	Host    string         `json:"host"`
	Config  *common.Config `json:"config"`
}

// GetConfigHandler handles GET /api/config - returns the resolved
// configuration with API keys masked
func (h *SystemHandler) GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	clone := common.DeepCloneConfig(h.config)
	if clone.Semrush.APIKey != "" {
		clone.Semrush.APIKey = maskValue(clone.Semrush.APIKey)
	}
	if clone.Insights.Claude.APIKey != "" {
		clone.Insights.Claude.APIKey = maskValue(clone.Insights.Claude.APIKey)
	}
	if clone.Insights.Gemini.APIKey != "" {
		clone.Insights.Gemini.APIKey = maskValue(clone.Insights.Gemini.APIKey)
	}

	WriteJSON(w, http.StatusOK, ConfigResponse{
		Version: common.GetVersion(),
		Build:   common.GetBuild(),
		Port:    clone.Server.Port,
		Host:    clone.Server.Host,
		Config:  clone,
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *SystemHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
