package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
)

// SchedulerHandler handles scheduler job control HTTP requests
type SchedulerHandler struct {
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(scheduler interfaces.SchedulerService, logger arbor.ILogger) *SchedulerHandler {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &SchedulerHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// ListJobsHandler handles GET /api/scheduler/jobs - lists all registered jobs
// with their schedules and last/next run times
func (h *SchedulerHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobs := h.scheduler.GetAllJobStatuses()

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running": h.scheduler.IsRunning(),
		"jobs":    jobs,
		"count":   len(jobs),
	})
}

// GetJobHandler handles GET /api/scheduler/jobs/{name} - retrieves one job
func (h *SchedulerHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	name, ok := h.jobNameFromPath(w, r)
	if !ok {
		return
	}

	status, err := h.scheduler.GetJobStatus(name)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Job not found: "+name)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// TriggerJobHandler handles POST /api/scheduler/jobs/{name}/trigger - runs a
// job immediately, outside its schedule
func (h *SchedulerHandler) TriggerJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	name, ok := h.jobNameFromPath(w, r)
	if !ok {
		return
	}

	if err := h.scheduler.TriggerJobNow(name); err != nil {
		h.writeJobError(w, name, err, "Failed to trigger job")
		return
	}

	h.logger.Info().Str("job_name", name).Msg("Job triggered via API")
	WriteSuccess(w, "Job "+name+" triggered")
}

// EnableJobHandler handles POST /api/scheduler/jobs/{name}/enable
func (h *SchedulerHandler) EnableJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	name, ok := h.jobNameFromPath(w, r)
	if !ok {
		return
	}

	if err := h.scheduler.EnableJob(name); err != nil {
		h.writeJobError(w, name, err, "Failed to enable job")
		return
	}

	h.logger.Info().Str("job_name", name).Msg("Job enabled via API")
	WriteSuccess(w, "Job "+name+" enabled")
}

// DisableJobHandler handles POST /api/scheduler/jobs/{name}/disable
func (h *SchedulerHandler) DisableJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	name, ok := h.jobNameFromPath(w, r)
	if !ok {
		return
	}

	if err := h.scheduler.DisableJob(name); err != nil {
		h.writeJobError(w, name, err, "Failed to disable job")
		return
	}

	h.logger.Info().Str("job_name", name).Msg("Job disabled via API")
	WriteSuccess(w, "Job "+name+" disabled")
}

// writeJobError maps scheduler errors onto HTTP status codes.
func (h *SchedulerHandler) writeJobError(w http.ResponseWriter, name string, err error, fallback string) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		WriteError(w, http.StatusNotFound, "Job not found: "+name)
	case strings.Contains(msg, "already running"):
		WriteError(w, http.StatusConflict, msg)
	default:
		h.logger.Error().Err(err).Str("job_name", name).Msg(fallback)
		WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// jobNameFromPath extracts the name segment from
// /api/scheduler/jobs/{name}[/action].
func (h *SchedulerHandler) jobNameFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/scheduler/jobs/")
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}

	name, err := url.QueryUnescape(rest)
	if err != nil || name == "" {
		WriteError(w, http.StatusBadRequest, "Missing job name")
		return "", false
	}

	return name, true
}
