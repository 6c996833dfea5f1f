package handlers

import (
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
)

// defaultCheckIn is the poll hint returned when no sweep schedule is
// configured.
const defaultCheckIn = 120 * time.Second

// TaskHandler handles audit task HTTP requests
type TaskHandler struct {
	storage       interfaces.StorageManager
	audit         interfaces.AuditService
	sweepSchedule cron.Schedule
	logger        arbor.ILogger
}

// NewTaskHandler creates a new task handler. sweepSchedule is the cron
// expression of the background sweep; it drives the next_check_in hint on the
// status endpoint.
func NewTaskHandler(storage interfaces.StorageManager, audit interfaces.AuditService, sweepSchedule string, logger arbor.ILogger) *TaskHandler {
	if logger == nil {
		logger = common.GetLogger()
	}

	h := &TaskHandler{
		storage: storage,
		audit:   audit,
		logger:  logger,
	}

	if sweepSchedule != "" {
		schedule, err := cron.ParseStandard(sweepSchedule)
		if err != nil {
			logger.Warn().Err(err).Str("schedule", sweepSchedule).Msg("Invalid sweep schedule, using default check-in hint")
		} else {
			h.sweepSchedule = schedule
		}
	}

	return h
}

// ListTasksHandler handles GET /api/tasks - lists tasks with optional
// status and client_id filters
func (h *TaskHandler) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	opts := GetListOptions(r)

	tasks, err := h.storage.TaskStorage().ListTasks(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list tasks")
		WriteError(w, http.StatusInternalServerError, "Failed to list tasks")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// GetTaskHandler handles GET /api/tasks/{id} - retrieves a task
func (h *TaskHandler) GetTaskHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	taskID, ok := h.taskIDFromPath(w, r)
	if !ok {
		return
	}

	task, err := h.storage.TaskStorage().GetTask(r.Context(), taskID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Task not found")
		return
	}

	WriteJSON(w, http.StatusOK, task)
}

// TaskStatusHandler handles GET /api/tasks/{id}/status - drives the task one
// poll step forward and reports its state. While the task is still running
// the response carries a next_check_in hint aligned with the background
// sweep.
func (h *TaskHandler) TaskStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	taskID, ok := h.taskIDFromPath(w, r)
	if !ok {
		return
	}

	task, err := h.storage.TaskStorage().GetTask(r.Context(), taskID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Task not found")
		return
	}

	if h.audit != nil && !task.IsTerminal() {
		checked, err := h.audit.CheckTask(r.Context(), taskID)
		if err != nil {
			h.logger.Warn().Err(err).Str("task_id", taskID).Msg("On-demand task check failed, returning stored state")
		} else {
			task = checked
		}
	}

	response := map[string]interface{}{
		"task": task,
	}
	if !task.IsTerminal() {
		response["next_check_in_seconds"] = h.nextCheckInSeconds()
	}

	WriteJSON(w, http.StatusOK, response)
}

// nextCheckInSeconds reports the seconds until the next background sweep.
func (h *TaskHandler) nextCheckInSeconds() int {
	if h.sweepSchedule == nil {
		return int(defaultCheckIn.Seconds())
	}

	now := time.Now()
	until := h.sweepSchedule.Next(now).Sub(now)
	if until <= 0 {
		return 1
	}
	return int(math.Ceil(until.Seconds()))
}

// taskIDFromPath extracts the id segment from /api/tasks/{id}[/suffix].
func (h *TaskHandler) taskIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}

	taskID, err := url.QueryUnescape(rest)
	if err != nil || taskID == "" {
		WriteError(w, http.StatusBadRequest, "Missing task ID")
		return "", false
	}

	return taskID, true
}
