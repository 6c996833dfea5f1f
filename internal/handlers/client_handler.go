package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

// ClientHandler handles client management HTTP requests
type ClientHandler struct {
	storage interfaces.StorageManager
	audit   interfaces.AuditService
	logger  arbor.ILogger
}

// NewClientHandler creates a new client handler. The audit service may be nil
// when no SEMrush credential is configured; the analyze endpoint then returns
// 503.
func NewClientHandler(storage interfaces.StorageManager, audit interfaces.AuditService, logger arbor.ILogger) *ClientHandler {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &ClientHandler{
		storage: storage,
		audit:   audit,
		logger:  logger,
	}
}

// ListClientsHandler handles GET /api/clients - lists all clients.
// Pass ?active=true to return only active clients.
func (h *ClientHandler) ListClientsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	clients, err := h.storage.ClientStorage().ListClients(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list clients")
		WriteError(w, http.StatusInternalServerError, "Failed to list clients")
		return
	}

	if activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active")); activeOnly {
		filtered := make([]*models.Client, 0, len(clients))
		for _, client := range clients {
			if client.Active {
				filtered = append(filtered, client)
			}
		}
		clients = filtered
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"clients": clients,
		"count":   len(clients),
	})
}

// CreateClientHandler handles POST /api/clients - creates a new client
func (h *ClientHandler) CreateClientHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.CreateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Reject a second client for the same website; audits are keyed by domain
	if existing, err := h.storage.ClientStorage().GetClientByDomain(r.Context(), req.Website); err == nil && existing != nil {
		WriteError(w, http.StatusConflict, "A client with this website already exists: "+existing.Name)
		return
	}

	client := models.NewClient(req.Name, req.Website, req.Email)
	if req.Active != nil {
		client.Active = *req.Active
	}

	if err := h.storage.ClientStorage().CreateClient(r.Context(), client); err != nil {
		h.logger.Error().Err(err).Str("website", req.Website).Msg("Failed to create client")
		WriteError(w, http.StatusInternalServerError, "Failed to create client")
		return
	}

	h.logger.Info().
		Str("client_id", client.ID).
		Str("name", client.Name).
		Str("website", client.Website).
		Msg("Client created")

	WriteJSON(w, http.StatusCreated, client)
}

// GetClientHandler handles GET /api/clients/{id} - retrieves a client
func (h *ClientHandler) GetClientHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientIDFromPath(w, r)
	if !ok {
		return
	}

	client, err := h.storage.ClientStorage().GetClient(r.Context(), clientID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Client not found")
		return
	}

	WriteJSON(w, http.StatusOK, client)
}

// UpdateClientHandler handles PUT /api/clients/{id} - updates a client
func (h *ClientHandler) UpdateClientHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientIDFromPath(w, r)
	if !ok {
		return
	}

	client, err := h.storage.ClientStorage().GetClient(r.Context(), clientID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Client not found")
		return
	}

	var req models.UpdateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Apply(client)

	if err := h.storage.ClientStorage().UpdateClient(r.Context(), client); err != nil {
		h.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to update client")
		WriteError(w, http.StatusInternalServerError, "Failed to update client")
		return
	}

	h.logger.Info().Str("client_id", client.ID).Msg("Client updated")
	WriteJSON(w, http.StatusOK, client)
}

// DeleteClientHandler handles DELETE /api/clients/{id} - deletes a client
// together with its tasks and analyses
func (h *ClientHandler) DeleteClientHandler(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.clientIDFromPath(w, r)
	if !ok {
		return
	}

	if _, err := h.storage.ClientStorage().GetClient(r.Context(), clientID); err != nil {
		WriteError(w, http.StatusNotFound, "Client not found")
		return
	}

	if err := h.storage.ClientStorage().DeleteClient(r.Context(), clientID); err != nil {
		h.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to delete client")
		WriteError(w, http.StatusInternalServerError, "Failed to delete client")
		return
	}

	h.logger.Info().Str("client_id", clientID).Msg("Client deleted")
	WriteSuccess(w, "Client deleted successfully")
}

// ClientAnalysesHandler handles GET /api/clients/{id}/analyses - lists the
// client's analyses, newest first
func (h *ClientHandler) ClientAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	clientID, ok := h.clientIDFromPath(w, r)
	if !ok {
		return
	}

	if _, err := h.storage.ClientStorage().GetClient(r.Context(), clientID); err != nil {
		WriteError(w, http.StatusNotFound, "Client not found")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	analyses, err := h.storage.AnalysisStorage().GetAnalysesByClient(r.Context(), clientID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to list analyses")
		WriteError(w, http.StatusInternalServerError, "Failed to list analyses")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"client_id": clientID,
		"analyses":  analyses,
		"count":     len(analyses),
	})
}

// ClientComparisonHandler handles GET /api/clients/{id}/comparison - compares
// the client's latest analysis against the previous one
func (h *ClientHandler) ClientComparisonHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	clientID, ok := h.clientIDFromPath(w, r)
	if !ok {
		return
	}

	if _, err := h.storage.ClientStorage().GetClient(r.Context(), clientID); err != nil {
		WriteError(w, http.StatusNotFound, "Client not found")
		return
	}

	latest, err := h.storage.AnalysisStorage().GetLatestByClient(r.Context(), clientID)
	if err != nil {
		h.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to load latest analysis")
		WriteError(w, http.StatusInternalServerError, "Failed to load latest analysis")
		return
	}
	if latest == nil {
		WriteError(w, http.StatusNotFound, "Client has no analyses yet")
		return
	}

	previous, err := h.storage.AnalysisStorage().GetPreviousAnalysis(r.Context(), latest)
	if err != nil {
		h.logger.Warn().Err(err).Str("analysis_id", latest.ID).Msg("Failed to load previous analysis")
		previous = nil
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"client_id":  clientID,
		"latest":     latest,
		"comparison": models.Compare(previous, latest),
	})
}

// AnalyzeClientHandler handles POST /api/clients/{id}/analyze - launches a
// site audit for the client
func (h *ClientHandler) AnalyzeClientHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	clientID, ok := h.clientIDFromPath(w, r)
	if !ok {
		return
	}

	client, err := h.storage.ClientStorage().GetClient(r.Context(), clientID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Client not found")
		return
	}

	if h.audit == nil {
		WriteError(w, http.StatusServiceUnavailable, "SEMrush API key not configured")
		return
	}

	task, err := h.audit.StartAnalysis(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNoCredential) {
			WriteError(w, http.StatusServiceUnavailable, "SEMrush API key not configured")
			return
		}
		if strings.Contains(err.Error(), "already running") {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to start analysis")
		WriteError(w, http.StatusInternalServerError, "Failed to start analysis")
		return
	}

	h.logger.Info().
		Str("client_id", client.ID).
		Str("task_id", task.ID).
		Msg("Analysis started via API")

	WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "started",
		"message": "Analysis started for " + client.Name,
		"task":    task,
	})
}

// clientIDFromPath extracts the id segment from /api/clients/{id}[/suffix].
func (h *ClientHandler) clientIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/clients/")
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}

	clientID, err := url.QueryUnescape(rest)
	if err != nil || clientID == "" {
		WriteError(w, http.StatusBadRequest, "Missing client ID")
		return "", false
	}

	return clientID, true
}
