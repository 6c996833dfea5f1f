package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
)

// CatalogHandler handles issue catalog HTTP requests
type CatalogHandler struct {
	storage interfaces.StorageManager
	catalog interfaces.CatalogService
	logger  arbor.ILogger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(storage interfaces.StorageManager, catalog interfaces.CatalogService, logger arbor.ILogger) *CatalogHandler {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &CatalogHandler{
		storage: storage,
		catalog: catalog,
		logger:  logger,
	}
}

// ListCatalogHandler handles GET /api/catalog - lists all issue definitions
func (h *CatalogHandler) ListCatalogHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	defs, err := h.storage.CatalogStorage().ListDefinitions(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list issue definitions")
		WriteError(w, http.StatusInternalServerError, "Failed to list issue definitions")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"definitions": defs,
		"count":       len(defs),
	})
}

// GetCatalogEntryHandler handles GET /api/catalog/{id} - retrieves one issue
// definition by its numeric SEMrush issue id
func (h *CatalogHandler) GetCatalogEntryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	issueID, ok := h.issueIDFromPath(w, r)
	if !ok {
		return
	}

	def, err := h.storage.CatalogStorage().GetDefinition(r.Context(), issueID)
	if err != nil || def == nil {
		WriteError(w, http.StatusNotFound, "Issue definition not found")
		return
	}

	WriteJSON(w, http.StatusOK, def)
}

// SyncCatalogHandler handles POST /api/catalog/sync - fetches the issue
// catalog from SEMrush and upserts it into local storage
func (h *CatalogHandler) SyncCatalogHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	added, updated, err := h.catalog.Sync(r.Context())
	if err != nil {
		if errors.Is(err, interfaces.ErrNoCredential) {
			WriteError(w, http.StatusServiceUnavailable, "SEMrush API key not configured")
			return
		}
		if strings.Contains(err.Error(), "no client is linked") {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Issue catalog sync failed")
		WriteError(w, http.StatusInternalServerError, "Failed to sync issue catalog")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Issue catalog synced",
		"added":   added,
		"updated": updated,
	})
}

// issueIDFromPath extracts the numeric id segment from /api/catalog/{id}.
func (h *CatalogHandler) issueIDFromPath(w http.ResponseWriter, r *http.Request) (int, bool) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/catalog/")
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}

	issueID, err := strconv.Atoi(rest)
	if err != nil || issueID <= 0 {
		WriteError(w, http.StatusBadRequest, "Invalid issue ID")
		return 0, false
	}

	return issueID, true
}
