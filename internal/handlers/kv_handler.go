package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
)

// internalKeyPrefix marks keys owned by background services (scheduler job
// settings). They share the store but stay out of the variables API.
const internalKeyPrefix = "scheduler:"

// KVHandler handles variables (key/value) storage HTTP requests
type KVHandler struct {
	kvStorage interfaces.KeyValueStorage
	logger    arbor.ILogger
}

// NewKVHandler creates a new KV handler for managing variables
func NewKVHandler(kvStorage interfaces.KeyValueStorage, logger arbor.ILogger) *KVHandler {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &KVHandler{
		kvStorage: kvStorage,
		logger:    logger,
	}
}

// ListKVHandler handles GET /api/kv - lists all variables (key/value pairs)
func (h *KVHandler) ListKVHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	pairs, err := h.kvStorage.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list key/value pairs")
		WriteError(w, http.StatusInternalServerError, "Failed to list key/value pairs")
		return
	}

	// Sanitize values in response - mask sensitive data
	sanitized := make([]map[string]interface{}, 0, len(pairs))
	for _, pair := range pairs {
		if strings.HasPrefix(pair.Key, internalKeyPrefix) {
			continue
		}
		sanitized = append(sanitized, map[string]interface{}{
			"key":         pair.Key,
			"value":       maskValue(pair.Value),
			"description": pair.Description,
			"created_at":  pair.CreatedAt,
			"updated_at":  pair.UpdatedAt,
		})
	}

	h.logger.Debug().Int("count", len(sanitized)).Msg("Listed key/value pairs")
	WriteJSON(w, http.StatusOK, sanitized)
}

// GetKVHandler handles GET /api/kv/{key} - retrieves a specific variable (key/value pair)
func (h *KVHandler) GetKVHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	key, ok := h.keyFromPath(w, r)
	if !ok {
		return
	}

	// Get full key/value pair with metadata
	pair, err := h.kvStorage.GetPair(r.Context(), key)
	if err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			WriteError(w, http.StatusNotFound, "Key not found")
			return
		}
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to get key/value pair")
		WriteError(w, http.StatusInternalServerError, "Failed to retrieve key/value pair")
		return
	}

	// Return full value (unmasked) for editing purposes
	// Note: ListKVHandler returns masked values for security, but GET specific key returns full value
	response := map[string]interface{}{
		"key":         pair.Key,
		"value":       pair.Value,
		"description": pair.Description,
		"created_at":  pair.CreatedAt,
		"updated_at":  pair.UpdatedAt,
	}

	h.logger.Debug().Str("key", key).Msg("Retrieved key/value pair")
	WriteJSON(w, http.StatusOK, response)
}

// CreateKVHandler handles POST /api/kv - creates a new variable (key/value pair)
func (h *KVHandler) CreateKVHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req struct {
		Key         string `json:"key"`
		Value       string `json:"value"`
		Description string `json:"description"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Key == "" {
		WriteError(w, http.StatusBadRequest, "Key is required")
		return
	}

	if req.Value == "" {
		WriteError(w, http.StatusBadRequest, "Value is required")
		return
	}

	if strings.HasPrefix(req.Key, internalKeyPrefix) {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Keys with prefix '%s' are reserved", internalKeyPrefix))
		return
	}

	// Check for duplicate keys (case-insensitive)
	if err := h.checkDuplicateKey(r.Context(), req.Key); err != nil {
		h.logger.Warn().Err(err).Str("key", req.Key).Msg("Duplicate key detected")
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	if err := h.kvStorage.Set(r.Context(), req.Key, req.Value, req.Description); err != nil {
		h.logger.Error().Err(err).Str("key", req.Key).Msg("Failed to create key/value pair")
		WriteError(w, http.StatusInternalServerError, "Failed to create key/value pair")
		return
	}

	h.logger.Debug().Str("key", req.Key).Msg("Created key/value pair")

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"status":  "success",
		"message": "Key/value pair created successfully",
		"key":     req.Key,
	})
}

// UpdateKVHandler handles PUT /api/kv/{key} - upserts a variable (key/value pair)
// Creates new key or updates existing one. Supports full replacement or description-only updates.
func (h *KVHandler) UpdateKVHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "PUT") {
		return
	}

	key, ok := h.keyFromPath(w, r)
	if !ok {
		return
	}

	if strings.HasPrefix(key, internalKeyPrefix) {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Keys with prefix '%s' are reserved", internalKeyPrefix))
		return
	}

	var req struct {
		Value       string `json:"value"`
		Description string `json:"description"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// If value is empty, fetch current value for description-only update
	valueToSet := req.Value
	if valueToSet == "" {
		currentPair, err := h.kvStorage.GetPair(r.Context(), key)
		if err != nil {
			if errors.Is(err, interfaces.ErrKeyNotFound) {
				WriteError(w, http.StatusNotFound, "Key not found - cannot update description for non-existent key")
				return
			}
			h.logger.Error().Err(err).Str("key", key).Msg("Failed to get current value for description-only update")
			WriteError(w, http.StatusInternalServerError, "Failed to retrieve current value")
			return
		}
		valueToSet = currentPair.Value
		h.logger.Debug().Str("key", key).Msg("Description-only update - preserving existing value")
	}

	isNewKey, err := h.kvStorage.Upsert(r.Context(), key, valueToSet, req.Description)
	if err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to upsert key/value pair")
		WriteError(w, http.StatusInternalServerError, "Failed to upsert key/value pair")
		return
	}

	var statusCode int
	var message string
	if isNewKey {
		statusCode = http.StatusCreated
		message = "Key/value pair created successfully"
		h.logger.Debug().Str("key", key).Msg("Created new key/value pair via PUT")
	} else {
		statusCode = http.StatusOK
		message = "Key/value pair updated successfully"
		h.logger.Debug().Str("key", key).Msg("Updated existing key/value pair via PUT")
	}

	WriteJSON(w, statusCode, map[string]interface{}{
		"status":  "success",
		"message": message,
		"key":     key,
		"created": isNewKey,
	})
}

// DeleteKVHandler handles DELETE /api/kv/{key} - deletes a variable (key/value pair)
func (h *KVHandler) DeleteKVHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "DELETE") {
		return
	}

	key, ok := h.keyFromPath(w, r)
	if !ok {
		return
	}

	if err := h.kvStorage.Delete(r.Context(), key); err != nil {
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			WriteError(w, http.StatusNotFound, "Key not found")
			return
		}
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to delete key/value pair")
		WriteError(w, http.StatusInternalServerError, "Failed to delete key/value pair")
		return
	}

	h.logger.Debug().Str("key", key).Msg("Deleted key/value pair")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Key/value pair deleted successfully",
	})
}

// keyFromPath extracts and decodes the key segment from /api/kv/{key}.
func (h *KVHandler) keyFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	encodedKey := r.URL.Path[len("/api/kv/"):]

	// URL-decode the key to handle special characters
	key, err := url.QueryUnescape(encodedKey)
	if err != nil {
		h.logger.Error().Err(err).Str("encoded_key", encodedKey).Msg("Failed to decode key")
		WriteError(w, http.StatusBadRequest, "Invalid key encoding")
		return "", false
	}

	if key == "" {
		WriteError(w, http.StatusBadRequest, "Missing key parameter")
		return "", false
	}

	return key, true
}

// checkDuplicateKey checks if a key already exists (case-insensitive)
// Returns an error if a duplicate is found
func (h *KVHandler) checkDuplicateKey(ctx context.Context, newKey string) error {
	pairs, err := h.kvStorage.List(ctx)
	if err != nil {
		// If we can't list keys, allow the operation to proceed
		// The underlying storage will handle the actual duplicate check
		h.logger.Warn().Err(err).Msg("Failed to list keys for duplicate check")
		return nil
	}

	newKeyLower := strings.ToLower(newKey)
	for _, pair := range pairs {
		if strings.ToLower(pair.Key) == newKeyLower {
			return fmt.Errorf("A key with name '%s' already exists. Key names are case-insensitive.", pair.Key)
		}
	}

	return nil
}

// maskValue masks sensitive values for API responses. Variables and config
// secrets share this treatment.
// If length < 8: returns "••••••••"
// Otherwise: returns first 4 chars + "..." + last 4 chars (e.g., "sk-1...xyz9")
func maskValue(value string) string {
	if len(value) < 8 {
		return "••••••••"
	}

	return value[:4] + "..." + value[len(value)-4:]
}
