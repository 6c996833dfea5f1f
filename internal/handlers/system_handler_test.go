package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/services/status"
)

func testConfig() *common.Config {
	return &common.Config{
		Environment: "development",
		Server:      common.ServerConfig{Port: 8085, Host: "localhost"},
		Semrush:     common.SemrushConfig{APIKey: "sk-1234567890abcdef"},
	}
}

func TestVersionHandler(t *testing.T) {
	handler := NewSystemHandler(testConfig(), nil, nil, nil, nil, nil)

	req := httptest.NewRequest("GET", "/api/version", nil)
	rec := httptest.NewRecorder()
	handler.VersionHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)
	if _, ok := response["version"]; !ok {
		t.Error("Expected version field")
	}
}

func TestHealthHandler(t *testing.T) {
	handler := NewSystemHandler(testConfig(), nil, nil, nil, nil, nil)

	req := httptest.NewRequest("GET", "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.HealthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)
	if response["status"] != "ok" {
		t.Errorf("Expected ok status, got %v", response["status"])
	}
}

func TestGetStatusHandler(t *testing.T) {
	storage := newTestStorage(t)
	seedClient(t, storage, "Acme Corp", "https://acme.com")

	statusSvc := status.NewService(nil, nil)
	handler := NewSystemHandler(testConfig(), statusSvc, storage, nil, nil, nil)

	req := httptest.NewRequest("GET", "/api/status", nil)
	rec := httptest.NewRecorder()
	handler.GetStatusHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)
	if response["state"] != "idle" {
		t.Errorf("Expected idle state, got %v", response["state"])
	}

	counts := response["counts"].(map[string]interface{})
	if int(counts["clients"].(float64)) != 1 {
		t.Errorf("Expected 1 client counted, got %v", counts["clients"])
	}
	if int(counts["tasks"].(float64)) != 0 {
		t.Errorf("Expected 0 tasks counted, got %v", counts["tasks"])
	}
}

func TestGetConfigHandler_RedactsSecrets(t *testing.T) {
	config := testConfig()
	handler := NewSystemHandler(config, nil, nil, nil, nil, nil)

	req := httptest.NewRequest("GET", "/api/config", nil)
	rec := httptest.NewRecorder()
	handler.GetConfigHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)

	returned := response["config"].(map[string]interface{})
	semrush := returned["Semrush"].(map[string]interface{})
	if semrush["APIKey"] != "sk-1...cdef" {
		t.Errorf("Expected masked API key, got %v", semrush["APIKey"])
	}

	// The live config must not be mutated by redaction
	if config.Semrush.APIKey != "sk-1234567890abcdef" {
		t.Errorf("Live config was mutated: %q", config.Semrush.APIKey)
	}

	if int(response["port"].(float64)) != 8085 {
		t.Errorf("Expected port 8085, got %v", response["port"])
	}
}

func TestNotFoundHandler(t *testing.T) {
	handler := NewSystemHandler(testConfig(), nil, nil, nil, nil, nil)

	req := httptest.NewRequest("GET", "/api/no-such-endpoint", nil)
	rec := httptest.NewRecorder()
	handler.NotFoundHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}
	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)
	if response["path"] != "/api/no-such-endpoint" {
		t.Errorf("Expected echoed path, got %v", response["path"])
	}
}
