package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/afpkennettt/semanalyzer/internal/services/insights"
	"github.com/afpkennettt/semanalyzer/internal/services/reports"
)

func TestGetAnalysisHandler(t *testing.T) {
	storage := newTestStorage(t)
	handler := NewAnalysisHandler(storage, nil, nil, nil)
	client := seedClient(t, storage, "Acme Corp", "https://acme.com")
	analysis := seedCompletedAnalysis(t, storage, client.ID)

	req := httptest.NewRequest("GET", "/api/analyses/"+analysis.ID, nil)
	rec := httptest.NewRecorder()
	handler.GetAnalysisHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)
	if response["id"] != analysis.ID {
		t.Errorf("Expected analysis %s, got %v", analysis.ID, response["id"])
	}
	if int(response["total_errors"].(float64)) != 3 {
		t.Errorf("Expected 3 total errors, got %v", response["total_errors"])
	}
}

func TestGetAnalysisHandler_NotFound(t *testing.T) {
	storage := newTestStorage(t)
	handler := NewAnalysisHandler(storage, nil, nil, nil)

	req := httptest.NewRequest("GET", "/api/analyses/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	handler.GetAnalysisHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestListAnalysesHandler_ClientFilter(t *testing.T) {
	storage := newTestStorage(t)
	handler := NewAnalysisHandler(storage, nil, nil, nil)
	first := seedClient(t, storage, "Acme Corp", "https://acme.com")
	second := seedClient(t, storage, "Beta LLC", "https://beta.com")
	seedCompletedAnalysis(t, storage, first.ID)
	seedCompletedAnalysis(t, storage, first.ID)
	seedCompletedAnalysis(t, storage, second.ID)

	req := httptest.NewRequest("GET", "/api/analyses?client_id="+first.ID, nil)
	rec := httptest.NewRecorder()
	handler.ListAnalysesHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)
	if int(response["count"].(float64)) != 2 {
		t.Errorf("Expected 2 analyses for first client, got %v", response["count"])
	}
}

func TestDeleteAnalysisHandler(t *testing.T) {
	storage := newTestStorage(t)
	handler := NewAnalysisHandler(storage, nil, nil, nil)
	client := seedClient(t, storage, "Acme Corp", "https://acme.com")
	analysis := seedCompletedAnalysis(t, storage, client.ID)

	req := httptest.NewRequest("DELETE", "/api/analyses/"+analysis.ID, nil)
	rec := httptest.NewRecorder()
	handler.DeleteAnalysisHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := storage.AnalysisStorage().GetAnalysis(context.Background(), analysis.ID); err == nil {
		t.Error("Expected analysis to be deleted")
	}
}

func TestAnalysisErrorsHandler_Flat(t *testing.T) {
	storage := newTestStorage(t)
	handler := NewAnalysisHandler(storage, nil, nil, nil)
	client := seedClient(t, storage, "Acme Corp", "https://acme.com")
	analysis := seedCompletedAnalysis(t, storage, client.ID)

	req := httptest.NewRequest("GET", "/api/analyses/"+analysis.ID+"/errors", nil)
	rec := httptest.NewRecorder()
	handler.AnalysisErrorsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)
	rows := response["errors"].([]interface{})
	if len(rows) != 2 {
		t.Fatalf("Expected 2 issue rows, got %d", len(rows))
	}

	// Worst first: the severity-8 error row precedes the severity-5 warning
	first := rows[0].(map[string]interface{})
	if int(first["severity"].(float64)) != 8 {
		t.Errorf("Expected worst row first (severity 8), got %v", first["severity"])
	}
}

func TestAnalysisErrorsHandler_Grouped(t *testing.T) {
	storage := newTestStorage(t)
	handler := NewAnalysisHandler(storage, nil, nil, nil)
	client := seedClient(t, storage, "Acme Corp", "https://acme.com")
	analysis := seedCompletedAnalysis(t, storage, client.ID)

	req := httptest.NewRequest("GET", "/api/analyses/"+analysis.ID+"/errors?grouped=true", nil)
	rec := httptest.NewRecorder()
	handler.AnalysisErrorsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)
	grouped := response["grouped"].(map[string]interface{})

	if _, ok := grouped["Errors"]; !ok {
		t.Error("Expected an Errors bucket")
	}
	if _, ok := grouped["Warnings"]; !ok {
		t.Error("Expected a Warnings bucket")
	}
	errorRows := grouped["Errors"].([]interface{})
	if len(errorRows) != 1 {
		t.Errorf("Expected 1 error row in bucket, got %d", len(errorRows))
	}
	if int(response["count"].(float64)) != 2 {
		t.Errorf("Expected total count 2, got %v", response["count"])
	}
}

func TestInsightsHandler_Markdown(t *testing.T) {
	storage := newTestStorage(t)
	handler := NewAnalysisHandler(storage, nil, nil, nil)
	client := seedClient(t, storage, "Acme Corp", "https://acme.com")
	analysis := seedCompletedAnalysis(t, storage, client.ID)

	err := storage.AnalysisStorage().UpdateInsights(context.Background(), analysis.ID,
		"The site is broadly healthy.",
		"- Error count fell compared to the previous crawl",
		"- Fix the remaining redirect chains")
	if err != nil {
		t.Fatalf("failed to store insights: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/analyses/"+analysis.ID+"/insights", nil)
	rec := httptest.NewRecorder()
	handler.InsightsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("Expected markdown content type, got %q", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{"# SEO Audit Insights", "## Summary", "## Key Insights", "## Recommendations", "redirect chains"} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected markdown to contain %q", want)
		}
	}
}

func TestInsightsHandler_HTML(t *testing.T) {
	storage := newTestStorage(t)
	handler := NewAnalysisHandler(storage, nil, nil, nil)
	client := seedClient(t, storage, "Acme Corp", "https://acme.com")
	analysis := seedCompletedAnalysis(t, storage, client.ID)

	err := storage.AnalysisStorage().UpdateInsights(context.Background(), analysis.ID,
		"The site is broadly healthy.",
		"- Error count fell",
		"- Fix redirects")
	if err != nil {
		t.Fatalf("failed to store insights: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/analyses/"+analysis.ID+"/insights?format=html", nil)
	rec := httptest.NewRecorder()
	handler.InsightsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected HTML content type, got %q", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "<h1") || !strings.Contains(body, "<h2") {
		t.Errorf("Expected rendered headings in HTML output, got: %s", body)
	}
	if !strings.Contains(body, "<li>") {
		t.Errorf("Expected rendered list items in HTML output, got: %s", body)
	}
	if strings.Contains(body, "## ") {
		t.Error("Expected markdown syntax to be converted, found raw heading markers")
	}
}

func TestInsightsHandler_NoneGenerated(t *testing.T) {
	storage := newTestStorage(t)
	handler := NewAnalysisHandler(storage, nil, nil, nil)
	client := seedClient(t, storage, "Acme Corp", "https://acme.com")
	analysis := seedCompletedAnalysis(t, storage, client.ID)

	req := httptest.NewRequest("GET", "/api/analyses/"+analysis.ID+"/insights", nil)
	rec := httptest.NewRecorder()
	handler.InsightsHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 before generation, got %d", rec.Code)
	}
}

func TestRegenerateInsightsHandler(t *testing.T) {
	storage := newTestStorage(t)
	client := seedClient(t, storage, "Acme Corp", "https://acme.com")
	analysis := seedCompletedAnalysis(t, storage, client.ID)

	// No LLM configured: generation falls back to deterministic text
	svc := insights.NewService(storage, nil, nil, nil, nil)
	handler := NewAnalysisHandler(storage, svc, nil, nil)

	req := httptest.NewRequest("POST", "/api/analyses/"+analysis.ID+"/insights", nil)
	rec := httptest.NewRecorder()
	handler.RegenerateInsightsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var response map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&response)
	task := response["task"].(map[string]interface{})
	if task["type"] != "generate_insights" {
		t.Errorf("Expected generate_insights task, got %v", task["type"])
	}
	if task["status"] != "completed" {
		t.Errorf("Expected completed task, got %v", task["status"])
	}

	stored, err := storage.AnalysisStorage().GetAnalysis(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("failed to reload analysis: %v", err)
	}
	if !stored.HasInsights() {
		t.Error("Expected insights to be stored after regeneration")
	}
}

func TestRegenerateInsightsHandler_MissingAnalysis(t *testing.T) {
	storage := newTestStorage(t)
	svc := insights.NewService(storage, nil, nil, nil, nil)
	handler := NewAnalysisHandler(storage, svc, nil, nil)

	req := httptest.NewRequest("POST", "/api/analyses/"+uuid.New().String()+"/insights", nil)
	rec := httptest.NewRecorder()
	handler.RegenerateInsightsHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestReportHandler(t *testing.T) {
	storage := newTestStorage(t)
	client := seedClient(t, storage, "Acme Corp", "https://acme.com")
	analysis := seedCompletedAnalysis(t, storage, client.ID)

	svc := reports.NewService(storage, nil)
	handler := NewAnalysisHandler(storage, nil, svc, nil)

	req := httptest.NewRequest("GET", "/api/analyses/"+analysis.ID+"/report.pdf", nil)
	rec := httptest.NewRecorder()
	handler.ReportHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Expected application/pdf, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Expected attachment disposition, got %q", cd)
	}

	body := rec.Body.Bytes()
	if len(body) < 4 || string(body[:4]) != "%PDF" {
		t.Error("Expected response body to be a PDF document")
	}
}

func TestReportHandler_MissingAnalysis(t *testing.T) {
	storage := newTestStorage(t)
	svc := reports.NewService(storage, nil)
	handler := NewAnalysisHandler(storage, nil, svc, nil)

	req := httptest.NewRequest("GET", "/api/analyses/"+uuid.New().String()+"/report.pdf", nil)
	rec := httptest.NewRecorder()
	handler.ReportHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}
