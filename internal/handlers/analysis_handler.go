package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

// AnalysisHandler handles analysis retrieval HTTP requests
type AnalysisHandler struct {
	storage  interfaces.StorageManager
	insights interfaces.InsightService
	reports  interfaces.ReportService
	logger   arbor.ILogger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(storage interfaces.StorageManager, insights interfaces.InsightService, reports interfaces.ReportService, logger arbor.ILogger) *AnalysisHandler {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &AnalysisHandler{
		storage:  storage,
		insights: insights,
		reports:  reports,
		logger:   logger,
	}
}

// ListAnalysesHandler handles GET /api/analyses - lists analyses across all
// clients, newest first. Supports ?client_id= and pagination via limit/offset.
func (h *AnalysisHandler) ListAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	opts := GetListOptions(r)
	analyses, err := h.storage.AnalysisStorage().ListAnalyses(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list analyses")
		WriteError(w, http.StatusInternalServerError, "Failed to list analyses")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"analyses": analyses,
		"count":    len(analyses),
	})
}

// GetAnalysisHandler handles GET /api/analyses/{id} - retrieves one analysis
func (h *AnalysisHandler) GetAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	analysisID, ok := h.analysisIDFromPath(w, r)
	if !ok {
		return
	}

	analysis, err := h.storage.AnalysisStorage().GetAnalysis(r.Context(), analysisID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Analysis not found")
		return
	}

	WriteJSON(w, http.StatusOK, analysis)
}

// DeleteAnalysisHandler handles DELETE /api/analyses/{id} - removes an
// analysis and its issue rows
func (h *AnalysisHandler) DeleteAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	analysisID, ok := h.analysisIDFromPath(w, r)
	if !ok {
		return
	}

	if _, err := h.storage.AnalysisStorage().GetAnalysis(r.Context(), analysisID); err != nil {
		WriteError(w, http.StatusNotFound, "Analysis not found")
		return
	}

	if err := h.storage.AnalysisStorage().DeleteAnalysis(r.Context(), analysisID); err != nil {
		h.logger.Error().Err(err).Str("analysis_id", analysisID).Msg("Failed to delete analysis")
		WriteError(w, http.StatusInternalServerError, "Failed to delete analysis")
		return
	}

	h.logger.Info().Str("analysis_id", analysisID).Msg("Analysis deleted")
	WriteSuccess(w, "Analysis deleted successfully")
}

// AnalysisErrorsHandler handles GET /api/analyses/{id}/errors - lists the
// per-issue defect rows for an analysis, worst first. Pass ?grouped=true to
// bucket rows by category; order within each bucket is preserved.
func (h *AnalysisHandler) AnalysisErrorsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	analysisID, ok := h.analysisIDFromPath(w, r)
	if !ok {
		return
	}

	if _, err := h.storage.AnalysisStorage().GetAnalysis(r.Context(), analysisID); err != nil {
		WriteError(w, http.StatusNotFound, "Analysis not found")
		return
	}

	rows, err := h.storage.AnalysisStorage().GetAnalysisErrors(r.Context(), analysisID)
	if err != nil {
		h.logger.Error().Err(err).Str("analysis_id", analysisID).Msg("Failed to load analysis errors")
		WriteError(w, http.StatusInternalServerError, "Failed to load analysis errors")
		return
	}

	if grouped, _ := strconv.ParseBool(r.URL.Query().Get("grouped")); grouped {
		groups := make(map[string][]*models.AnalysisError)
		for _, row := range rows {
			groups[row.Category] = append(groups[row.Category], row)
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"analysis_id": analysisID,
			"grouped":     groups,
			"count":       len(rows),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"analysis_id": analysisID,
		"errors":      rows,
		"count":       len(rows),
	})
}

// InsightsHandler handles GET /api/analyses/{id}/insights - returns the
// AI-generated text for an analysis as a markdown document, or as HTML when
// ?format=html is passed
func (h *AnalysisHandler) InsightsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	analysisID, ok := h.analysisIDFromPath(w, r)
	if !ok {
		return
	}

	analysis, err := h.storage.AnalysisStorage().GetAnalysis(r.Context(), analysisID)
	if err != nil {
		WriteError(w, http.StatusNotFound, "Analysis not found")
		return
	}

	if analysis.Summary == "" && !analysis.HasInsights() {
		WriteError(w, http.StatusNotFound, "No insights generated for this analysis yet")
		return
	}

	markdown := insightsMarkdown(analysis)

	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(h.markdownToHTML(markdown)))
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(markdown))
}

// RegenerateInsightsHandler handles POST /api/analyses/{id}/insights - runs
// insight generation for the analysis again, replacing the stored text
func (h *AnalysisHandler) RegenerateInsightsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	analysisID, ok := h.analysisIDFromPath(w, r)
	if !ok {
		return
	}

	if h.insights == nil {
		WriteError(w, http.StatusServiceUnavailable, "Insight generation is not configured")
		return
	}

	task, err := h.insights.GenerateForAnalysis(r.Context(), analysisID)
	if err != nil {
		if strings.Contains(err.Error(), "failed to load analysis") {
			WriteError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		h.logger.Error().Err(err).Str("analysis_id", analysisID).Msg("Insight generation failed")
		WriteError(w, http.StatusInternalServerError, "Failed to generate insights")
		return
	}

	h.logger.Info().
		Str("analysis_id", analysisID).
		Str("task_id", task.ID).
		Msg("Insights regenerated via API")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Insights regenerated",
		"task":    task,
	})
}

// ReportHandler handles GET /api/analyses/{id}/report.pdf - renders the
// analysis as a downloadable PDF report
func (h *AnalysisHandler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	analysisID, ok := h.analysisIDFromPath(w, r)
	if !ok {
		return
	}

	pdf, err := h.reports.GenerateAuditReport(r.Context(), analysisID)
	if err != nil {
		if strings.Contains(err.Error(), "failed to load analysis") {
			WriteError(w, http.StatusNotFound, "Analysis not found")
			return
		}
		h.logger.Error().Err(err).Str("analysis_id", analysisID).Msg("Failed to generate report")
		WriteError(w, http.StatusInternalServerError, "Failed to generate report")
		return
	}

	shortID := analysisID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "audit-report-"+shortID+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// insightsMarkdown assembles the stored AI text into a single markdown
// document, mirroring the section layout of the PDF report.
func insightsMarkdown(analysis *models.Analysis) string {
	var b strings.Builder
	b.WriteString("# SEO Audit Insights\n\n")
	b.WriteString("Analysis " + analysis.ID + ", generated " + analysis.AnalysisDate.Format("2 January 2006") + "\n")

	if analysis.Summary != "" {
		b.WriteString("\n## Summary\n\n")
		b.WriteString(strings.TrimSpace(analysis.Summary))
		b.WriteString("\n")
	}
	if analysis.Insights != "" {
		b.WriteString("\n## Key Insights\n\n")
		b.WriteString(strings.TrimSpace(analysis.Insights))
		b.WriteString("\n")
	}
	if analysis.Recommendations != "" {
		b.WriteString("\n## Recommendations\n\n")
		b.WriteString(strings.TrimSpace(analysis.Recommendations))
		b.WriteString("\n")
	}

	return b.String()
}

// markdownToHTML converts markdown to HTML using goldmark with GitHub
// Flavored Markdown extensions
func (h *AnalysisHandler) markdownToHTML(markdown string) string {
	// Strip an outer code fence that LLMs sometimes wrap their output in
	markdown = stripOuterCodeFence(markdown)

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		h.logger.Error().Err(err).Int("input_len", len(markdown)).Msg("Failed to convert markdown to HTML")
		// Return the markdown wrapped in pre tags as fallback
		return "<pre>" + escapeHTML(markdown) + "</pre>"
	}

	return buf.String()
}

// stripOuterCodeFence removes a markdown code fence that wraps the entire
// content, including the ```markdown language-hint variant. An unclosed
// opening fence is also stripped.
func stripOuterCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	firstNewline := strings.Index(content, "\n")
	if firstNewline == -1 {
		return content
	}

	inner := content[firstNewline+1:]
	trimmed := strings.TrimRight(inner, " \t\n\r")
	if strings.HasSuffix(trimmed, "```") {
		return strings.TrimRight(strings.TrimSuffix(trimmed, "```"), " \t\n\r")
	}

	return inner
}

// escapeHTML escapes HTML special characters for safe embedding
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&#39;")
	return s
}

// analysisIDFromPath extracts the id segment from /api/analyses/{id}[/suffix].
func (h *AnalysisHandler) analysisIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/analyses/")
	if idx := strings.Index(rest, "/"); idx >= 0 {
		rest = rest[:idx]
	}

	analysisID, err := url.QueryUnescape(rest)
	if err != nil || analysisID == "" {
		WriteError(w, http.StatusBadRequest, "Missing analysis ID")
		return "", false
	}

	return analysisID, true
}
