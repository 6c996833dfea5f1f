package models

import (
	"time"

	"github.com/google/uuid"
)

// Analysis is one completed site audit for a client. Counter columns are
// flattened from the campaign summary so list queries never deserialize the
// raw payload; RawResponse keeps the untouched provider data for
// reprocessing.
type Analysis struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id" badgerhold:"index"`
	AnalysisDate time.Time `json:"analysis_date"`

	SemrushProjectID  string `json:"semrush_project_id,omitempty"`
	SemrushSnapshotID string `json:"semrush_snapshot_id,omitempty"`

	TotalErrors   int `json:"total_errors"`
	TotalWarnings int `json:"total_warnings"`
	TotalNotices  int `json:"total_notices"`
	Broken        int `json:"broken"`
	Blocked       int `json:"blocked"`
	Redirected    int `json:"redirected"`
	Healthy       int `json:"healthy"`
	PagesCrawled  int `json:"pages_crawled"`
	PagesLimit    int `json:"pages_limit"`

	PagesWithIssues int `json:"pages_with_issues"`
	// PagesWithIssuesDelta is computed against the client's previous
	// analysis when this one is persisted.
	PagesWithIssuesDelta int `json:"pages_with_issues_delta"`

	RawResponse map[string]interface{} `json:"raw_response,omitempty"`
	Defects     DefectSet              `json:"defects"`

	// AI-generated text, back-filled after the audit completes
	Summary         string `json:"summary,omitempty"`
	Insights        string `json:"insights,omitempty"`
	Recommendations string `json:"recommendations,omitempty"`
}

// NewAnalysisFromResult flattens a normalized audit result into an Analysis
// row for the given client.
func NewAnalysisFromResult(clientID string, result *AuditResult) *Analysis {
	return &Analysis{
		ID:                uuid.New().String(),
		ClientID:          clientID,
		AnalysisDate:      time.Now(),
		SemrushSnapshotID: result.SnapshotID,
		TotalErrors:       result.Summary.Errors,
		TotalWarnings:     result.Summary.Warnings,
		TotalNotices:      result.Summary.Notices,
		Broken:            result.Summary.Broken,
		Blocked:           result.Summary.Blocked,
		Redirected:        result.Summary.Redirected,
		Healthy:           result.Summary.Healthy,
		PagesCrawled:      result.Summary.PagesCrawled,
		PagesLimit:        result.Summary.PagesLimit,
		PagesWithIssues:   result.Summary.HaveIssues,
		RawResponse:       result.Raw,
		Defects:           result.Defects,
	}
}

// TotalIssues returns the combined issue count across all three buckets.
func (a *Analysis) TotalIssues() int {
	return a.TotalErrors + a.TotalWarnings + a.TotalNotices
}

// HasInsights reports whether AI text was already generated for this row.
func (a *Analysis) HasInsights() bool {
	return a.Insights != "" || a.Recommendations != ""
}

// AnalysisError is one materialized issue row belonging to an analysis.
// ClientID duplicates the parent analysis' client so cascade deletes and
// per-client queries run off a single index.
type AnalysisError struct {
	ID         string `json:"id"`
	AnalysisID string `json:"analysis_id" badgerhold:"index"`
	ClientID   string `json:"client_id" badgerhold:"index"`

	ErrorType   string `json:"error_type"`
	Category    string `json:"category"`
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
	Severity    int    `json:"severity"`

	SemrushIssueID int `json:"semrush_issue_id,omitempty"`
	Count          int `json:"count"`

	// Approximate marks rows whose group came from the id-range fallback
	// instead of provider classification.
	Approximate bool `json:"approximate,omitempty"`

	// AI-generated enrichment, optional
	Impact   string `json:"impact,omitempty"`
	Solution string `json:"solution,omitempty"`
}

// NewAnalysisError creates an issue row with a fresh ID and a count floor
// of 1.
func NewAnalysisError(analysisID, clientID string) *AnalysisError {
	return &AnalysisError{
		ID:         uuid.New().String(),
		AnalysisID: analysisID,
		ClientID:   clientID,
		Count:      1,
	}
}
