package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/afpkennettt/semanalyzer/internal/models"
)

// formatClientList formats the client roster as markdown
func formatClientList(clients []*models.Client, statusFilter string) string {
	var sb strings.Builder
	if statusFilter != "" {
		sb.WriteString(fmt.Sprintf("## Clients (%s, %d)\n\n", statusFilter, len(clients)))
	} else {
		sb.WriteString(fmt.Sprintf("## Clients (%d)\n\n", len(clients)))
	}

	if len(clients) == 0 {
		sb.WriteString("No clients found.\n")
		return sb.String()
	}

	for i, client := range clients {
		state := "inactive"
		if client.Active {
			state = "active"
		}
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s)\n", i+1, client.Name, state))
		sb.WriteString(fmt.Sprintf("   ID: %s\n", client.ID))
		sb.WriteString(fmt.Sprintf("   Website: %s\n", client.Website))
		if client.HasProject() {
			sb.WriteString(fmt.Sprintf("   SEMrush project: %s\n", client.SemrushProjectID))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatClientSummary formats a client with its latest audit state
func formatClientSummary(client *models.Client, latest *models.Analysis, active *models.Task) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", client.Name))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", client.ID))
	sb.WriteString(fmt.Sprintf("**Website:** %s\n", client.Website))
	if client.Email != "" {
		sb.WriteString(fmt.Sprintf("**Email:** %s\n", client.Email))
	}
	sb.WriteString(fmt.Sprintf("**Active:** %v\n", client.Active))
	if client.HasProject() {
		sb.WriteString(fmt.Sprintf("**SEMrush project:** %s (%s)\n", client.SemrushProjectName, client.SemrushProjectID))
	}
	sb.WriteString(fmt.Sprintf("**Created:** %s\n\n", client.CreatedAt.Format(time.RFC3339)))

	if active != nil {
		sb.WriteString("## In-flight Audit\n\n")
		sb.WriteString(fmt.Sprintf("Task %s is %s", active.ID, active.Status))
		if stage := active.Stage(); stage != "" {
			sb.WriteString(fmt.Sprintf(" (stage: %s)", stage))
		}
		sb.WriteString("\n\n")
	}

	if latest == nil {
		sb.WriteString("No completed audits yet.\n")
		return sb.String()
	}

	sb.WriteString("## Latest Audit\n\n")
	sb.WriteString(fmt.Sprintf("**Analysis ID:** %s\n", latest.ID))
	sb.WriteString(fmt.Sprintf("**Date:** %s\n", latest.AnalysisDate.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("**Errors:** %d | **Warnings:** %d | **Notices:** %d\n", latest.TotalErrors, latest.TotalWarnings, latest.TotalNotices))
	sb.WriteString(fmt.Sprintf("**Pages crawled:** %d of %d\n", latest.PagesCrawled, latest.PagesLimit))
	sb.WriteString(fmt.Sprintf("**Pages with issues:** %d (%+d vs previous)\n", latest.PagesWithIssues, latest.PagesWithIssuesDelta))

	return sb.String()
}

// formatAnalysis formats a full analysis with its top issues
func formatAnalysis(analysis *models.Analysis, issues []*models.AnalysisError) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Site Audit %s\n\n", analysis.AnalysisDate.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("**Analysis ID:** %s\n", analysis.ID))
	sb.WriteString(fmt.Sprintf("**Client ID:** %s\n", analysis.ClientID))
	if analysis.SemrushSnapshotID != "" {
		sb.WriteString(fmt.Sprintf("**Snapshot:** %s\n", analysis.SemrushSnapshotID))
	}
	sb.WriteString("\n## Counters\n\n")
	sb.WriteString(fmt.Sprintf("| Errors | Warnings | Notices |\n|---|---|---|\n| %d | %d | %d |\n\n", analysis.TotalErrors, analysis.TotalWarnings, analysis.TotalNotices))
	sb.WriteString(fmt.Sprintf("Pages: %d crawled (limit %d), %d healthy, %d broken, %d blocked, %d redirected\n\n",
		analysis.PagesCrawled, analysis.PagesLimit, analysis.Healthy, analysis.Broken, analysis.Blocked, analysis.Redirected))

	if len(issues) > 0 {
		top := issues
		if len(top) > 10 {
			top = top[:10]
		}
		sb.WriteString(fmt.Sprintf("## Top Issues (%d of %d)\n\n", len(top), len(issues)))
		for i, issue := range top {
			sb.WriteString(fmt.Sprintf("%d. [%s] %s", i+1, issue.Category, issue.Description))
			if issue.Count > 1 {
				sb.WriteString(fmt.Sprintf(" (%d occurrences)", issue.Count))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if analysis.Summary != "" {
		sb.WriteString("## Summary\n\n")
		sb.WriteString(analysis.Summary)
		sb.WriteString("\n\n")
	}
	if analysis.Insights != "" {
		sb.WriteString("## Insights\n\n")
		sb.WriteString(analysis.Insights)
		sb.WriteString("\n\n")
	}
	if analysis.Recommendations != "" {
		sb.WriteString("## Recommendations\n\n")
		sb.WriteString(analysis.Recommendations)
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatIssueList formats issue rows as markdown
func formatIssueList(analysisID, category string, issues []*models.AnalysisError) string {
	var sb strings.Builder
	if category != "" {
		sb.WriteString(fmt.Sprintf("## Issues for %s (%s, %d rows)\n\n", analysisID, category, len(issues)))
	} else {
		sb.WriteString(fmt.Sprintf("## Issues for %s (%d rows)\n\n", analysisID, len(issues)))
	}

	if len(issues) == 0 {
		sb.WriteString("No issues found.\n")
		return sb.String()
	}

	for i, issue := range issues {
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, issue.Description))
		sb.WriteString(fmt.Sprintf("**Category:** %s | **Severity:** %d | **Count:** %d\n", issue.Category, issue.Severity, issue.Count))
		if issue.SemrushIssueID != 0 {
			sb.WriteString(fmt.Sprintf("**SEMrush issue:** %d\n", issue.SemrushIssueID))
		}
		if issue.URL != "" {
			sb.WriteString(fmt.Sprintf("**URL:** %s\n", issue.URL))
		}
		if issue.Impact != "" {
			sb.WriteString(fmt.Sprintf("**Impact:** %s\n", issue.Impact))
		}
		if issue.Solution != "" {
			sb.WriteString(fmt.Sprintf("**Solution:** %s\n", issue.Solution))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatTask formats a task state as markdown
func formatTask(task *models.Task) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Task %s\n\n", task.ID))
	sb.WriteString(fmt.Sprintf("**Type:** %s\n", task.Type))
	sb.WriteString(fmt.Sprintf("**Status:** %s\n", task.Status))
	if stage := task.Stage(); stage != "" {
		sb.WriteString(fmt.Sprintf("**Stage:** %s\n", stage))
	}
	sb.WriteString(fmt.Sprintf("**Client:** %s\n", task.ClientID))
	sb.WriteString(fmt.Sprintf("**Created:** %s\n", task.CreatedAt.Format(time.RFC3339)))
	if task.StartedAt != nil {
		sb.WriteString(fmt.Sprintf("**Started:** %s\n", task.StartedAt.Format(time.RFC3339)))
	}
	if task.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("**Completed:** %s\n", task.CompletedAt.Format(time.RFC3339)))
	}
	if task.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("\n**Error:** %s\n", task.ErrorMessage))
	}
	if analysisID, ok := task.GetParamString(models.ParamAnalysisID); ok && analysisID != "" {
		sb.WriteString(fmt.Sprintf("\n**Analysis:** %s\n", analysisID))
	}

	return sb.String()
}
