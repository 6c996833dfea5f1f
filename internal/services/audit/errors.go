package audit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/afpkennettt/semanalyzer/internal/models"
)

// buildAnalysisErrors materializes the issue rows for a finished audit. Two
// passes: the defect buckets yield one row per sampled issue, enriched with
// the catalog title when one is known; the raw defect id map then yields
// rows for every issue the buckets did not sample.
func (s *Service) buildAnalysisErrors(ctx context.Context, analysis *models.Analysis, result *models.AuditResult) []*models.AnalysisError {
	rows := make([]*models.AnalysisError, 0)
	seen := make(map[string]bool)

	for _, bucket := range result.Defects.Categories() {
		category := strings.ToUpper(bucket.Key[:1]) + bucket.Key[1:]
		for _, item := range bucket.Category.Items {
			row := models.NewAnalysisError(analysis.ID, analysis.ClientID)
			row.ErrorType = bucket.Category.Group
			if row.ErrorType == "" {
				row.ErrorType = models.GroupWarning
			}
			row.Category = category
			row.Severity = bucket.Category.Severity
			if row.Severity == 0 {
				row.Severity = models.SeverityForGroup(row.ErrorType)
			}
			row.URL = item.URL
			row.Approximate = item.Approximate
			if item.Count > 0 {
				row.Count = item.Count
			}

			issueID, parsed := numericIssueID(item.ID)
			if parsed {
				row.SemrushIssueID = issueID
			}

			pages := pagesText(row.Count)
			title := ""
			if parsed && s.catalog != nil {
				title = s.catalog.TitleFor(ctx, issueID)
			}
			if title != "" {
				row.Description = fmt.Sprintf("Issue ID: %s (%s) - Issue Title: %s", item.ID, pages, title)
			} else {
				row.Description = fmt.Sprintf("Issue ID: %s (%s)", item.ID, pages)
			}

			seen[item.ID] = true
			rows = append(rows, row)
		}
	}

	return append(rows, s.rowsFromRawDefects(analysis, result.Raw, seen)...)
}

// rowsFromRawDefects converts the provider's defect id map (issue id to page
// count) into rows for ids the buckets did not already cover. The group
// comes from the snapshot's per-group issue lists; ids absent from those
// lists fall back to the id range and are marked approximate.
func (s *Service) rowsFromRawDefects(analysis *models.Analysis, raw map[string]interface{}, seen map[string]bool) []*models.AnalysisError {
	defects, ok := raw["defects"].(map[string]interface{})
	if !ok || len(defects) == 0 {
		return nil
	}

	snapshot := raw
	if current, ok := raw["current_snapshot"].(map[string]interface{}); ok {
		snapshot = current
	}

	groups := map[string]string{}
	for _, spec := range []struct{ key, group string }{
		{"errors", models.GroupError},
		{"warnings", models.GroupWarning},
		{"notices", models.GroupNotice},
	} {
		list, _ := snapshot[spec.key].([]interface{})
		for _, rawItem := range list {
			item, ok := rawItem.(map[string]interface{})
			if !ok {
				continue
			}
			if jsonInt(item["count"]) <= 0 {
				continue
			}
			if id := jsonString(item["id"]); id != "" {
				groups[id] = spec.group
			}
		}
	}

	ids := make([]string, 0, len(defects))
	for id := range defects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var rows []*models.AnalysisError
	for _, id := range ids {
		count := jsonInt(defects[id])
		if count <= 0 || seen[id] {
			continue
		}

		row := models.NewAnalysisError(analysis.ID, analysis.ClientID)
		row.Category = "SEMrush Issue ID"
		row.Count = count
		row.Description = fmt.Sprintf("Issue ID: %s (%s)", id, pagesText(count))

		if group, ok := groups[id]; ok {
			row.ErrorType = group
			row.Severity = models.SeverityForGroup(group)
		} else {
			numeric, parsed := numericIssueID(id)
			if !parsed {
				continue
			}
			group, severity := models.ClassifyIssueID(numeric)
			row.ErrorType = group
			row.Severity = severity
			row.Approximate = true
		}

		if numeric, parsed := numericIssueID(id); parsed {
			row.SemrushIssueID = numeric
		}

		rows = append(rows, row)
	}
	return rows
}

// pagesText renders the page count phrase used in issue descriptions.
func pagesText(count int) string {
	if count == 1 {
		return "Found on 1 page"
	}
	return fmt.Sprintf("Found on %d pages", count)
}

// numericIssueID parses a SEMrush issue id, which arrives as a string key.
func numericIssueID(id string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		return 0, false
	}
	return n, true
}

// jsonInt reads a numeric JSON value, tolerating string digits.
func jsonInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return 0
}

// jsonString renders an id value that may arrive as a string or a number.
func jsonString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatInt(int64(s), 10)
	case int:
		return strconv.Itoa(s)
	}
	return ""
}
