package semrush

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/afpkennettt/semanalyzer/internal/models"
)

// maxMetaSampleItems bounds how many issues per bucket the metadata shape
// keeps as samples; the counts still cover everything.
const maxMetaSampleItems = 5

// Normalize converts a raw provider payload into an AuditResult. It is
// total: every payload shape, nil included, yields a usable result. Already
// combined payloads pass through, campaign info reports and issue metadata
// listings are converted, and anything else becomes the error-status
// sentinel instead of an error return.
func Normalize(data map[string]interface{}, snapshotID string) *models.AuditResult {
	if len(data) == 0 {
		return errorResult(data, snapshotID)
	}

	_, hasSummary := data["campaign_info"].(map[string]interface{})
	_, hasDefects := data["defects"].(map[string]interface{})
	if hasSummary && hasDefects {
		return normalizeCombined(data, snapshotID)
	}

	if isInfoShape(data) {
		return normalizeInfo(data, snapshotID)
	}

	if issues, ok := data["issues"].([]interface{}); ok {
		return normalizeMeta(data, issues, snapshotID)
	}

	return errorResult(data, snapshotID)
}

// isInfoShape detects the campaign info report by its counter keys; the
// issue metadata shape carries error_count style keys instead.
func isInfoShape(data map[string]interface{}) bool {
	for _, key := range []string{"errors", "warnings", "notices", "haveIssues"} {
		if _, ok := data[key]; ok {
			return true
		}
	}
	return false
}

// normalizeInfo converts the campaign info report. Each defect group
// arrives either as a bare count or as a list of issue entries.
func normalizeInfo(data map[string]interface{}, snapshotID string) *models.AuditResult {
	errors := infoBucket(models.GroupError, data["errors"], "Error")
	warnings := infoBucket(models.GroupWarning, data["warnings"], "Warning")
	notices := infoBucket(models.GroupNotice, data["notices"], "Notice")

	summary := models.CampaignSummary{
		Errors:          errors.Count,
		Warnings:        warnings.Count,
		Notices:         notices.Count,
		Broken:          toInt(data["broken"]),
		Blocked:         toInt(data["blocked"]),
		Redirected:      toInt(data["redirected"]),
		Healthy:         toInt(data["healthy"]),
		PagesCrawled:    toInt(data["pages_crawled"]),
		PagesLimit:      toInt(data["pages_limit"]),
		HaveIssues:      toInt(data["haveIssues"]),
		HaveIssuesDelta: toInt(data["haveIssuesDelta"]),
		Quality:         qualityValue(data["quality"]),
		Status:          stringOr(data["status"], "FINISHED"),
	}

	snapshot := asString(data["snapshot_id"])
	if snapshot == "" {
		snapshot = snapshotID
	}

	return &models.AuditResult{
		Summary:    summary,
		Defects:    models.DefectSet{Errors: errors, Warnings: warnings, Notices: notices},
		SnapshotID: snapshot,
		Raw:        data,
	}
}

func infoBucket(group string, v interface{}, label string) models.DefectCategory {
	category := models.DefectCategory{
		Group:    group,
		Severity: models.SeverityForGroup(group),
		Items:    []models.DefectItem{},
	}

	list, ok := v.([]interface{})
	if !ok {
		category.Count = toInt(v)
		return category
	}

	category.Count = len(list)
	for i, raw := range list {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		id := asString(item["id"])
		if id == "" {
			id = strconv.Itoa(i)
		}
		category.Items = append(category.Items, models.DefectItem{
			ID:    id,
			Text:  fmt.Sprintf("%s %s", label, id),
			Count: toInt(item["count"]),
		})
	}
	return category
}

// normalizeMeta converts the issue metadata listing. The declared severity
// of each issue decides its bucket; issues without one fall back to the id
// range and are marked approximate. Explicit per-severity counters in the
// payload override the tally.
func normalizeMeta(data map[string]interface{}, issues []interface{}, snapshotID string) *models.AuditResult {
	defects := models.EmptyDefectSet()
	counts := map[string]int{}

	for _, raw := range issues {
		issue, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		group, approximate := classifyMetaIssue(issue)
		counts[group]++

		bucket := bucketFor(&defects, group)
		if len(bucket.Items) >= maxMetaSampleItems {
			continue
		}
		bucket.Items = append(bucket.Items, models.DefectItem{
			ID:          asString(issue["id"]),
			Text:        stringOr(issue["title"], "Unknown Issue"),
			Count:       1,
			Approximate: approximate,
		})
	}

	errorCount := counts[models.GroupError]
	warningCount := counts[models.GroupWarning]
	noticeCount := counts[models.GroupNotice]
	if v, ok := data["error_count"]; ok {
		errorCount = toInt(v)
	}
	if v, ok := data["warning_count"]; ok {
		warningCount = toInt(v)
	}
	if v, ok := data["notice_count"]; ok {
		noticeCount = toInt(v)
	}
	defects.Errors.Count = errorCount
	defects.Warnings.Count = warningCount
	defects.Notices.Count = noticeCount

	summary := models.CampaignSummary{
		Errors:          errorCount,
		Warnings:        warningCount,
		Notices:         noticeCount,
		Broken:          toInt(data["broken"]),
		Blocked:         toInt(data["blocked"]),
		Redirected:      toInt(data["redirected"]),
		Healthy:         toInt(data["healthy"]),
		PagesCrawled:    toInt(data["pages_crawled"]),
		PagesLimit:      toInt(data["pages_limit"]),
		HaveIssues:      toInt(data["haveIssues"]),
		HaveIssuesDelta: toInt(data["haveIssuesDelta"]),
		Quality:         qualityValue(data["quality"]),
		Status:          "done",
	}

	snapshot := asString(data["snapshot_id"])
	if snapshot == "" {
		snapshot = snapshotID
	}

	return &models.AuditResult{
		Summary:    summary,
		Defects:    defects,
		SnapshotID: snapshot,
		Raw:        data,
	}
}

// classifyMetaIssue resolves the defect group for a metadata issue. The
// declared severity is authoritative; without one the numeric id range
// decides and the issue is marked approximate.
func classifyMetaIssue(issue map[string]interface{}) (group string, approximate bool) {
	if severity, ok := issue["severity"].(string); ok && severity != "" {
		switch strings.ToLower(severity) {
		case "error":
			return models.GroupError, false
		case "warning":
			return models.GroupWarning, false
		default:
			return models.GroupNotice, false
		}
	}
	group, _ = models.ClassifyIssueID(toInt(issue["id"]))
	return group, true
}

func bucketFor(defects *models.DefectSet, group string) *models.DefectCategory {
	switch group {
	case models.GroupError:
		return &defects.Errors
	case models.GroupWarning:
		return &defects.Warnings
	default:
		return &defects.Notices
	}
}

// normalizeCombined passes an already normalized payload through, as found
// in stored raw responses that get reprocessed.
func normalizeCombined(data map[string]interface{}, snapshotID string) *models.AuditResult {
	info, _ := data["campaign_info"].(map[string]interface{})
	defectsRaw, _ := data["defects"].(map[string]interface{})

	summary := models.CampaignSummary{
		Errors:          toInt(info["errors"]),
		Warnings:        toInt(info["warnings"]),
		Notices:         toInt(info["notices"]),
		Broken:          toInt(info["broken"]),
		Blocked:         toInt(info["blocked"]),
		Redirected:      toInt(info["redirected"]),
		Healthy:         toInt(info["healthy"]),
		PagesCrawled:    toInt(info["pages_crawled"]),
		PagesLimit:      toInt(info["pages_limit"]),
		HaveIssues:      toInt(info["have_issues"]),
		HaveIssuesDelta: toInt(info["have_issues_delta"]),
		Quality:         toInt(info["quality"]),
		Status:          stringOr(info["status"], stringOr(data["status"], "done")),
	}

	defects := models.DefectSet{
		Errors:   combinedBucket(models.GroupError, defectsRaw["errors"]),
		Warnings: combinedBucket(models.GroupWarning, defectsRaw["warnings"]),
		Notices:  combinedBucket(models.GroupNotice, defectsRaw["notices"]),
	}

	snapshot := asString(data["snapshot_id"])
	if snapshot == "" {
		snapshot = snapshotID
	}

	return &models.AuditResult{
		Summary:    summary,
		Defects:    defects,
		SnapshotID: snapshot,
		Raw:        data,
	}
}

func combinedBucket(group string, raw interface{}) models.DefectCategory {
	category := models.DefectCategory{
		Group:    group,
		Severity: models.SeverityForGroup(group),
		Items:    []models.DefectItem{},
	}

	fields, ok := raw.(map[string]interface{})
	if !ok {
		return category
	}
	category.Count = toInt(fields["count"])

	items, _ := fields["items"].([]interface{})
	for _, rawItem := range items {
		item, ok := rawItem.(map[string]interface{})
		if !ok {
			continue
		}
		category.Items = append(category.Items, models.DefectItem{
			ID:          asString(item["id"]),
			Text:        asString(item["text"]),
			Count:       toInt(item["count"]),
			URL:         asString(item["url"]),
			Approximate: boolOf(item["approximate"]),
		})
	}
	return category
}

// errorResult is the degradation sentinel for payloads that could not be
// interpreted: all-zero counters, the empty defect skeleton and the error
// status, with the offending payload preserved for inspection. Distinct
// from a genuinely clean site, whose status reports the crawl outcome.
func errorResult(data map[string]interface{}, snapshotID string) *models.AuditResult {
	raw := data
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return &models.AuditResult{
		Summary:    models.CampaignSummary{Status: "error"},
		Defects:    models.EmptyDefectSet(),
		SnapshotID: snapshotID,
		Raw:        raw,
	}
}

// toInt reads a numeric JSON value, counting lists by length. Anything
// unreadable counts as zero.
func toInt(v interface{}) int {
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
	case []interface{}:
		return len(n)
	}
	return 0
}

// asString renders scalar values that may arrive as strings or numbers.
func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatInt(int64(s), 10)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}

func stringOr(v interface{}, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func boolOf(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

// qualityValue digs the site health percentage out of its wrapper object.
func qualityValue(v interface{}) int {
	if wrapper, ok := v.(map[string]interface{}); ok {
		return toInt(wrapper["value"])
	}
	return toInt(v)
}
