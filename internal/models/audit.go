// -----------------------------------------------------------------------
// Audit payloads - Normalized SEMrush site audit data
// -----------------------------------------------------------------------

package models

// AuditState is the normalized polling verdict for a launched audit.
type AuditState string

const (
	AuditStateInProgress AuditState = "in_progress"
	AuditStateDone       AuditState = "done"
	AuditStateFailed     AuditState = "failed"
)

// AuditCheck pairs the normalized verdict with the latest raw status string
// the provider reported, which is surfaced to clients while polling.
type AuditCheck struct {
	State     AuditState `json:"state"`
	RawStatus string     `json:"raw_status,omitempty"`
}

// ProjectInfo describes a SEMrush project as returned by the management API.
type ProjectInfo struct {
	ID      string `json:"project_id"`
	Name    string `json:"project_name"`
	OwnerID string `json:"owner_id,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Defect groups and their fixed severities. Severity is stored denormalized
// on every AnalysisError row so queries can order without a join.
const (
	GroupError   = "error"
	GroupWarning = "warning"
	GroupNotice  = "notice"

	SeverityError   = 8
	SeverityWarning = 5
	SeverityNotice  = 3
)

// ClassifyIssueID maps a numeric SEMrush issue id to a defect group when no
// explicit classification is available. The ranges follow the provider's id
// allocation (errors below 100, warnings below 200) and are approximate;
// callers mark rows classified this way.
func ClassifyIssueID(id int) (group string, severity int) {
	switch {
	case id < 100:
		return GroupError, SeverityError
	case id < 200:
		return GroupWarning, SeverityWarning
	default:
		return GroupNotice, SeverityNotice
	}
}

// SeverityForGroup returns the fixed severity for a defect group, defaulting
// to the warning severity for unknown groups.
func SeverityForGroup(group string) int {
	switch group {
	case GroupError:
		return SeverityError
	case GroupWarning:
		return SeverityWarning
	case GroupNotice:
		return SeverityNotice
	default:
		return SeverityWarning
	}
}

// CampaignSummary carries the audit-wide counters. Status holds the
// provider's report status ("FINISHED" when the provider omitted one) or the
// literal "error" when the payload could not be interpreted at all; an
// all-zero summary with Status "error" is the degradation sentinel, distinct
// from a genuinely clean site.
type CampaignSummary struct {
	Errors          int    `json:"errors"`
	Warnings        int    `json:"warnings"`
	Notices         int    `json:"notices"`
	Broken          int    `json:"broken"`
	Blocked         int    `json:"blocked"`
	Redirected      int    `json:"redirected"`
	Healthy         int    `json:"healthy"`
	PagesCrawled    int    `json:"pages_crawled"`
	PagesLimit      int    `json:"pages_limit"`
	HaveIssues      int    `json:"have_issues"`
	HaveIssuesDelta int    `json:"have_issues_delta"`
	Quality         int    `json:"quality"`
	Status          string `json:"status"`
}

// DefectItem is a single issue type within a defect bucket.
type DefectItem struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Count int    `json:"count"`
	URL   string `json:"url,omitempty"`
	// Approximate marks items whose group was inferred from the id range
	// rather than reported by the provider.
	Approximate bool `json:"approximate,omitempty"`
}

// DefectCategory is one severity bucket of the defect breakdown.
type DefectCategory struct {
	Group    string       `json:"group"`
	Severity int          `json:"severity"`
	Count    int          `json:"count"`
	Items    []DefectItem `json:"items"`
}

// DefectSet is the three-bucket defect breakdown of an audit.
type DefectSet struct {
	Errors   DefectCategory `json:"errors"`
	Warnings DefectCategory `json:"warnings"`
	Notices  DefectCategory `json:"notices"`
}

// EmptyDefectSet returns the zero-count skeleton with groups and severities
// pre-filled, so downstream code never branches on missing buckets.
func EmptyDefectSet() DefectSet {
	return DefectSet{
		Errors:   DefectCategory{Group: GroupError, Severity: SeverityError, Items: []DefectItem{}},
		Warnings: DefectCategory{Group: GroupWarning, Severity: SeverityWarning, Items: []DefectItem{}},
		Notices:  DefectCategory{Group: GroupNotice, Severity: SeverityNotice, Items: []DefectItem{}},
	}
}

// Categories returns the buckets keyed by their JSON name, in severity order.
func (d *DefectSet) Categories() []struct {
	Key      string
	Category DefectCategory
} {
	return []struct {
		Key      string
		Category DefectCategory
	}{
		{"errors", d.Errors},
		{"warnings", d.Warnings},
		{"notices", d.Notices},
	}
}

// AuditResult is the normalized outcome of a finished audit: the summary,
// the defect breakdown and the raw provider payload kept for later
// reprocessing.
type AuditResult struct {
	Summary    CampaignSummary        `json:"campaign_info"`
	Defects    DefectSet              `json:"defects"`
	SnapshotID string                 `json:"snapshot_id,omitempty"`
	Raw        map[string]interface{} `json:"raw_info,omitempty"`
}

// IsError reports whether the result is the degradation sentinel produced
// from an uninterpretable payload.
func (r *AuditResult) IsError() bool {
	return r.Summary.Status == "error"
}
