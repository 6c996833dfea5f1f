package models

import "time"

// IssueDefinition is one entry of the SEMrush issue catalog: the static
// metadata for a numeric issue id. Synced periodically and used to enrich
// analysis error descriptions with human-readable titles.
type IssueDefinition struct {
	ID             int    `json:"id" badgerhold:"key"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Group          string `json:"group,omitempty"`
	IssueType      string `json:"issue_type,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// fallbackIssueTitles covers the ids most commonly reported by audits, used
// when the catalog has not been synced yet.
var fallbackIssueTitles = map[int]string{
	1:   "5xx server errors",
	2:   "4xx client errors",
	3:   "3xx redirects",
	4:   "Broken links",
	6:   "Connection timeout errors",
	8:   "HTTPS implementation issues",
	12:  "Mixed content issues",
	102: "Missing meta descriptions",
	104: "Missing title tags",
	112: "Title too short",
	117: "Title too long",
	123: "Duplicate title tags",
	202: "Low content pages",
	213: "Missing alt attributes",
	215: "Missing or invalid canonical URLs",
	216: "Missing H1 headings",
	217: "Multiple H1 headings",
	218: "Broken images",
}

// FallbackIssueTitle returns the built-in title for a well-known issue id,
// or "" when the id is not covered.
func FallbackIssueTitle(id int) string {
	return fallbackIssueTitles[id]
}
