package models

import (
	"fmt"
	"strings"
)

// InsightReport is the structured output contract for AI insight
// generation. The model replies in YAML matching these fields; the report
// is then flattened into the text columns on the Analysis row.
type InsightReport struct {
	Summary         string           `yaml:"summary" json:"summary"`
	Insights        []Insight        `yaml:"insights" json:"insights"`
	Recommendations []Recommendation `yaml:"recommendations" json:"recommendations"`

	// Issue-id keyed enrichment applied to matching AnalysisError rows
	ErrorImpacts   map[string]string `yaml:"error_impacts" json:"error_impacts,omitempty"`
	ErrorSolutions map[string]string `yaml:"error_solutions" json:"error_solutions,omitempty"`
}

// Insight is one observation about the site's SEO health.
type Insight struct {
	Insight  string `yaml:"insight" json:"insight"`
	Impact   string `yaml:"impact" json:"impact"`
	Priority int    `yaml:"priority" json:"priority"`
}

// Recommendation is one actionable improvement.
type Recommendation struct {
	Recommendation string `yaml:"recommendation" json:"recommendation"`
	Rationale      string `yaml:"rationale" json:"rationale"`
	Effort         string `yaml:"effort" json:"effort"`
	ExpectedImpact string `yaml:"expected_impact" json:"expected_impact"`
}

// FormatInsights renders the insight list as the numbered text block stored
// on the analysis.
func (r *InsightReport) FormatInsights() string {
	var b strings.Builder
	for i, in := range r.Insights {
		fmt.Fprintf(&b, "Insight %d: %s\n", i+1, in.Insight)
		fmt.Fprintf(&b, "Impact: %s\n", in.Impact)
		fmt.Fprintf(&b, "Priority: %d/10\n\n", in.Priority)
	}
	return b.String()
}

// FormatRecommendations renders the recommendation list as the numbered
// text block stored on the analysis.
func (r *InsightReport) FormatRecommendations() string {
	var b strings.Builder
	for i, rec := range r.Recommendations {
		fmt.Fprintf(&b, "Recommendation %d: %s\n", i+1, rec.Recommendation)
		fmt.Fprintf(&b, "Rationale: %s\n", rec.Rationale)
		fmt.Fprintf(&b, "Effort: %s\n", rec.Effort)
		fmt.Fprintf(&b, "Expected Impact: %s\n\n", rec.ExpectedImpact)
	}
	return b.String()
}
