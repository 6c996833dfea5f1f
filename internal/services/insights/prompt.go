package insights

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

const insightSystemPrompt = `You are an expert SEO consultant analyzing website performance data. Your task is to provide professional, data-driven insights and recommendations based on site audit results.

OUTPUT FORMAT: Valid YAML only. No markdown, no explanations outside YAML.`

// buildInsightPrompt assembles the user prompt: audit counters, trend
// comparison, top issue types per severity, a small sample of defect rows
// and optional homepage context, followed by the output contract.
func buildInsightPrompt(client *models.Client, analysis *models.Analysis, comparison models.AnalysisComparison, sample []*models.AnalysisError, excerpt *interfaces.SiteExcerpt) string {
	var sb strings.Builder

	sb.WriteString("ANALYZED WEBSITE:\n")
	fmt.Fprintf(&sb, "- URL: %s\n", client.Website)
	fmt.Fprintf(&sb, "- Pages crawled: %d of %d\n", analysis.PagesCrawled, analysis.PagesLimit)
	fmt.Fprintf(&sb, "- Pages with issues: %d\n", analysis.PagesWithIssues)
	fmt.Fprintf(&sb, "- Healthy pages: %d\n", analysis.Healthy)

	sb.WriteString("\nCURRENT ANALYSIS RESULTS:\n")
	fmt.Fprintf(&sb, "- Total errors: %d\n", analysis.TotalErrors)
	fmt.Fprintf(&sb, "- Total warnings: %d\n", analysis.TotalWarnings)
	fmt.Fprintf(&sb, "- Total notices: %d\n", analysis.TotalNotices)

	sb.WriteString("\nCOMPARISON WITH PREVIOUS ANALYSIS:\n")
	sb.WriteString(renderComparison(comparison))

	sb.WriteString("\nTOP ISSUES BY CATEGORY:\n")
	fmt.Fprintf(&sb, "Error types: %s\n", issueTypes(analysis.Defects.Errors))
	fmt.Fprintf(&sb, "Warning types: %s\n", issueTypes(analysis.Defects.Warnings))
	fmt.Fprintf(&sb, "Notice types: %s\n", issueTypes(analysis.Defects.Notices))

	sb.WriteString("\nDETAILED ISSUES (sample):\n")
	sb.WriteString(renderIssueSample(sample))

	if excerpt != nil {
		sb.WriteString("\nHOMEPAGE CONTEXT:\n")
		if excerpt.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", excerpt.Title)
		}
		if excerpt.MetaDescription != "" {
			fmt.Fprintf(&sb, "Meta description: %s\n", excerpt.MetaDescription)
		}
		if excerpt.Markdown != "" {
			fmt.Fprintf(&sb, "%s\n", excerpt.Markdown)
		}
	}

	sb.WriteString(`
Based on this data, provide:
1. A concise summary of the website's SEO health
2. Key insights identified from the analysis
3. Specific, actionable recommendations to improve SEO performance
4. For the top issues, impact descriptions and solution recommendations keyed by issue id

OUTPUT TEMPLATE:
summary: "1-3 sentence assessment of overall SEO health"
insights:
  - insight: "Specific observation grounded in the data"
    impact: "What this means for the site's performance"
    priority: 7
recommendations:
  - recommendation: "Specific action to take"
    rationale: "Why this matters"
    effort: Low|Medium|High
    expected_impact: "What improves after implementing"
error_impacts:
  "101": "Impact description for issue 101"
error_solutions:
  "101": "How to fix issue 101"
`)

	return sb.String()
}

// renderComparison formats the metric trends, one counter per line.
func renderComparison(comparison models.AnalysisComparison) string {
	if !comparison.HasPrevious {
		return "No previous analysis data available for comparison.\n"
	}

	var sb strings.Builder
	for _, name := range []string{"errors", "warnings", "notices"} {
		metric, ok := comparison.Metrics[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "- %s: %d -> %d (%+d, %.1f%%, %s)\n",
			name, metric.Previous, metric.Current, metric.Change, metric.PercentChange, metric.Trend)
	}
	return sb.String()
}

// issueTypes lists the defect titles of one severity bucket, capped at five.
func issueTypes(category models.DefectCategory) string {
	if len(category.Items) == 0 {
		return "none"
	}

	names := make([]string, 0, len(category.Items))
	for _, item := range category.Items {
		if len(names) >= 5 {
			break
		}
		name := item.Text
		if name == "" {
			name = "issue " + item.ID
		}
		names = append(names, name)
	}
	return strings.Join(names, "; ")
}

// renderIssueSample serializes the sampled defect rows as YAML.
func renderIssueSample(sample []*models.AnalysisError) string {
	if len(sample) == 0 {
		return "none\n"
	}

	rows := make([]map[string]interface{}, 0, len(sample))
	for _, row := range sample {
		rows = append(rows, map[string]interface{}{
			"issue_id":    row.SemrushIssueID,
			"category":    row.Category,
			"severity":    row.ErrorType,
			"description": row.Description,
			"count":       row.Count,
		})
	}

	out, err := yaml.Marshal(rows)
	if err != nil {
		return "none\n"
	}
	return string(out)
}
