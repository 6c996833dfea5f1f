// Package reports renders stored analyses into downloadable PDF documents.
package reports

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

// topIssueLimit caps the issue table. Rows arrive sorted by severity then
// count, so the table always shows the worst offenders.
const topIssueLimit = 10

// Service implements interfaces.ReportService
type Service struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

// Compile-time assertion
var _ interfaces.ReportService = (*Service)(nil)

// NewService creates a new report service
func NewService(storage interfaces.StorageManager, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// GenerateAuditReport renders the analysis as a PDF: header, health
// counters, trend line, top issues table and any AI-generated text.
func (s *Service) GenerateAuditReport(ctx context.Context, analysisID string) ([]byte, error) {
	analysis, err := s.storage.AnalysisStorage().GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}

	client, err := s.storage.ClientStorage().GetClient(ctx, analysis.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load client: %w", err)
	}

	rows, err := s.storage.AnalysisStorage().GetAnalysisErrors(ctx, analysisID)
	if err != nil {
		s.logger.Warn().Err(err).Str("analysis_id", analysisID).Msg("Issue rows unavailable, report omits the issue table")
		rows = nil
	}
	if len(rows) > topIssueLimit {
		rows = rows[:topIssueLimit]
	}

	previous, err := s.storage.AnalysisStorage().GetPreviousAnalysis(ctx, analysis)
	if err != nil {
		s.logger.Debug().Err(err).Str("analysis_id", analysisID).Msg("Previous analysis unavailable for report trend")
		previous = nil
	}
	comparison := models.Compare(previous, analysis)

	s.logger.Debug().
		Str("analysis_id", analysisID).
		Str("client_id", client.ID).
		Int("issue_rows", len(rows)).
		Msg("Generating audit report")

	b := newReportBuilder()
	b.header(client, analysis)
	b.healthCounters(analysis)
	b.trendLine(analysis, comparison)
	b.issueTable(rows)
	b.insightSections(analysis)
	b.footer()

	out, err := b.output()
	if err != nil {
		return nil, fmt.Errorf("failed to render audit report: %w", err)
	}

	s.logger.Debug().
		Str("analysis_id", analysisID).
		Int("pdf_bytes", len(out)).
		Msg("Audit report generated")
	return out, nil
}

// reportBuilder holds the document being composed. All layout constants
// assume A4 portrait with 10mm margins, leaving 190mm of usable width.
type reportBuilder struct {
	pdf *fpdf.Fpdf
}

func newReportBuilder() *reportBuilder {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 9)
	return &reportBuilder{pdf: pdf}
}

func (b *reportBuilder) header(client *models.Client, analysis *models.Analysis) {
	b.pdf.SetFont("Arial", "B", 16)
	b.pdf.CellFormat(0, 9, "SEO Audit Report", "", 1, "L", false, 0, "")

	b.pdf.SetFont("Arial", "", 10)
	b.pdf.SetTextColor(90, 90, 90)
	b.pdf.CellFormat(0, 6, fmt.Sprintf("%s  -  %s", client.Name, client.Website), "", 1, "L", false, 0, "")

	b.pdf.SetFont("Arial", "", 9)
	crawled := fmt.Sprintf("Analyzed %s", analysis.AnalysisDate.Format("2 Jan 2006"))
	if analysis.PagesCrawled > 0 {
		crawled += fmt.Sprintf("  |  %d of %d pages crawled", analysis.PagesCrawled, analysis.PagesLimit)
	}
	b.pdf.CellFormat(0, 5, crawled, "", 1, "L", false, 0, "")
	b.pdf.SetTextColor(0, 0, 0)

	b.pdf.Ln(2)
	y := b.pdf.GetY()
	b.pdf.SetDrawColor(200, 200, 200)
	b.pdf.Line(10, y, 200, y)
	b.pdf.SetDrawColor(0, 0, 0)
	b.pdf.Ln(4)
}

// healthCounters draws one box per campaign counter across the full width.
func (b *reportBuilder) healthCounters(analysis *models.Analysis) {
	b.sectionTitle("Site Health")

	counters := []struct {
		label string
		value int
	}{
		{"Errors", analysis.TotalErrors},
		{"Warnings", analysis.TotalWarnings},
		{"Notices", analysis.TotalNotices},
		{"Broken", analysis.Broken},
		{"Redirected", analysis.Redirected},
		{"Healthy", analysis.Healthy},
	}

	const boxWidth, boxHeight, gap = 30.0, 15.0, 2.0
	startX := 10.0
	y := b.pdf.GetY()

	b.pdf.SetFillColor(245, 245, 245)
	b.pdf.SetDrawColor(200, 200, 200)
	for i, c := range counters {
		x := startX + float64(i)*(boxWidth+gap)
		b.pdf.Rect(x, y, boxWidth, boxHeight, "FD")

		b.pdf.SetXY(x, y+2)
		b.pdf.SetFont("Arial", "B", 13)
		b.pdf.CellFormat(boxWidth, 6, fmt.Sprintf("%d", c.value), "", 0, "C", false, 0, "")

		b.pdf.SetXY(x, y+9)
		b.pdf.SetFont("Arial", "", 8)
		b.pdf.CellFormat(boxWidth, 4, c.label, "", 0, "C", false, 0, "")
	}
	b.pdf.SetFillColor(255, 255, 255)
	b.pdf.SetDrawColor(0, 0, 0)

	b.pdf.SetXY(10, y+boxHeight+3)
}

// trendLine summarizes pages with issues and the movement of each counter
// since the previous analysis.
func (b *reportBuilder) trendLine(analysis *models.Analysis, comparison models.AnalysisComparison) {
	b.pdf.SetFont("Arial", "", 9)

	pages := fmt.Sprintf("Pages with issues: %d", analysis.PagesWithIssues)
	if comparison.HasPrevious {
		pages += fmt.Sprintf(" (%+d since previous audit)", analysis.PagesWithIssuesDelta)
	}
	b.pdf.CellFormat(0, 5, pages, "", 1, "L", false, 0, "")

	if comparison.HasPrevious {
		trend := fmt.Sprintf("Since %s:", comparison.PreviousDate.Format("2 Jan 2006"))
		for _, name := range []string{"errors", "warnings", "notices"} {
			m := comparison.Metrics[name]
			trend += fmt.Sprintf("  %s %d -> %d (%s)", name, m.Previous, m.Current, m.Trend)
		}
		b.pdf.SetTextColor(90, 90, 90)
		b.pdf.CellFormat(0, 5, trend, "", 1, "L", false, 0, "")
		b.pdf.SetTextColor(0, 0, 0)
	}

	b.pdf.Ln(3)
}

// issueTable renders the worst issue rows as a fixed three-column table.
func (b *reportBuilder) issueTable(rows []*models.AnalysisError) {
	if len(rows) == 0 {
		return
	}

	b.sectionTitle("Top Issues")

	colWidths := []float64{25, 135, 30}
	headers := []string{"Severity", "Issue", "Pages"}
	lineHeight := 6.0

	b.pdf.SetFont("Arial", "B", 8)
	b.pdf.SetFillColor(230, 230, 230)
	b.pdf.SetDrawColor(200, 200, 200)
	for i, h := range headers {
		ln := 0
		if i == len(headers)-1 {
			ln = 1
		}
		b.pdf.CellFormat(colWidths[i], lineHeight, h, "1", ln, "L", true, 0, "")
	}

	b.pdf.SetFont("Arial", "", 8)
	b.pdf.SetFillColor(255, 255, 255)
	for _, row := range rows {
		b.pdf.CellFormat(colWidths[0], lineHeight, groupLabel(row.ErrorType), "1", 0, "L", false, 0, "")
		b.pdf.CellFormat(colWidths[1], lineHeight, b.truncate(row.Description, colWidths[1]-2), "1", 0, "L", false, 0, "")
		b.pdf.CellFormat(colWidths[2], lineHeight, fmt.Sprintf("%d", row.Count), "1", 1, "R", false, 0, "")
	}
	b.pdf.SetDrawColor(0, 0, 0)

	b.pdf.Ln(3)
}

// insightSections appends the AI-generated text blocks when present. These
// are plain text paragraphs, so MultiCell wraps them directly.
func (b *reportBuilder) insightSections(analysis *models.Analysis) {
	if analysis.Summary == "" && !analysis.HasInsights() {
		return
	}

	b.sectionTitle("Insights")

	if analysis.Summary != "" {
		b.pdf.SetFont("Arial", "", 9)
		b.pdf.MultiCell(0, 5, analysis.Summary, "", "L", false)
		b.pdf.Ln(2)
	}

	if analysis.Insights != "" {
		b.subsectionTitle("Key Insights")
		b.pdf.SetFont("Arial", "", 9)
		b.pdf.MultiCell(0, 5, analysis.Insights, "", "L", false)
		b.pdf.Ln(2)
	}

	if analysis.Recommendations != "" {
		b.subsectionTitle("Recommendations")
		b.pdf.SetFont("Arial", "", 9)
		b.pdf.MultiCell(0, 5, analysis.Recommendations, "", "L", false)
	}
}

func (b *reportBuilder) footer() {
	b.pdf.Ln(4)
	b.pdf.SetFont("Arial", "I", 8)
	b.pdf.SetTextColor(130, 130, 130)
	b.pdf.CellFormat(0, 4, fmt.Sprintf("Generated %s", time.Now().Format("2 Jan 2006 15:04")), "", 1, "L", false, 0, "")
	b.pdf.SetTextColor(0, 0, 0)
}

func (b *reportBuilder) sectionTitle(title string) {
	b.pdf.SetFont("Arial", "B", 12)
	b.pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
}

func (b *reportBuilder) subsectionTitle(title string) {
	b.pdf.SetFont("Arial", "B", 10)
	b.pdf.CellFormat(0, 6, title, "", 1, "L", false, 0, "")
}

// truncate shortens text to fit the given width, appending an ellipsis when
// anything was cut. Widths are measured with the current font.
func (b *reportBuilder) truncate(text string, width float64) string {
	if b.pdf.GetStringWidth(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 3 && b.pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func (b *reportBuilder) output() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// groupLabel maps an issue group to its display name.
func groupLabel(group string) string {
	switch group {
	case models.GroupError:
		return "Error"
	case models.GroupWarning:
		return "Warning"
	case models.GroupNotice:
		return "Notice"
	default:
		return group
	}
}
