package interfaces

import (
	"context"
	"time"

	"github.com/afpkennettt/semanalyzer/internal/models"
)

// InsightService generates AI commentary for completed analyses and
// back-fills it onto the stored rows. Generation is best-effort: a missing
// credential yields deterministic placeholder text and a generation failure
// yields an error summary, but neither surfaces as an error to callers of
// the audit workflow.
type InsightService interface {
	// GenerateForAnalysis runs insight generation for one analysis under a
	// generate_insights task and returns that task. The analysis row is
	// updated with summary, insights and recommendations; matching error
	// rows receive impact and solution text when the model supplied any.
	GenerateForAnalysis(ctx context.Context, analysisID string) (*models.Task, error)

	// Backfill generates insights for analyses created after the cutoff that
	// do not have any yet. Returns the number of analyses processed; one
	// failed analysis does not abort the rest.
	Backfill(ctx context.Context, since time.Time) (int, error)

	// Enabled reports whether a model credential is configured. When false,
	// generation still succeeds but produces placeholder text.
	Enabled() bool
}

// SiteExcerpt is a condensed snapshot of a client's homepage used to give
// the insight prompt real page context.
type SiteExcerpt struct {
	Title           string    `json:"title,omitempty"`
	MetaDescription string    `json:"meta_description,omitempty"`
	Markdown        string    `json:"markdown,omitempty"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// SiteContentService fetches and condenses a client's homepage. Failures
// are expected (sites block bots, time out, serve garbage) and callers
// treat a nil excerpt as "no page context available".
type SiteContentService interface {
	FetchExcerpt(ctx context.Context, website string) (*SiteExcerpt, error)
}
