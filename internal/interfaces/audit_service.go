package interfaces

import (
	"context"

	"github.com/afpkennettt/semanalyzer/internal/models"
)

// AuditService orchestrates the audit workflow: provisioning a SEMrush
// project, launching the crawl and converging the task to completed or
// failed via polling. The scheduled sweep and the on-demand status endpoint
// share the same poll step, so a terminal transition happens exactly once
// regardless of which caller observes completion first.
type AuditService interface {
	// StartAnalysis creates an analysis task for the client and runs the
	// provisioning workflow (project, audit settings, launch) in the
	// background. Returns the created task immediately; provisioning
	// failures land on the task as a failed status.
	StartAnalysis(ctx context.Context, clientID string) (*models.Task, error)

	// CheckTask drives one task a single step forward, synchronously: a
	// pending task runs the provisioning workflow, a running audit gets one
	// poll. Returns the task in its post-step state. Transient provider
	// errors leave the task running and are not returned as errors.
	CheckTask(ctx context.Context, taskID string) (*models.Task, error)

	// Sweep polls every pollable audit task once. One task's failure never
	// aborts the batch. Returns the number of tasks examined.
	Sweep(ctx context.Context) (int, error)

	// StartDueAudits launches the analysis workflow for every active client
	// that has no analysis task pending or running. Returns the number of
	// audits started; one client's failure never aborts the batch.
	StartDueAudits(ctx context.Context) (int, error)
}

// CatalogService maintains the local copy of the SEMrush issue catalog and
// resolves issue titles for description enrichment.
type CatalogService interface {
	// Sync fetches the issue catalog and upserts it, returning how many
	// definitions were added and how many updated.
	Sync(ctx context.Context) (added, updated int, err error)

	// EnsureSynced syncs only when the local catalog is empty. Called at
	// startup; a sync failure is logged, not fatal.
	EnsureSynced(ctx context.Context) error

	// TitleFor resolves a human-readable title for an issue id from the
	// synced catalog, falling back to the built-in titles, or "" when the
	// id is unknown everywhere.
	TitleFor(ctx context.Context, issueID int) string
}

// ReportService renders stored analyses into downloadable documents.
type ReportService interface {
	// GenerateAuditReport renders a one-page PDF summary of the analysis:
	// header, counters, top defects and any generated insights.
	GenerateAuditReport(ctx context.Context, analysisID string) ([]byte, error)
}
