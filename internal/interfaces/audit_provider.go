package interfaces

import (
	"context"
	"errors"

	"github.com/afpkennettt/semanalyzer/internal/models"
)

// Provider failure sentinels. ErrDuplicateProject and ErrNoCredential are
// fatal for the current workflow; everything else the provider returns is
// transient and must never move a task to a terminal state.
var (
	// ErrDuplicateProject is returned by CreateProject when the provider
	// already has a project for the domain (or rejects the name as taken).
	ErrDuplicateProject = errors.New("project already exists")

	// ErrNoCredential is returned when no API key could be resolved from the
	// environment, the KV store or the config file.
	ErrNoCredential = errors.New("no provider API key configured")

	// ErrMissingCorrelationID is returned when a poll is attempted for a task
	// that never recorded its project or snapshot id.
	ErrMissingCorrelationID = errors.New("task is missing provider correlation ids")
)

// AuditProvider wraps the SEMrush site audit REST API. Implementations are
// stateless: correlation ids (project id, snapshot id) live on the task and
// client records, never in the provider.
//
// All calls are bounded by the configured request timeout and flow through
// a shared rate limiter. Transport and HTTP-level failures surface as plain
// errors; callers decide whether a failure is terminal for their workflow.
type AuditProvider interface {
	// ProjectExists reports whether a project for the domain is already
	// registered, matching either the cleaned domain against the project URL
	// or the derived project name for the client. Lookup failures report
	// false so provisioning can proceed and let CreateProject arbitrate.
	ProjectExists(ctx context.Context, domain, clientName string) bool

	// CreateProject registers a new project for the domain. Returns
	// ErrDuplicateProject (possibly wrapped) when the provider rejects the
	// domain or name as already taken.
	CreateProject(ctx context.Context, domain, clientName string) (*models.ProjectInfo, error)

	// EnableAudit configures the site audit crawl for a project using the
	// given crawl profile (page limit, user agent, subdomain policy). A nil
	// profile enables the default full-site crawl.
	EnableAudit(ctx context.Context, projectID, domain string, profile *models.CrawlProfile) error

	// LaunchAudit starts a full audit crawl and returns the snapshot id that
	// identifies this audit run in later status checks.
	LaunchAudit(ctx context.Context, projectID string) (string, error)

	// CheckStatus resolves the current state of a launched audit by falling
	// through three endpoints: the campaign info report, the snapshot list
	// (a snapshot with a finish date is done) and the per-snapshot status.
	// Unknown statuses, HTTP 404s and transport errors inside the chain all
	// resolve to in_progress; only an explicit provider failure status
	// yields failed. The raw provider status string accompanies the verdict.
	CheckStatus(ctx context.Context, projectID, snapshotID string) (models.AuditCheck, error)

	// FetchResults retrieves and normalizes the finished audit. The info
	// report is the primary source; the snapshot list and the issue metadata
	// report serve as fallbacks. Never returns an error for malformed
	// payloads: those normalize to the all-zero error-status sentinel.
	FetchResults(ctx context.Context, projectID, snapshotID, domain string) (*models.AuditResult, error)

	// FetchIssueCatalog retrieves the static issue metadata catalog. The
	// endpoint is project-scoped, so any project id registered with the
	// provider works. Both the list and the id-keyed map response shapes are
	// tolerated; entries without a numeric id are skipped.
	FetchIssueCatalog(ctx context.Context, projectID string) ([]*models.IssueDefinition, error)
}
