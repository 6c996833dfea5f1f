package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/afpkennettt/semanalyzer/internal/models"
)

// ErrTaskFinalized is returned by terminal task transitions when another
// poller already finalized the task. Callers treat it as a benign no-op.
var ErrTaskFinalized = errors.New("task already finalized")

// ListOptions for listing stored records
type ListOptions struct {
	Status   string // Filter by status (empty = all)
	ClientID string // Filter by client (empty = all)
	Limit    int
	Offset   int
	OrderBy  string // created_at, updated_at
	OrderDir string // asc, desc
}

// ClientStorage - interface for client persistence
type ClientStorage interface {
	CreateClient(ctx context.Context, client *models.Client) error
	GetClient(ctx context.Context, id string) (*models.Client, error)
	GetClientByDomain(ctx context.Context, domain string) (*models.Client, error)
	UpdateClient(ctx context.Context, client *models.Client) error
	ListClients(ctx context.Context) ([]*models.Client, error)
	CountClients(ctx context.Context) (int, error)

	// DeleteClient removes the client together with its tasks, analyses and
	// analysis errors in a single transaction.
	DeleteClient(ctx context.Context, id string) error
}

// TaskStorage - interface for audit task persistence
type TaskStorage interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, opts *ListOptions) ([]*models.Task, error)
	GetTasksByClient(ctx context.Context, clientID string) ([]*models.Task, error)
	CountTasks(ctx context.Context) (int, error)
	CountTasksByStatus(ctx context.Context, status models.TaskStatus) (int, error)

	// GetPollableTasks returns pending and running audit tasks that have not
	// opted out of future checks, oldest first. This is the sweep working set.
	GetPollableTasks(ctx context.Context) ([]*models.Task, error)

	// GetActiveTaskForClient returns the newest pending or running task of the
	// given type for a client, or nil when none exists.
	GetActiveTaskForClient(ctx context.Context, clientID string, taskType models.TaskType) (*models.Task, error)

	// CompleteWithAnalysis finalizes a task in one transaction: the analysis
	// and its error records are inserted, the task moves to completed and
	// skip_future_checks is set. Returns ErrTaskFinalized when a competing
	// poller already finalized the task.
	CompleteWithAnalysis(ctx context.Context, taskID string, analysis *models.Analysis, analysisErrors []*models.AnalysisError) error

	// FailTask finalizes a task as failed with the given message and sets
	// skip_future_checks, in one transaction. Returns ErrTaskFinalized when a
	// competing poller already finalized the task.
	FailTask(ctx context.Context, taskID string, message string) error
}

// AnalysisStorage - interface for analysis persistence
type AnalysisStorage interface {
	SaveAnalysis(ctx context.Context, analysis *models.Analysis) error
	GetAnalysis(ctx context.Context, id string) (*models.Analysis, error)
	GetLatestByClient(ctx context.Context, clientID string) (*models.Analysis, error)
	GetAnalysesByClient(ctx context.Context, clientID string, limit int) ([]*models.Analysis, error)

	// GetPreviousAnalysis returns the newest analysis for the client created
	// strictly before the given analysis, or nil when it is the first one.
	GetPreviousAnalysis(ctx context.Context, analysis *models.Analysis) (*models.Analysis, error)

	ListAnalyses(ctx context.Context, opts *ListOptions) ([]*models.Analysis, error)
	CountAnalyses(ctx context.Context) (int, error)
	DeleteAnalysis(ctx context.Context, id string) error

	// UpdateInsights back-fills the AI-generated text fields on an existing
	// analysis, leaving the audit data untouched.
	UpdateInsights(ctx context.Context, analysisID string, summary, insights, recommendations string) error

	// GetAnalysesMissingInsights returns analyses created after the cutoff
	// that have no generated insight text yet, oldest first.
	GetAnalysesMissingInsights(ctx context.Context, since time.Time) ([]*models.Analysis, error)

	// GetAnalysisErrors returns the per-issue defect rows for an analysis,
	// highest severity first.
	GetAnalysisErrors(ctx context.Context, analysisID string) ([]*models.AnalysisError, error)

	// UpdateAnalysisError persists enrichment fields on an existing error row.
	UpdateAnalysisError(ctx context.Context, analysisError *models.AnalysisError) error
}

// CatalogStorage - interface for the SEMrush issue catalog
type CatalogStorage interface {
	// UpsertDefinitions inserts or refreshes catalog entries and reports how
	// many were new versus updated.
	UpsertDefinitions(ctx context.Context, defs []*models.IssueDefinition) (added int, updated int, err error)
	GetDefinition(ctx context.Context, issueID int) (*models.IssueDefinition, error)
	ListDefinitions(ctx context.Context) ([]*models.IssueDefinition, error)
	CountDefinitions(ctx context.Context) (int, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	ClientStorage() ClientStorage
	TaskStorage() TaskStorage
	AnalysisStorage() AnalysisStorage
	CatalogStorage() CatalogStorage
	KVStorage() KeyValueStorage

	// LoadKeyFiles reads key/value TOML files from a directory into the
	// store. Used at startup to seed API keys and other variables.
	LoadKeyFiles(ctx context.Context, dirPath string) error

	// LoadCrawlProfiles reads crawl profile YAML files from a directory into
	// the key/value store and guarantees a default profile exists.
	LoadCrawlProfiles(ctx context.Context, dirPath string) error

	// GetCrawlProfile returns the named crawl profile, falling back to the
	// built-in default when the name is unknown.
	GetCrawlProfile(ctx context.Context, name string) (*models.CrawlProfile, error)

	ListCrawlProfiles(ctx context.Context) ([]*models.CrawlProfile, error)
	SaveCrawlProfile(ctx context.Context, profile *models.CrawlProfile) error

	Close() error
}
