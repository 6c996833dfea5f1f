package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
	"github.com/afpkennettt/semanalyzer/internal/storage/badger"
)

// fakeProvider scripts SEMrush responses for workflow tests.
type fakeProvider struct {
	mu sync.Mutex

	exists    bool
	createErr error
	enableErr error
	launchErr error
	checkErr  error
	fetchErr  error

	check  models.AuditCheck
	result *models.AuditResult

	createCalls int
	enableCalls int
	launchCalls int
	checkCalls  int
	fetchCalls  int
}

func (f *fakeProvider) ProjectExists(ctx context.Context, domain, clientName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists
}

func (f *fakeProvider) CreateProject(ctx context.Context, domain, clientName string) (*models.ProjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.ProjectInfo{ID: "12345", Name: "SEO_Monitor_" + clientName, OwnerID: "777", URL: domain}, nil
}

func (f *fakeProvider) EnableAudit(ctx context.Context, projectID, domain string, profile *models.CrawlProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enableCalls++
	return f.enableErr
}

func (f *fakeProvider) LaunchAudit(ctx context.Context, projectID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launchCalls++
	if f.launchErr != nil {
		return "", f.launchErr
	}
	return "snap-1", nil
}

func (f *fakeProvider) CheckStatus(ctx context.Context, projectID, snapshotID string) (models.AuditCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkCalls++
	if f.checkErr != nil {
		return models.AuditCheck{}, f.checkErr
	}
	return f.check, nil
}

func (f *fakeProvider) FetchResults(ctx context.Context, projectID, snapshotID, domain string) (*models.AuditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.result, nil
}

func (f *fakeProvider) FetchIssueCatalog(ctx context.Context, projectID string) ([]*models.IssueDefinition, error) {
	return nil, nil
}

func (f *fakeProvider) setResult(result *models.AuditResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result = result
}

func (f *fakeProvider) calls() (create, enable, launch int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.enableCalls, f.launchCalls
}

// fakeCatalog resolves issue titles from a fixed map.
type fakeCatalog struct {
	titles map[int]string
}

func (f *fakeCatalog) Sync(ctx context.Context) (int, int, error) { return 0, 0, nil }
func (f *fakeCatalog) EnsureSynced(ctx context.Context) error     { return nil }
func (f *fakeCatalog) TitleFor(ctx context.Context, issueID int) string {
	return f.titles[issueID]
}

// fakeInsights records which analyses were handed off for generation.
type fakeInsights struct {
	generated chan string
}

func (f *fakeInsights) GenerateForAnalysis(ctx context.Context, analysisID string) (*models.Task, error) {
	f.generated <- analysisID
	return nil, nil
}

func (f *fakeInsights) Backfill(ctx context.Context, since time.Time) (int, error) { return 0, nil }
func (f *fakeInsights) Enabled() bool                                              { return true }

func newTestService(t *testing.T, provider interfaces.AuditProvider) (*Service, interfaces.StorageManager) {
	t.Helper()

	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	t.Cleanup(func() { manager.Close() })

	catalog := &fakeCatalog{titles: map[int]string{1: "Broken internal links"}}
	return NewService(manager, provider, nil, catalog, nil, logger), manager
}

func seedClient(t *testing.T, storage interfaces.StorageManager, name, website string) *models.Client {
	t.Helper()

	client := models.NewClient(name, website, "ops@example.com")
	if err := storage.ClientStorage().CreateClient(context.Background(), client); err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func pendingTask(t *testing.T, storage interfaces.StorageManager, clientID, website string) *models.Task {
	t.Helper()

	task := models.NewTask(clientID, models.TaskTypeAnalysis, map[string]interface{}{
		models.ParamWebsite: website,
	})
	if err := storage.TaskStorage().CreateTask(context.Background(), task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	return task
}

func startedTask(t *testing.T, storage interfaces.StorageManager, clientID string) *models.Task {
	t.Helper()

	task := models.NewTask(clientID, models.TaskTypeAnalysis, map[string]interface{}{
		models.ParamWebsite: "https://acme.com",
	})
	if err := task.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := task.Advance(models.StageAuditStarted, map[string]interface{}{
		models.ParamProjectID:  "12345",
		models.ParamSnapshotID: "snap-1",
	}); err != nil {
		t.Fatal(err)
	}
	if err := storage.TaskStorage().CreateTask(context.Background(), task); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	return task
}

func waitForStage(t *testing.T, storage interfaces.StorageManager, taskID, stage string) *models.Task {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, err := storage.TaskStorage().GetTask(context.Background(), taskID)
		if err == nil && (task.Stage() == stage || task.IsTerminal()) {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Task %s never reached stage %s", taskID, stage)
	return nil
}

func TestService_StartAnalysis(t *testing.T) {
	provider := &fakeProvider{}
	svc, storage := newTestService(t, provider)
	ctx := context.Background()

	client := seedClient(t, storage, "Acme Corp", "https://acme.com")

	task, err := svc.StartAnalysis(ctx, client.ID)
	if err != nil {
		t.Fatalf("Failed to start analysis: %v", err)
	}
	if task.ClientID != client.ID {
		t.Errorf("Expected task for client %s, got %s", client.ID, task.ClientID)
	}
	if task.Type != models.TaskTypeAnalysis {
		t.Errorf("Expected analysis task, got %s", task.Type)
	}

	// Provisioning runs in the background and leaves the task polling
	started := waitForStage(t, storage, task.ID, models.StageAuditStarted)
	if started.Status != models.TaskStatusRunning {
		t.Fatalf("Expected task to be running at the audit stage, got %s (%s)", started.Status, started.ErrorMessage)
	}
	if projectID, _ := started.GetParamString(models.ParamProjectID); projectID != "12345" {
		t.Errorf("Expected project_id 12345, got %s", projectID)
	}
	if snapshotID, _ := started.GetParamString(models.ParamSnapshotID); snapshotID != "snap-1" {
		t.Errorf("Expected snapshot_id snap-1, got %s", snapshotID)
	}

	create, enable, launch := provider.calls()
	if create != 1 || enable != 1 || launch != 1 {
		t.Errorf("Expected one create/enable/launch call, got %d/%d/%d", create, enable, launch)
	}

	// The SEMrush project reference lands on the client record
	updated, err := storage.ClientStorage().GetClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("Failed to reload client: %v", err)
	}
	if updated.SemrushProjectID != "12345" {
		t.Errorf("Expected client to reference project 12345, got %q", updated.SemrushProjectID)
	}
	if updated.SemrushOwnerID != "777" {
		t.Errorf("Expected owner id 777, got %q", updated.SemrushOwnerID)
	}
}

func TestService_StartAnalysis_RejectsConcurrentRuns(t *testing.T) {
	provider := &fakeProvider{}
	svc, storage := newTestService(t, provider)
	ctx := context.Background()

	client := seedClient(t, storage, "Acme Corp", "https://acme.com")
	pendingTask(t, storage, client.ID, client.Website)

	if _, err := svc.StartAnalysis(ctx, client.ID); err == nil {
		t.Fatal("Expected a second start to be rejected")
	} else if !strings.Contains(err.Error(), "already running") {
		t.Errorf("Expected an already-running error, got %v", err)
	}
}

func TestService_StartAnalysis_WithoutProvider(t *testing.T) {
	svc, storage := newTestService(t, nil)
	ctx := context.Background()

	client := seedClient(t, storage, "Acme Corp", "https://acme.com")

	if _, err := svc.StartAnalysis(ctx, client.ID); !errors.Is(err, interfaces.ErrNoCredential) {
		t.Fatalf("Expected ErrNoCredential, got %v", err)
	}
}

func TestService_CheckTask_ProvisionsPendingTask(t *testing.T) {
	provider := &fakeProvider{}
	svc, storage := newTestService(t, provider)
	ctx := context.Background()

	client := seedClient(t, storage, "Acme Corp", "https://acme.com")
	task := pendingTask(t, storage, client.ID, client.Website)

	checked, err := svc.CheckTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to check task: %v", err)
	}
	if checked.Status != models.TaskStatusRunning {
		t.Fatalf("Expected task to be running, got %s (%s)", checked.Status, checked.ErrorMessage)
	}
	if checked.Stage() != models.StageAuditStarted {
		t.Errorf("Expected stage audit_started, got %s", checked.Stage())
	}
	if projectID, _ := checked.GetParamString(models.ParamProjectID); projectID != "12345" {
		t.Errorf("Expected project_id 12345, got %s", projectID)
	}
}

func TestService_CheckTask_DuplicateProject(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
	}{
		{"reported by listing", &fakeProvider{exists: true}},
		{"rejected on create", &fakeProvider{createErr: fmt.Errorf("%w: acme.com", interfaces.ErrDuplicateProject)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, storage := newTestService(t, tt.provider)
			ctx := context.Background()

			client := seedClient(t, storage, "Acme Corp", "https://acme.com")
			task := pendingTask(t, storage, client.ID, client.Website)

			checked, err := svc.CheckTask(ctx, task.ID)
			if err != nil {
				t.Fatalf("Failed to check task: %v", err)
			}
			if checked.Status != models.TaskStatusFailed {
				t.Fatalf("Expected task to fail, got %s", checked.Status)
			}
			want := "A project for acme.com already exists in SEMrush. Please use a different website or client name."
			if checked.ErrorMessage != want {
				t.Errorf("Expected duplicate-project failure message, got %q", checked.ErrorMessage)
			}
		})
	}
}

func TestService_CheckTask_ReusesExistingProject(t *testing.T) {
	provider := &fakeProvider{}
	svc, storage := newTestService(t, provider)
	ctx := context.Background()

	client := seedClient(t, storage, "Acme Corp", "https://acme.com")
	client.SemrushProjectID = "999"
	client.SemrushProjectName = "SEO_Monitor_Acme Corp"
	if err := storage.ClientStorage().UpdateClient(ctx, client); err != nil {
		t.Fatalf("Failed to update client: %v", err)
	}

	task := pendingTask(t, storage, client.ID, client.Website)

	checked, err := svc.CheckTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to check task: %v", err)
	}
	if checked.Status != models.TaskStatusRunning {
		t.Fatalf("Expected task to be running, got %s (%s)", checked.Status, checked.ErrorMessage)
	}
	if projectID, _ := checked.GetParamString(models.ParamProjectID); projectID != "999" {
		t.Errorf("Expected the existing project 999 to be reused, got %s", projectID)
	}

	create, enable, launch := provider.calls()
	if create != 0 {
		t.Errorf("Expected no project creation for a linked client, got %d calls", create)
	}
	if enable != 1 || launch != 1 {
		t.Errorf("Expected one enable/launch call, got %d/%d", enable, launch)
	}
}

func TestService_CheckTask_EnableFailureFailsTask(t *testing.T) {
	provider := &fakeProvider{enableErr: errors.New("boom")}
	svc, storage := newTestService(t, provider)
	ctx := context.Background()

	client := seedClient(t, storage, "Acme Corp", "https://acme.com")
	task := pendingTask(t, storage, client.ID, client.Website)

	checked, err := svc.CheckTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("Failed to check task: %v", err)
	}
	if checked.Status != models.TaskStatusFailed {
		t.Fatalf("Expected task to fail, got %s", checked.Status)
	}
	if checked.ErrorMessage != "Failed to enable site audit for project ID: 12345" {
		t.Errorf("Expected enable failure message, got %q", checked.ErrorMessage)
	}
}

func TestService_StartDueAudits(t *testing.T) {
	provider := &fakeProvider{}
	svc, storage := newTestService(t, provider)
	ctx := context.Background()

	fresh := seedClient(t, storage, "Fresh Co", "https://fresh.example.com")

	busy := seedClient(t, storage, "Busy Co", "https://busy.example.com")
	pendingTask(t, storage, busy.ID, busy.Website)

	inactive := models.NewClient("Dormant Co", "https://dormant.example.com", "")
	inactive.Active = false
	if err := storage.ClientStorage().CreateClient(ctx, inactive); err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	started, err := svc.StartDueAudits(ctx)
	if err != nil {
		t.Fatalf("Failed to start due audits: %v", err)
	}
	if started != 1 {
		t.Errorf("Expected exactly one audit to start, got %d", started)
	}

	active, err := storage.TaskStorage().GetActiveTaskForClient(ctx, fresh.ID, models.TaskTypeAnalysis)
	if err != nil {
		t.Fatalf("Failed to query tasks: %v", err)
	}
	if active == nil {
		t.Error("Expected an analysis task for the fresh client")
	}
}

func TestService_StartDueAudits_WithoutProvider(t *testing.T) {
	svc, storage := newTestService(t, nil)
	ctx := context.Background()

	seedClient(t, storage, "Acme Corp", "https://acme.com")

	started, err := svc.StartDueAudits(ctx)
	if err != nil {
		t.Fatalf("Expected a silent no-op, got %v", err)
	}
	if started != 0 {
		t.Errorf("Expected no audits to start, got %d", started)
	}
}
