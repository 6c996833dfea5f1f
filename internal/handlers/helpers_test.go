package handlers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
	"github.com/afpkennettt/semanalyzer/internal/storage/badger"
)

func newTestStorage(t *testing.T) interfaces.StorageManager {
	t.Helper()
	manager, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create storage manager: %v", err)
	}
	t.Cleanup(func() { manager.Close() })
	return manager
}

func seedClient(t *testing.T, storage interfaces.StorageManager, name, website string) *models.Client {
	t.Helper()
	client := models.NewClient(name, website, "ops@example.com")
	if err := storage.ClientStorage().CreateClient(context.Background(), client); err != nil {
		t.Fatalf("failed to seed client: %v", err)
	}
	return client
}

// seedCompletedAnalysis stores an analysis with issue rows through the task
// finalizer, the same path production rows take.
func seedCompletedAnalysis(t *testing.T, storage interfaces.StorageManager, clientID string) *models.Analysis {
	t.Helper()
	ctx := context.Background()

	task := models.NewTask(clientID, models.TaskTypeAnalysis, nil)
	if err := storage.TaskStorage().CreateTask(ctx, task); err != nil {
		t.Fatalf("failed to create task: %v", err)
	}
	if err := task.Begin(); err != nil {
		t.Fatalf("failed to begin task: %v", err)
	}
	if err := storage.TaskStorage().UpdateTask(ctx, task); err != nil {
		t.Fatalf("failed to update task: %v", err)
	}

	analysis := &models.Analysis{
		ID:              uuid.New().String(),
		ClientID:        clientID,
		AnalysisDate:    time.Now(),
		TotalErrors:     3,
		TotalWarnings:   5,
		TotalNotices:    2,
		Healthy:         90,
		PagesCrawled:    100,
		PagesLimit:      1000,
		PagesWithIssues: 10,
		Defects:         models.EmptyDefectSet(),
	}

	rows := []*models.AnalysisError{
		seedIssueRow(analysis.ID, clientID, 1, models.GroupError, "Errors", models.SeverityError, 12),
		seedIssueRow(analysis.ID, clientID, 102, models.GroupWarning, "Warnings", models.SeverityWarning, 7),
	}

	if err := storage.TaskStorage().CompleteWithAnalysis(ctx, task.ID, analysis, rows); err != nil {
		t.Fatalf("failed to store analysis: %v", err)
	}
	return analysis
}

func seedIssueRow(analysisID, clientID string, issueID int, group, category string, severity, count int) *models.AnalysisError {
	row := models.NewAnalysisError(analysisID, clientID)
	row.SemrushIssueID = issueID
	row.ErrorType = group
	row.Category = category
	row.Severity = severity
	row.Count = count
	row.Description = fmt.Sprintf("Issue ID: %d (Found on %d page(s))", issueID, count)
	return row
}

// mockAuditService implements interfaces.AuditService for testing
type mockAuditService struct {
	startFunc func(ctx context.Context, clientID string) (*models.Task, error)
	checkFunc func(ctx context.Context, taskID string) (*models.Task, error)
	sweepFunc func(ctx context.Context) (int, error)
	dueFunc   func(ctx context.Context) (int, error)
}

func (m *mockAuditService) StartAnalysis(ctx context.Context, clientID string) (*models.Task, error) {
	if m.startFunc != nil {
		return m.startFunc(ctx, clientID)
	}
	return nil, nil
}

func (m *mockAuditService) CheckTask(ctx context.Context, taskID string) (*models.Task, error) {
	if m.checkFunc != nil {
		return m.checkFunc(ctx, taskID)
	}
	return nil, nil
}

func (m *mockAuditService) Sweep(ctx context.Context) (int, error) {
	if m.sweepFunc != nil {
		return m.sweepFunc(ctx)
	}
	return 0, nil
}

func (m *mockAuditService) StartDueAudits(ctx context.Context) (int, error) {
	if m.dueFunc != nil {
		return m.dueFunc(ctx)
	}
	return 0, nil
}
