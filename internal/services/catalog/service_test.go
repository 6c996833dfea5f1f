package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
	"github.com/afpkennettt/semanalyzer/internal/storage/badger"
)

// fakeProvider serves a scripted issue catalog and records the project id
// the service resolved.
type fakeProvider struct {
	defs       []*models.IssueDefinition
	fetchErr   error
	fetchCalls int
	projectID  string
}

func (f *fakeProvider) ProjectExists(ctx context.Context, domain, clientName string) bool {
	return false
}

func (f *fakeProvider) CreateProject(ctx context.Context, domain, clientName string) (*models.ProjectInfo, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) EnableAudit(ctx context.Context, projectID, domain string, profile *models.CrawlProfile) error {
	return errors.New("not implemented")
}

func (f *fakeProvider) LaunchAudit(ctx context.Context, projectID string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeProvider) CheckStatus(ctx context.Context, projectID, snapshotID string) (models.AuditCheck, error) {
	return models.AuditCheck{}, errors.New("not implemented")
}

func (f *fakeProvider) FetchResults(ctx context.Context, projectID, snapshotID, domain string) (*models.AuditResult, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) FetchIssueCatalog(ctx context.Context, projectID string) ([]*models.IssueDefinition, error) {
	f.fetchCalls++
	f.projectID = projectID
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.defs, nil
}

func newTestService(t *testing.T, provider interfaces.AuditProvider) (*Service, interfaces.StorageManager) {
	t.Helper()

	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	t.Cleanup(func() { manager.Close() })

	return NewService(manager, provider, nil, logger), manager
}

func linkClient(t *testing.T, storage interfaces.StorageManager, projectID string) *models.Client {
	t.Helper()

	client := models.NewClient("Acme Corp", "https://acme.com", "")
	client.SemrushProjectID = projectID
	if err := storage.ClientStorage().CreateClient(context.Background(), client); err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestService_Sync(t *testing.T) {
	provider := &fakeProvider{defs: []*models.IssueDefinition{
		{ID: 1, Title: "5xx server errors", Group: "error"},
		{ID: 102, Title: "Missing meta descriptions", Group: "warning"},
	}}
	svc, storage := newTestService(t, provider)
	ctx := context.Background()

	linkClient(t, storage, "12345")

	added, updated, err := svc.Sync(ctx)
	if err != nil {
		t.Fatalf("Failed to sync: %v", err)
	}
	if added != 2 || updated != 0 {
		t.Errorf("Expected 2 added / 0 updated, got %d/%d", added, updated)
	}
	if provider.projectID != "12345" {
		t.Errorf("Expected the linked client's project id to scope the fetch, got %q", provider.projectID)
	}

	// A second sync refreshes the same entries
	added, updated, err = svc.Sync(ctx)
	if err != nil {
		t.Fatalf("Failed to re-sync: %v", err)
	}
	if added != 0 || updated != 2 {
		t.Errorf("Expected 0 added / 2 updated, got %d/%d", added, updated)
	}
}

func TestService_Sync_RequiresLinkedClient(t *testing.T) {
	provider := &fakeProvider{}
	svc, storage := newTestService(t, provider)
	ctx := context.Background()

	// A client without a SEMrush project cannot scope the request
	client := models.NewClient("Acme Corp", "https://acme.com", "")
	if err := storage.ClientStorage().CreateClient(ctx, client); err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, _, err := svc.Sync(ctx); err == nil {
		t.Fatal("Expected sync to fail without a linked client")
	}
	if provider.fetchCalls != 0 {
		t.Errorf("Expected no fetch without a project id, got %d calls", provider.fetchCalls)
	}
}

func TestService_Sync_WithoutProvider(t *testing.T) {
	svc, _ := newTestService(t, nil)

	if _, _, err := svc.Sync(context.Background()); !errors.Is(err, interfaces.ErrNoCredential) {
		t.Fatalf("Expected ErrNoCredential, got %v", err)
	}
}

func TestService_EnsureSynced(t *testing.T) {
	provider := &fakeProvider{defs: []*models.IssueDefinition{
		{ID: 1, Title: "5xx server errors"},
	}}
	svc, storage := newTestService(t, provider)
	ctx := context.Background()

	linkClient(t, storage, "12345")

	// 1. Empty catalog triggers a sync
	if err := svc.EnsureSynced(ctx); err != nil {
		t.Fatalf("Failed to ensure sync: %v", err)
	}
	if provider.fetchCalls != 1 {
		t.Fatalf("Expected one fetch, got %d", provider.fetchCalls)
	}

	// 2. A populated catalog is left alone
	if err := svc.EnsureSynced(ctx); err != nil {
		t.Fatalf("Failed on populated catalog: %v", err)
	}
	if provider.fetchCalls != 1 {
		t.Errorf("Expected no further fetches, got %d", provider.fetchCalls)
	}
}

func TestService_TitleFor(t *testing.T) {
	provider := &fakeProvider{defs: []*models.IssueDefinition{
		{ID: 1, Title: "Internal server errors"},
	}}
	svc, storage := newTestService(t, provider)
	ctx := context.Background()

	linkClient(t, storage, "12345")
	if _, _, err := svc.Sync(ctx); err != nil {
		t.Fatalf("Failed to sync: %v", err)
	}

	// Synced titles win over the built-in fallbacks
	if got := svc.TitleFor(ctx, 1); got != "Internal server errors" {
		t.Errorf("Expected the synced title, got %q", got)
	}
	// Unsynced but well-known ids use the fallback table
	if got := svc.TitleFor(ctx, 213); got != "Missing alt attributes" {
		t.Errorf("Expected the fallback title, got %q", got)
	}
	// Unknown ids resolve to empty
	if got := svc.TitleFor(ctx, 99999); got != "" {
		t.Errorf("Expected no title for an unknown id, got %q", got)
	}
}
