package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/models"
)

func TestCatalogStorage_UpsertDefinitions(t *testing.T) {
	db := newTestDB(t)
	storage := NewCatalogStorage(db, arbor.NewLogger())
	ctx := context.Background()

	first := []*models.IssueDefinition{
		{ID: 1, Title: "5xx server errors", Group: models.GroupError},
		{ID: 102, Title: "Broken internal links", Group: models.GroupWarning},
		{ID: 217, Title: "Missing alt attributes", Group: models.GroupNotice},
	}
	added, updated, err := storage.UpsertDefinitions(ctx, first)
	if err != nil {
		t.Fatalf("Failed to upsert definitions: %v", err)
	}
	if added != 3 || updated != 0 {
		t.Errorf("Expected 3 added / 0 updated, got %d / %d", added, updated)
	}

	original, err := storage.GetDefinition(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	originalCreated := original.CreatedAt

	time.Sleep(10 * time.Millisecond)

	second := []*models.IssueDefinition{
		{ID: 1, Title: "5xx server errors (renamed)", Group: models.GroupError},
		{ID: 999, Title: "Brand new issue", Group: models.GroupNotice},
	}
	added, updated, err = storage.UpsertDefinitions(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if added != 1 || updated != 1 {
		t.Errorf("Expected 1 added / 1 updated, got %d / %d", added, updated)
	}

	refreshed, err := storage.GetDefinition(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.Title != "5xx server errors (renamed)" {
		t.Errorf("Expected updated title, got %q", refreshed.Title)
	}
	if !refreshed.CreatedAt.Equal(originalCreated) {
		t.Error("Expected CreatedAt to be preserved on update")
	}
	if !refreshed.UpdatedAt.After(originalCreated) {
		t.Error("Expected UpdatedAt to move forward on update")
	}
}

func TestCatalogStorage_GetDefinitionUnknown(t *testing.T) {
	db := newTestDB(t)
	storage := NewCatalogStorage(db, arbor.NewLogger())

	def, err := storage.GetDefinition(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if def != nil {
		t.Errorf("Expected nil for unknown issue ID, got %+v", def)
	}
}

func TestCatalogStorage_ListDefinitions(t *testing.T) {
	db := newTestDB(t)
	storage := NewCatalogStorage(db, arbor.NewLogger())
	ctx := context.Background()

	defs := []*models.IssueDefinition{
		{ID: 217, Title: "Missing alt attributes"},
		{ID: 1, Title: "5xx server errors"},
		{ID: 102, Title: "Broken internal links"},
	}
	if _, _, err := storage.UpsertDefinitions(ctx, defs); err != nil {
		t.Fatal(err)
	}

	list, err := storage.ListDefinitions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 definitions, got %d", len(list))
	}
	if list[0].ID != 1 || list[2].ID != 217 {
		t.Errorf("Expected ID ordering, got %d..%d", list[0].ID, list[2].ID)
	}

	count, err := storage.CountDefinitions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}
}
