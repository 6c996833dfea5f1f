package badger

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

func saveAnalysisAt(t *testing.T, storage interfaces.AnalysisStorage, id, clientID string, date time.Time) *models.Analysis {
	t.Helper()

	analysis := &models.Analysis{
		ID:           id,
		ClientID:     clientID,
		AnalysisDate: date,
		TotalErrors:  5,
		Defects:      models.EmptyDefectSet(),
	}
	if err := storage.SaveAnalysis(context.Background(), analysis); err != nil {
		t.Fatalf("Failed to save analysis %s: %v", id, err)
	}
	return analysis
}

func TestAnalysisStorage_LatestAndPrevious(t *testing.T) {
	db := newTestDB(t)
	storage := NewAnalysisStorage(db, arbor.NewLogger())
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	oldest := saveAnalysisAt(t, storage, "a-1", "client-1", base)
	middle := saveAnalysisAt(t, storage, "a-2", "client-1", base.AddDate(0, 0, 7))
	newest := saveAnalysisAt(t, storage, "a-3", "client-1", base.AddDate(0, 0, 14))
	saveAnalysisAt(t, storage, "b-1", "client-2", base.AddDate(0, 0, 30))

	latest, err := storage.GetLatestByClient(ctx, "client-1")
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.ID != newest.ID {
		t.Errorf("Expected latest analysis a-3, got %+v", latest)
	}

	previous, err := storage.GetPreviousAnalysis(ctx, newest)
	if err != nil {
		t.Fatal(err)
	}
	if previous == nil || previous.ID != middle.ID {
		t.Errorf("Expected previous analysis a-2, got %+v", previous)
	}

	first, err := storage.GetPreviousAnalysis(ctx, oldest)
	if err != nil {
		t.Fatal(err)
	}
	if first != nil {
		t.Errorf("Expected nil previous for the first analysis, got %s", first.ID)
	}

	none, err := storage.GetLatestByClient(ctx, "client-3")
	if err != nil {
		t.Fatal(err)
	}
	if none != nil {
		t.Errorf("Expected nil for client without analyses, got %s", none.ID)
	}
}

func TestAnalysisStorage_MissingInsights(t *testing.T) {
	db := newTestDB(t)
	storage := NewAnalysisStorage(db, arbor.NewLogger())
	ctx := context.Background()
	cutoff := time.Now().AddDate(0, 0, -7)

	// Too old, excluded even without insights
	saveAnalysisAt(t, storage, "old", "client-1", cutoff.AddDate(0, 0, -1))

	// Recent without insights, expected in the result
	pending := saveAnalysisAt(t, storage, "pending", "client-1", cutoff.AddDate(0, 0, 1))

	// Recent with insights already generated
	done := saveAnalysisAt(t, storage, "done", "client-1", cutoff.AddDate(0, 0, 2))
	if err := storage.UpdateInsights(ctx, done.ID, "summary", "insight text", "recommendation text"); err != nil {
		t.Fatal(err)
	}

	missing, err := storage.GetAnalysesMissingInsights(ctx, cutoff)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 1 {
		t.Fatalf("Expected 1 analysis missing insights, got %d", len(missing))
	}
	if missing[0].ID != pending.ID {
		t.Errorf("Expected analysis %s, got %s", pending.ID, missing[0].ID)
	}
}

func TestAnalysisStorage_UpdateInsights(t *testing.T) {
	db := newTestDB(t)
	storage := NewAnalysisStorage(db, arbor.NewLogger())
	ctx := context.Background()

	analysis := saveAnalysisAt(t, storage, "a-1", "client-1", time.Now())

	if err := storage.UpdateInsights(ctx, analysis.ID, "the summary", "the insights", "the recommendations"); err != nil {
		t.Fatalf("Failed to update insights: %v", err)
	}

	loaded, err := storage.GetAnalysis(ctx, analysis.ID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Summary != "the summary" || loaded.Insights != "the insights" || loaded.Recommendations != "the recommendations" {
		t.Errorf("Insight fields not updated: %+v", loaded)
	}
	if loaded.TotalErrors != 5 {
		t.Errorf("Expected audit data untouched, got %d errors", loaded.TotalErrors)
	}
	if !loaded.HasInsights() {
		t.Error("Expected HasInsights after update")
	}

	if err := storage.UpdateInsights(ctx, "missing", "s", "i", "r"); err == nil {
		t.Error("Expected error for unknown analysis")
	}
}

func TestAnalysisStorage_ErrorsOrderedBySeverity(t *testing.T) {
	db := newTestDB(t)
	storage := NewAnalysisStorage(db, arbor.NewLogger())
	ctx := context.Background()

	analysis := saveAnalysisAt(t, storage, "a-1", "client-1", time.Now())

	severities := []int{models.SeverityNotice, models.SeverityError, models.SeverityWarning}
	for i, severity := range severities {
		row := models.NewAnalysisError(analysis.ID, analysis.ClientID)
		row.Severity = severity
		row.Count = i + 1
		if err := db.Store().Insert(row.ID, row); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := storage.GetAnalysisErrors(ctx, analysis.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if rows[0].Severity != models.SeverityError || rows[2].Severity != models.SeverityNotice {
		t.Errorf("Expected severity ordering 8..3, got %d..%d", rows[0].Severity, rows[2].Severity)
	}

	// Enrichment round trip
	rows[0].Impact = "Search engines cannot index these pages"
	rows[0].Solution = "Fix the server configuration"
	if err := storage.UpdateAnalysisError(ctx, rows[0]); err != nil {
		t.Fatal(err)
	}
	reloaded, err := storage.GetAnalysisErrors(ctx, analysis.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded[0].Impact == "" || reloaded[0].Solution == "" {
		t.Error("Expected enrichment fields to persist")
	}
}

func TestAnalysisStorage_DeleteCascade(t *testing.T) {
	db := newTestDB(t)
	storage := NewAnalysisStorage(db, arbor.NewLogger())
	ctx := context.Background()

	analysis := saveAnalysisAt(t, storage, "a-1", "client-1", time.Now())
	row := models.NewAnalysisError(analysis.ID, analysis.ClientID)
	if err := db.Store().Insert(row.ID, row); err != nil {
		t.Fatal(err)
	}

	if err := storage.DeleteAnalysis(ctx, analysis.ID); err != nil {
		t.Fatalf("Failed to delete analysis: %v", err)
	}

	if _, err := storage.GetAnalysis(ctx, analysis.ID); err == nil {
		t.Error("Expected analysis to be gone")
	}
	rows, err := storage.GetAnalysisErrors(ctx, analysis.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected error rows to cascade, got %d", len(rows))
	}
}
