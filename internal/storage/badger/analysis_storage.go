package badger

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

// AnalysisStorage implements the AnalysisStorage interface for Badger
type AnalysisStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAnalysisStorage creates a new AnalysisStorage instance
func NewAnalysisStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AnalysisStorage {
	return &AnalysisStorage{
		db:     db,
		logger: logger,
	}
}

func (s *AnalysisStorage) SaveAnalysis(ctx context.Context, analysis *models.Analysis) error {
	if analysis.ID == "" {
		return fmt.Errorf("analysis ID is required")
	}
	if err := s.db.Store().Insert(analysis.ID, analysis); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

func (s *AnalysisStorage) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	var analysis models.Analysis
	if err := s.db.Store().Get(id, &analysis); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("analysis not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &analysis, nil
}

// GetLatestByClient returns the most recent analysis for a client, or nil
// when the client has none yet.
func (s *AnalysisStorage) GetLatestByClient(ctx context.Context, clientID string) (*models.Analysis, error) {
	query := badgerhold.Where("ClientID").Eq(clientID).
		SortBy("AnalysisDate").Reverse().Limit(1)

	var analyses []models.Analysis
	if err := s.db.Store().Find(&analyses, query); err != nil {
		return nil, fmt.Errorf("failed to get latest analysis: %w", err)
	}
	if len(analyses) == 0 {
		return nil, nil
	}
	return &analyses[0], nil
}

func (s *AnalysisStorage) GetAnalysesByClient(ctx context.Context, clientID string, limit int) ([]*models.Analysis, error) {
	query := badgerhold.Where("ClientID").Eq(clientID).SortBy("AnalysisDate").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var analyses []models.Analysis
	if err := s.db.Store().Find(&analyses, query); err != nil {
		return nil, fmt.Errorf("failed to get analyses for client: %w", err)
	}

	result := make([]*models.Analysis, len(analyses))
	for i := range analyses {
		result[i] = &analyses[i]
	}
	return result, nil
}

// GetPreviousAnalysis returns the newest analysis for the same client dated
// strictly before the given one, or nil when it is the first.
func (s *AnalysisStorage) GetPreviousAnalysis(ctx context.Context, analysis *models.Analysis) (*models.Analysis, error) {
	query := badgerhold.Where("ClientID").Eq(analysis.ClientID).
		And("AnalysisDate").Lt(analysis.AnalysisDate).
		And("ID").Ne(analysis.ID).
		SortBy("AnalysisDate").Reverse().Limit(1)

	var analyses []models.Analysis
	if err := s.db.Store().Find(&analyses, query); err != nil {
		return nil, fmt.Errorf("failed to get previous analysis: %w", err)
	}
	if len(analyses) == 0 {
		return nil, nil
	}
	return &analyses[0], nil
}

func (s *AnalysisStorage) ListAnalyses(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Analysis, error) {
	if opts == nil {
		opts = &interfaces.ListOptions{}
	}

	var query *badgerhold.Query
	if opts.ClientID != "" {
		query = badgerhold.Where("ClientID").Eq(opts.ClientID)
	} else {
		query = badgerhold.Where("ID").Ne("")
	}

	query = query.SortBy("AnalysisDate")
	if opts.OrderDir != "asc" {
		query = query.Reverse()
	}
	if opts.Offset > 0 {
		query = query.Skip(opts.Offset)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}

	var analyses []models.Analysis
	if err := s.db.Store().Find(&analyses, query); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	result := make([]*models.Analysis, len(analyses))
	for i := range analyses {
		result[i] = &analyses[i]
	}
	return result, nil
}

func (s *AnalysisStorage) CountAnalyses(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Analysis{}, nil)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// DeleteAnalysis removes the analysis and its error rows in one transaction.
func (s *AnalysisStorage) DeleteAnalysis(ctx context.Context, id string) error {
	store := s.db.Store()

	return store.Badger().Update(func(tx *badgerdb.Txn) error {
		if err := store.TxDeleteMatching(tx, &models.AnalysisError{}, badgerhold.Where("AnalysisID").Eq(id)); err != nil {
			return fmt.Errorf("failed to delete analysis errors: %w", err)
		}
		if err := store.TxDelete(tx, id, &models.Analysis{}); err != nil {
			if err == badgerhold.ErrNotFound {
				return fmt.Errorf("analysis not found: %s", id)
			}
			return fmt.Errorf("failed to delete analysis: %w", err)
		}
		return nil
	})
}

func (s *AnalysisStorage) UpdateInsights(ctx context.Context, analysisID string, summary, insights, recommendations string) error {
	var analysis models.Analysis
	if err := s.db.Store().Get(analysisID, &analysis); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("analysis not found: %s", analysisID)
		}
		return fmt.Errorf("failed to get analysis: %w", err)
	}

	analysis.Summary = summary
	analysis.Insights = insights
	analysis.Recommendations = recommendations

	if err := s.db.Store().Update(analysisID, &analysis); err != nil {
		return fmt.Errorf("failed to update insights: %w", err)
	}
	return nil
}

func (s *AnalysisStorage) GetAnalysesMissingInsights(ctx context.Context, since time.Time) ([]*models.Analysis, error) {
	query := badgerhold.Where("AnalysisDate").Gt(since).
		And("Insights").Eq("").
		SortBy("AnalysisDate")

	var analyses []models.Analysis
	if err := s.db.Store().Find(&analyses, query); err != nil {
		return nil, fmt.Errorf("failed to get analyses missing insights: %w", err)
	}

	result := make([]*models.Analysis, len(analyses))
	for i := range analyses {
		result[i] = &analyses[i]
	}
	return result, nil
}

func (s *AnalysisStorage) GetAnalysisErrors(ctx context.Context, analysisID string) ([]*models.AnalysisError, error) {
	query := badgerhold.Where("AnalysisID").Eq(analysisID).
		SortBy("Severity", "Count").Reverse()

	var analysisErrors []models.AnalysisError
	if err := s.db.Store().Find(&analysisErrors, query); err != nil {
		return nil, fmt.Errorf("failed to get analysis errors: %w", err)
	}

	result := make([]*models.AnalysisError, len(analysisErrors))
	for i := range analysisErrors {
		result[i] = &analysisErrors[i]
	}
	return result, nil
}

func (s *AnalysisStorage) UpdateAnalysisError(ctx context.Context, analysisError *models.AnalysisError) error {
	if err := s.db.Store().Update(analysisError.ID, analysisError); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("analysis error not found: %s", analysisError.ID)
		}
		return fmt.Errorf("failed to update analysis error: %w", err)
	}
	return nil
}
