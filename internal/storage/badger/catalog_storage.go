package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

// CatalogStorage implements the CatalogStorage interface for Badger
type CatalogStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCatalogStorage creates a new CatalogStorage instance
func NewCatalogStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CatalogStorage {
	return &CatalogStorage{
		db:     db,
		logger: logger,
	}
}

// UpsertDefinitions refreshes catalog entries keyed by issue ID, keeping the
// original CreatedAt on updates.
func (s *CatalogStorage) UpsertDefinitions(ctx context.Context, defs []*models.IssueDefinition) (int, int, error) {
	now := time.Now()
	added := 0
	updated := 0

	for _, def := range defs {
		var existing models.IssueDefinition
		err := s.db.Store().Get(def.ID, &existing)
		switch err {
		case nil:
			def.CreatedAt = existing.CreatedAt
			def.UpdatedAt = now
			if err := s.db.Store().Update(def.ID, def); err != nil {
				return added, updated, fmt.Errorf("failed to update issue definition %d: %w", def.ID, err)
			}
			updated++
		case badgerhold.ErrNotFound:
			def.CreatedAt = now
			def.UpdatedAt = now
			if err := s.db.Store().Insert(def.ID, def); err != nil {
				return added, updated, fmt.Errorf("failed to insert issue definition %d: %w", def.ID, err)
			}
			added++
		default:
			return added, updated, fmt.Errorf("failed to look up issue definition %d: %w", def.ID, err)
		}
	}

	return added, updated, nil
}

// GetDefinition returns nil without error when the issue ID is not in the
// catalog.
func (s *CatalogStorage) GetDefinition(ctx context.Context, issueID int) (*models.IssueDefinition, error) {
	var def models.IssueDefinition
	if err := s.db.Store().Get(issueID, &def); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get issue definition: %w", err)
	}
	return &def, nil
}

func (s *CatalogStorage) ListDefinitions(ctx context.Context) ([]*models.IssueDefinition, error) {
	var defs []models.IssueDefinition
	if err := s.db.Store().Find(&defs, badgerhold.Where("ID").Ge(0).SortBy("ID")); err != nil {
		return nil, fmt.Errorf("failed to list issue definitions: %w", err)
	}

	result := make([]*models.IssueDefinition, len(defs))
	for i := range defs {
		result[i] = &defs[i]
	}
	return result, nil
}

func (s *CatalogStorage) CountDefinitions(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.IssueDefinition{}, nil)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
