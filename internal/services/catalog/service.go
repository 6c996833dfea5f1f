// Package catalog keeps the local copy of the SEMrush issue catalog in sync
// and resolves human-readable titles for issue ids.
package catalog

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

// Service implements interfaces.CatalogService over the audit provider's
// metadata endpoint and the catalog storage.
type Service struct {
	storage  interfaces.StorageManager
	provider interfaces.AuditProvider
	events   interfaces.EventService
	logger   arbor.ILogger
}

// NewService creates the catalog service. The provider may be nil when no
// SEMrush credential is configured; Sync then returns ErrNoCredential.
func NewService(storage interfaces.StorageManager, provider interfaces.AuditProvider, events interfaces.EventService, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{storage: storage, provider: provider, events: events, logger: logger}
}

// Sync fetches the issue catalog and upserts it into storage. The metadata
// endpoint is project-scoped, so any client already linked to a SEMrush
// project provides the id.
func (s *Service) Sync(ctx context.Context) (int, int, error) {
	if s.provider == nil {
		return 0, 0, interfaces.ErrNoCredential
	}

	projectID, err := s.anyProjectID(ctx)
	if err != nil {
		return 0, 0, err
	}

	defs, err := s.provider.FetchIssueCatalog(ctx, projectID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch issue catalog: %w", err)
	}

	added, updated, err := s.storage.CatalogStorage().UpsertDefinitions(ctx, defs)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to store issue catalog: %w", err)
	}

	s.logger.Info().
		Int("added", added).
		Int("updated", updated).
		Int("total", len(defs)).
		Msg("Issue catalog synced")

	if s.events != nil {
		event := interfaces.Event{
			Type: interfaces.EventCatalogSynced,
			Payload: map[string]interface{}{
				"added":   added,
				"updated": updated,
			},
		}
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to publish catalog event")
		}
	}

	return added, updated, nil
}

// EnsureSynced syncs only when the local catalog is empty. Failures are
// logged here and returned; startup treats them as non-fatal.
func (s *Service) EnsureSynced(ctx context.Context) error {
	count, err := s.storage.CatalogStorage().CountDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("failed to count catalog entries: %w", err)
	}
	if count > 0 {
		s.logger.Debug().Int("count", count).Msg("Issue catalog already populated")
		return nil
	}

	if _, _, err := s.Sync(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Initial issue catalog sync failed")
		return err
	}
	return nil
}

// TitleFor resolves the display title for an issue id: the synced catalog
// first, then the built-in fallbacks, then "".
func (s *Service) TitleFor(ctx context.Context, issueID int) string {
	if def, err := s.storage.CatalogStorage().GetDefinition(ctx, issueID); err == nil && def != nil && def.Title != "" {
		return def.Title
	}
	return models.FallbackIssueTitle(issueID)
}

// anyProjectID finds a SEMrush project id to scope the metadata request.
func (s *Service) anyProjectID(ctx context.Context) (string, error) {
	clients, err := s.storage.ClientStorage().ListClients(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list clients: %w", err)
	}
	for _, client := range clients {
		if client.HasProject() {
			return client.SemrushProjectID, nil
		}
	}
	return "", fmt.Errorf("no client is linked to a SEMrush project yet")
}
