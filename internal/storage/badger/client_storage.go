package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/afpkennettt/semanalyzer/internal/models"
)

// ClientStorage implements the ClientStorage interface for Badger
type ClientStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewClientStorage creates a new ClientStorage instance
func NewClientStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ClientStorage {
	return &ClientStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ClientStorage) CreateClient(ctx context.Context, client *models.Client) error {
	if client.ID == "" {
		return fmt.Errorf("client ID is required")
	}
	if err := s.db.Store().Insert(client.ID, client); err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (s *ClientStorage) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := s.db.Store().Get(id, &client); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("client not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &client, nil
}

// GetClientByDomain matches on the cleaned domain, so "https://www.acme.com/"
// and "acme.com" resolve to the same client. Returns nil without error when
// no client matches.
func (s *ClientStorage) GetClientByDomain(ctx context.Context, domain string) (*models.Client, error) {
	target := common.CleanDomain(domain)
	if target == "" {
		return nil, fmt.Errorf("domain is required")
	}

	var clients []models.Client
	if err := s.db.Store().Find(&clients, nil); err != nil {
		return nil, fmt.Errorf("failed to scan clients: %w", err)
	}
	for i := range clients {
		if common.CleanDomain(clients[i].Website) == target {
			return &clients[i], nil
		}
	}
	return nil, nil
}

func (s *ClientStorage) UpdateClient(ctx context.Context, client *models.Client) error {
	if err := s.db.Store().Update(client.ID, client); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("client not found: %s", client.ID)
		}
		return fmt.Errorf("failed to update client: %w", err)
	}
	return nil
}

func (s *ClientStorage) ListClients(ctx context.Context) ([]*models.Client, error) {
	var clients []models.Client
	if err := s.db.Store().Find(&clients, badgerhold.Where("ID").Ne("").SortBy("Name")); err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	result := make([]*models.Client, len(clients))
	for i := range clients {
		result[i] = &clients[i]
	}
	return result, nil
}

func (s *ClientStorage) CountClients(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Client{}, nil)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// DeleteClient removes the client and everything hanging off it in one
// transaction: analysis error rows (via the denormalized ClientID), the
// analyses, the tasks, then the client itself. A partially deleted client
// can never be observed.
func (s *ClientStorage) DeleteClient(ctx context.Context, id string) error {
	store := s.db.Store()

	err := store.Badger().Update(func(tx *badgerdb.Txn) error {
		var client models.Client
		if err := store.TxGet(tx, id, &client); err != nil {
			if err == badgerhold.ErrNotFound {
				return fmt.Errorf("client not found: %s", id)
			}
			return err
		}

		if err := store.TxDeleteMatching(tx, &models.AnalysisError{}, badgerhold.Where("ClientID").Eq(id)); err != nil {
			return fmt.Errorf("failed to delete analysis errors: %w", err)
		}
		if err := store.TxDeleteMatching(tx, &models.Analysis{}, badgerhold.Where("ClientID").Eq(id)); err != nil {
			return fmt.Errorf("failed to delete analyses: %w", err)
		}
		if err := store.TxDeleteMatching(tx, &models.Task{}, badgerhold.Where("ClientID").Eq(id)); err != nil {
			return fmt.Errorf("failed to delete tasks: %w", err)
		}
		if err := store.TxDelete(tx, id, &models.Client{}); err != nil {
			return fmt.Errorf("failed to delete client: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("client_id", id).Msg("Deleted client with tasks and analyses")
	return nil
}
