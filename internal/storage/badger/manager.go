package badger

import (
	"github.com/afpkennettt/semanalyzer/internal/common"
	"github.com/afpkennettt/semanalyzer/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// Manager implements the StorageManager interface for Badger. All typed
// storages share a single badgerhold store, which is what makes the
// cross-entity transactions in task and client storage possible.
type Manager struct {
	db       *BadgerDB
	client   interfaces.ClientStorage
	task     interfaces.TaskStorage
	analysis interfaces.AnalysisStorage
	catalog  interfaces.CatalogStorage
	kv       interfaces.KeyValueStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:       db,
		client:   NewClientStorage(db, logger),
		task:     NewTaskStorage(db, logger),
		analysis: NewAnalysisStorage(db, logger),
		catalog:  NewCatalogStorage(db, logger),
		kv:       NewKVStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// ClientStorage returns the client storage interface
func (m *Manager) ClientStorage() interfaces.ClientStorage {
	return m.client
}

// TaskStorage returns the task storage interface
func (m *Manager) TaskStorage() interfaces.TaskStorage {
	return m.task
}

// AnalysisStorage returns the analysis storage interface
func (m *Manager) AnalysisStorage() interfaces.AnalysisStorage {
	return m.analysis
}

// CatalogStorage returns the issue catalog storage interface
func (m *Manager) CatalogStorage() interfaces.CatalogStorage {
	return m.catalog
}

// KVStorage returns the key/value storage interface
func (m *Manager) KVStorage() interfaces.KeyValueStorage {
	return m.kv
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
