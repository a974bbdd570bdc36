package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	target   interfaces.TargetStorage
	category interfaces.CategoryStorage
	product  interfaces.ProductStorage
	deal     interfaces.DealStorage
	crawlRun interfaces.CrawlRunStorage
	logger   arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := newManager(db, logger)
	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

func newManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:       db,
		target:   NewTargetStorage(db, logger),
		category: NewCategoryStorage(db, logger),
		product:  NewProductStorage(db, logger),
		deal:     NewDealStorage(db, logger),
		crawlRun: NewCrawlRunStorage(db, logger),
		logger:   logger,
	}
}

// TargetStorage returns the Target storage interface
func (m *Manager) TargetStorage() interfaces.TargetStorage {
	return m.target
}

// CategoryStorage returns the Category storage interface
func (m *Manager) CategoryStorage() interfaces.CategoryStorage {
	return m.category
}

// ProductStorage returns the Product storage interface
func (m *Manager) ProductStorage() interfaces.ProductStorage {
	return m.product
}

// DealStorage returns the Deal storage interface
func (m *Manager) DealStorage() interfaces.DealStorage {
	return m.deal
}

// CrawlRunStorage returns the CrawlRun storage interface
func (m *Manager) CrawlRunStorage() interfaces.CrawlRunStorage {
	return m.crawlRun
}

// DB returns the underlying Badger connection
func (m *Manager) DB() *BadgerDB {
	return m.db
}

// Close closes the database connection
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing Badger storage manager")
	return m.db.Close()
}
