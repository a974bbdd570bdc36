package storage

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/storage/badger"
)

// NewStorageManager opens the Badger store and applies the configured seed file
func NewStorageManager(ctx context.Context, logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	manager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}

	if config.Seed.TargetsFile != "" {
		if err := badger.LoadTargetsFromFile(ctx, manager.TargetStorage(), manager.CategoryStorage(), config.Seed.TargetsFile, logger); err != nil {
			manager.Close()
			return nil, err
		}
	}

	return manager, nil
}
