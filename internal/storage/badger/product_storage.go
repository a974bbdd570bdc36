package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
)

// ProductStorage implements the ProductStorage interface for Badger
type ProductStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewProductStorage creates a new ProductStorage instance
func NewProductStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ProductStorage {
	return &ProductStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ProductStorage) FindByNaturalKey(ctx context.Context, targetID, externalID string) (*models.Product, error) {
	var products []models.Product
	query := badgerhold.Where("TargetID").Eq(targetID).Index("TargetID").And("ExternalID").Eq(externalID).Limit(1)
	if err := s.db.Store().Find(&products, query); err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("product %s/%s: %w", targetID, externalID, interfaces.ErrNotFound)
	}
	return &products[0], nil
}

// Save stores the product as given; timestamps are owned by the caller
func (s *ProductStorage) Save(ctx context.Context, product *models.Product) error {
	if product.TargetID == "" || product.ExternalID == "" {
		return fmt.Errorf("product target ID and external ID are required")
	}
	if product.ID == "" {
		product.ID = common.NewProductID()
	}

	if err := s.db.Store().Upsert(product.ID, product); err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func (s *ProductStorage) CountByTarget(ctx context.Context, targetID string) (int, error) {
	count, err := s.db.Store().Count(&models.Product{}, badgerhold.Where("TargetID").Eq(targetID).Index("TargetID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return int(count), nil
}
