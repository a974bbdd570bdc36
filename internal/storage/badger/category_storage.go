package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
)

// CategoryStorage implements the CategoryStorage interface for Badger
type CategoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCategoryStorage creates a new CategoryStorage instance
func NewCategoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CategoryStorage {
	return &CategoryStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CategoryStorage) FindBySlug(ctx context.Context, targetID, slug string) (*models.Category, error) {
	var categories []models.Category
	query := badgerhold.Where("TargetID").Eq(targetID).Index("TargetID").And("Slug").Eq(slug)
	if err := s.db.Store().Find(&categories, query); err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("category %s/%s: %w", targetID, slug, interfaces.ErrNotFound)
	}
	// Top-level categories win over subcategories sharing the slug
	for i := range categories {
		if categories[i].ParentID == nil {
			return &categories[i], nil
		}
	}
	return &categories[0], nil
}

// FindChild looks up a subcategory by slug below parentID
func (s *CategoryStorage) FindChild(ctx context.Context, targetID, parentID, slug string) (*models.Category, error) {
	var categories []models.Category
	query := badgerhold.Where("TargetID").Eq(targetID).Index("TargetID").And("Slug").Eq(slug)
	if err := s.db.Store().Find(&categories, query); err != nil {
		return nil, fmt.Errorf("failed to find subcategory: %w", err)
	}
	for i := range categories {
		if categories[i].ParentID != nil && *categories[i].ParentID == parentID {
			return &categories[i], nil
		}
	}
	return nil, fmt.Errorf("category %s/%s under %s: %w", targetID, slug, parentID, interfaces.ErrNotFound)
}

func (s *CategoryStorage) ListByTarget(ctx context.Context, targetID string) ([]*models.Category, error) {
	var categories []models.Category
	query := badgerhold.Where("TargetID").Eq(targetID).Index("TargetID").SortBy("SortOrder", "Name")
	if err := s.db.Store().Find(&categories, query); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	result := make([]*models.Category, len(categories))
	for i := range categories {
		result[i] = &categories[i]
	}
	return result, nil
}

func (s *CategoryStorage) Save(ctx context.Context, category *models.Category) error {
	if category.TargetID == "" {
		return fmt.Errorf("category target ID is required")
	}
	if category.ID == "" {
		category.ID = common.NewCategoryID()
	}

	now := time.Now()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = now

	if err := s.db.Store().Upsert(category.ID, category); err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}
