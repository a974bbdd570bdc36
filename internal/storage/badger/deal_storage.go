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

// DealStorage implements the DealStorage interface for Badger
type DealStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDealStorage creates a new DealStorage instance
func NewDealStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DealStorage {
	return &DealStorage{
		db:     db,
		logger: logger,
	}
}

// FindByNaturalKey matches the validity dates in Go rather than in the query
// so that decoded time zones cannot break equality
func (s *DealStorage) FindByNaturalKey(ctx context.Context, targetID, productName string, start, end time.Time) (*models.Deal, error) {
	var deals []models.Deal
	query := badgerhold.Where("TargetID").Eq(targetID).Index("TargetID").And("ProductName").Eq(productName)
	if err := s.db.Store().Find(&deals, query); err != nil {
		return nil, fmt.Errorf("failed to find deal: %w", err)
	}

	for i := range deals {
		if deals[i].StartDate.Equal(start) && deals[i].EndDate.Equal(end) {
			return &deals[i], nil
		}
	}
	return nil, fmt.Errorf("deal %s/%s: %w", targetID, productName, interfaces.ErrNotFound)
}

// Save stores the deal as given; IsActive and timestamps are owned by the caller
func (s *DealStorage) Save(ctx context.Context, deal *models.Deal) error {
	if deal.TargetID == "" || deal.ProductName == "" {
		return fmt.Errorf("deal target ID and product name are required")
	}
	if deal.ID == "" {
		deal.ID = common.NewDealID()
	}

	if err := s.db.Store().Upsert(deal.ID, deal); err != nil {
		return fmt.Errorf("failed to save deal: %w", err)
	}
	return nil
}

func (s *DealStorage) DeactivateExpired(ctx context.Context, targetID string, asOf time.Time) (int, error) {
	var deals []models.Deal
	query := badgerhold.Where("TargetID").Eq(targetID).Index("TargetID").And("IsActive").Eq(true)
	if err := s.db.Store().Find(&deals, query); err != nil {
		return 0, fmt.Errorf("failed to find active deals: %w", err)
	}

	changed := 0
	now := time.Now()
	for i := range deals {
		deal := &deals[i]
		if !deal.EndDate.Before(asOf) {
			continue
		}

		deal.IsActive = false
		deal.UpdatedAt = now
		if err := s.db.Store().Upsert(deal.ID, deal); err != nil {
			return changed, fmt.Errorf("failed to deactivate deal %s: %w", deal.ID, err)
		}
		changed++
	}

	if changed > 0 {
		s.logger.Debug().Str("target_id", targetID).Int("count", changed).Msg("Deactivated expired deals")
	}
	return changed, nil
}

func (s *DealStorage) ListActive(ctx context.Context, targetID string) ([]*models.Deal, error) {
	var deals []models.Deal
	query := badgerhold.Where("TargetID").Eq(targetID).Index("TargetID").And("IsActive").Eq(true).SortBy("ProductName")
	if err := s.db.Store().Find(&deals, query); err != nil {
		return nil, fmt.Errorf("failed to list active deals: %w", err)
	}

	result := make([]*models.Deal, len(deals))
	for i := range deals {
		result[i] = &deals[i]
	}
	return result, nil
}
