package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
)

// CrawlRunStorage implements the CrawlRunStorage interface for Badger
type CrawlRunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCrawlRunStorage creates a new CrawlRunStorage instance
func NewCrawlRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CrawlRunStorage {
	return &CrawlRunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CrawlRunStorage) Create(ctx context.Context, run *models.CrawlRun) error {
	if run.ID == "" {
		return fmt.Errorf("crawl run ID is required")
	}
	if err := s.db.Store().Insert(run.ID, run); err != nil {
		return fmt.Errorf("failed to create crawl run: %w", err)
	}
	return nil
}

func (s *CrawlRunStorage) Update(ctx context.Context, run *models.CrawlRun) error {
	if err := s.db.Store().Update(run.ID, run); err != nil {
		return fmt.Errorf("failed to update crawl run %s: %w", run.ID, err)
	}
	return nil
}

// ListByTarget returns the most recent runs first; an empty targetID lists all targets
func (s *CrawlRunStorage) ListByTarget(ctx context.Context, targetID string, limit int) ([]*models.CrawlRun, error) {
	var query *badgerhold.Query
	if targetID == "" {
		query = badgerhold.Where("ID").Ne("")
	} else {
		query = badgerhold.Where("TargetID").Eq(targetID).Index("TargetID")
	}
	query = query.SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.CrawlRun
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list crawl runs: %w", err)
	}

	result := make([]*models.CrawlRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}
