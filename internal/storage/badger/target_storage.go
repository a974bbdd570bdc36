package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/pricewatch/internal/common"
	"github.com/ternarybob/pricewatch/internal/interfaces"
	"github.com/ternarybob/pricewatch/internal/models"
)

// TargetStorage implements the TargetStorage interface for Badger
type TargetStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTargetStorage creates a new TargetStorage instance
func NewTargetStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TargetStorage {
	return &TargetStorage{
		db:     db,
		logger: logger,
	}
}

func (s *TargetStorage) FindActive(ctx context.Context) ([]*models.Target, error) {
	var targets []models.Target
	if err := s.db.Store().Find(&targets, badgerhold.Where("IsActive").Eq(true).SortBy("Name")); err != nil {
		return nil, fmt.Errorf("failed to find active targets: %w", err)
	}
	return toTargetPtrs(targets), nil
}

func (s *TargetStorage) FindByID(ctx context.Context, id string) (*models.Target, error) {
	var target models.Target
	if err := s.db.Store().Get(id, &target); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("target %s: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get target: %w", err)
	}
	return &target, nil
}

func (s *TargetStorage) FindBySlug(ctx context.Context, slug string) (*models.Target, error) {
	var targets []models.Target
	if err := s.db.Store().Find(&targets, badgerhold.Where("Slug").Eq(slug).Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to find target by slug: %w", err)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("target with slug %s: %w", slug, interfaces.ErrNotFound)
	}
	return &targets[0], nil
}

func (s *TargetStorage) List(ctx context.Context) ([]*models.Target, error) {
	var targets []models.Target
	if err := s.db.Store().Find(&targets, badgerhold.Where("ID").Ne("").SortBy("Name")); err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	return toTargetPtrs(targets), nil
}

func (s *TargetStorage) Save(ctx context.Context, target *models.Target) error {
	if target.ID == "" {
		target.ID = common.NewTargetID()
	}

	now := time.Now()
	if target.CreatedAt.IsZero() {
		target.CreatedAt = now
	}
	if target.UpdatedAt.IsZero() {
		target.UpdatedAt = now
	}

	if err := s.db.Store().Upsert(target.ID, target); err != nil {
		return fmt.Errorf("failed to save target: %w", err)
	}
	return nil
}

// recordCrawlAttempts bounds retries when two runs commit against the same target
const recordCrawlAttempts = 5

func (s *TargetStorage) RecordCrawl(ctx context.Context, id string, kind models.CrawlKind, success bool, errMessage string, at time.Time) error {
	store := s.db.Store()

	var err error
	for attempt := 1; attempt <= recordCrawlAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = store.Badger().Update(func(tx *badger.Txn) error {
			var target models.Target
			if err := store.TxGet(tx, id, &target); err != nil {
				return err
			}
			target.RecordCrawl(kind, success, errMessage, at)
			return store.TxUpdate(tx, id, &target)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		s.logger.Debug().Str("target_id", id).Int("attempt", attempt).Msg("Last crawl update conflicted, retrying")
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, badgerhold.ErrNotFound):
		return fmt.Errorf("target %s: %w", id, interfaces.ErrNotFound)
	default:
		return fmt.Errorf("failed to record crawl on target %s: %w", id, err)
	}
}

func toTargetPtrs(targets []models.Target) []*models.Target {
	result := make([]*models.Target, len(targets))
	for i := range targets {
		result[i] = &targets[i]
	}
	return result
}
