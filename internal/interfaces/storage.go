// -----------------------------------------------------------------------
// Storage interfaces - persistence collaborators of the crawl pipeline
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/pricewatch/internal/models"
)

// ErrNotFound is returned by Find* lookups when no record matches
var ErrNotFound = errors.New("not found")

// TargetStorage - interface for crawl target persistence
type TargetStorage interface {
	FindActive(ctx context.Context) ([]*models.Target, error)
	FindByID(ctx context.Context, id string) (*models.Target, error)
	FindBySlug(ctx context.Context, slug string) (*models.Target, error)
	List(ctx context.Context) ([]*models.Target, error)
	Save(ctx context.Context, target *models.Target) error
	// RecordCrawl writes one kind's last-crawl outcome without touching the
	// fields owned by a concurrent run of the other kind
	RecordCrawl(ctx context.Context, id string, kind models.CrawlKind, success bool, errMessage string, at time.Time) error
}

// CategoryStorage - interface for category persistence
type CategoryStorage interface {
	FindBySlug(ctx context.Context, targetID, slug string) (*models.Category, error)
	FindChild(ctx context.Context, targetID, parentID, slug string) (*models.Category, error)
	ListByTarget(ctx context.Context, targetID string) ([]*models.Category, error)
	Save(ctx context.Context, category *models.Category) error
}

// ProductStorage - interface for catalog product persistence
type ProductStorage interface {
	FindByNaturalKey(ctx context.Context, targetID, externalID string) (*models.Product, error)
	Save(ctx context.Context, product *models.Product) error
	CountByTarget(ctx context.Context, targetID string) (int, error)
}

// DealStorage - interface for deal persistence
type DealStorage interface {
	FindByNaturalKey(ctx context.Context, targetID, productName string, start, end time.Time) (*models.Deal, error)
	Save(ctx context.Context, deal *models.Deal) error
	// DeactivateExpired marks every active deal of the target whose end date
	// lies before asOf as inactive and returns how many were changed
	DeactivateExpired(ctx context.Context, targetID string, asOf time.Time) (int, error)
	ListActive(ctx context.Context, targetID string) ([]*models.Deal, error)
}

// CrawlRunStorage - interface for run record persistence
type CrawlRunStorage interface {
	Create(ctx context.Context, run *models.CrawlRun) error
	Update(ctx context.Context, run *models.CrawlRun) error
	ListByTarget(ctx context.Context, targetID string, limit int) ([]*models.CrawlRun, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	TargetStorage() TargetStorage
	CategoryStorage() CategoryStorage
	ProductStorage() ProductStorage
	DealStorage() DealStorage
	CrawlRunStorage() CrawlRunStorage
	Close() error
}
