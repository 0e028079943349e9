package repository

import (
	"context"
	"time"

	"rivalwatch/internal/entity"

	"gorm.io/gorm"
)

// ReviewItemFilter narrows a review queue listing.
type ReviewItemFilter struct {
	Status string
	Kind   string
	Limit  int
}

// ReviewItemRepository defines the gateway-side access to the manual review
// queue.
type ReviewItemRepository interface {
	FindAll(ctx context.Context, filter ReviewItemFilter) ([]entity.ReviewItem, error)
	FindByID(ctx context.Context, id uint) (*entity.ReviewItem, error)
	// Resolve closes an open review item. Resolving an already resolved item
	// reports gorm.ErrRecordNotFound so the caller can disambiguate.
	Resolve(ctx context.Context, id uint, at time.Time) error
}

// NewReviewItemRepository creates a new GORM-based review item repository.
func NewReviewItemRepository(db *gorm.DB) ReviewItemRepository {
	return &reviewItemRepository{db: db}
}

type reviewItemRepository struct {
	db *gorm.DB
}

func (r *reviewItemRepository) FindAll(ctx context.Context, filter ReviewItemFilter) ([]entity.ReviewItem, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var items []entity.ReviewItem
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *reviewItemRepository) FindByID(ctx context.Context, id uint) (*entity.ReviewItem, error) {
	var item entity.ReviewItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *reviewItemRepository) Resolve(ctx context.Context, id uint, at time.Time) error {
	tx := r.db.WithContext(ctx).
		Model(&entity.ReviewItem{}).
		Where("id = ? AND status = ?", id, entity.ReviewStatusOpen).
		Updates(map[string]interface{}{
			"status":      entity.ReviewStatusResolved,
			"resolved_at": at,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
