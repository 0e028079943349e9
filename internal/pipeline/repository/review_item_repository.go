package repository

import (
	"context"

	"rivalwatch/internal/entity"

	"gorm.io/gorm"
)

// ReviewItemRepository defines the pipeline-side access to the manual
// review queue.
type ReviewItemRepository interface {
	Create(ctx context.Context, item *entity.ReviewItem) error
}

// NewReviewItemRepository creates a new instance of ReviewItemRepository.
func NewReviewItemRepository(db *gorm.DB) ReviewItemRepository {
	return &reviewItemRepository{
		db: db,
	}
}

type reviewItemRepository struct {
	db *gorm.DB
}

func (r *reviewItemRepository) Create(ctx context.Context, item *entity.ReviewItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}
