package repository

import (
	"context"

	"rivalwatch/internal/entity"

	"gorm.io/gorm"
)

// WatchItemRepository defines the pipeline-side read access to watch items.
type WatchItemRepository interface {
	FindByID(ctx context.Context, id uint) (*entity.WatchItem, error)
	FindActive(ctx context.Context) ([]entity.WatchItem, error)
}

// NewWatchItemRepository creates a new instance of WatchItemRepository.
func NewWatchItemRepository(db *gorm.DB) WatchItemRepository {
	return &watchItemRepository{
		db: db,
	}
}

type watchItemRepository struct {
	db *gorm.DB
}

func (r *watchItemRepository) FindByID(ctx context.Context, id uint) (*entity.WatchItem, error) {
	var item entity.WatchItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *watchItemRepository) FindActive(ctx context.Context) ([]entity.WatchItem, error) {
	var items []entity.WatchItem
	err := r.db.WithContext(ctx).Where("active = ?", true).Find(&items).Error
	return items, err
}
