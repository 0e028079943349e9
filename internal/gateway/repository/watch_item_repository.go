package repository

import (
	"context"
	"time"

	"rivalwatch/internal/entity"

	"gorm.io/gorm"
)

// WatchItemRepository defines the gateway-side data access for watch items.
type WatchItemRepository interface {
	Create(ctx context.Context, item *entity.WatchItem) error
	FindByID(ctx context.Context, id uint) (*entity.WatchItem, error)
	FindAll(ctx context.Context) ([]entity.WatchItem, error)
	Update(ctx context.Context, item *entity.WatchItem) error
	Delete(ctx context.Context, id uint) error
	// FindDue returns active items whose cron schedule is due at now. Items
	// without a schedule never come back; items that have never run yet do.
	FindDue(ctx context.Context, now time.Time) ([]entity.WatchItem, error)
	UpdateRunTimes(ctx context.Context, id uint, lastRun, nextRun *time.Time) error
}

// NewWatchItemRepository creates a new GORM-based watch item repository.
func NewWatchItemRepository(db *gorm.DB) WatchItemRepository {
	return &watchItemRepository{db: db}
}

type watchItemRepository struct {
	db *gorm.DB
}

func (r *watchItemRepository) Create(ctx context.Context, item *entity.WatchItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *watchItemRepository) FindByID(ctx context.Context, id uint) (*entity.WatchItem, error) {
	var item entity.WatchItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *watchItemRepository) FindAll(ctx context.Context) ([]entity.WatchItem, error) {
	var items []entity.WatchItem
	if err := r.db.WithContext(ctx).Order("id").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *watchItemRepository) Update(ctx context.Context, item *entity.WatchItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// Delete soft-deletes the watch item. Its signals, cards and runs stay
// queryable by id; the item just stops matching and scheduling.
func (r *watchItemRepository) Delete(ctx context.Context, id uint) error {
	tx := r.db.WithContext(ctx).Delete(&entity.WatchItem{}, id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *watchItemRepository) FindDue(ctx context.Context, now time.Time) ([]entity.WatchItem, error) {
	var items []entity.WatchItem
	err := r.db.WithContext(ctx).
		Where("active = ? AND schedule <> ''", true).
		Where("next_run_at IS NULL OR next_run_at <= ?", now).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *watchItemRepository) UpdateRunTimes(ctx context.Context, id uint, lastRun, nextRun *time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.WatchItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_run_at": lastRun,
			"next_run_at": nextRun,
		}).Error
}
