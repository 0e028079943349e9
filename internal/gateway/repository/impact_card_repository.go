package repository

import (
	"context"
	"time"

	"rivalwatch/internal/entity"

	"gorm.io/gorm"
)

// ImpactCardFilter narrows an impact card listing.
type ImpactCardFilter struct {
	WatchItemID uint
	RiskLevel   string
	Limit       int
}

// ImpactCardRepository defines the gateway-side read and acknowledge access
// to impact cards.
type ImpactCardRepository interface {
	FindByID(ctx context.Context, id uint) (*entity.ImpactCard, error)
	FindAll(ctx context.Context, filter ImpactCardFilter) ([]entity.ImpactCard, error)
	Acknowledge(ctx context.Context, id uint, at time.Time) error
}

// NewImpactCardRepository creates a new GORM-based impact card repository.
func NewImpactCardRepository(db *gorm.DB) ImpactCardRepository {
	return &impactCardRepository{db: db}
}

type impactCardRepository struct {
	db *gorm.DB
}

func (r *impactCardRepository) FindByID(ctx context.Context, id uint) (*entity.ImpactCard, error) {
	var card entity.ImpactCard
	err := r.db.WithContext(ctx).
		Preload("ExtractionResult").
		First(&card, id).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *impactCardRepository) FindAll(ctx context.Context, filter ImpactCardFilter) ([]entity.ImpactCard, error) {
	q := r.db.WithContext(ctx).
		Preload("ExtractionResult").
		Order("created_at DESC")
	if filter.WatchItemID != 0 {
		q = q.Where("watch_item_id = ?", filter.WatchItemID)
	}
	if filter.RiskLevel != "" {
		q = q.Where("risk_level = ?", filter.RiskLevel)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var cards []entity.ImpactCard
	if err := q.Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// Acknowledge stamps the card with the acknowledgement time. The analytical
// columns are never touched here.
func (r *impactCardRepository) Acknowledge(ctx context.Context, id uint, at time.Time) error {
	tx := r.db.WithContext(ctx).
		Model(&entity.ImpactCard{}).
		Where("id = ?", id).
		Update("acknowledged_at", at)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
