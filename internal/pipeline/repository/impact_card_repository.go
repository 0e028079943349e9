package repository

import (
	"context"

	"rivalwatch/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImpactCardRepository defines the pipeline-side access to impact cards.
type ImpactCardRepository interface {
	// CreateIgnoreConflict inserts the card unless one already exists for
	// its extraction result. It reports whether a new row was written.
	CreateIgnoreConflict(ctx context.Context, card *entity.ImpactCard) (bool, error)
	FindByID(ctx context.Context, id uint) (*entity.ImpactCard, error)
}

// NewImpactCardRepository creates a new instance of ImpactCardRepository.
func NewImpactCardRepository(db *gorm.DB) ImpactCardRepository {
	return &impactCardRepository{
		db: db,
	}
}

type impactCardRepository struct {
	db *gorm.DB
}

func (r *impactCardRepository) CreateIgnoreConflict(ctx context.Context, card *entity.ImpactCard) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "extraction_result_id"}},
		DoNothing: true,
	}).Create(card)

	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected > 0, nil
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
