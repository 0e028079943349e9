package repository

import (
	"context"

	"rivalwatch/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExtractionResultRepository defines the interface for interacting with
// extraction results.
type ExtractionResultRepository interface {
	// CreateIgnoreConflict inserts the result unless the (watch item,
	// signal) pair was already extracted. It reports whether a new row was
	// written.
	CreateIgnoreConflict(ctx context.Context, result *entity.ExtractionResult) (bool, error)
	FindByWatchItemAndSignal(ctx context.Context, watchItemID, signalID uint) (*entity.ExtractionResult, error)
	UpdateVerdict(ctx context.Context, id uint, verdict, rule, detail string) error
}

// NewExtractionResultRepository creates a new instance of
// ExtractionResultRepository.
func NewExtractionResultRepository(db *gorm.DB) ExtractionResultRepository {
	return &extractionResultRepository{
		db: db,
	}
}

type extractionResultRepository struct {
	db *gorm.DB
}

func (r *extractionResultRepository) CreateIgnoreConflict(ctx context.Context, result *entity.ExtractionResult) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "watch_item_id"}, {Name: "signal_id"}},
		DoNothing: true,
	}).Create(result)

	if tx.Error != nil {
		return false, tx.Error
	}

	return tx.RowsAffected > 0, nil
}

func (r *extractionResultRepository) FindByWatchItemAndSignal(ctx context.Context, watchItemID, signalID uint) (*entity.ExtractionResult, error) {
	var result entity.ExtractionResult
	err := r.db.WithContext(ctx).
		Where("watch_item_id = ? AND signal_id = ?", watchItemID, signalID).
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *extractionResultRepository) UpdateVerdict(ctx context.Context, id uint, verdict, rule, detail string) error {
	return r.db.WithContext(ctx).
		Model(&entity.ExtractionResult{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"verdict":        verdict,
			"verdict_rule":   rule,
			"verdict_detail": detail,
		}).Error
}
