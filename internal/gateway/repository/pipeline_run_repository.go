package repository

import (
	"context"

	"rivalwatch/internal/entity"

	"gorm.io/gorm"
)

// PipelineRunRepository defines the gateway-side access to pipeline runs.
type PipelineRunRepository interface {
	Create(ctx context.Context, run *entity.PipelineRun) error
	FindByID(ctx context.Context, id uint) (*entity.PipelineRun, error)
	// FindLatestByWatchItem returns the most recently created run for the
	// watch item, finished or not.
	FindLatestByWatchItem(ctx context.Context, watchItemID uint) (*entity.PipelineRun, error)
	FindRecentByWatchItem(ctx context.Context, watchItemID uint, limit int) ([]entity.PipelineRun, error)
	Update(ctx context.Context, run *entity.PipelineRun) error
}

// NewPipelineRunRepository creates a new GORM-based pipeline run repository.
func NewPipelineRunRepository(db *gorm.DB) PipelineRunRepository {
	return &pipelineRunRepository{db: db}
}

type pipelineRunRepository struct {
	db *gorm.DB
}

func (r *pipelineRunRepository) Create(ctx context.Context, run *entity.PipelineRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *pipelineRunRepository) FindByID(ctx context.Context, id uint) (*entity.PipelineRun, error) {
	var run entity.PipelineRun
	if err := r.db.WithContext(ctx).First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *pipelineRunRepository) FindLatestByWatchItem(ctx context.Context, watchItemID uint) (*entity.PipelineRun, error) {
	var run entity.PipelineRun
	err := r.db.WithContext(ctx).
		Where("watch_item_id = ?", watchItemID).
		Order("created_at DESC").
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *pipelineRunRepository) FindRecentByWatchItem(ctx context.Context, watchItemID uint, limit int) ([]entity.PipelineRun, error) {
	var runs []entity.PipelineRun
	err := r.db.WithContext(ctx).
		Where("watch_item_id = ?", watchItemID).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *pipelineRunRepository) Update(ctx context.Context, run *entity.PipelineRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}
