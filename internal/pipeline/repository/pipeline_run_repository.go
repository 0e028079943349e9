package repository

import (
	"context"

	"rivalwatch/internal/entity"

	"gorm.io/gorm"
)

// PipelineRunRepository defines the pipeline-side access to run records.
type PipelineRunRepository interface {
	FindByID(ctx context.Context, id uint) (*entity.PipelineRun, error)
	Update(ctx context.Context, run *entity.PipelineRun) error
	UpdateStage(ctx context.Context, id uint, stage string) error
}

// NewPipelineRunRepository creates a new instance of PipelineRunRepository.
func NewPipelineRunRepository(db *gorm.DB) PipelineRunRepository {
	return &pipelineRunRepository{
		db: db,
	}
}

type pipelineRunRepository struct {
	db *gorm.DB
}

func (r *pipelineRunRepository) FindByID(ctx context.Context, id uint) (*entity.PipelineRun, error) {
	var run entity.PipelineRun
	if err := r.db.WithContext(ctx).First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *pipelineRunRepository) Update(ctx context.Context, run *entity.PipelineRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *pipelineRunRepository) UpdateStage(ctx context.Context, id uint, stage string) error {
	return r.db.WithContext(ctx).
		Model(&entity.PipelineRun{}).
		Where("id = ?", id).
		Update("stage", stage).Error
}
