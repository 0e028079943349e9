package repository

import (
	"context"

	"rivalwatch/internal/entity"

	"gorm.io/gorm"
)

// ResearchReportRepository defines the pipeline-side access to research
// reports.
type ResearchReportRepository interface {
	FindByID(ctx context.Context, id uint) (*entity.ResearchReport, error)
	Update(ctx context.Context, report *entity.ResearchReport) error
}

// NewResearchReportRepository creates a new instance of
// ResearchReportRepository.
func NewResearchReportRepository(db *gorm.DB) ResearchReportRepository {
	return &researchReportRepository{
		db: db,
	}
}

type researchReportRepository struct {
	db *gorm.DB
}

func (r *researchReportRepository) FindByID(ctx context.Context, id uint) (*entity.ResearchReport, error) {
	var report entity.ResearchReport
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *researchReportRepository) Update(ctx context.Context, report *entity.ResearchReport) error {
	return r.db.WithContext(ctx).Save(report).Error
}
