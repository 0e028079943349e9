package repository

import (
	"context"
	"time"

	"rivalwatch/internal/entity"

	"gorm.io/gorm"
)

// ResearchReportRepository defines the gateway-side access to deep-research
// reports.
type ResearchReportRepository interface {
	Create(ctx context.Context, report *entity.ResearchReport) error
	FindByID(ctx context.Context, id uint) (*entity.ResearchReport, error)
	// FindReusableByCard returns the newest report for the card that can
	// still be served instead of generating a fresh one: either a completed
	// report inside its cache window, or one that is still pending/running.
	FindReusableByCard(ctx context.Context, cardID uint, now time.Time) (*entity.ResearchReport, error)
	Update(ctx context.Context, report *entity.ResearchReport) error
}

// NewResearchReportRepository creates a new GORM-based research report
// repository.
func NewResearchReportRepository(db *gorm.DB) ResearchReportRepository {
	return &researchReportRepository{db: db}
}

type researchReportRepository struct {
	db *gorm.DB
}

func (r *researchReportRepository) Create(ctx context.Context, report *entity.ResearchReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *researchReportRepository) FindByID(ctx context.Context, id uint) (*entity.ResearchReport, error) {
	var report entity.ResearchReport
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *researchReportRepository) FindReusableByCard(ctx context.Context, cardID uint, now time.Time) (*entity.ResearchReport, error) {
	var report entity.ResearchReport
	err := r.db.WithContext(ctx).
		Where("impact_card_id = ?", cardID).
		Where(
			r.db.Where("status IN ?", []string{entity.ResearchStatusPending, entity.ResearchStatusRunning}).
				Or("status = ? AND (expires_at IS NULL OR expires_at > ?)", entity.ResearchStatusCompleted, now),
		).
		Order("created_at DESC").
		First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *researchReportRepository) Update(ctx context.Context, report *entity.ResearchReport) error {
	return r.db.WithContext(ctx).Save(report).Error
}
