package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/gateway/dto"
	"rivalwatch/internal/gateway/repository"
	pipelinedto "rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/logger"

	"gorm.io/gorm"
)

// ResearchService requests deep-research reports and reads their status.
type ResearchService interface {
	// Request asks for a deep-dive on the card. A report that is still
	// generating, or a completed one inside its cache window, is returned
	// instead of starting another generation.
	Request(ctx context.Context, cardID uint) (*dto.ResearchReportResponse, error)
	GetByID(ctx context.Context, id uint) (*dto.ResearchReportResponse, error)
}

// NewResearchService creates a new research service.
func NewResearchService(
	cards repository.ImpactCardRepository,
	reports repository.ResearchReportRepository,
	queue repository.TaskQueueRepository,
	logger *logger.Logger,
) ResearchService {
	return &researchService{
		cards:   cards,
		reports: reports,
		queue:   queue,
		logger:  logger,
		now:     time.Now,
	}
}

type researchService struct {
	cards   repository.ImpactCardRepository
	reports repository.ResearchReportRepository
	queue   repository.TaskQueueRepository
	logger  *logger.Logger
	now     func() time.Time
}

func (s *researchService) Request(ctx context.Context, cardID uint) (*dto.ResearchReportResponse, error) {
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}

	existing, err := s.reports.FindReusableByCard(ctx, card.ID, s.now())
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		resp := mapToResearchReportResponse(existing)
		resp.Reused = true
		s.logger.Info("Reusing research report",
			logger.Field("report_id", existing.ID),
			logger.Field("impact_card_id", card.ID),
			logger.Field("status", existing.Status),
		)
		return resp, nil
	}

	report := &entity.ResearchReport{
		ImpactCardID: card.ID,
		Status:       entity.ResearchStatusPending,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}

	payload := &pipelinedto.ResearchTaskPayload{ReportID: report.ID, ImpactCardID: card.ID}
	if err := s.queue.EnqueueResearchTask(ctx, payload); err != nil {
		s.logger.Error("Failed to enqueue research task", logger.ErrorField(err), logger.Field("report_id", report.ID))
		report.Status = entity.ResearchStatusFailed
		if errInner := s.reports.Update(ctx, report); errInner != nil {
			s.logger.Error("Failed to mark report as failed", logger.ErrorField(errInner), logger.Field("report_id", report.ID))
		}
		return nil, err
	}

	s.logger.Info("Research task enqueued",
		logger.Field("report_id", report.ID),
		logger.Field("impact_card_id", card.ID),
	)
	return mapToResearchReportResponse(report), nil
}

func (s *researchService) GetByID(ctx context.Context, id uint) (*dto.ResearchReportResponse, error) {
	report, err := s.reports.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapToResearchReportResponse(report), nil
}

func mapToResearchReportResponse(report *entity.ResearchReport) *dto.ResearchReportResponse {
	return &dto.ResearchReportResponse{
		ID:           report.ID,
		ImpactCardID: report.ImpactCardID,
		Status:       report.Status,
		Sections:     json.RawMessage(report.Sections),
		SourceCount:  report.SourceCount,
		ReportBody:   report.ReportBody,
		Degraded:     report.Degraded,
		GenerationMs: report.GenerationMs,
		ExpiresAt:    report.ExpiresAt,
		CreatedAt:    report.CreatedAt,
	}
}
