package service

import (
	"context"
	"errors"
	"time"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/gateway/dto"
	"rivalwatch/internal/gateway/repository"
	pipelinedto "rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/logger"

	"gorm.io/gorm"
)

const defaultRunListLimit = 20

// RunService triggers card-generation runs and reads their status.
type RunService interface {
	// Trigger requests a run for the watch item. Requests inside the
	// debounce window reuse the most recent run instead of enqueueing a new
	// one.
	Trigger(ctx context.Context, watchItemID uint) (*dto.TriggerRunResponse, error)
	GetByID(ctx context.Context, id uint) (*dto.PipelineRunResponse, error)
	ListByWatchItem(ctx context.Context, watchItemID uint, limit int) ([]*dto.PipelineRunResponse, error)
}

// NewRunService creates a new run service. debounceWindow guards against
// duplicate upstream queries for the same watch item in a short burst.
func NewRunService(
	items repository.WatchItemRepository,
	runs repository.PipelineRunRepository,
	queue repository.TaskQueueRepository,
	logger *logger.Logger,
	debounceWindow time.Duration,
) RunService {
	return &runService{
		items:          items,
		runs:           runs,
		queue:          queue,
		logger:         logger,
		debounceWindow: debounceWindow,
		now:            time.Now,
	}
}

type runService struct {
	items          repository.WatchItemRepository
	runs           repository.PipelineRunRepository
	queue          repository.TaskQueueRepository
	logger         *logger.Logger
	debounceWindow time.Duration
	now            func() time.Time
}

func (s *runService) Trigger(ctx context.Context, watchItemID uint) (*dto.TriggerRunResponse, error) {
	item, err := s.items.FindByID(ctx, watchItemID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, ErrWatchItemInactive
	}

	acquired, err := s.queue.AcquireRunDebounce(ctx, item.ID, s.debounceWindow)
	if err != nil {
		return nil, err
	}
	if !acquired {
		resp := &dto.TriggerRunResponse{Debounced: true}
		latest, err := s.runs.FindLatestByWatchItem(ctx, item.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if latest != nil {
			resp.Run = mapToRunResponse(latest)
		}
		s.logger.Info("Run request debounced", logger.Field("watch_item_id", item.ID))
		return resp, nil
	}

	run := &entity.PipelineRun{
		WatchItemID: item.ID,
		Status:      entity.RunStatusQueued,
		Stage:       entity.StageQueued,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	payload := &pipelinedto.IngestTaskPayload{RunID: run.ID, WatchItemID: item.ID}
	if err := s.queue.EnqueueIngestTask(ctx, payload); err != nil {
		s.logger.Error("Failed to enqueue ingest task", logger.ErrorField(err), logger.Field("run_id", run.ID))
		now := s.now()
		run.Status = entity.RunStatusFailed
		run.Stage = entity.StageFailed
		run.FailureStage = entity.StageQueued
		run.FailureDetail = err.Error()
		run.FinishedAt = &now
		if errInner := s.runs.Update(ctx, run); errInner != nil {
			s.logger.Error("Failed to mark run as failed", logger.ErrorField(errInner), logger.Field("run_id", run.ID))
		}
		return nil, err
	}

	s.logger.Info("Card-generation run enqueued",
		logger.Field("run_id", run.ID),
		logger.Field("watch_item_id", item.ID),
	)
	return &dto.TriggerRunResponse{Run: mapToRunResponse(run)}, nil
}

func (s *runService) GetByID(ctx context.Context, id uint) (*dto.PipelineRunResponse, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapToRunResponse(run), nil
}

func (s *runService) ListByWatchItem(ctx context.Context, watchItemID uint, limit int) ([]*dto.PipelineRunResponse, error) {
	if limit <= 0 {
		limit = defaultRunListLimit
	}
	runs, err := s.runs.FindRecentByWatchItem(ctx, watchItemID, limit)
	if err != nil {
		return nil, err
	}

	var responses []*dto.PipelineRunResponse
	for i := range runs {
		responses = append(responses, mapToRunResponse(&runs[i]))
	}
	return responses, nil
}

func mapToRunResponse(run *entity.PipelineRun) *dto.PipelineRunResponse {
	return &dto.PipelineRunResponse{
		ID:             run.ID,
		WatchItemID:    run.WatchItemID,
		Status:         run.Status,
		Stage:          run.Stage,
		Delayed:        run.Delayed,
		SignalsFound:   run.SignalsFound,
		SignalsDropped: run.SignalsDropped,
		CardsCreated:   run.CardsCreated,
		FailureStage:   run.FailureStage,
		FailureDetail:  run.FailureDetail,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
		CreatedAt:      run.CreatedAt,
	}
}
