package service

import (
	"context"
	"time"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/gateway/repository"
	"rivalwatch/pkg/logger"

	"github.com/robfig/cron/v3"
)

const defaultPollingInterval = 30 * time.Second

// SchedulerService drives scheduled card-generation runs for watch items
// that carry a cron cadence.
type SchedulerService interface {
	Start(ctx context.Context)
	ProcessDueItems(ctx context.Context)
}

// NewSchedulerService creates a new run scheduler.
func NewSchedulerService(
	items repository.WatchItemRepository,
	runs RunService,
	logger *logger.Logger,
	pollingInterval time.Duration,
) SchedulerService {
	if pollingInterval <= 0 {
		pollingInterval = defaultPollingInterval
	}
	return &schedulerService{
		items:           items,
		runs:            runs,
		logger:          logger,
		pollingInterval: pollingInterval,
		cronParser:      cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		now:             time.Now,
	}
}

type schedulerService struct {
	items           repository.WatchItemRepository
	runs            RunService
	logger          *logger.Logger
	pollingInterval time.Duration
	cronParser      cron.Parser
	now             func() time.Time
}

// Start begins the periodic due-item processing loop.
func (s *schedulerService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Run scheduler stopping")
			return
		case <-ticker.C:
			s.ProcessDueItems(ctx)
		}
	}
}

// ProcessDueItems finds watch items whose cadence is due and triggers a run
// for each.
func (s *schedulerService) ProcessDueItems(ctx context.Context) {
	now := s.now()
	items, err := s.items.FindDue(ctx, now)
	if err != nil {
		s.logger.Error("Failed to find due watch items", logger.ErrorField(err))
		return
	}

	for i := range items {
		s.scheduleItem(ctx, &items[i], now)
	}
}

func (s *schedulerService) scheduleItem(ctx context.Context, item *entity.WatchItem, now time.Time) {
	schedule, err := s.cronParser.Parse(item.Schedule)
	if err != nil {
		s.logger.Error("Failed to parse watch item schedule",
			logger.ErrorField(err),
			logger.Field("watch_item_id", item.ID),
			logger.Field("schedule", item.Schedule),
		)
		return
	}

	resp, err := s.runs.Trigger(ctx, item.ID)
	if err != nil {
		// Leave NextRunAt untouched so the next poll retries.
		s.logger.Error("Failed to trigger scheduled run",
			logger.ErrorField(err),
			logger.Field("watch_item_id", item.ID),
		)
		return
	}

	lastRun := item.LastRunAt
	if !resp.Debounced {
		lastRun = &now
	}
	nextRun := schedule.Next(now)
	if err := s.items.UpdateRunTimes(ctx, item.ID, lastRun, &nextRun); err != nil {
		s.logger.Error("Failed to update watch item run times",
			logger.ErrorField(err),
			logger.Field("watch_item_id", item.ID),
		)
		return
	}

	if resp.Debounced {
		s.logger.Info("Scheduled run debounced",
			logger.Field("watch_item_id", item.ID),
			logger.Field("next_run", nextRun),
		)
		return
	}
	s.logger.Info("Scheduled run enqueued",
		logger.Field("watch_item_id", item.ID),
		logger.Field("run_id", resp.Run.ID),
		logger.Field("next_run", nextRun),
	)
}
