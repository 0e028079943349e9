package service

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/gateway/dto"
	"rivalwatch/internal/gateway/repository"
	pipelinedto "rivalwatch/internal/pipeline/dto"
)

type runTimesUpdate struct {
	id      uint
	lastRun *time.Time
	nextRun *time.Time
}

// fakeWatchItems is an in-memory repository.WatchItemRepository.
type fakeWatchItems struct {
	mu       sync.Mutex
	nextID   uint
	items    []entity.WatchItem
	due      []entity.WatchItem
	findErr  error
	saveErr  error
	dueErr   error
	runTimes []runTimesUpdate
}

func (f *fakeWatchItems) Create(_ context.Context, item *entity.WatchItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.nextID++
	item.ID = f.nextID
	f.items = append(f.items, *item)
	return nil
}

func (f *fakeWatchItems) FindByID(_ context.Context, id uint) (*entity.WatchItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for i := range f.items {
		if f.items[i].ID == id {
			item := f.items[i]
			return &item, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeWatchItems) FindAll(_ context.Context) ([]entity.WatchItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	return append([]entity.WatchItem(nil), f.items...), nil
}

func (f *fakeWatchItems) Update(_ context.Context, item *entity.WatchItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	for i := range f.items {
		if f.items[i].ID == item.ID {
			f.items[i] = *item
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeWatchItems) Delete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeWatchItems) FindDue(_ context.Context, _ time.Time) ([]entity.WatchItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dueErr != nil {
		return nil, f.dueErr
	}
	return append([]entity.WatchItem(nil), f.due...), nil
}

func (f *fakeWatchItems) UpdateRunTimes(_ context.Context, id uint, lastRun, nextRun *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runTimes = append(f.runTimes, runTimesUpdate{id: id, lastRun: lastRun, nextRun: nextRun})
	return nil
}

func (f *fakeWatchItems) stored(id uint) *entity.WatchItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			item := f.items[i]
			return &item
		}
	}
	return nil
}

// fakeRuns is an in-memory repository.PipelineRunRepository.
type fakeRuns struct {
	mu        sync.Mutex
	nextID    uint
	runs      []entity.PipelineRun
	latest    *entity.PipelineRun
	recent    []entity.PipelineRun
	lastLimit int
	createErr error
}

func (f *fakeRuns) Create(_ context.Context, run *entity.PipelineRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	run.ID = f.nextID
	f.runs = append(f.runs, *run)
	return nil
}

func (f *fakeRuns) FindByID(_ context.Context, id uint) (*entity.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.runs {
		if f.runs[i].ID == id {
			run := f.runs[i]
			return &run, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRuns) FindLatestByWatchItem(_ context.Context, _ uint) (*entity.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	run := *f.latest
	return &run, nil
}

func (f *fakeRuns) FindRecentByWatchItem(_ context.Context, _ uint, limit int) ([]entity.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	return append([]entity.PipelineRun(nil), f.recent...), nil
}

func (f *fakeRuns) Update(_ context.Context, run *entity.PipelineRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.runs {
		if f.runs[i].ID == run.ID {
			f.runs[i] = *run
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRuns) stored(id uint) *entity.PipelineRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.runs {
		if f.runs[i].ID == id {
			run := f.runs[i]
			return &run
		}
	}
	return nil
}

// fakeQueue is an in-memory repository.TaskQueueRepository. held reports the
// debounce slot as already claimed.
type fakeQueue struct {
	mu         sync.Mutex
	ingest     []pipelinedto.IngestTaskPayload
	research   []pipelinedto.ResearchTaskPayload
	windows    []time.Duration
	held       bool
	acquireErr error
	enqueueErr error
}

func (f *fakeQueue) EnqueueIngestTask(_ context.Context, payload *pipelinedto.IngestTaskPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.ingest = append(f.ingest, *payload)
	return nil
}

func (f *fakeQueue) EnqueueResearchTask(_ context.Context, payload *pipelinedto.ResearchTaskPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.research = append(f.research, *payload)
	return nil
}

func (f *fakeQueue) AcquireRunDebounce(_ context.Context, _ uint, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	f.windows = append(f.windows, window)
	return !f.held, nil
}

// fakeCards is an in-memory repository.ImpactCardRepository.
type fakeCards struct {
	mu         sync.Mutex
	cards      []entity.ImpactCard
	lastFilter repository.ImpactCardFilter
	findErr    error
}

func (f *fakeCards) FindByID(_ context.Context, id uint) (*entity.ImpactCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	for i := range f.cards {
		if f.cards[i].ID == id {
			card := f.cards[i]
			return &card, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCards) FindAll(_ context.Context, filter repository.ImpactCardFilter) ([]entity.ImpactCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.lastFilter = filter
	return append([]entity.ImpactCard(nil), f.cards...), nil
}

func (f *fakeCards) Acknowledge(_ context.Context, id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.cards {
		if f.cards[i].ID == id {
			stamped := at
			f.cards[i].AcknowledgedAt = &stamped
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// fakeReports is an in-memory repository.ResearchReportRepository. reusable
// is what FindReusableByCard hands back.
type fakeReports struct {
	mu        sync.Mutex
	nextID    uint
	reports   []entity.ResearchReport
	reusable  *entity.ResearchReport
	createErr error
}

func (f *fakeReports) Create(_ context.Context, report *entity.ResearchReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	report.ID = f.nextID
	f.reports = append(f.reports, *report)
	return nil
}

func (f *fakeReports) FindByID(_ context.Context, id uint) (*entity.ResearchReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.reports {
		if f.reports[i].ID == id {
			report := f.reports[i]
			return &report, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeReports) FindReusableByCard(_ context.Context, _ uint, _ time.Time) (*entity.ResearchReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reusable == nil {
		return nil, gorm.ErrRecordNotFound
	}
	report := *f.reusable
	return &report, nil
}

func (f *fakeReports) Update(_ context.Context, report *entity.ResearchReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.reports {
		if f.reports[i].ID == report.ID {
			f.reports[i] = *report
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeReports) stored(id uint) *entity.ResearchReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.reports {
		if f.reports[i].ID == id {
			report := f.reports[i]
			return &report
		}
	}
	return nil
}

// fakeReviews is an in-memory repository.ReviewItemRepository with the same
// resolve contract as the real one: zero rows updated comes back as
// gorm.ErrRecordNotFound.
type fakeReviews struct {
	mu         sync.Mutex
	items      []entity.ReviewItem
	lastFilter repository.ReviewItemFilter
	findErr    error
}

func (f *fakeReviews) FindAll(_ context.Context, filter repository.ReviewItemFilter) ([]entity.ReviewItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.lastFilter = filter
	return append([]entity.ReviewItem(nil), f.items...), nil
}

func (f *fakeReviews) FindByID(_ context.Context, id uint) (*entity.ReviewItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			item := f.items[i]
			return &item, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeReviews) Resolve(_ context.Context, id uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			if f.items[i].Status == entity.ReviewStatusResolved {
				return gorm.ErrRecordNotFound
			}
			stamped := at
			f.items[i].Status = entity.ReviewStatusResolved
			f.items[i].ResolvedAt = &stamped
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// fakeRunTrigger is a RunService double for the scheduler.
type fakeRunTrigger struct {
	mu    sync.Mutex
	resp  *dto.TriggerRunResponse
	err   error
	calls []uint
}

func (f *fakeRunTrigger) Trigger(_ context.Context, watchItemID uint) (*dto.TriggerRunResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, watchItemID)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeRunTrigger) GetByID(_ context.Context, _ uint) (*dto.PipelineRunResponse, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRunTrigger) ListByWatchItem(_ context.Context, _ uint, _ int) ([]*dto.PipelineRunResponse, error) {
	return nil, nil
}

func (f *fakeRunTrigger) triggered() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.calls...)
}
