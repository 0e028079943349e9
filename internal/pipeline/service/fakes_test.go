package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/common"
	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/resilience"
)

// newTestResilienceClient builds a client with retries disabled so failures
// surface immediately instead of backing off.
func newTestResilienceClient() *resilience.Client {
	return resilience.NewClient(resilience.Config{Services: map[string]resilience.ServiceConfig{
		common.ServiceSignalSearch:  {MaxRetries: -1},
		common.ServiceContextSearch: {MaxRetries: -1},
		common.ServiceExtraction:    {MaxRetries: -1},
		common.ServiceDeepResearch:  {MaxRetries: -1},
	}}, logger.NewNop())
}

type fakeSignalSearch struct {
	mu    sync.Mutex
	hits  []dto.SearchItem
	err   error
	calls int
}

func (f *fakeSignalSearch) Search(_ context.Context, _ *entity.WatchItem) ([]dto.SearchItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

// fakeSignalRepo enforces the same uniqueness the real table does: one row
// per normalized URL and per content hash.
type fakeSignalRepo struct {
	mu      sync.Mutex
	nextID  uint
	signals []entity.Signal
	err     error
}

func (f *fakeSignalRepo) CreateIgnoreConflict(_ context.Context, signal *entity.Signal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, existing := range f.signals {
		if existing.NormalizedURL == signal.NormalizedURL || existing.ContentHash == signal.ContentHash {
			return false, nil
		}
	}
	f.nextID++
	signal.ID = f.nextID
	f.signals = append(f.signals, *signal)
	return true, nil
}

func (f *fakeSignalRepo) FindByID(_ context.Context, id uint) (*entity.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.signals {
		if f.signals[i].ID == id {
			signal := f.signals[i]
			return &signal, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSignalRepo) FindByContentHashes(_ context.Context, hashes []string) ([]entity.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		wanted[h] = struct{}{}
	}
	var found []entity.Signal
	for _, signal := range f.signals {
		if _, ok := wanted[signal.ContentHash]; ok {
			found = append(found, signal)
		}
	}
	return found, nil
}

type fakeWatchItemRepo struct {
	mu        sync.Mutex
	items     []entity.WatchItem
	findErr   error
	activeErr error
}

func (f *fakeWatchItemRepo) FindByID(_ context.Context, id uint) (*entity.WatchItem, error) {
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

func (f *fakeWatchItemRepo) FindActive(_ context.Context) ([]entity.WatchItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	var active []entity.WatchItem
	for _, item := range f.items {
		if item.Active {
			active = append(active, item)
		}
	}
	return active, nil
}

type fakeContextSearch struct {
	mu       sync.Mutex
	snippets []dto.ContextSnippet
	err      error
	calls    int
	queries  []string
}

func (f *fakeContextSearch) TopK(_ context.Context, query string, _ int) ([]dto.ContextSnippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.snippets, nil
}

// fakeAIRepo answers extraction and research calls. extractFn, when set,
// decides per call; otherwise extractPayload is returned as a fresh copy so
// the pipeline's in-place decoration never leaks between calls.
type fakeAIRepo struct {
	mu             sync.Mutex
	extractFn      func(req *dto.ExtractionRequest) (*dto.ExtractionPayload, error)
	extractPayload *dto.ExtractionPayload
	extractErr     error
	extractCalls   []dto.ExtractionRequest

	researchResult *dto.DeepResearchResult
	researchErr    error
	researchCalls  int
}

func (f *fakeAIRepo) ExtractImpact(_ context.Context, req *dto.ExtractionRequest) (*dto.ExtractionPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractCalls = append(f.extractCalls, *req)
	if f.extractFn != nil {
		return f.extractFn(req)
	}
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return clonePayload(f.extractPayload), nil
}

func (f *fakeAIRepo) GenerateResearch(_ context.Context, _ *dto.ResearchRequest) (*dto.DeepResearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.researchCalls++
	if f.researchErr != nil {
		return nil, f.researchErr
	}
	return f.researchResult, nil
}

func clonePayload(p *dto.ExtractionPayload) *dto.ExtractionPayload {
	if p == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	var clone dto.ExtractionPayload
	if err := json.Unmarshal(raw, &clone); err != nil {
		panic(err)
	}
	return &clone
}

// fakeExtractionResultRepo keys rows by (watch item, signal) the way the
// unique index does.
type fakeExtractionResultRepo struct {
	mu        sync.Mutex
	nextID    uint
	rows      map[string]*entity.ExtractionResult
	createErr error
}

func newFakeExtractionResultRepo() *fakeExtractionResultRepo {
	return &fakeExtractionResultRepo{rows: make(map[string]*entity.ExtractionResult)}
}

func pairKey(watchItemID, signalID uint) string {
	return fmt.Sprintf("%d:%d", watchItemID, signalID)
}

func (f *fakeExtractionResultRepo) CreateIgnoreConflict(_ context.Context, result *entity.ExtractionResult) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return false, f.createErr
	}
	key := pairKey(result.WatchItemID, result.SignalID)
	if _, ok := f.rows[key]; ok {
		return false, nil
	}
	f.nextID++
	result.ID = f.nextID
	stored := *result
	f.rows[key] = &stored
	return true, nil
}

func (f *fakeExtractionResultRepo) FindByWatchItemAndSignal(_ context.Context, watchItemID, signalID uint) (*entity.ExtractionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[pairKey(watchItemID, signalID)]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeExtractionResultRepo) UpdateVerdict(_ context.Context, id uint, verdict, rule, detail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			row.Verdict = verdict
			row.VerdictRule = rule
			row.VerdictDetail = detail
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeExtractionResultRepo) verdictOf(id uint) (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			return row.Verdict, row.VerdictRule
		}
	}
	return "", ""
}

type fakeReviewRepo struct {
	mu    sync.Mutex
	items []entity.ReviewItem
	err   error
}

func (f *fakeReviewRepo) Create(_ context.Context, item *entity.ReviewItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	item.ID = uint(len(f.items) + 1)
	f.items = append(f.items, *item)
	return nil
}

// fakeCardRepo deduplicates on extraction result the way the unique index
// does.
type fakeCardRepo struct {
	mu     sync.Mutex
	nextID uint
	cards  []entity.ImpactCard
	err    error
}

func (f *fakeCardRepo) CreateIgnoreConflict(_ context.Context, card *entity.ImpactCard) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, existing := range f.cards {
		if existing.ExtractionResultID == card.ExtractionResultID {
			return false, nil
		}
	}
	f.nextID++
	card.ID = f.nextID
	f.cards = append(f.cards, *card)
	return true, nil
}

func (f *fakeCardRepo) FindByID(_ context.Context, id uint) (*entity.ImpactCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.cards {
		if f.cards[i].ID == id {
			card := f.cards[i]
			return &card, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeRunRepo struct {
	mu     sync.Mutex
	runs   map[uint]*entity.PipelineRun
	stages []string
}

func newFakeRunRepo(runs ...*entity.PipelineRun) *fakeRunRepo {
	f := &fakeRunRepo{runs: make(map[uint]*entity.PipelineRun)}
	for _, run := range runs {
		stored := *run
		f.runs[run.ID] = &stored
	}
	return f
}

func (f *fakeRunRepo) FindByID(_ context.Context, id uint) (*entity.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if run, ok := f.runs[id]; ok {
		copied := *run
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRunRepo) Update(_ context.Context, run *entity.PipelineRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *run
	f.runs[run.ID] = &stored
	return nil
}

func (f *fakeRunRepo) UpdateStage(_ context.Context, id uint, stage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages = append(f.stages, stage)
	if run, ok := f.runs[id]; ok {
		run.Stage = stage
	}
	return nil
}

func (f *fakeRunRepo) stored(id uint) *entity.PipelineRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	if run, ok := f.runs[id]; ok {
		copied := *run
		return &copied
	}
	return nil
}

type fakeReportRepo struct {
	mu      sync.Mutex
	reports map[uint]*entity.ResearchReport
}

func newFakeReportRepo(reports ...*entity.ResearchReport) *fakeReportRepo {
	f := &fakeReportRepo{reports: make(map[uint]*entity.ResearchReport)}
	for _, report := range reports {
		stored := *report
		f.reports[report.ID] = &stored
	}
	return f
}

func (f *fakeReportRepo) FindByID(_ context.Context, id uint) (*entity.ResearchReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if report, ok := f.reports[id]; ok {
		copied := *report
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeReportRepo) Update(_ context.Context, report *entity.ResearchReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *report
	f.reports[report.ID] = &stored
	return nil
}

func (f *fakeReportRepo) stored(id uint) *entity.ResearchReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	if report, ok := f.reports[id]; ok {
		copied := *report
		return &copied
	}
	return nil
}

type fakeProgressPublisher struct {
	mu     sync.Mutex
	events []dto.ProgressEvent
}

func (f *fakeProgressPublisher) Publish(_ context.Context, event *dto.ProgressEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeProgressPublisher) stageSequence() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	stages := make([]string, 0, len(f.events))
	for _, event := range f.events {
		stages = append(stages, event.Stage)
	}
	return stages
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeNotifier) SendMessage(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, text)
	return nil
}

func (f *fakeNotifier) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}
