package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/config"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/logger"
)

// pipelineHarness wires a PipelineService to in-memory fakes end to end.
type pipelineHarness struct {
	service  *PipelineService
	search   *fakeSignalSearch
	signals  *fakeSignalRepo
	items    *fakeWatchItemRepo
	results  *fakeExtractionResultRepo
	reviews  *fakeReviewRepo
	cards    *fakeCardRepo
	runs     *fakeRunRepo
	ai       *fakeAIRepo
	progress *fakeProgressPublisher
	notifier *fakeNotifier
}

func pipelineTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Pipeline.MaxConcurrentSignals = 2
	return cfg
}

func newPipelineHarness(cfg *config.Config, runs *fakeRunRepo, items *fakeWatchItemRepo, search *fakeSignalSearch, ai *fakeAIRepo) *pipelineHarness {
	log := logger.NewNop()
	res := newTestResilienceClient()
	registry := NewCredibilityRegistry(nil)

	h := &pipelineHarness{
		search:   search,
		signals:  &fakeSignalRepo{},
		items:    items,
		results:  newFakeExtractionResultRepo(),
		reviews:  &fakeReviewRepo{},
		cards:    &fakeCardRepo{},
		runs:     runs,
		ai:       ai,
		progress: &fakeProgressPublisher{},
		notifier: &fakeNotifier{},
	}

	ingestor := NewIngestor(cfg, log, search, res, h.signals, registry)
	enricher := NewEnricher(cfg, log, &fakeContextSearch{}, res, items)
	extractor := NewExtractor(log, ai, res, h.results, h.reviews, registry)
	verifier := NewVerifier(nil, log)
	assembler := NewAssembler(log, nil, h.cards, h.notifier)

	h.service = NewPipelineService(cfg, log, h.runs, items, h.results, h.reviews, h.progress,
		ingestor, enricher, extractor, verifier, assembler, h.notifier)
	return h
}

func activeGlobex() *fakeWatchItemRepo {
	return &fakeWatchItemRepo{items: []entity.WatchItem{
		{ID: 7, Name: "Globex", Keywords: pq.StringArray{"globex"}, Active: true},
	}}
}

func globexSearchHit() dto.SearchItem {
	return dto.SearchItem{
		Title:      "Globex price cut",
		URL:        "https://reuters.com/globex-prices",
		RawText:    "Globex Corp cut prices.",
		SourceName: "Reuters",
	}
}

// approvedPayload passes critical verification once the pipeline stamps
// credibility: three distinct hosts, two of them tier 1, mean above 0.80.
func approvedPayload() *dto.ExtractionPayload {
	return &dto.ExtractionPayload{
		EventCategory: entity.EventCategoryPricingChange,
		Summary:       "Globex cut list prices across all plans.",
		Impacts:       criticalImpacts(),
		Recommendations: []dto.RecommendedAction{
			{Owner: "pricing", Action: "Re-run the price-match analysis", DueDays: 2, Priority: "high"},
		},
		CitedSources: []dto.CitedSource{
			{Title: "Globex price cut", URL: "https://reuters.com/globex-prices", SourceName: "Reuters"},
			{Title: "AP wire", URL: "https://apnews.com/globex", SourceName: "AP"},
			{Title: "TC coverage", URL: "https://techcrunch.com/globex", SourceName: "TechCrunch"},
		},
		Confidence: 0.8,
	}
}

func TestPipelineService_RunProducesCardAndProgress(t *testing.T) {
	runs := newFakeRunRepo(&entity.PipelineRun{ID: 77, WatchItemID: 7, Status: entity.RunStatusQueued})
	search := &fakeSignalSearch{hits: []dto.SearchItem{globexSearchHit()}}
	ai := &fakeAIRepo{extractPayload: approvedPayload()}
	h := newPipelineHarness(pipelineTestConfig(), runs, activeGlobex(), search, ai)

	err := h.service.ProcessRun(context.Background(), &dto.IngestTaskPayload{RunID: 77, WatchItemID: 7})

	require.NoError(t, err)
	assert.Equal(t, []string{
		entity.StageIngesting,
		entity.StageEnriching,
		entity.StageExtracting,
		entity.StageVerifying,
		entity.StageScoring,
		entity.StageAssembling,
		entity.StageDone,
	}, h.progress.stageSequence())

	run := h.runs.stored(77)
	require.NotNil(t, run)
	assert.Equal(t, entity.RunStatusCompleted, run.Status)
	assert.Equal(t, entity.StageDone, run.Stage)
	assert.Equal(t, 1, run.SignalsFound)
	assert.Zero(t, run.SignalsDropped)
	assert.Equal(t, 1, run.CardsCreated)
	assert.False(t, run.Delayed)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.FinishedAt)

	verdict, rule := h.results.verdictOf(1)
	assert.Equal(t, entity.VerdictApproved, verdict)
	assert.Equal(t, "critical_risk_sources", rule)

	require.Len(t, h.cards.cards, 1)
	card := h.cards.cards[0]
	assert.Equal(t, uint(7), card.WatchItemID)
	assert.Equal(t, entity.RiskLevelCritical, card.RiskLevel)
	assert.False(t, card.Delayed)

	require.Len(t, h.notifier.sent(), 1)
	assert.Contains(t, h.notifier.sent()[0], "Globex")
	assert.Len(t, h.ai.extractCalls, 1)
}

func TestPipelineService_BorderlineVerdictQueuesReview(t *testing.T) {
	payload := approvedPayload()
	payload.CitedSources = payload.CitedSources[:2]

	runs := newFakeRunRepo(&entity.PipelineRun{ID: 77, WatchItemID: 7, Status: entity.RunStatusQueued})
	search := &fakeSignalSearch{hits: []dto.SearchItem{globexSearchHit()}}
	ai := &fakeAIRepo{extractPayload: payload}
	h := newPipelineHarness(pipelineTestConfig(), runs, activeGlobex(), search, ai)

	err := h.service.ProcessRun(context.Background(), &dto.IngestTaskPayload{RunID: 77, WatchItemID: 7})

	require.NoError(t, err)

	verdict, rule := h.results.verdictOf(1)
	assert.Equal(t, entity.VerdictPendingManualReview, verdict)
	assert.Equal(t, "insufficient_sources", rule)

	require.Len(t, h.reviews.items, 1)
	review := h.reviews.items[0]
	assert.Equal(t, entity.ReviewKindVerificationReview, review.Kind)
	assert.Equal(t, uint(7), review.WatchItemID)
	require.NotNil(t, review.ExtractionResultID)
	assert.Equal(t, uint(1), *review.ExtractionResultID)
	assert.Equal(t, entity.StageVerifying, review.Stage)
	assert.Equal(t, "insufficient_sources", review.Reason)
	assert.Equal(t, entity.ReviewStatusOpen, review.Status)

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal(review.Context, &detail))
	assert.Equal(t, "insufficient_sources", detail["rule"])
	assert.Equal(t, float64(2), detail["distinct_sources"])

	assert.Empty(t, h.cards.cards)
	run := h.runs.stored(77)
	assert.Equal(t, entity.RunStatusCompleted, run.Status)
	assert.Zero(t, run.CardsCreated)
	assert.Empty(t, h.notifier.sent())
}

func TestPipelineService_SearchFailureFailsRun(t *testing.T) {
	runs := newFakeRunRepo(&entity.PipelineRun{ID: 77, WatchItemID: 7, Status: entity.RunStatusQueued})
	search := &fakeSignalSearch{err: errors.New("search upstream 500")}
	h := newPipelineHarness(pipelineTestConfig(), runs, activeGlobex(), search, &fakeAIRepo{})

	err := h.service.ProcessRun(context.Background(), &dto.IngestTaskPayload{RunID: 77, WatchItemID: 7})

	require.NoError(t, err)

	run := h.runs.stored(77)
	require.NotNil(t, run)
	assert.Equal(t, entity.RunStatusFailed, run.Status)
	assert.Equal(t, entity.StageFailed, run.Stage)
	assert.Equal(t, entity.StageIngesting, run.FailureStage)
	assert.Contains(t, run.FailureDetail, "signal search for watch item 7")
	require.NotNil(t, run.FinishedAt)

	assert.Equal(t, []string{entity.StageIngesting, entity.StageFailed}, h.progress.stageSequence())

	require.Len(t, h.notifier.sent(), 1)
	assert.Contains(t, h.notifier.sent()[0], "Globex")
	assert.Contains(t, h.notifier.sent()[0], entity.StageIngesting)
}

func TestPipelineService_SkipsFinishedRuns(t *testing.T) {
	for _, status := range []string{entity.RunStatusCompleted, entity.RunStatusFailed} {
		t.Run(status, func(t *testing.T) {
			runs := newFakeRunRepo(&entity.PipelineRun{ID: 77, WatchItemID: 7, Status: status})
			search := &fakeSignalSearch{hits: []dto.SearchItem{globexSearchHit()}}
			h := newPipelineHarness(pipelineTestConfig(), runs, activeGlobex(), search, &fakeAIRepo{})

			err := h.service.ProcessRun(context.Background(), &dto.IngestTaskPayload{RunID: 77, WatchItemID: 7})

			require.NoError(t, err)
			assert.Zero(t, search.calls)
			assert.Empty(t, h.progress.stageSequence())
			assert.Equal(t, status, h.runs.stored(77).Status)
		})
	}
}

func TestPipelineService_UnknownRunConsumesTask(t *testing.T) {
	h := newPipelineHarness(pipelineTestConfig(), newFakeRunRepo(), activeGlobex(), &fakeSignalSearch{}, &fakeAIRepo{})

	err := h.service.ProcessRun(context.Background(), &dto.IngestTaskPayload{RunID: 404, WatchItemID: 7})

	require.NoError(t, err)
	assert.Empty(t, h.progress.stageSequence())
}

func TestPipelineService_FansOutToMatchedActiveItems(t *testing.T) {
	items := &fakeWatchItemRepo{items: []entity.WatchItem{
		{ID: 7, Name: "Globex", Keywords: pq.StringArray{"globex"}, Active: true},
		{ID: 8, Name: "Initech", Keywords: pq.StringArray{"initech"}, Active: true},
	}}
	hit := dto.SearchItem{
		Title:      "Globex and Initech Corp strike pricing deal",
		URL:        "https://reuters.com/globex-initech",
		RawText:    "Both vendors will reprice.",
		SourceName: "Reuters",
	}
	runs := newFakeRunRepo(&entity.PipelineRun{ID: 77, WatchItemID: 7, Status: entity.RunStatusQueued})
	ai := &fakeAIRepo{extractPayload: approvedPayload()}
	h := newPipelineHarness(pipelineTestConfig(), runs, items, &fakeSignalSearch{hits: []dto.SearchItem{hit}}, ai)

	err := h.service.ProcessRun(context.Background(), &dto.IngestTaskPayload{RunID: 77, WatchItemID: 7})

	require.NoError(t, err)

	var names []string
	for _, call := range h.ai.extractCalls {
		names = append(names, call.WatchItemName)
	}
	assert.ElementsMatch(t, []string{"Globex", "Initech"}, names)

	require.Len(t, h.cards.cards, 2)
	var cardItems []uint
	for _, card := range h.cards.cards {
		cardItems = append(cardItems, card.WatchItemID)
	}
	assert.ElementsMatch(t, []uint{7, 8}, cardItems)
	assert.Equal(t, 2, h.runs.stored(77).CardsCreated)
}

func TestPipelineService_SoftDeadlineMarksLateCardsDelayed(t *testing.T) {
	cfg := pipelineTestConfig()
	cfg.Pipeline.SoftDeadline = time.Nanosecond

	runs := newFakeRunRepo(&entity.PipelineRun{ID: 77, WatchItemID: 7, Status: entity.RunStatusQueued})
	ai := &fakeAIRepo{extractPayload: approvedPayload()}
	h := newPipelineHarness(cfg, runs, activeGlobex(), &fakeSignalSearch{hits: []dto.SearchItem{globexSearchHit()}}, ai)

	err := h.service.ProcessRun(context.Background(), &dto.IngestTaskPayload{RunID: 77, WatchItemID: 7})

	require.NoError(t, err)

	run := h.runs.stored(77)
	assert.Equal(t, entity.RunStatusCompleted, run.Status)
	assert.True(t, run.Delayed)

	require.Len(t, h.cards.cards, 1)
	assert.True(t, h.cards.cards[0].Delayed)

	events := h.progress.stageSequence()
	assert.Equal(t, entity.StageDone, events[len(events)-1])
}

func TestPipelineService_RunItemStaysProcessableWhenDeactivated(t *testing.T) {
	items := &fakeWatchItemRepo{items: []entity.WatchItem{
		{ID: 7, Name: "Globex", Keywords: pq.StringArray{"globex"}, Active: false},
		{ID: 8, Name: "Initech", Keywords: pq.StringArray{"initech"}, Active: true},
	}}
	runs := newFakeRunRepo(&entity.PipelineRun{ID: 77, WatchItemID: 7, Status: entity.RunStatusQueued})
	ai := &fakeAIRepo{extractPayload: approvedPayload()}
	h := newPipelineHarness(pipelineTestConfig(), runs, items, &fakeSignalSearch{hits: []dto.SearchItem{globexSearchHit()}}, ai)

	err := h.service.ProcessRun(context.Background(), &dto.IngestTaskPayload{RunID: 77, WatchItemID: 7})

	require.NoError(t, err)
	require.Len(t, h.cards.cards, 1)
	assert.Equal(t, uint(7), h.cards.cards[0].WatchItemID)
	assert.Equal(t, entity.RunStatusCompleted, h.runs.stored(77).Status)
}

func TestPipelineService_ResumesInterruptedRun(t *testing.T) {
	started := time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
	runs := newFakeRunRepo(&entity.PipelineRun{
		ID:          77,
		WatchItemID: 7,
		Status:      entity.RunStatusRunning,
		Stage:       entity.StageExtracting,
		StartedAt:   &started,
	})
	ai := &fakeAIRepo{extractPayload: approvedPayload()}
	h := newPipelineHarness(pipelineTestConfig(), runs, activeGlobex(), &fakeSignalSearch{hits: []dto.SearchItem{globexSearchHit()}}, ai)

	err := h.service.ProcessRun(context.Background(), &dto.IngestTaskPayload{RunID: 77, WatchItemID: 7})

	require.NoError(t, err)
	run := h.runs.stored(77)
	assert.Equal(t, entity.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.CardsCreated)
	// The original start time survives the resume.
	require.NotNil(t, run.StartedAt)
	assert.True(t, run.StartedAt.Equal(started))
}
