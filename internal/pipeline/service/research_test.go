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
	"gorm.io/datatypes"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/config"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/logger"
)

func newTestResearcher(ai *fakeAIRepo, reports *fakeReportRepo, cards *fakeCardRepo, items *fakeWatchItemRepo) *Researcher {
	cfg := &config.Config{}
	cfg.DeepResearch.SourceTarget = 8
	cfg.DeepResearch.ReportTTL = 24 * time.Hour
	return NewResearcher(cfg, logger.NewNop(), ai, newTestResilienceClient(), reports, cards, items)
}

// steppingClock advances 750ms per reading so generation time is observable.
func steppingClock(base time.Time) func() time.Time {
	calls := 0
	return func() time.Time {
		t := base.Add(time.Duration(calls) * 750 * time.Millisecond)
		calls++
		return t
	}
}

func researchCard(t *testing.T) *entity.ImpactCard {
	t.Helper()
	sources, err := json.Marshal([]dto.CitedSource{
		{Title: "Globex cuts prices", URL: "https://reuters.com/globex", SourceName: "Reuters", CredibilityTier: 1, CredibilityScore: 0.92},
		{URL: "https://techcrunch.com/globex", SourceName: "TechCrunch", CredibilityTier: 2, CredibilityScore: 0.75},
	})
	require.NoError(t, err)
	return &entity.ImpactCard{
		ID:                 3,
		ExtractionResultID: 9,
		ExtractionResult:   entity.ExtractionResult{ID: 9, EventCategory: entity.EventCategoryPricingChange},
		WatchItemID:        7,
		Summary:            "Globex cut Pro plan pricing by thirty percent.",
		RiskLevel:          entity.RiskLevelHigh,
		Sources:            datatypes.JSON(sources),
	}
}

func researchWatchItems() *fakeWatchItemRepo {
	return &fakeWatchItemRepo{items: []entity.WatchItem{
		{ID: 7, Name: "Globex", Keywords: pq.StringArray{"globex"}, Active: true},
	}}
}

func TestResearcher_CompletesReportFromUpstream(t *testing.T) {
	result := &dto.DeepResearchResult{
		Sections: []dto.ResearchSection{
			{Heading: "Market reaction", Body: "Rivals repriced within a week."},
			{Heading: "Outlook", Body: "Margin pressure persists through the quarter."},
		},
		SourceCount: 6,
		ReportBody:  "## Market reaction\n\nRivals repriced within a week.\n",
	}
	ai := &fakeAIRepo{researchResult: result}
	reports := newFakeReportRepo(&entity.ResearchReport{ID: 5, ImpactCardID: 3, Status: entity.ResearchStatusPending})
	cards := &fakeCardRepo{cards: []entity.ImpactCard{*researchCard(t)}, nextID: 3}
	researcher := newTestResearcher(ai, reports, cards, researchWatchItems())

	base := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)
	researcher.now = steppingClock(base)

	err := researcher.Generate(context.Background(), &dto.ResearchTaskPayload{ReportID: 5, ImpactCardID: 3})

	require.NoError(t, err)
	assert.Equal(t, 1, ai.researchCalls)

	stored := reports.stored(5)
	require.NotNil(t, stored)
	assert.Equal(t, entity.ResearchStatusCompleted, stored.Status)
	assert.False(t, stored.Degraded)
	assert.Equal(t, 6, stored.SourceCount)
	assert.Equal(t, result.ReportBody, stored.ReportBody)
	assert.Equal(t, int64(750), stored.GenerationMs)
	require.NotNil(t, stored.ExpiresAt)
	assert.True(t, stored.ExpiresAt.Equal(base.Add(750*time.Millisecond).Add(24*time.Hour)))

	var sections []dto.ResearchSection
	require.NoError(t, json.Unmarshal(stored.Sections, &sections))
	assert.Equal(t, result.Sections, sections)
}

func TestResearcher_AssemblesDegradedReportWhenUpstreamFails(t *testing.T) {
	ai := &fakeAIRepo{researchErr: errors.New("synthesis timeout")}
	reports := newFakeReportRepo(&entity.ResearchReport{ID: 5, ImpactCardID: 3, Status: entity.ResearchStatusPending})
	cards := &fakeCardRepo{cards: []entity.ImpactCard{*researchCard(t)}, nextID: 3}
	researcher := newTestResearcher(ai, reports, cards, researchWatchItems())

	err := researcher.Generate(context.Background(), &dto.ResearchTaskPayload{ReportID: 5, ImpactCardID: 3})

	require.NoError(t, err)
	assert.Equal(t, 1, ai.researchCalls)

	stored := reports.stored(5)
	require.NotNil(t, stored)
	assert.Equal(t, entity.ResearchStatusCompleted, stored.Status)
	assert.True(t, stored.Degraded)
	assert.Equal(t, 2, stored.SourceCount)

	var sections []dto.ResearchSection
	require.NoError(t, json.Unmarshal(stored.Sections, &sections))
	require.Len(t, sections, 3)
	assert.Equal(t, "What happened", sections[0].Heading)
	assert.Equal(t, "Globex cut Pro plan pricing by thirty percent.", sections[0].Body)
	assert.Equal(t, "Evidence on file", sections[1].Heading)
	assert.Equal(t,
		"- Globex cuts prices (https://reuters.com/globex, tier 1)\n- TechCrunch (https://techcrunch.com/globex, tier 2)\n",
		sections[1].Body,
	)
	assert.Equal(t, "Coverage note", sections[2].Heading)

	assert.Contains(t, stored.ReportBody, "## What happened")
	assert.Contains(t, stored.ReportBody, "## Evidence on file")
	assert.Contains(t, stored.ReportBody, "The research upstream was unavailable.")
}

func TestResearcher_SkipsFinishedReports(t *testing.T) {
	for _, status := range []string{entity.ResearchStatusCompleted, entity.ResearchStatusFailed} {
		t.Run(status, func(t *testing.T) {
			ai := &fakeAIRepo{researchResult: &dto.DeepResearchResult{}}
			reports := newFakeReportRepo(&entity.ResearchReport{ID: 5, ImpactCardID: 3, Status: status})
			researcher := newTestResearcher(ai, reports, &fakeCardRepo{}, researchWatchItems())

			err := researcher.Generate(context.Background(), &dto.ResearchTaskPayload{ReportID: 5, ImpactCardID: 3})

			require.NoError(t, err)
			assert.Zero(t, ai.researchCalls)
			assert.Equal(t, status, reports.stored(5).Status)
		})
	}
}

func TestResearcher_UnknownReportConsumesTask(t *testing.T) {
	ai := &fakeAIRepo{}
	researcher := newTestResearcher(ai, newFakeReportRepo(), &fakeCardRepo{}, researchWatchItems())

	err := researcher.Generate(context.Background(), &dto.ResearchTaskPayload{ReportID: 404, ImpactCardID: 3})

	require.NoError(t, err)
	assert.Zero(t, ai.researchCalls)
}

func TestResearcher_CardLoadFailureMarksReportFailed(t *testing.T) {
	ai := &fakeAIRepo{}
	reports := newFakeReportRepo(&entity.ResearchReport{ID: 5, ImpactCardID: 3, Status: entity.ResearchStatusPending})
	researcher := newTestResearcher(ai, reports, &fakeCardRepo{}, researchWatchItems())

	err := researcher.Generate(context.Background(), &dto.ResearchTaskPayload{ReportID: 5, ImpactCardID: 3})

	require.NoError(t, err)
	assert.Zero(t, ai.researchCalls)
	assert.Equal(t, entity.ResearchStatusFailed, reports.stored(5).Status)
}

func TestResearcher_ResumesRunningReport(t *testing.T) {
	ai := &fakeAIRepo{researchResult: &dto.DeepResearchResult{SourceCount: 4, ReportBody: "## Findings\n"}}
	reports := newFakeReportRepo(&entity.ResearchReport{ID: 5, ImpactCardID: 3, Status: entity.ResearchStatusRunning})
	cards := &fakeCardRepo{cards: []entity.ImpactCard{*researchCard(t)}, nextID: 3}
	researcher := newTestResearcher(ai, reports, cards, researchWatchItems())

	err := researcher.Generate(context.Background(), &dto.ResearchTaskPayload{ReportID: 5, ImpactCardID: 3})

	require.NoError(t, err)
	assert.Equal(t, 1, ai.researchCalls)
	assert.Equal(t, entity.ResearchStatusCompleted, reports.stored(5).Status)
}

func TestResearcher_UpstreamFailureWithBareCardFailsReport(t *testing.T) {
	ai := &fakeAIRepo{researchErr: errors.New("synthesis down")}
	reports := newFakeReportRepo(&entity.ResearchReport{ID: 5, ImpactCardID: 3, Status: entity.ResearchStatusPending})
	cards := &fakeCardRepo{cards: []entity.ImpactCard{{ID: 3, WatchItemID: 7}}, nextID: 3}
	researcher := newTestResearcher(ai, reports, cards, researchWatchItems())

	err := researcher.Generate(context.Background(), &dto.ResearchTaskPayload{ReportID: 5, ImpactCardID: 3})

	require.NoError(t, err)
	assert.Equal(t, entity.ResearchStatusFailed, reports.stored(5).Status)
}
