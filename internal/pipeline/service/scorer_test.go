package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/dto"
)

func TestScoreRisk_WeightedSumAcrossAxes(t *testing.T) {
	impacts := []dto.AxisImpact{
		{Axis: entity.AxisMarket, Level: entity.ImpactLevelHigh},
		{Axis: entity.AxisProduct, Level: entity.ImpactLevelHigh},
		{Axis: entity.AxisPricing, Level: entity.ImpactLevelLow},
		{Axis: entity.AxisRegulatory, Level: entity.ImpactLevelLow},
		{Axis: entity.AxisBrand, Level: entity.ImpactLevelMedium},
	}

	got := ScoreRisk(impacts)

	// 100*.25 + 100*.25 + 15*.20 + 15*.15 + 55*.15
	assert.InDelta(t, 63.5, got.Score, 1e-9)
	assert.Equal(t, entity.RiskLevelHigh, got.Level)
	require.Len(t, got.Breakdown, 5)
}

func TestScoreRisk_AbsentAxesContributeZero(t *testing.T) {
	got := ScoreRisk([]dto.AxisImpact{
		{Axis: entity.AxisMarket, Level: entity.ImpactLevelHigh},
	})

	assert.InDelta(t, 25.0, got.Score, 1e-9)
	assert.Equal(t, entity.RiskLevelLow, got.Level)

	require.Len(t, got.Breakdown, 5)
	for _, row := range got.Breakdown {
		if row.Axis == entity.AxisMarket {
			assert.InDelta(t, 100.0, row.SubScore, 1e-9)
			continue
		}
		assert.Zero(t, row.SubScore, "axis %s should not contribute", row.Axis)
		assert.Empty(t, row.Level)
	}
}

func TestScoreRisk_HighestLevelWinsOnDuplicateAxis(t *testing.T) {
	got := ScoreRisk([]dto.AxisImpact{
		{Axis: entity.AxisMarket, Level: entity.ImpactLevelLow},
		{Axis: entity.AxisMarket, Level: entity.ImpactLevelHigh},
		{Axis: entity.AxisMarket, Level: entity.ImpactLevelMedium},
	})

	assert.InDelta(t, 25.0, got.Score, 1e-9)
}

func TestScoreRisk_Deterministic(t *testing.T) {
	impacts := []dto.AxisImpact{
		{Axis: entity.AxisPricing, Level: entity.ImpactLevelMedium},
		{Axis: entity.AxisBrand, Level: entity.ImpactLevelHigh},
	}

	first := ScoreRisk(impacts)
	second := ScoreRisk(impacts)

	assert.Equal(t, first, second)
}

func TestRiskLevelFor_Boundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{0, entity.RiskLevelLow},
		{30, entity.RiskLevelLow},
		{30.01, entity.RiskLevelMedium},
		{60, entity.RiskLevelMedium},
		{60.01, entity.RiskLevelHigh},
		{80, entity.RiskLevelHigh},
		{80.01, entity.RiskLevelCritical},
		{100, entity.RiskLevelCritical},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RiskLevelFor(tc.score), "score %.2f", tc.score)
	}
}

func TestScoreConfidence_WeightedComponents(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	published := now.AddDate(0, 0, -7)

	sources := []dto.CitedSource{
		{URL: "https://reuters.com/a", CredibilityScore: 0.90},
		{URL: "https://apnews.com/b", CredibilityScore: 0.88},
		{URL: "https://techcrunch.com/c", CredibilityScore: 0.70},
	}

	got := ScoreConfidence(sources, 0.72, &published, now)

	assert.InDelta(t, 0.826667, got.MeanCredibility, 1e-4)
	assert.InDelta(t, 0.75, got.Corroboration, 1e-9)
	assert.InDelta(t, 0.72, got.ExtractionQuality, 1e-9)
	assert.InDelta(t, 0.5, got.Recency, 1e-9)

	want := 0.4*got.MeanCredibility + 0.2*got.Corroboration + 0.2*got.ExtractionQuality + 0.2*got.Recency
	assert.InDelta(t, want, got.Score, 1e-9)
}

func TestScoreConfidence_NilPublishedAtScoresZeroRecency(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	got := ScoreConfidence([]dto.CitedSource{
		{URL: "https://reuters.com/a", CredibilityScore: 0.9},
	}, 0.8, nil, now)

	assert.Zero(t, got.Recency)
}

func TestScoreConfidence_RecencyDecaysToZeroAfterWindow(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	stale := now.AddDate(0, 0, -30)

	got := ScoreConfidence(nil, 0.5, &stale, now)

	assert.Zero(t, got.Recency)
}

func TestScoreConfidence_CorroborationSaturatesAtFourHosts(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	sources := []dto.CitedSource{
		{URL: "https://reuters.com/a"},
		{URL: "https://apnews.com/b"},
		{URL: "https://bloomberg.com/c"},
		{URL: "https://wsj.com/d"},
		{URL: "https://ft.com/e"},
		{URL: "https://cnbc.com/f"},
	}

	got := ScoreConfidence(sources, 0, nil, now)

	assert.InDelta(t, 1.0, got.Corroboration, 1e-9)
}

func TestScoreConfidence_DuplicateHostsCountOnce(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	sources := []dto.CitedSource{
		{URL: "https://www.reuters.com/first"},
		{URL: "https://reuters.com/second"},
	}

	got := ScoreConfidence(sources, 0, nil, now)

	assert.InDelta(t, 0.25, got.Corroboration, 1e-9)
}

func TestScoreConfidence_ClampsComponentsToUnitRange(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 3)

	got := ScoreConfidence([]dto.CitedSource{
		{URL: "https://reuters.com/a", CredibilityScore: 2.0},
	}, 1.5, &future, now)

	assert.InDelta(t, 1.0, got.MeanCredibility, 1e-9)
	assert.InDelta(t, 1.0, got.ExtractionQuality, 1e-9)
	assert.InDelta(t, 1.0, got.Recency, 1e-9)
	assert.LessOrEqual(t, got.Score, 1.0)
}
