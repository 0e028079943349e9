package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/logger"
)

func newTestVerifier() *Verifier {
	return NewVerifier(nil, logger.NewNop())
}

func criticalImpacts() []dto.AxisImpact {
	return []dto.AxisImpact{
		{Axis: entity.AxisMarket, Level: entity.ImpactLevelHigh},
		{Axis: entity.AxisProduct, Level: entity.ImpactLevelHigh},
		{Axis: entity.AxisPricing, Level: entity.ImpactLevelHigh},
		{Axis: entity.AxisRegulatory, Level: entity.ImpactLevelHigh},
	}
}

func highImpacts() []dto.AxisImpact {
	return []dto.AxisImpact{
		{Axis: entity.AxisMarket, Level: entity.ImpactLevelHigh},
		{Axis: entity.AxisProduct, Level: entity.ImpactLevelHigh},
		{Axis: entity.AxisPricing, Level: entity.ImpactLevelLow},
		{Axis: entity.AxisRegulatory, Level: entity.ImpactLevelLow},
		{Axis: entity.AxisBrand, Level: entity.ImpactLevelMedium},
	}
}

func mediumImpacts() []dto.AxisImpact {
	return []dto.AxisImpact{
		{Axis: entity.AxisMarket, Level: entity.ImpactLevelHigh},
		{Axis: entity.AxisPricing, Level: entity.ImpactLevelLow},
		{Axis: entity.AxisBrand, Level: entity.ImpactLevelMedium},
	}
}

func TestVerifier_ApprovesCriticalWithTwoTier1Sources(t *testing.T) {
	v := newTestVerifier()

	outcome := v.Verify(&dto.ExtractionPayload{
		Impacts: criticalImpacts(),
		CitedSources: []dto.CitedSource{
			{URL: "https://reuters.com/a", CredibilityTier: 1, CredibilityScore: 0.90},
			{URL: "https://apnews.com/b", CredibilityTier: 1, CredibilityScore: 0.88},
			{URL: "https://techcrunch.com/c", CredibilityTier: 2, CredibilityScore: 0.70},
		},
	})

	assert.Equal(t, entity.VerdictApproved, outcome.Verdict)
	assert.Equal(t, "critical_risk_sources", outcome.Rule)
	assert.Equal(t, entity.RiskLevelCritical, outcome.RiskLevel)
	assert.Len(t, outcome.Sources, 3)
}

func TestVerifier_RejectsCriticalWithOneTier1Source(t *testing.T) {
	v := newTestVerifier()

	outcome := v.Verify(&dto.ExtractionPayload{
		Impacts: criticalImpacts(),
		CitedSources: []dto.CitedSource{
			{URL: "https://reuters.com/a", CredibilityTier: 1, CredibilityScore: 0.90},
			{URL: "https://techcrunch.com/b", CredibilityTier: 2, CredibilityScore: 0.88},
			{URL: "https://theverge.com/c", CredibilityTier: 2, CredibilityScore: 0.70},
		},
	})

	assert.Equal(t, entity.VerdictRejected, outcome.Verdict)
	assert.Equal(t, "insufficient_tier1_sources", outcome.Rule)
}

func TestVerifier_TwoFailuresRejectEvenWhenOneIsBorderline(t *testing.T) {
	v := newTestVerifier()

	// Two sources is one short of the critical bar (borderline), but only one
	// of them is tier 1, so the tier condition fails too.
	outcome := v.Verify(&dto.ExtractionPayload{
		Impacts: criticalImpacts(),
		CitedSources: []dto.CitedSource{
			{URL: "https://reuters.com/a", CredibilityTier: 1, CredibilityScore: 0.92},
			{URL: "https://techcrunch.com/b", CredibilityTier: 2, CredibilityScore: 0.75},
		},
	})

	assert.Equal(t, entity.VerdictRejected, outcome.Verdict)
	assert.Equal(t, "insufficient_sources", outcome.Rule)
	assert.Contains(t, outcome.Detail, "tier-1 sources required")
}

func TestVerifier_BorderlineSourceCountRoutesToManualReview(t *testing.T) {
	v := newTestVerifier()

	outcome := v.Verify(&dto.ExtractionPayload{
		Impacts: criticalImpacts(),
		CitedSources: []dto.CitedSource{
			{URL: "https://reuters.com/a", CredibilityTier: 1, CredibilityScore: 0.92},
			{URL: "https://apnews.com/b", CredibilityTier: 1, CredibilityScore: 0.90},
		},
	})

	assert.Equal(t, entity.VerdictPendingManualReview, outcome.Verdict)
	assert.Equal(t, "insufficient_sources", outcome.Rule)
	assert.Contains(t, outcome.Detail, "within review margin")
}

func TestVerifier_BorderlineCredibilityRoutesToManualReview(t *testing.T) {
	v := newTestVerifier()

	// High risk requires mean credibility 0.75; 0.72 misses within the 0.05
	// margin and everything else passes.
	outcome := v.Verify(&dto.ExtractionPayload{
		Impacts: highImpacts(),
		CitedSources: []dto.CitedSource{
			{URL: "https://reuters.com/a", CredibilityTier: 1, CredibilityScore: 0.80},
			{URL: "https://medium.com/b", CredibilityTier: 3, CredibilityScore: 0.64},
		},
	})

	assert.Equal(t, entity.VerdictPendingManualReview, outcome.Verdict)
	assert.Equal(t, "low_mean_credibility", outcome.Rule)
}

func TestVerifier_ZeroSourcesNeverBorderline(t *testing.T) {
	v := newTestVerifier()

	outcome := v.Verify(&dto.ExtractionPayload{
		Impacts: highImpacts(),
	})

	assert.Equal(t, entity.VerdictRejected, outcome.Verdict)
	assert.Equal(t, "insufficient_sources", outcome.Rule)
}

func TestVerifier_DuplicateHostsCollapseBeforeCounting(t *testing.T) {
	v := newTestVerifier()

	// Three citations over two hosts: the count condition sees two distinct
	// sources, one short of the critical bar.
	outcome := v.Verify(&dto.ExtractionPayload{
		Impacts: criticalImpacts(),
		CitedSources: []dto.CitedSource{
			{URL: "https://reuters.com/a", CredibilityTier: 1, CredibilityScore: 0.92},
			{URL: "https://www.reuters.com/a-syndicated", CredibilityTier: 1, CredibilityScore: 0.92},
			{URL: "https://apnews.com/b", CredibilityTier: 1, CredibilityScore: 0.90},
		},
	})

	require.Len(t, outcome.Sources, 2)
	assert.Equal(t, entity.VerdictPendingManualReview, outcome.Verdict)
	assert.Equal(t, "insufficient_sources", outcome.Rule)
}

func TestVerifier_MediumRiskRequiresTier2Source(t *testing.T) {
	v := newTestVerifier()

	rejected := v.Verify(&dto.ExtractionPayload{
		Impacts: mediumImpacts(),
		CitedSources: []dto.CitedSource{
			{URL: "https://medium.com/a", CredibilityTier: 3, CredibilityScore: 0.70},
			{URL: "https://substack.com/b", CredibilityTier: 3, CredibilityScore: 0.70},
		},
	})
	assert.Equal(t, entity.VerdictRejected, rejected.Verdict)
	assert.Equal(t, "insufficient_tier2_sources", rejected.Rule)

	approved := v.Verify(&dto.ExtractionPayload{
		Impacts: mediumImpacts(),
		CitedSources: []dto.CitedSource{
			{URL: "https://techcrunch.com/a", CredibilityTier: 2, CredibilityScore: 0.75},
			{URL: "https://substack.com/b", CredibilityTier: 3, CredibilityScore: 0.60},
		},
	})
	assert.Equal(t, entity.VerdictApproved, approved.Verdict)
	assert.Equal(t, "medium_risk_sources", approved.Rule)
}

func TestVerifier_LowRiskNeedsOneVerifiedSource(t *testing.T) {
	v := newTestVerifier()

	outcome := v.Verify(&dto.ExtractionPayload{
		Impacts: []dto.AxisImpact{
			{Axis: entity.AxisBrand, Level: entity.ImpactLevelLow},
		},
		CitedSources: []dto.CitedSource{
			{URL: "https://medium.com/a", CredibilityTier: 3, CredibilityScore: 0.55},
		},
	})

	assert.Equal(t, entity.RiskLevelLow, outcome.RiskLevel)
	assert.Equal(t, entity.VerdictApproved, outcome.Verdict)
}

func TestVerifier_LowRiskRejectsUnverifiedOnlySources(t *testing.T) {
	v := newTestVerifier()

	outcome := v.Verify(&dto.ExtractionPayload{
		Impacts: []dto.AxisImpact{
			{Axis: entity.AxisBrand, Level: entity.ImpactLevelLow},
		},
		CitedSources: []dto.CitedSource{
			{URL: "https://example-blog.net/a", CredibilityTier: 4, CredibilityScore: 0.55},
		},
	})

	assert.Equal(t, entity.VerdictRejected, outcome.Verdict)
	assert.Equal(t, "no_verified_source", outcome.Rule)
}
