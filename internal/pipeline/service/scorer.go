package service

import (
	"net/url"
	"strings"
	"time"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/pkg/utils"
)

// Axis weights of the risk score. They sum to 1 so the score stays in
// [0,100].
var axisWeights = map[string]float64{
	entity.AxisMarket:     0.25,
	entity.AxisProduct:    0.25,
	entity.AxisPricing:    0.20,
	entity.AxisRegulatory: 0.15,
	entity.AxisBrand:      0.15,
}

// Per-axis sub-scores before weighting. An axis the extraction does not
// mention contributes zero.
const (
	subScoreHigh   = 100.0
	subScoreMedium = 55.0
	subScoreLow    = 15.0
)

// Confidence component weights.
const (
	confWeightCredibility = 0.40
	confWeightCorroborate = 0.20
	confWeightExtraction  = 0.20
	confWeightRecency     = 0.20
)

// Corroboration is credited per distinct source host, full marks at four.
const corroborationCap = 4

// recencyWindowDays is the age at which a signal stops contributing recency
// confidence. Decay is linear from full credit at age zero.
const recencyWindowDays = 14.0

// AxisScore is one row of the per-axis risk breakdown kept on the card for
// explainability.
type AxisScore struct {
	Axis     string  `json:"axis"`
	Level    string  `json:"level,omitempty"`
	SubScore float64 `json:"sub_score"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
}

// RiskAssessment is the weighted risk score with its level and breakdown.
type RiskAssessment struct {
	Score     float64     `json:"score"`
	Level     string      `json:"level"`
	Breakdown []AxisScore `json:"breakdown"`
}

// ConfidenceParts carries the confidence score together with its unweighted
// components.
type ConfidenceParts struct {
	MeanCredibility   float64 `json:"mean_credibility"`
	Corroboration     float64 `json:"corroboration"`
	ExtractionQuality float64 `json:"extraction_quality"`
	Recency           float64 `json:"recency"`
	Score             float64 `json:"score"`
}

// ScoreRisk computes the weighted risk score over the five axes. It is a
// pure function: identical impacts always produce identical output. When the
// same axis appears more than once the highest level wins.
func ScoreRisk(impacts []dto.AxisImpact) RiskAssessment {
	levels := make(map[string]string, len(impacts))
	for _, impact := range impacts {
		current, ok := levels[impact.Axis]
		if !ok || levelSubScore(impact.Level) > levelSubScore(current) {
			levels[impact.Axis] = impact.Level
		}
	}

	assessment := RiskAssessment{
		Breakdown: make([]AxisScore, 0, len(entity.RiskAxes)),
	}
	for _, axis := range entity.RiskAxes {
		weight := axisWeights[axis]
		level := levels[axis]
		subScore := levelSubScore(level)
		weighted := subScore * weight

		assessment.Score += weighted
		assessment.Breakdown = append(assessment.Breakdown, AxisScore{
			Axis:     axis,
			Level:    level,
			SubScore: subScore,
			Weight:   weight,
			Weighted: weighted,
		})
	}

	assessment.Level = RiskLevelFor(assessment.Score)
	return assessment
}

// RiskLevelFor maps a risk score onto the four risk levels.
func RiskLevelFor(score float64) string {
	switch {
	case score > 80:
		return entity.RiskLevelCritical
	case score > 60:
		return entity.RiskLevelHigh
	case score > 30:
		return entity.RiskLevelMedium
	default:
		return entity.RiskLevelLow
	}
}

func levelSubScore(level string) float64 {
	switch level {
	case entity.ImpactLevelHigh:
		return subScoreHigh
	case entity.ImpactLevelMedium:
		return subScoreMedium
	case entity.ImpactLevelLow:
		return subScoreLow
	}
	return 0
}

// ScoreConfidence computes the weighted confidence score from source
// credibility, corroboration across distinct hosts, the extractor's own
// confidence and signal recency. Pure: the caller supplies now.
func ScoreConfidence(sources []dto.CitedSource, rawConfidence float64, publishedAt *time.Time, now time.Time) ConfidenceParts {
	parts := ConfidenceParts{
		MeanCredibility:   meanCredibility(sources),
		Corroboration:     corroboration(sources),
		ExtractionQuality: clamp01(rawConfidence),
		Recency:           recency(publishedAt, now),
	}

	parts.Score = clamp01(confWeightCredibility*parts.MeanCredibility +
		confWeightCorroborate*parts.Corroboration +
		confWeightExtraction*parts.ExtractionQuality +
		confWeightRecency*parts.Recency)

	return parts
}

func meanCredibility(sources []dto.CitedSource) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, src := range sources {
		sum += src.CredibilityScore
	}
	return clamp01(sum / float64(len(sources)))
}

// corroboration counts distinct source hosts, saturating at
// corroborationCap.
func corroboration(sources []dto.CitedSource) float64 {
	hosts := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		hosts[sourceHost(src)] = struct{}{}
	}
	n := len(hosts)
	if n > corroborationCap {
		n = corroborationCap
	}
	return float64(n) / float64(corroborationCap)
}

func sourceHost(src dto.CitedSource) string {
	if parsed, err := url.Parse(src.URL); err == nil && parsed.Hostname() != "" {
		return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	}
	return strings.ToLower(src.SourceName)
}

func recency(publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil {
		return 0
	}
	age := utils.AgeDays(*publishedAt, now)
	return clamp01(1 - age/recencyWindowDays)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
