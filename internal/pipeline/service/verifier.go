package service

import (
	"fmt"
	"strings"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/internal/pipeline/rules"
	"rivalwatch/pkg/logger"
)

// VerificationOutcome is the verdict for one extraction together with the
// rule that produced it and the source set that was evaluated.
type VerificationOutcome struct {
	Verdict   string            `json:"verdict"`
	Rule      string            `json:"rule"`
	Detail    string            `json:"detail"`
	RiskLevel string            `json:"risk_level"`
	Sources   []dto.CitedSource `json:"sources"`
}

// Rejection reason codes. The code of the first failed condition becomes the
// outcome's rule.
const (
	reasonInsufficientSources      = "insufficient_sources"
	reasonInsufficientTier1Sources = "insufficient_tier1_sources"
	reasonInsufficientTier2Sources = "insufficient_tier2_sources"
	reasonNoVerifiedSource         = "no_verified_source"
	reasonLowMeanCredibility       = "low_mean_credibility"
)

// condition is one sub-condition of a risk level's source rule. borderline
// marks a failed condition that missed within the configured margin;
// tier-composition conditions never set it, so a missing tier-1 source
// always rejects.
type condition struct {
	code       string
	ok         bool
	borderline bool
	detail     string
}

// Verifier applies the risk-tiered source-sufficiency rules to extraction
// output before any card may be assembled.
type Verifier struct {
	store *rules.Store
	log   *logger.Logger
}

// NewVerifier creates a Verifier. store may be nil, in which case the
// default margins apply.
func NewVerifier(store *rules.Store, log *logger.Logger) *Verifier {
	return &Verifier{store: store, log: log}
}

// Verify gates the extraction on a preliminary risk estimate derived from
// its axis levels. Exactly one failed sub-condition within the configured
// margin routes to manual review; anything else failing rejects.
func (v *Verifier) Verify(payload *dto.ExtractionPayload) VerificationOutcome {
	risk := ScoreRisk(payload.Impacts)
	sources := dedupeSourcesByHost(payload.CitedSources)
	mean := meanCredibility(sources)
	margins := v.margins()

	ruleName, conditions := sourceRuleFor(risk.Level, sources, mean, margins)

	var failed []condition
	for _, c := range conditions {
		if !c.ok {
			failed = append(failed, c)
		}
	}

	outcome := VerificationOutcome{
		RiskLevel: risk.Level,
		Sources:   sources,
	}

	switch {
	case len(failed) == 0:
		outcome.Verdict = entity.VerdictApproved
		outcome.Rule = ruleName
		outcome.Detail = fmt.Sprintf("%d distinct sources, mean credibility %.2f", len(sources), mean)
	case len(failed) == 1 && failed[0].borderline:
		outcome.Verdict = entity.VerdictPendingManualReview
		outcome.Rule = failed[0].code
		outcome.Detail = fmt.Sprintf("%s (within review margin)", failed[0].detail)
		v.log.Warn("Verification routed to manual review",
			logger.StringField("risk_level", risk.Level),
			logger.StringField("condition", failed[0].code),
			logger.StringField("detail", failed[0].detail),
		)
	default:
		outcome.Verdict = entity.VerdictRejected
		outcome.Rule = failed[0].code
		outcome.Detail = joinDetails(failed)
		v.log.Warn("Verification rejected extraction",
			logger.StringField("risk_level", risk.Level),
			logger.StringField("rule", outcome.Rule),
			logger.StringField("detail", outcome.Detail),
		)
	}

	return outcome
}

func (v *Verifier) margins() rules.VerificationMargins {
	if v.store != nil {
		return v.store.Current().Margins
	}
	return rules.VerificationMargins{Credibility: 0.05, SourceDeficit: 1}
}

// sourceRuleFor builds the sub-conditions of the risk level's rule. Counting
// runs over sources already deduplicated by host, so a resyndicated article
// never corroborates itself.
func sourceRuleFor(riskLevel string, sources []dto.CitedSource, mean float64, margins rules.VerificationMargins) (string, []condition) {
	n := len(sources)
	tier1 := countSourcesAtTier(sources, 1)
	tier2Plus := countSourcesAtTier(sources, 2)
	verified := countSourcesAtTier(sources, 3)

	switch riskLevel {
	case entity.RiskLevelCritical:
		return "critical_risk_sources", []condition{
			countCondition(n, 3, margins),
			{
				code:   reasonInsufficientTier1Sources,
				ok:     tier1 >= 2,
				detail: fmt.Sprintf("2 tier-1 sources required, found %d", tier1),
			},
			credibilityCondition(mean, 0.80, margins),
		}
	case entity.RiskLevelHigh:
		return "high_risk_sources", []condition{
			countCondition(n, 2, margins),
			{
				code:   reasonInsufficientTier1Sources,
				ok:     tier1 >= 1,
				detail: fmt.Sprintf("1 tier-1 source required, found %d", tier1),
			},
			credibilityCondition(mean, 0.75, margins),
		}
	case entity.RiskLevelMedium:
		return "medium_risk_sources", []condition{
			countCondition(n, 2, margins),
			{
				code:   reasonInsufficientTier2Sources,
				ok:     tier2Plus >= 1,
				detail: fmt.Sprintf("1 tier-2-or-better source required, found %d", tier2Plus),
			},
			credibilityCondition(mean, 0.65, margins),
		}
	default:
		return "low_risk_sources", []condition{
			{
				code:   reasonNoVerifiedSource,
				ok:     verified >= 1,
				detail: fmt.Sprintf("1 verified source (tier 3 or better) required, found %d", verified),
			},
			credibilityCondition(mean, 0.50, margins),
		}
	}
}

func countCondition(have, need int, margins rules.VerificationMargins) condition {
	return condition{
		code: reasonInsufficientSources,
		ok:   have >= need,
		// A deficit within the margin is review-worthy, but zero sources
		// never is.
		borderline: have > 0 && need-have <= margins.SourceDeficit,
		detail:     fmt.Sprintf("%d distinct sources required, found %d", need, have),
	}
}

func credibilityCondition(mean, bar float64, margins rules.VerificationMargins) condition {
	return condition{
		code:       reasonLowMeanCredibility,
		ok:         mean >= bar,
		borderline: mean >= bar-margins.Credibility,
		detail:     fmt.Sprintf("mean credibility %.3f below required %.2f", mean, bar),
	}
}

// countSourcesAtTier counts sources whose tier is maxTier or better.
func countSourcesAtTier(sources []dto.CitedSource, maxTier int) int {
	count := 0
	for _, src := range sources {
		if src.CredibilityTier >= 1 && src.CredibilityTier <= maxTier {
			count++
		}
	}
	return count
}

// dedupeSourcesByHost keeps the first source per host so duplicate citations
// of the same outlet count once.
func dedupeSourcesByHost(sources []dto.CitedSource) []dto.CitedSource {
	seen := make(map[string]struct{}, len(sources))
	deduped := make([]dto.CitedSource, 0, len(sources))
	for _, src := range sources {
		host := sourceHost(src)
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		deduped = append(deduped, src)
	}
	return deduped
}

func joinDetails(failed []condition) string {
	details := make([]string, 0, len(failed))
	for _, c := range failed {
		details = append(details, c.detail)
	}
	return strings.Join(details, "; ")
}
