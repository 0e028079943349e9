package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/config"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/internal/pipeline/repository"
	"rivalwatch/pkg/common"
	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/resilience"

	"gorm.io/datatypes"
)

// Researcher generates deep-research reports for impact cards. When the
// synthesis upstream stays down it assembles a degraded report from the
// card's own evidence instead of failing the request.
type Researcher struct {
	cfg     *config.Config
	log     *logger.Logger
	ai      repository.AIRepository
	res     *resilience.Client
	reports repository.ResearchReportRepository
	cards   repository.ImpactCardRepository
	items   repository.WatchItemRepository
	now     func() time.Time
}

// NewResearcher creates a Researcher.
func NewResearcher(
	cfg *config.Config,
	log *logger.Logger,
	ai repository.AIRepository,
	res *resilience.Client,
	reports repository.ResearchReportRepository,
	cards repository.ImpactCardRepository,
	items repository.WatchItemRepository,
) *Researcher {
	return &Researcher{
		cfg:     cfg,
		log:     log,
		ai:      ai,
		res:     res,
		reports: reports,
		cards:   cards,
		items:   items,
		now:     time.Now,
	}
}

// Generate processes one research task. Tasks for finished reports are
// skipped; interrupted ones run again.
func (r *Researcher) Generate(ctx context.Context, task *dto.ResearchTaskPayload) error {
	report, err := r.reports.FindByID(ctx, task.ReportID)
	if err != nil {
		r.log.Warn("Research task references unknown report",
			logger.IntField("report_id", int(task.ReportID)),
			logger.ErrorField(err),
		)
		return nil
	}
	if report.Status == entity.ResearchStatusCompleted || report.Status == entity.ResearchStatusFailed {
		r.log.Info("Skipping research task, report already finished",
			logger.IntField("report_id", int(report.ID)),
			logger.StringField("status", report.Status),
		)
		return nil
	}
	if report.Status == entity.ResearchStatusRunning {
		// Redelivered after a crash; generation is idempotent behind the
		// response cache, so it simply runs again.
		r.log.Warn("Resuming interrupted research task", logger.IntField("report_id", int(report.ID)))
	}

	card, err := r.cards.FindByID(ctx, report.ImpactCardID)
	if err != nil {
		return r.fail(ctx, report, fmt.Errorf("failed to load impact card %d: %w", report.ImpactCardID, err))
	}
	item, err := r.items.FindByID(ctx, card.WatchItemID)
	if err != nil {
		return r.fail(ctx, report, fmt.Errorf("failed to load watch item %d: %w", card.WatchItemID, err))
	}

	report.Status = entity.ResearchStatusRunning
	if err := r.reports.Update(ctx, report); err != nil {
		return err
	}

	start := r.now()
	result, err := resilience.Do(ctx, r.res, resilience.Request[*dto.DeepResearchResult]{
		Service:     common.ServiceDeepResearch,
		Fingerprint: resilience.Fingerprint(common.ServiceDeepResearch, strconv.FormatUint(uint64(card.ID), 10)),
		Idempotent:  true,
		Call: func(cctx context.Context) (*dto.DeepResearchResult, error) {
			return r.ai.GenerateResearch(cctx, &dto.ResearchRequest{
				CardSummary:   card.Summary,
				EventCategory: card.ExtractionResult.EventCategory,
				WatchItemName: item.Name,
				Keywords:      item.Keywords,
				SourceTarget:  r.cfg.DeepResearch.SourceTarget,
			})
		},
	})
	degraded := false
	if err != nil {
		r.log.Warn("Deep research upstream failed, assembling degraded report",
			logger.IntField("report_id", int(report.ID)),
			logger.ErrorField(err),
		)
		result, err = degradedResearchResult(card)
		if err != nil {
			return r.fail(ctx, report, err)
		}
		degraded = true
	}

	sectionsJSON, err := json.Marshal(result.Sections)
	if err != nil {
		return r.fail(ctx, report, fmt.Errorf("failed to marshal report sections: %w", err))
	}

	now := r.now()
	expiresAt := now.Add(r.cfg.DeepResearch.ReportTTL)
	report.Status = entity.ResearchStatusCompleted
	report.Sections = datatypes.JSON(sectionsJSON)
	report.SourceCount = result.SourceCount
	report.ReportBody = result.ReportBody
	report.Degraded = degraded
	report.GenerationMs = now.Sub(start).Milliseconds()
	report.ExpiresAt = &expiresAt
	if err := r.reports.Update(ctx, report); err != nil {
		return err
	}

	r.log.Info("Research report completed",
		logger.IntField("report_id", int(report.ID)),
		logger.IntField("impact_card_id", int(card.ID)),
		logger.IntField("source_count", report.SourceCount),
		logger.DurationField("took", now.Sub(start)),
		logger.StringField("degraded", strconv.FormatBool(degraded)),
	)
	return nil
}

// fail finalizes the report as failed. The task is not redelivered; the
// user can request the report again.
func (r *Researcher) fail(ctx context.Context, report *entity.ResearchReport, cause error) error {
	r.log.Error("Research report failed",
		logger.IntField("report_id", int(report.ID)),
		logger.ErrorField(cause),
	)
	report.Status = entity.ResearchStatusFailed
	if err := r.reports.Update(ctx, report); err != nil {
		r.log.Error("Failed to mark report failed", logger.ErrorField(err))
	}
	return nil
}

// degradedResearchResult builds a report from the card's own summary and
// cited sources. It errors only when the card carries nothing to assemble.
func degradedResearchResult(card *entity.ImpactCard) (*dto.DeepResearchResult, error) {
	var sources []dto.CitedSource
	if len(card.Sources) > 0 {
		if err := json.Unmarshal(card.Sources, &sources); err != nil {
			return nil, fmt.Errorf("failed to decode card sources: %w", err)
		}
	}
	if strings.TrimSpace(card.Summary) == "" && len(sources) == 0 {
		return nil, errors.New("card has no summary or sources to assemble a degraded report from")
	}

	sections := []dto.ResearchSection{
		{Heading: "What happened", Body: card.Summary},
	}

	if len(sources) > 0 {
		var evidence strings.Builder
		for _, src := range sources {
			title := src.Title
			if title == "" {
				title = src.SourceName
			}
			evidence.WriteString(fmt.Sprintf("- %s (%s, tier %d)\n", title, src.URL, src.CredibilityTier))
		}
		sections = append(sections, dto.ResearchSection{Heading: "Evidence on file", Body: evidence.String()})
	}
	sections = append(sections, dto.ResearchSection{
		Heading: "Coverage note",
		Body:    "The research upstream was unavailable. This report was assembled from evidence already attached to the card and omits fresh findings.",
	})

	var body strings.Builder
	for i, section := range sections {
		if i > 0 {
			body.WriteString("\n")
		}
		body.WriteString("## " + section.Heading + "\n\n" + section.Body + "\n")
	}

	return &dto.DeepResearchResult{
		Sections:    sections,
		SourceCount: len(sources),
		ReportBody:  body.String(),
	}, nil
}
