package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/internal/pipeline/repository"
	"rivalwatch/internal/pipeline/rules"
	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/telegram"

	"gorm.io/datatypes"
)

// Assembler turns an approved, scored extraction into the persisted impact
// card and pushes alerts for High and Critical cards.
type Assembler struct {
	log      *logger.Logger
	store    *rules.Store
	cards    repository.ImpactCardRepository
	notifier telegram.Notifier
}

// NewAssembler creates an Assembler. notifier may be nil, disabling alerts.
func NewAssembler(
	log *logger.Logger,
	store *rules.Store,
	cards repository.ImpactCardRepository,
	notifier telegram.Notifier,
) *Assembler {
	return &Assembler{
		log:      log,
		store:    store,
		cards:    cards,
		notifier: notifier,
	}
}

// Assemble builds and stores the card for one approved extraction. The bool
// reports whether a new card was written; a card already assembled for the
// same extraction result is left untouched.
func (a *Assembler) Assemble(
	ctx context.Context,
	item *entity.WatchItem,
	signal *entity.Signal,
	row *entity.ExtractionResult,
	payload *dto.ExtractionPayload,
	risk RiskAssessment,
	confidence ConfidenceParts,
	delayed bool,
) (*entity.ImpactCard, bool, error) {
	actions := a.mergeActions(payload.EventCategory, risk.Level, payload.Recommendations)

	summary := strings.TrimSpace(payload.Summary)
	if summary == "" {
		summary = signal.Title
	}

	breakdownJSON, err := json.Marshal(risk.Breakdown)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal risk breakdown: %w", err)
	}
	partsJSON, err := json.Marshal(confidence)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal confidence parts: %w", err)
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal actions: %w", err)
	}
	sourcesJSON, err := json.Marshal(payload.CitedSources)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal sources: %w", err)
	}

	card := &entity.ImpactCard{
		ExtractionResultID: row.ID,
		WatchItemID:        item.ID,
		Summary:            summary,
		RiskScore:          risk.Score,
		RiskLevel:          risk.Level,
		RiskBreakdown:      datatypes.JSON(breakdownJSON),
		ConfidenceScore:    confidence.Score,
		ConfidenceParts:    datatypes.JSON(partsJSON),
		Actions:            datatypes.JSON(actionsJSON),
		Sources:            datatypes.JSON(sourcesJSON),
		Delayed:            delayed,
	}

	created, err := a.cards.CreateIgnoreConflict(ctx, card)
	if err != nil {
		return nil, false, fmt.Errorf("failed to store impact card: %w", err)
	}
	if !created {
		a.log.Info("Impact card already assembled for extraction result",
			logger.IntField("extraction_result_id", int(row.ID)),
		)
		return card, false, nil
	}

	a.log.Info("Assembled impact card",
		logger.IntField("watch_item_id", int(item.ID)),
		logger.IntField("extraction_result_id", int(row.ID)),
		logger.Float64Field("risk_score", risk.Score),
		logger.StringField("risk_level", risk.Level),
	)

	if a.notifier != nil && (risk.Level == entity.RiskLevelHigh || risk.Level == entity.RiskLevelCritical) {
		message := telegram.FormatImpactCardAlert(item.Name, card, actions, payload.CitedSources)
		if err := a.notifier.SendMessage(message); err != nil {
			// Alerting is best effort; the card is already persisted.
			a.log.Error("Failed to send impact card alert", logger.ErrorField(err))
		}
	}

	return card, true, nil
}

// mergeActions layers the extraction's own recommendations over the rule
// table's templates, deduplicating on (owner, action text).
func (a *Assembler) mergeActions(category, riskLevel string, recommended []dto.RecommendedAction) []dto.CardAction {
	var merged []dto.CardAction
	seen := make(map[string]struct{})

	add := func(action dto.CardAction) {
		key := strings.ToLower(strings.TrimSpace(action.Owner)) + "|" + strings.ToLower(strings.TrimSpace(action.Action))
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		merged = append(merged, action)
	}

	if a.store != nil {
		for _, tmpl := range a.store.Current().ActionsFor(category, riskLevel) {
			add(dto.CardAction{
				Owner:    tmpl.Owner,
				Action:   tmpl.Action,
				DueDays:  tmpl.DueDays,
				Priority: tmpl.Priority,
				Origin:   dto.ActionOriginRuleTable,
			})
		}
	}

	for _, rec := range recommended {
		add(dto.CardAction{
			Owner:    rec.Owner,
			Action:   rec.Action,
			DueDays:  rec.DueDays,
			Priority: rec.Priority,
			Origin:   dto.ActionOriginExtraction,
		})
	}

	return merged
}
