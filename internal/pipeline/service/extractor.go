package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/internal/pipeline/repository"
	"rivalwatch/pkg/common"
	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/resilience"

	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

// Extractor turns an enriched signal into a validated, persisted
// ExtractionResult for one watch item. Schema violations get exactly one
// corrective re-prompt; a second failure queues the signal for manual
// handling instead of dropping it.
type Extractor struct {
	log         *logger.Logger
	ai          repository.AIRepository
	res         *resilience.Client
	results     repository.ExtractionResultRepository
	reviews     repository.ReviewItemRepository
	credibility *CredibilityRegistry

	flight singleflight.Group
}

// NewExtractor creates an Extractor.
func NewExtractor(
	log *logger.Logger,
	ai repository.AIRepository,
	res *resilience.Client,
	results repository.ExtractionResultRepository,
	reviews repository.ReviewItemRepository,
	credibility *CredibilityRegistry,
) *Extractor {
	return &Extractor{
		log:         log,
		ai:          ai,
		res:         res,
		results:     results,
		reviews:     reviews,
		credibility: credibility,
	}
}

// Extract returns the extraction row and typed payload for the (watch item,
// signal) pair. Concurrent calls for the same pair share one in-flight
// extraction, and a pair that was already extracted is reused without an
// upstream call.
func (e *Extractor) Extract(ctx context.Context, item *entity.WatchItem, enriched *dto.EnrichedSignal) (*entity.ExtractionResult, *dto.ExtractionPayload, error) {
	type extraction struct {
		row     *entity.ExtractionResult
		payload *dto.ExtractionPayload
	}

	key := fmt.Sprintf("%d:%s", item.ID, enriched.Signal.ContentHash)
	v, err, _ := e.flight.Do(key, func() (interface{}, error) {
		row, payload, err := e.extract(ctx, item, enriched)
		if err != nil {
			return nil, err
		}
		return &extraction{row: row, payload: payload}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	result := v.(*extraction)
	return result.row, result.payload, nil
}

func (e *Extractor) extract(ctx context.Context, item *entity.WatchItem, enriched *dto.EnrichedSignal) (*entity.ExtractionResult, *dto.ExtractionPayload, error) {
	if existing, err := e.results.FindByWatchItemAndSignal(ctx, item.ID, enriched.Signal.ID); err == nil {
		payload, perr := payloadFromRow(existing)
		if perr != nil {
			return nil, nil, perr
		}
		return existing, payload, nil
	}

	req := e.buildRequest(item, enriched)

	payload, err := e.callExtraction(ctx, item, enriched, req)
	if err != nil && errors.Is(err, resilience.ErrSchemaValidation) {
		// One corrective re-prompt naming the violations, then give up and
		// queue for manual handling.
		req.CorrectiveNote = correctiveNoteFor(err)
		payload, err = e.callExtraction(ctx, item, enriched, req)
		if err != nil && errors.Is(err, resilience.ErrSchemaValidation) {
			if rerr := e.queueForReview(ctx, item, enriched, err); rerr != nil {
				e.log.Error("Failed to queue extraction for review", logger.ErrorField(rerr))
			}
			return nil, nil, err
		}
	}
	if err != nil {
		return nil, nil, err
	}

	row, err := rowFromPayload(item.ID, enriched.Signal.ID, payload)
	if err != nil {
		return nil, nil, err
	}

	created, err := e.results.CreateIgnoreConflict(ctx, row)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to persist extraction result: %w", err)
	}
	if !created {
		// Another worker won the insert race; reuse its row.
		existing, ferr := e.results.FindByWatchItemAndSignal(ctx, item.ID, enriched.Signal.ID)
		if ferr != nil {
			return nil, nil, ferr
		}
		payload, perr := payloadFromRow(existing)
		if perr != nil {
			return nil, nil, perr
		}
		return existing, payload, nil
	}

	return row, payload, nil
}

// callExtraction performs one resilience-wrapped extraction call. Schema
// validation runs inside the wrapped call so invalid payloads are never
// cached.
func (e *Extractor) callExtraction(ctx context.Context, item *entity.WatchItem, enriched *dto.EnrichedSignal, req *dto.ExtractionRequest) (*dto.ExtractionPayload, error) {
	fingerprint := resilience.Fingerprint(common.ServiceExtraction,
		strconv.FormatUint(uint64(item.ID), 10),
		enriched.Signal.ContentHash,
		req.CorrectiveNote,
	)

	return resilience.Do(ctx, e.res, resilience.Request[*dto.ExtractionPayload]{
		Service:     common.ServiceExtraction,
		Fingerprint: fingerprint,
		Idempotent:  true,
		Call: func(cctx context.Context) (*dto.ExtractionPayload, error) {
			payload, err := e.ai.ExtractImpact(cctx, req)
			if err != nil {
				return nil, err
			}
			if violations := validateExtractionPayload(payload); len(violations) > 0 {
				return nil, fmt.Errorf("%s: %w", strings.Join(violations, "; "), resilience.ErrSchemaValidation)
			}
			e.decorateSources(payload, &enriched.Signal)
			return payload, nil
		},
	})
}

func (e *Extractor) buildRequest(item *entity.WatchItem, enriched *dto.EnrichedSignal) *dto.ExtractionRequest {
	return &dto.ExtractionRequest{
		WatchItemName: item.Name,
		Portfolio:     item.Products,
		Signal: dto.SearchItem{
			Title:       enriched.Signal.Title,
			URL:         enriched.Signal.URL,
			RawText:     enriched.Signal.RawText,
			PublishedAt: enriched.Signal.PublishedAt,
			SourceName:  enriched.Signal.SourceName,
		},
		Entities: enriched.Entities,
		Context:  enriched.Context,
	}
}

// decorateSources stamps pipeline-derived credibility onto every cited
// source and guarantees the signal itself is cited, so provenance can never
// be empty downstream.
func (e *Extractor) decorateSources(payload *dto.ExtractionPayload, signal *entity.Signal) {
	signalHost := sourceHost(dto.CitedSource{URL: signal.URL, SourceName: signal.SourceName})
	cited := false

	for i := range payload.CitedSources {
		src := &payload.CitedSources[i]
		src.CredibilityTier, src.CredibilityScore = e.credibility.Classify(src.URL)
		if src.SourceName == "" {
			src.SourceName = sourceHost(*src)
		}
		if sourceHost(*src) == signalHost {
			cited = true
		}
	}

	if !cited {
		payload.CitedSources = append(payload.CitedSources, dto.CitedSource{
			Title:            signal.Title,
			URL:              signal.URL,
			SourceName:       signal.SourceName,
			PublishedAt:      signal.PublishedAt,
			CredibilityTier:  signal.CredibilityTier,
			CredibilityScore: signal.CredibilityScore,
		})
	}
}

func (e *Extractor) queueForReview(ctx context.Context, item *entity.WatchItem, enriched *dto.EnrichedSignal, cause error) error {
	detail, err := json.Marshal(map[string]interface{}{
		"signal_title": enriched.Signal.Title,
		"signal_url":   enriched.Signal.URL,
		"violations":   cause.Error(),
	})
	if err != nil {
		return err
	}

	return e.reviews.Create(ctx, &entity.ReviewItem{
		Kind:        entity.ReviewKindExtractionFailure,
		SignalID:    enriched.Signal.ID,
		WatchItemID: item.ID,
		Stage:       entity.StageExtracting,
		Reason:      string(resilience.KindSchemaValidation),
		Context:     datatypes.JSON(detail),
		Status:      entity.ReviewStatusOpen,
	})
}

// validateExtractionPayload checks the closed schema and returns every
// violation found, so the corrective prompt can name all of them at once.
func validateExtractionPayload(p *dto.ExtractionPayload) []string {
	var violations []string

	if !entity.ValidEventCategory(p.EventCategory) {
		violations = append(violations, fmt.Sprintf("event_category %q is not in the closed enum", p.EventCategory))
	}
	for i, impact := range p.Impacts {
		if !entity.ValidAxis(impact.Axis) {
			violations = append(violations, fmt.Sprintf("impacts[%d].axis %q is not a known risk axis", i, impact.Axis))
		}
		if !entity.ValidImpactLevel(impact.Level) {
			violations = append(violations, fmt.Sprintf("impacts[%d].level %q must be high, medium or low", i, impact.Level))
		}
		if strings.TrimSpace(impact.Rationale) == "" {
			violations = append(violations, fmt.Sprintf("impacts[%d].rationale must not be empty", i))
		}
	}
	if len(p.Recommendations) == 0 {
		violations = append(violations, "at least one recommended action is required")
	}
	for i, rec := range p.Recommendations {
		if strings.TrimSpace(rec.Owner) == "" || strings.TrimSpace(rec.Action) == "" {
			violations = append(violations, fmt.Sprintf("recommendations[%d] must carry owner and action text", i))
		}
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		violations = append(violations, fmt.Sprintf("confidence %v outside [0,1]", p.Confidence))
	}

	return violations
}

func correctiveNoteFor(err error) string {
	var re *resilience.Error
	if errors.As(err, &re) && re.Err != nil {
		err = re.Err
	}
	msg := strings.TrimSuffix(err.Error(), ": "+resilience.ErrSchemaValidation.Error())
	return fmt.Sprintf("It violated the schema: %s.", msg)
}

// rowFromPayload builds the persistable extraction row from a validated
// payload.
func rowFromPayload(watchItemID, signalID uint, p *dto.ExtractionPayload) (*entity.ExtractionResult, error) {
	impacts, err := json.Marshal(p.Impacts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal impacts: %w", err)
	}
	recommendations, err := json.Marshal(p.Recommendations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recommendations: %w", err)
	}
	sources, err := json.Marshal(p.CitedSources)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cited sources: %w", err)
	}

	return &entity.ExtractionResult{
		SignalID:         signalID,
		WatchItemID:      watchItemID,
		EventCategory:    p.EventCategory,
		Summary:          p.Summary,
		AffectedProducts: p.AffectedProducts,
		Impacts:          datatypes.JSON(impacts),
		Recommendations:  datatypes.JSON(recommendations),
		CitedSources:     datatypes.JSON(sources),
		RawConfidence:    p.Confidence,
	}, nil
}

// payloadFromRow reconstructs the typed payload from a persisted row so
// reused extractions flow through verification and scoring unchanged.
func payloadFromRow(row *entity.ExtractionResult) (*dto.ExtractionPayload, error) {
	payload := &dto.ExtractionPayload{
		EventCategory:    row.EventCategory,
		Summary:          row.Summary,
		AffectedProducts: row.AffectedProducts,
		Confidence:       row.RawConfidence,
	}

	if len(row.Impacts) > 0 {
		if err := json.Unmarshal(row.Impacts, &payload.Impacts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal impacts: %w", err)
		}
	}
	if len(row.Recommendations) > 0 {
		if err := json.Unmarshal(row.Recommendations, &payload.Recommendations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recommendations: %w", err)
		}
	}
	if len(row.CitedSources) > 0 {
		if err := json.Unmarshal(row.CitedSources, &payload.CitedSources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cited sources: %w", err)
		}
	}

	return payload, nil
}
