package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/config"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/internal/pipeline/repository"
	"rivalwatch/pkg/common"
	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/resilience"
	"rivalwatch/pkg/utils"
)

// Tier-5 signals are persisted for audit with this reason and never passed
// to enrichment.
const dropReasonLowCredibility = "credibility_tier_5"

// IngestResult summarizes one watch item's ingestion pass. NewSignals holds
// only first-seen, non-dropped signals.
type IngestResult struct {
	NewSignals []entity.Signal
	Found      int
	Dropped    int
	Duplicates int
}

// Ingestor pulls raw search hits for a watch item, normalizes and
// deduplicates them, classifies source credibility and persists the
// survivors.
type Ingestor struct {
	cfg         *config.Config
	log         *logger.Logger
	search      repository.SignalSearchRepository
	res         *resilience.Client
	signals     repository.SignalRepository
	credibility *CredibilityRegistry
}

// NewIngestor creates an Ingestor.
func NewIngestor(
	cfg *config.Config,
	log *logger.Logger,
	search repository.SignalSearchRepository,
	res *resilience.Client,
	signals repository.SignalRepository,
	credibility *CredibilityRegistry,
) *Ingestor {
	return &Ingestor{
		cfg:         cfg,
		log:         log,
		search:      search,
		res:         res,
		signals:     signals,
		credibility: credibility,
	}
}

// Ingest searches for new signals matching the watch item and stores them.
// A search failure is returned as an error so the run records it rather
// than reporting that no signals were found.
func (in *Ingestor) Ingest(ctx context.Context, item *entity.WatchItem) (*IngestResult, error) {
	hits, err := resilience.Do(ctx, in.res, resilience.Request[[]dto.SearchItem]{
		Service: common.ServiceSignalSearch,
		Fingerprint: resilience.Fingerprint(common.ServiceSignalSearch,
			strconv.FormatUint(uint64(item.ID), 10),
			strings.Join(item.Keywords, ","),
		),
		Idempotent: true,
		Call: func(cctx context.Context) ([]dto.SearchItem, error) {
			return in.search.Search(cctx, item)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("signal search for watch item %d: %w", item.ID, err)
	}

	result := &IngestResult{Found: len(hits)}
	for i := range hits {
		signal, isNew, err := in.storeSignal(ctx, &hits[i])
		if err != nil {
			in.log.Error("Failed to store signal",
				logger.ErrorField(err),
				logger.StringField("url", hits[i].URL),
			)
			continue
		}
		if !isNew {
			result.Duplicates++
			continue
		}
		if signal.Status == entity.SignalStatusDropped {
			result.Dropped++
			continue
		}
		result.NewSignals = append(result.NewSignals, *signal)
	}

	in.log.Info("Ingestion pass finished",
		logger.IntField("watch_item_id", int(item.ID)),
		logger.IntField("found", result.Found),
		logger.IntField("new", len(result.NewSignals)),
		logger.IntField("duplicates", result.Duplicates),
		logger.IntField("dropped", result.Dropped),
	)
	return result, nil
}

// storeSignal inserts the hit as a signal row. The bool reports whether the
// row is new: both unique indexes (normalized URL and content hash)
// deduplicate against earlier runs.
func (in *Ingestor) storeSignal(ctx context.Context, hit *dto.SearchItem) (*entity.Signal, bool, error) {
	tier, score := in.credibility.Classify(hit.URL)

	normalized, err := utils.NormalizeURL(hit.URL)
	if err != nil {
		// Keep the raw link; the content hash still deduplicates it.
		normalized = strings.TrimSpace(hit.URL)
	}

	signal := &entity.Signal{
		SourceName:       hit.SourceName,
		Title:            hit.Title,
		URL:              hit.URL,
		NormalizedURL:    normalized,
		RawText:          hit.RawText,
		PublishedAt:      hit.PublishedAt,
		ContentHash:      utils.ContentHash(hit.Title, hit.RawText),
		CredibilityTier:  tier,
		CredibilityScore: score,
		Status:           entity.SignalStatusIngested,
	}
	if signal.SourceName == "" {
		signal.SourceName = sourceHost(dto.CitedSource{URL: hit.URL})
	}
	if tier == unverifiableSourceTier {
		signal.Status = entity.SignalStatusDropped
		signal.DropReason = dropReasonLowCredibility
	}

	isNew, err := in.signals.CreateIgnoreConflict(ctx, signal)
	if err != nil {
		return nil, false, err
	}
	return signal, isNew, nil
}
