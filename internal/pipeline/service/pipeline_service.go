package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"rivalwatch/internal/entity"
	"rivalwatch/internal/pipeline/config"
	"rivalwatch/internal/pipeline/dto"
	"rivalwatch/internal/pipeline/repository"
	"rivalwatch/pkg/logger"
	"rivalwatch/pkg/telegram"
	"rivalwatch/pkg/utils"

	"gorm.io/datatypes"
)

const defaultMaxConcurrentSignals = 4

// PipelineService drives one card-generation run end to end: ingest,
// enrich, extract, verify, score, assemble. Per-signal failures are logged
// and skipped; only failures that prevent the run from producing anything
// fail the run itself.
type PipelineService struct {
	cfg       *config.Config
	log       *logger.Logger
	runs      repository.PipelineRunRepository
	items     repository.WatchItemRepository
	results   repository.ExtractionResultRepository
	reviews   repository.ReviewItemRepository
	progress  repository.ProgressPublisher
	ingestor  *Ingestor
	enricher  *Enricher
	extractor *Extractor
	verifier  *Verifier
	assembler *Assembler
	notifier  telegram.Notifier
	now       func() time.Time
}

// NewPipelineService creates a PipelineService. notifier may be nil.
func NewPipelineService(
	cfg *config.Config,
	log *logger.Logger,
	runs repository.PipelineRunRepository,
	items repository.WatchItemRepository,
	results repository.ExtractionResultRepository,
	reviews repository.ReviewItemRepository,
	progress repository.ProgressPublisher,
	ingestor *Ingestor,
	enricher *Enricher,
	extractor *Extractor,
	verifier *Verifier,
	assembler *Assembler,
	notifier telegram.Notifier,
) *PipelineService {
	return &PipelineService{
		cfg:       cfg,
		log:       log,
		runs:      runs,
		items:     items,
		results:   results,
		reviews:   reviews,
		progress:  progress,
		ingestor:  ingestor,
		enricher:  enricher,
		extractor: extractor,
		verifier:  verifier,
		assembler: assembler,
		notifier:  notifier,
		now:       time.Now,
	}
}

// pendingExtraction carries one extraction through verification and
// assembly.
type pendingExtraction struct {
	item     *entity.WatchItem
	enriched *dto.EnrichedSignal
	row      *entity.ExtractionResult
	payload  *dto.ExtractionPayload
}

// ProcessRun executes one run. Tasks for finished runs are skipped;
// interrupted ones run again.
func (s *PipelineService) ProcessRun(ctx context.Context, task *dto.IngestTaskPayload) error {
	run, err := s.runs.FindByID(ctx, task.RunID)
	if err != nil {
		s.log.Warn("Ingest task references unknown run",
			logger.IntField("run_id", int(task.RunID)),
			logger.ErrorField(err),
		)
		return nil
	}
	if run.Status == entity.RunStatusCompleted || run.Status == entity.RunStatusFailed {
		s.log.Info("Skipping ingest task, run already finished",
			logger.IntField("run_id", int(run.ID)),
			logger.StringField("status", run.Status),
		)
		return nil
	}
	if run.Status == entity.RunStatusRunning {
		// Redelivered after a crash. Every stage is idempotent, so the run
		// is simply executed again.
		s.log.Warn("Resuming interrupted run", logger.IntField("run_id", int(run.ID)))
	}

	item, err := s.items.FindByID(ctx, run.WatchItemID)
	if err != nil {
		return s.failRun(ctx, run, nil, entity.StageIngesting, err)
	}

	start := s.now()
	run.Status = entity.RunStatusRunning
	if run.StartedAt == nil {
		run.StartedAt = &start
	}
	run.Stage = entity.StageIngesting
	if err := s.runs.Update(ctx, run); err != nil {
		// Nothing was persisted yet; redelivery retries the run.
		return err
	}
	s.publishProgress(ctx, run, entity.StageIngesting, "")

	deadline := start.Add(s.cfg.Pipeline.SoftDeadline)
	pastDeadline := func() bool {
		return s.cfg.Pipeline.SoftDeadline > 0 && s.now().After(deadline)
	}

	ingested, err := s.ingestor.Ingest(ctx, item)
	if err != nil {
		return s.failRun(ctx, run, item, entity.StageIngesting, err)
	}
	run.SignalsFound = ingested.Found
	run.SignalsDropped = ingested.Dropped

	// One lookup for the whole fan-out. The run's own item stays processable
	// even if it was deactivated after the run was queued.
	active, err := s.items.FindActive(ctx)
	if err != nil {
		return s.failRun(ctx, run, item, entity.StageEnriching, err)
	}
	activeByID := make(map[uint]*entity.WatchItem, len(active)+1)
	for i := range active {
		activeByID[active[i].ID] = &active[i]
	}
	if _, ok := activeByID[item.ID]; !ok {
		activeByID[item.ID] = item
	}

	s.setStage(ctx, run, entity.StageEnriching, "")
	enrichedSignals := s.enrichAll(ctx, ingested.NewSignals)

	s.setStage(ctx, run, entity.StageExtracting, "")
	extractions := s.extractAll(ctx, item, activeByID, enrichedSignals)

	s.setStage(ctx, run, entity.StageVerifying, "")
	approved := s.verifyAll(ctx, extractions)

	s.setStage(ctx, run, entity.StageScoring, "")
	type assembly struct {
		ex         pendingExtraction
		risk       RiskAssessment
		confidence ConfidenceParts
	}
	assemblies := make([]assembly, 0, len(approved))
	for _, ex := range approved {
		assemblies = append(assemblies, assembly{
			ex:   ex,
			risk: ScoreRisk(ex.payload.Impacts),
			confidence: ScoreConfidence(
				ex.payload.CitedSources,
				ex.payload.Confidence,
				ex.enriched.Signal.PublishedAt,
				s.now(),
			),
		})
	}

	s.setStage(ctx, run, entity.StageAssembling, "")
	cardsCreated := 0
	for _, a := range assemblies {
		late := pastDeadline()
		if late {
			run.Delayed = true
		}
		_, created, err := s.assembler.Assemble(ctx, a.ex.item, &a.ex.enriched.Signal, a.ex.row, a.ex.payload, a.risk, a.confidence, late)
		if err != nil {
			s.log.Error("Failed to assemble impact card",
				logger.IntField("extraction_result_id", int(a.ex.row.ID)),
				logger.ErrorField(err),
			)
			continue
		}
		if created {
			cardsCreated++
		}
	}

	finish := s.now()
	run.Status = entity.RunStatusCompleted
	run.Stage = entity.StageDone
	run.CardsCreated = cardsCreated
	run.Delayed = run.Delayed || pastDeadline()
	run.FinishedAt = &finish
	if err := s.runs.Update(ctx, run); err != nil {
		s.log.Error("Failed to persist completed run", logger.ErrorField(err))
	}
	s.publishProgress(ctx, run, entity.StageDone, "")

	s.log.Info("Pipeline run completed",
		logger.IntField("run_id", int(run.ID)),
		logger.IntField("watch_item_id", int(item.ID)),
		logger.IntField("signals_found", run.SignalsFound),
		logger.IntField("signals_dropped", run.SignalsDropped),
		logger.IntField("cards_created", cardsCreated),
		logger.DurationField("took", finish.Sub(start)),
	)
	return nil
}

// enrichAll enriches the new signals concurrently, bounded by the run's
// concurrency budget. Signals that fail to enrich are logged and skipped.
func (s *PipelineService) enrichAll(ctx context.Context, signals []entity.Signal) []*dto.EnrichedSignal {
	sem := make(chan struct{}, s.maxConcurrent())
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		enriched []*dto.EnrichedSignal
	)

	for i := range signals {
		if !utils.ShouldContinue(ctx, s.log) {
			break
		}
		signal := signals[i]
		wg.Add(1)
		sem <- struct{}{}
		utils.GoSafe(func() {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := s.enricher.Enrich(ctx, &signal)
			if err != nil {
				s.log.Error("Failed to enrich signal",
					logger.StringField("url", signal.URL),
					logger.ErrorField(err),
				)
				return
			}
			mu.Lock()
			enriched = append(enriched, result)
			mu.Unlock()
		})
	}
	wg.Wait()
	return enriched
}

// extractAll fans every enriched signal out to the run's watch item plus
// every matched active item and extracts each pair concurrently.
func (s *PipelineService) extractAll(
	ctx context.Context,
	runItem *entity.WatchItem,
	activeByID map[uint]*entity.WatchItem,
	enrichedSignals []*dto.EnrichedSignal,
) []pendingExtraction {
	type job struct {
		item     *entity.WatchItem
		enriched *dto.EnrichedSignal
	}
	var jobs []job
	for _, en := range enrichedSignals {
		targets := map[uint]struct{}{runItem.ID: {}}
		for _, id := range en.WatchItemIDs {
			targets[id] = struct{}{}
		}
		ids := make([]uint, 0, len(targets))
		for id := range targets {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			target, ok := activeByID[id]
			if !ok {
				continue
			}
			jobs = append(jobs, job{item: target, enriched: en})
		}
	}

	sem := make(chan struct{}, s.maxConcurrent())
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out []pendingExtraction
	)
	for i := range jobs {
		if !utils.ShouldContinue(ctx, s.log) {
			break
		}
		j := jobs[i]
		wg.Add(1)
		sem <- struct{}{}
		utils.GoSafe(func() {
			defer wg.Done()
			defer func() { <-sem }()

			row, payload, err := s.extractor.Extract(ctx, j.item, j.enriched)
			if err != nil {
				s.log.Error("Extraction failed",
					logger.IntField("watch_item_id", int(j.item.ID)),
					logger.StringField("signal_url", j.enriched.Signal.URL),
					logger.ErrorField(err),
				)
				return
			}
			mu.Lock()
			out = append(out, pendingExtraction{item: j.item, enriched: j.enriched, row: row, payload: payload})
			mu.Unlock()
		})
	}
	wg.Wait()
	return out
}

// verifyAll gates every extraction, persists the verdict and queues
// borderline candidates for manual review. It returns the approved subset.
func (s *PipelineService) verifyAll(ctx context.Context, extractions []pendingExtraction) []pendingExtraction {
	var approved []pendingExtraction
	for _, ex := range extractions {
		outcome := s.verifier.Verify(ex.payload)
		if err := s.results.UpdateVerdict(ctx, ex.row.ID, outcome.Verdict, outcome.Rule, outcome.Detail); err != nil {
			s.log.Error("Failed to persist verdict",
				logger.IntField("extraction_result_id", int(ex.row.ID)),
				logger.ErrorField(err),
			)
		}
		switch outcome.Verdict {
		case entity.VerdictApproved:
			approved = append(approved, ex)
		case entity.VerdictPendingManualReview:
			s.queueVerificationReview(ctx, ex, outcome)
		}
	}
	return approved
}

func (s *PipelineService) queueVerificationReview(ctx context.Context, ex pendingExtraction, outcome VerificationOutcome) {
	detail, err := json.Marshal(map[string]interface{}{
		"rule":             outcome.Rule,
		"detail":           outcome.Detail,
		"risk_level":       outcome.RiskLevel,
		"distinct_sources": len(outcome.Sources),
	})
	if err != nil {
		s.log.Error("Failed to marshal review context", logger.ErrorField(err))
		detail = []byte(`{}`)
	}

	review := &entity.ReviewItem{
		Kind:               entity.ReviewKindVerificationReview,
		SignalID:           ex.enriched.Signal.ID,
		WatchItemID:        ex.item.ID,
		ExtractionResultID: &ex.row.ID,
		Stage:              entity.StageVerifying,
		Reason:             outcome.Rule,
		Context:            datatypes.JSON(detail),
		Status:             entity.ReviewStatusOpen,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		s.log.Error("Failed to queue verification review",
			logger.IntField("extraction_result_id", int(ex.row.ID)),
			logger.ErrorField(err),
		)
		return
	}
	s.log.Info("Queued extraction for manual review",
		logger.IntField("extraction_result_id", int(ex.row.ID)),
		logger.StringField("rule", outcome.Rule),
	)
}

func (s *PipelineService) setStage(ctx context.Context, run *entity.PipelineRun, stage, detail string) {
	run.Stage = stage
	if err := s.runs.UpdateStage(ctx, run.ID, stage); err != nil {
		s.log.Error("Failed to update run stage",
			logger.IntField("run_id", int(run.ID)),
			logger.StringField("stage", stage),
			logger.ErrorField(err),
		)
	}
	s.publishProgress(ctx, run, stage, detail)
}

func (s *PipelineService) publishProgress(ctx context.Context, run *entity.PipelineRun, stage, detail string) {
	if s.progress == nil {
		return
	}
	event := &dto.ProgressEvent{
		RunID:       run.ID,
		WatchItemID: run.WatchItemID,
		Stage:       stage,
		Delayed:     run.Delayed,
		Detail:      detail,
		Timestamp:   s.now(),
	}
	if err := s.progress.Publish(ctx, event); err != nil {
		s.log.Error("Failed to publish progress event",
			logger.StringField("stage", stage),
			logger.ErrorField(err),
		)
	}
}

// failRun records the failure on the run and consumes the task. The stage
// and detail stay queryable; nothing fails silently.
func (s *PipelineService) failRun(ctx context.Context, run *entity.PipelineRun, item *entity.WatchItem, stage string, cause error) error {
	s.log.Error("Pipeline run failed",
		logger.IntField("run_id", int(run.ID)),
		logger.StringField("stage", stage),
		logger.ErrorField(cause),
	)

	finish := s.now()
	run.Status = entity.RunStatusFailed
	run.Stage = entity.StageFailed
	run.FailureStage = stage
	run.FailureDetail = cause.Error()
	run.FinishedAt = &finish
	if err := s.runs.Update(ctx, run); err != nil {
		s.log.Error("Failed to persist failed run", logger.ErrorField(err))
	}
	s.publishProgress(ctx, run, entity.StageFailed, cause.Error())

	if s.notifier != nil {
		name := ""
		if item != nil {
			name = item.Name
		}
		message := telegram.FormatRunFailureMessage(run.ID, name, stage, cause.Error())
		if err := s.notifier.SendMessage(message); err != nil {
			s.log.Error("Failed to send run failure alert", logger.ErrorField(err))
		}
	}
	return nil
}

func (s *PipelineService) maxConcurrent() int {
	if s.cfg.Pipeline.MaxConcurrentSignals > 0 {
		return s.cfg.Pipeline.MaxConcurrentSignals
	}
	return defaultMaxConcurrentSignals
}
