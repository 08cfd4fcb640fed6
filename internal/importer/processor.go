package importer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/veridian-env/wastestream/internal/blobstore"
	"github.com/veridian-env/wastestream/internal/entities"
	"github.com/veridian-env/wastestream/internal/extraction"
	"github.com/veridian-env/wastestream/internal/model"
	"github.com/veridian-env/wastestream/internal/resilience"
)

// Progress steps recorded on the run while a worker holds its lease.
const (
	StepFetchingFile = "fetching_file"
	StepExtracting   = "extracting"
	StepNormalizing  = "normalizing"
	StepReconciling  = "reconciling"
	StepSavingItems  = "saving_items"
)

// ProcessorConfig tunes the per-run processing pipeline.
type ProcessorConfig struct {
	// MaxAttempts is the number of claims a run gets before it fails
	// terminally. Default: 3.
	MaxAttempts int
	// RequeueDelay is the base availability backoff when a transient failure
	// sends the run back to uploaded. Doubled per consumed attempt. Default: 1m.
	RequeueDelay time.Duration
	// LowConfidence is the extraction confidence below which an item is
	// forced into review. Default: 70.
	LowConfidence int
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RequeueDelay <= 0 {
		c.RequeueDelay = time.Minute
	}
	if c.LowConfidence <= 0 {
		c.LowConfidence = 70
	}
	return c
}

// Processor runs the extraction pipeline for one claimed run: fetch the
// source file, extract candidates, normalize and validate them, reconcile
// duplicates, and persist the items for review.
type Processor struct {
	store     *Store
	blobs     blobstore.Gateway
	extractor extraction.Extractor
	rec       *Reconciler
	ents      *entities.Store
	breaker   *resilience.CircuitBreaker
	retry     resilience.RetryConfig
	cfg       ProcessorConfig
}

func NewProcessor(
	store *Store,
	blobs blobstore.Gateway,
	extractor extraction.Extractor,
	rec *Reconciler,
	ents *entities.Store,
	cfg ProcessorConfig,
) *Processor {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("extraction", "extract")
	return &Processor{
		store:     store,
		blobs:     blobs,
		extractor: extractor,
		rec:       rec,
		ents:      ents,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			ShouldTrip: resilience.IsTransient,
		}),
		retry: retry,
		cfg:   cfg.withDefaults(),
	}
}

// Process drives one claimed run to its next state. Transient failures send
// the run back to uploaded with an availability backoff until its attempts
// are exhausted; terminal failures and empty extractions close the run.
func (p *Processor) Process(ctx context.Context, run *model.ImportRun) error {
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("tenant_id", run.TenantID))

	_ = p.store.SetProgress(ctx, run.ID, StepFetchingFile)
	file, err := p.blobs.Get(ctx, run.SourceFileKey)
	if err != nil {
		return p.failOrRequeue(ctx, run, eris.Wrap(err, "importer: fetch source file"))
	}

	_ = p.store.SetProgress(ctx, run.ID, StepExtracting)
	result, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (*extraction.Result, error) {
		return resilience.ExecuteVal(ctx, p.breaker, func(ctx context.Context) (*extraction.Result, error) {
			return p.extractor.Extract(ctx, file, run.SourceFileName)
		})
	})
	if err != nil {
		return p.failOrRequeue(ctx, run, eris.Wrap(err, "importer: extract"))
	}

	if result.Empty() {
		log.Info("extraction found no records")
		return p.store.MarkNoData(ctx, run.ID)
	}

	_ = p.store.SetProgress(ctx, run.ID, StepNormalizing)
	items, err := p.buildItems(ctx, run, result)
	if err != nil {
		return p.failOrRequeue(ctx, run, err)
	}

	_ = p.store.SetProgress(ctx, run.ID, StepSavingItems)
	if err := p.store.InsertItems(ctx, items); err != nil {
		return p.failOrRequeue(ctx, run, err)
	}

	if err := p.store.MarkReviewReady(ctx, run.ID, len(items)); err != nil {
		return err
	}
	log.Info("run ready for review", zap.Int("total_items", len(items)))
	return nil
}

// buildItems normalizes extraction candidates into review items: locations
// first so project items can reference their parent, then duplicate
// reconciliation against the tenant's existing entities.
func (p *Processor) buildItems(ctx context.Context, run *model.ImportRun, result *extraction.Result) ([]model.ImportItem, error) {
	_ = p.store.SetProgress(ctx, run.ID, StepReconciling)
	existingLocs, err := p.ents.ListLocations(ctx, run.TenantID)
	if err != nil {
		return nil, err
	}
	existingProjects, err := p.ents.ListProjects(ctx, run.TenantID)
	if err != nil {
		return nil, err
	}

	var items []model.ImportItem
	locationItemIDs := make(map[string]string)

	for _, cand := range result.Locations {
		data := model.LocationData{
			Name:       cand.Name,
			Address:    cand.Address,
			City:       cand.City,
			State:      cand.State,
			PostalCode: cand.PostalCode,
		}
		item, err := newItem(run, model.ItemTypeLocation, cand, data, cand.Confidence)
		if err != nil {
			return nil, err
		}

		if verr := model.ValidatePayload(model.ItemTypeLocation, item.NormalizedData); verr != nil {
			markInvalid(item, verr)
		} else {
			item.DuplicateCandidates = p.rec.LocationCandidates(&data, existingLocs)
			item.NeedsReview = p.needsReview(item)
		}

		locationItemIDs[entities.NormalizeName(cand.Name)] = item.ID
		items = append(items, *item)
	}

	for _, cand := range result.WasteStreams {
		data := model.ProjectData{
			Name:             cand.Name,
			WasteCategory:    cand.WasteCategory,
			HaulerName:       cand.HaulerName,
			ContainerCount:   cand.ContainerCount,
			ServiceFrequency: cand.ServiceFrequency,
			Notes:            cand.Notes,
		}
		item, err := newItem(run, model.ItemTypeProject, cand, data, cand.Confidence)
		if err != nil {
			return nil, err
		}

		if parentID, ok := locationItemIDs[entities.NormalizeName(cand.LocationName)]; ok && cand.LocationName != "" {
			item.ParentItemID = &parentID
		}

		if verr := model.ValidatePayload(model.ItemTypeProject, item.NormalizedData); verr != nil {
			markInvalid(item, verr)
		} else {
			item.DuplicateCandidates = p.rec.ProjectCandidates(&data, existingProjects)
			item.NeedsReview = p.needsReview(item)
		}

		items = append(items, *item)
	}

	return items, nil
}

// needsReview forces review for strong duplicate matches and for items the
// adapter was unsure about.
func (p *Processor) needsReview(item *model.ImportItem) bool {
	if p.rec.NeedsReview(item.DuplicateCandidates) {
		return true
	}
	return item.Confidence == nil || *item.Confidence < p.cfg.LowConfidence
}

// failOrRequeue decides between terminal failure and a retry, based on how
// many attempts the run has consumed.
func (p *Processor) failOrRequeue(ctx context.Context, run *model.ImportRun, cause error) error {
	log := zap.L().With(zap.String("run_id", run.ID), zap.Int("attempt", run.ProcessingAttempts))

	if run.ProcessingAttempts >= p.cfg.MaxAttempts {
		log.Error("run failed terminally", zap.Error(cause))
		return p.store.FailRun(ctx, run.ID, model.ErrCodeExtractionFailed, eris.ToString(cause, false))
	}

	delay := resilience.Backoff(run.ProcessingAttempts-1, p.cfg.RequeueDelay, 30*time.Minute, 2.0, 0.25)
	log.Warn("run returned for retry", zap.Duration("delay", delay), zap.Error(cause))
	return p.store.ReturnForRetry(ctx, run.ID, time.Now().Add(delay), eris.ToString(cause, false))
}

func newItem(run *model.ImportRun, t model.ItemType, extracted any, normalized any, confidence *int) (*model.ImportItem, error) {
	rawExtracted, err := json.Marshal(extracted)
	if err != nil {
		return nil, eris.Wrap(err, "importer: encode extracted data")
	}
	rawNormalized, err := json.Marshal(normalized)
	if err != nil {
		return nil, eris.Wrap(err, "importer: encode normalized data")
	}
	return &model.ImportItem{
		ID:             uuid.New().String(),
		TenantID:       run.TenantID,
		RunID:          run.ID,
		Type:           t,
		Status:         model.ItemStatusPendingReview,
		Confidence:     confidence,
		ExtractedData:  rawExtracted,
		NormalizedData: rawNormalized,
	}, nil
}

func markInvalid(item *model.ImportItem, cause error) {
	item.Status = model.ItemStatusInvalid
	item.ReviewNotes = eris.Cause(cause).Error()
	item.NeedsReview = false
}
