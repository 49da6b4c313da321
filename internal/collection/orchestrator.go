package collection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/aggregator"
	"github.com/temcen/vocabimg/internal/imaging"
	"github.com/temcen/vocabimg/internal/metrics"
	"github.com/temcen/vocabimg/internal/quality"
	"github.com/temcen/vocabimg/internal/sources"
	"github.com/temcen/vocabimg/pkg/models"
)

// Store persists progress records and image decisions.
type Store interface {
	GetProgress(ctx context.Context, itemID string) (*models.CollectionProgress, error)
	SaveProgress(ctx context.Context, p models.CollectionProgress) error
	SaveImage(ctx context.Context, img models.StoredImage) error
	HasPrimary(ctx context.Context, itemID string) (bool, error)
	HasImage(ctx context.Context, itemID, source, sourceID string) (bool, error)
	DueItems(ctx context.Context, now time.Time, limit int) ([]models.CollectionProgress, error)
	ListProgress(ctx context.Context, categoryID string) ([]models.CollectionProgress, error)
}

// FileStore writes image bytes and returns where they can be fetched from.
type FileStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.CollectionEvent) error
}

type Searcher interface {
	EnhancedSearchAllSources(ctx context.Context, itemName, category string, opts aggregator.Options) *aggregator.AggregatedResult
}

// ClientLookup finds the client that produced a candidate.
type ClientLookup interface {
	Get(name string) (sources.SourceClient, bool)
}

type ImageProcessor interface {
	Fetch(ctx context.Context, client sources.SourceClient, candidate *models.ImageCandidate) ([]byte, error)
	Process(data []byte) (*imaging.Result, error)
}

type Assessor interface {
	Assess(subject quality.Subject, ctx quality.Context) models.QualityScore
}

// ItemResult is the outcome of one pass over one item.
type ItemResult struct {
	ItemID     string                    `json:"item_id"`
	Progress   models.CollectionProgress `json:"progress"`
	Images     []models.StoredImage      `json:"images,omitempty"`
	Approved   int                       `json:"approved"`
	Skipped    bool                      `json:"skipped,omitempty"`
	SkipReason string                    `json:"skip_reason,omitempty"`
	Errors     []string                  `json:"errors,omitempty"`
}

// BulkSummary aggregates the item results of a category run.
type BulkSummary struct {
	CategoryID          string        `json:"category_id"`
	Processed           int           `json:"processed"`
	Successful          int           `json:"successful"`
	Failed              int           `json:"failed"`
	Skipped             int           `json:"skipped"`
	TotalImagesApproved int           `json:"total_images_approved"`
	PerItemResults      []*ItemResult `json:"per_item_results"`
	Errors              []string      `json:"errors,omitempty"`
}

// Orchestrator drives the per-item collection state machine.
type Orchestrator struct {
	searcher  Searcher
	clients   ClientLookup
	processor ImageProcessor
	assessor  Assessor
	store     Store
	files     FileStore
	events    EventPublisher
	defaults  *Defaults
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	now       func() time.Time
}

func NewOrchestrator(
	searcher Searcher,
	clients ClientLookup,
	processor ImageProcessor,
	assessor Assessor,
	store Store,
	files FileStore,
	events EventPublisher,
	defaults *Defaults,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		searcher:  searcher,
		clients:   clients,
		processor: processor,
		assessor:  assessor,
		store:     store,
		files:     files,
		events:    events,
		defaults:  defaults,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// CollectItem runs one orchestration pass. The returned error is an
// *OrchestrationError when progress could not be loaded or persisted; all
// other failures are recorded on the progress and the pass carries on.
func (o *Orchestrator) CollectItem(ctx context.Context, item models.CollectionItem, strategy models.CollectionStrategy, force bool) (*ItemResult, error) {
	strategy = o.resolve(strategy)
	logger := o.logger.WithFields(logrus.Fields{
		"item_id":     item.ItemID,
		"category_id": item.CategoryID,
	})

	result := &ItemResult{ItemID: item.ItemID}
	if !strategy.Enabled {
		result.Skipped = true
		result.SkipReason = "strategy disabled"
		return result, nil
	}

	progress, err := o.loadProgress(ctx, item, strategy)
	if err != nil {
		return nil, &OrchestrationError{ItemID: item.ItemID, Stage: StageLoad, Err: err}
	}

	if !ShouldCollect(progress, force) {
		result.Progress = progress
		result.Skipped = true
		result.SkipReason = "already completed"
		logger.Debug("Item already completed, skipping")
		return result, nil
	}
	if force && progress.Status == models.ProgressCompleted {
		progress = Restart(progress, strategy.TargetImagesPerItem, o.now())
	}

	progress = Begin(progress, o.now())
	if err := o.store.SaveProgress(ctx, progress); err != nil {
		return nil, &OrchestrationError{ItemID: item.ItemID, Stage: StagePersist, Err: err}
	}
	logger.WithField("attempt", progress.SearchAttempts).Info("Collecting images for item")

	record := func(stage string, err error) {
		progress = RecordError(progress, stage, err, o.now())
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", stage, err))
	}

	search := o.searcher.EnhancedSearchAllSources(ctx, item.Name, item.CategoryID, aggregator.Options{
		MaxResultsPerSource: strategy.MaxResultsPerSource,
		ExcludeSources:      strategy.ExcludedSources,
		PrioritySources:     strategy.PreferredSources,
	})
	progress = RecordSearch(progress, foundPerSource(search), o.now())
	if len(search.SuccessfulSources) == 0 {
		for _, err := range searchFailures(search) {
			record(StageSearch, err)
		}
	}

	hasPrimary, err := o.store.HasPrimary(ctx, item.ItemID)
	if err != nil {
		record(StagePersist, err)
		// Without a primary check no image may claim the slot this pass.
		hasPrimary = true
	}

	for i := range search.Images {
		if progress.ApprovedCount >= progress.TargetCount || ctx.Err() != nil {
			break
		}
		candidate := &search.Images[i]

		seen, err := o.store.HasImage(ctx, item.ItemID, candidate.Source, candidate.SourceID)
		if err != nil {
			record(StagePersist, err)
			continue
		}
		if seen {
			continue
		}

		ev, stage, err := o.evaluate(ctx, item, strategy, candidate)
		if err != nil {
			var invalid *imaging.ValidationError
			if errors.As(err, &invalid) {
				logger.WithFields(logrus.Fields{
					"source":    candidate.Source,
					"source_id": candidate.SourceID,
					"reason":    invalid.Reason,
				}).Debug("Candidate failed validation")
				continue
			}
			record(stage, fmt.Errorf("%s: %w", candidate.Key(), err))
			continue
		}

		img, score := ev.image, ev.score
		if img.Status == models.ImageApproved && !hasPrimary {
			img.IsPrimary = true
		}
		if img.Status != models.ImageRejected {
			if err := o.storeFiles(ctx, &img, ev.variants); err != nil {
				record(StageStore, fmt.Errorf("%s: %w", candidate.Key(), err))
				continue
			}
		}
		if err := o.store.SaveImage(ctx, img); err != nil {
			record(StagePersist, fmt.Errorf("%s: %w", candidate.Key(), err))
			continue
		}
		if img.IsPrimary {
			hasPrimary = true
		}

		progress = RecordDecision(progress, Decision{Source: candidate.Source, Status: img.Status, Overall: score.Overall})
		if img.Status == models.ImageApproved {
			result.Approved++
		}
		result.Images = append(result.Images, img)

		o.metrics.Decision(string(img.Status))
		o.publish(ctx, models.CollectionEvent{
			Type:       models.EventImageDecided,
			ItemID:     item.ItemID,
			CategoryID: item.CategoryID,
			ImageID:    img.ID.String(),
			Source:     img.Source,
			Status:     string(img.Status),
			Overall:    score.Overall,
			Timestamp:  o.now(),
		})
		logger.WithFields(logrus.Fields{
			"source":        candidate.Source,
			"source_id":     candidate.SourceID,
			"overall_score": score.Overall,
			"status":        img.Status,
		}).Debug("Candidate decided")
	}

	progress = Finish(progress, strategy, o.now())
	result.Progress = progress
	if err := o.store.SaveProgress(ctx, progress); err != nil {
		return result, &OrchestrationError{ItemID: item.ItemID, Stage: StagePersist, Err: err}
	}

	o.metrics.ItemFinished(string(progress.Status))
	switch progress.Status {
	case models.ProgressCompleted:
		o.publish(ctx, models.CollectionEvent{
			Type:       models.EventItemCompleted,
			ItemID:     item.ItemID,
			CategoryID: item.CategoryID,
			Status:     string(progress.Status),
			Overall:    progress.BestQualityScore,
			Timestamp:  o.now(),
		})
	case models.ProgressFailed:
		o.publish(ctx, models.CollectionEvent{
			Type:       models.EventItemFailed,
			ItemID:     item.ItemID,
			CategoryID: item.CategoryID,
			Status:     string(progress.Status),
			Timestamp:  o.now(),
		})
	}

	logger.WithFields(logrus.Fields{
		"status":         progress.Status,
		"approved_count": progress.ApprovedCount,
		"target_count":   progress.TargetCount,
		"attempt":        progress.SearchAttempts,
	}).Info("Item pass finished")

	return result, nil
}

// CollectCategory processes items one at a time. A failing item is recorded
// in the summary and the run moves on to the next one.
func (o *Orchestrator) CollectCategory(ctx context.Context, categoryID string, items []models.CollectionItem, strategy models.CollectionStrategy, force bool) *BulkSummary {
	summary := &BulkSummary{CategoryID: categoryID}

	for _, item := range items {
		if ctx.Err() != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("run cancelled before item %s: %v", item.ItemID, ctx.Err()))
			break
		}
		if item.CategoryID == "" {
			item.CategoryID = categoryID
		}

		res, err := o.collectSafely(ctx, item, strategy, force)
		summary.Processed++
		if res != nil {
			summary.PerItemResults = append(summary.PerItemResults, res)
		}

		switch {
		case err != nil:
			summary.Failed++
			summary.Errors = append(summary.Errors, err.Error())
			o.logger.WithFields(logrus.Fields{
				"item_id":     item.ItemID,
				"category_id": categoryID,
			}).WithError(err).Error("Item collection failed")
		case res.Skipped:
			summary.Skipped++
		case res.Progress.Status == models.ProgressFailed:
			summary.Failed++
			summary.TotalImagesApproved += res.Approved
		default:
			summary.Successful++
			summary.TotalImagesApproved += res.Approved
		}
	}

	o.logger.WithFields(logrus.Fields{
		"category_id": categoryID,
		"processed":   summary.Processed,
		"successful":  summary.Successful,
		"failed":      summary.Failed,
		"skipped":     summary.Skipped,
		"approved":    summary.TotalImagesApproved,
	}).Info("Category collection finished")

	return summary
}

func (o *Orchestrator) collectSafely(ctx context.Context, item models.CollectionItem, strategy models.CollectionStrategy, force bool) (res *ItemResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = &ItemResult{ItemID: item.ItemID}
			err = &OrchestrationError{ItemID: item.ItemID, Stage: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()
	return o.CollectItem(ctx, item, strategy, force)
}

func (o *Orchestrator) resolve(s models.CollectionStrategy) models.CollectionStrategy {
	if o.defaults != nil {
		return o.defaults.Apply(s)
	}
	return normalize(s)
}

func (o *Orchestrator) loadProgress(ctx context.Context, item models.CollectionItem, strategy models.CollectionStrategy) (models.CollectionProgress, error) {
	existing, err := o.store.GetProgress(ctx, item.ItemID)
	switch {
	case errors.Is(err, ErrNotFound):
		p := models.NewCollectionProgress(item, strategy.TargetImagesPerItem)
		p.UpdatedAt = o.now()
		return p, nil
	case err != nil:
		return models.CollectionProgress{}, err
	}

	p := *existing
	if p.TargetCount <= 0 {
		p.TargetCount = strategy.TargetImagesPerItem
	}
	if p.ItemName == "" {
		p.ItemName = item.Name
	}
	return p, nil
}

type evaluation struct {
	image    models.StoredImage
	score    models.QualityScore
	variants []imaging.Variant
}

// evaluate downloads, processes and scores one candidate. The returned stage
// names the step that failed.
func (o *Orchestrator) evaluate(ctx context.Context, item models.CollectionItem, strategy models.CollectionStrategy, candidate *models.ImageCandidate) (*evaluation, string, error) {
	client, ok := o.clients.Get(candidate.Source)
	if !ok {
		return nil, StageDownload, fmt.Errorf("source %s is not registered", candidate.Source)
	}

	data, err := o.processor.Fetch(ctx, client, candidate)
	if err != nil {
		return nil, StageDownload, err
	}
	processed, err := o.processor.Process(data)
	if err != nil {
		return nil, StageProcess, err
	}

	subject := quality.Analysis(models.ImageAnalysis{
		Metadata:    processed.Metadata,
		Properties:  processed.Properties,
		Description: candidate.AltText(),
	})
	score := o.assessor.Assess(subject, quality.Context{
		ItemName:  item.Name,
		Category:  item.CategoryID,
		Overrides: strategy.QualityOverrides,
	})
	score.Recommendation = quality.Recommend(score.Overall, strategy.MinQualityThreshold, strategy.AutoApprovalThreshold)

	img := models.StoredImage{
		ID:         uuid.New(),
		ItemID:     item.ItemID,
		CategoryID: item.CategoryID,
		Source:     candidate.Source,
		SourceID:   candidate.SourceID,
		SourceURL:  candidate.URLs.Page,
		License:    candidate.License,
		Author:     candidate.Author,
		Metadata:   processed.Metadata,
		Quality:    score,
		Status:     statusFor(score.Recommendation),
		CreatedAt:  o.now(),
	}
	if img.SourceURL == "" {
		img.SourceURL = candidate.URLs.Regular
	}

	return &evaluation{image: img, score: score, variants: processed.Variants}, "", nil
}

// storeFiles writes every variant and points FilePath at the largest one.
func (o *Orchestrator) storeFiles(ctx context.Context, img *models.StoredImage, variants []imaging.Variant) error {
	largest := -1
	for _, v := range variants {
		key := fmt.Sprintf("%s/%s/%s/%s.%s", img.CategoryID, img.ItemID, img.ID, v.Name, extension(v.Format))
		location, err := o.files.Put(ctx, key, contentType(v.Format), v.Data)
		if err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
		img.Variants = append(img.Variants, models.StoredVariant{
			Name:     v.Name,
			Width:    v.Width,
			Height:   v.Height,
			Format:   v.Format,
			Location: location,
			Bytes:    len(v.Data),
		})
		if area := v.Width * v.Height; area > largest {
			largest = area
			img.FilePath = location
		}
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, event models.CollectionEvent) {
	if o.events == nil {
		return
	}
	if err := o.events.Publish(ctx, event); err != nil {
		o.logger.WithFields(logrus.Fields{
			"item_id": event.ItemID,
			"type":    event.Type,
		}).WithError(err).Warn("Failed to publish collection event")
	}
}

func statusFor(r models.Recommendation) models.ImageStatus {
	switch r {
	case models.RecommendAutoApprove:
		return models.ImageApproved
	case models.RecommendManualReview:
		return models.ImageManualReview
	default:
		return models.ImageRejected
	}
}

func foundPerSource(res *aggregator.AggregatedResult) map[string]int {
	found := make(map[string]int, len(res.SourceStats))
	for name, stat := range res.SourceStats {
		if stat.Success {
			found[name] = stat.Count
		}
	}
	return found
}

// searchFailures lists one error per failed or skipped source of a search
// in which no source succeeded.
func searchFailures(res *aggregator.AggregatedResult) []error {
	if res.NoSourcesAvailable {
		return []error{errors.New("no sources available")}
	}
	names := make([]string, 0, len(res.Errors))
	for name := range res.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return []error{errors.New("no source returned results")}
	}
	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("%s: %s", name, res.Errors[name]))
	}
	return errs
}

func extension(format string) string {
	if format == imaging.FormatPNG {
		return "png"
	}
	return "jpg"
}

func contentType(format string) string {
	if format == imaging.FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}
