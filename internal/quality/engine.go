package quality

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/internal/imaging"
	"github.com/temcen/vocabimg/internal/metrics"
	"github.com/temcen/vocabimg/pkg/models"
)

// FallbackScore is assigned to every dimension when an image cannot be measured.
const FallbackScore = 3.0

// Subject yields the measurements of one image. Extraction may fail.
type Subject interface {
	Analysis() (models.ImageAnalysis, error)
}

// Analysis is a Subject whose measurements are already known.
type Analysis models.ImageAnalysis

func (a Analysis) Analysis() (models.ImageAnalysis, error) {
	return models.ImageAnalysis(a), nil
}

// bytesSubject measures raw image bytes on demand.
type bytesSubject struct {
	processor   *imaging.Processor
	data        []byte
	description string
}

func (b bytesSubject) Analysis() (models.ImageAnalysis, error) {
	res, err := b.processor.Inspect(b.data)
	if err != nil {
		return models.ImageAnalysis{}, err
	}
	return models.ImageAnalysis{Metadata: res.Metadata, Properties: res.Properties, Description: b.description}, nil
}

// Context is what the engine knows about the item an image is meant to show.
type Context struct {
	ItemName  string
	Category  string
	Overrides *models.QualityOverrides
}

// BatchInput pairs a subject with its context.
type BatchInput struct {
	Subject Subject
	Context Context
}

// Engine scores images on the technical, relevance, aesthetic and usability rubric.
type Engine struct {
	thresholds   Thresholds
	minQuality   float64
	autoApproval float64
	processor    *imaging.Processor
	metrics      *metrics.Metrics
	logger       *logrus.Logger
	now          func() time.Time
}

func NewEngine(thresholds Thresholds, minQuality, autoApproval float64, processor *imaging.Processor, m *metrics.Metrics, logger *logrus.Logger) *Engine {
	return &Engine{
		thresholds:   thresholds,
		minQuality:   minQuality,
		autoApproval: autoApproval,
		processor:    processor,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// Assess scores one image. It never fails: measurement errors and panics
// inside a dimension produce the fallback score with an explanatory note.
func (e *Engine) Assess(subject Subject, ctx Context) (score models.QualityScore) {
	defer func() {
		if r := recover(); r != nil {
			score = e.fallback(fmt.Errorf("panic: %v", r), ctx)
		}
	}()

	analysis, err := subject.Analysis()
	if err != nil {
		return e.fallback(err, ctx)
	}

	t := e.thresholds.WithOverrides(ctx.Overrides)
	textOverlay := analysis.Properties.TextOverlay || mentionsText(analysis.Description)

	tech, techNotes := technical(analysis, t)
	rel, relNotes := relevance(analysis, ctx.ItemName, ctx.Category, t)
	aes, aesNotes := aesthetic(analysis, t)
	use, useNotes := usability(analysis, textOverlay, t)

	score = models.QualityScore{
		Technical:  tech,
		Relevance:  rel,
		Aesthetic:  aes,
		Usability:  use,
		Overall:    Overall(tech, rel, aes, use),
		AssessedAt: e.now(),
	}
	score.Notes = append(score.Notes, techNotes...)
	score.Notes = append(score.Notes, relNotes...)
	score.Notes = append(score.Notes, aesNotes...)
	score.Notes = append(score.Notes, useNotes...)
	score.Recommendation = Recommend(score.Overall, e.minQuality, e.autoApproval)

	e.metrics.QualityScored(score.Overall)
	e.logger.WithFields(logrus.Fields{
		"item_name":     ctx.ItemName,
		"category":      ctx.Category,
		"overall_score": score.Overall,
		"technical":     tech,
		"relevance":     rel,
		"aesthetic":     aes,
		"usability":     use,
	}).Debug("Image assessed")

	return score
}

// AssessBytes decodes data and scores it. description is the provider's alt text.
func (e *Engine) AssessBytes(data []byte, description string, ctx Context) models.QualityScore {
	return e.Assess(bytesSubject{processor: e.processor, data: data, description: description}, ctx)
}

// AssessImages scores every input independently.
func (e *Engine) AssessImages(batch []BatchInput) []models.QualityScore {
	scores := make([]models.QualityScore, len(batch))
	for i, in := range batch {
		scores[i] = e.Assess(in.Subject, in.Context)
	}
	return scores
}

func (e *Engine) fallback(err error, ctx Context) models.QualityScore {
	e.logger.WithFields(logrus.Fields{
		"item_name": ctx.ItemName,
		"category":  ctx.Category,
	}).WithError(err).Warn("Image assessment failed, using fallback score")

	e.metrics.QualityScored(FallbackScore)
	return models.QualityScore{
		Technical:      FallbackScore,
		Relevance:      FallbackScore,
		Aesthetic:      FallbackScore,
		Usability:      FallbackScore,
		Overall:        FallbackScore,
		Notes:          []string{"assessment error: " + err.Error()},
		Recommendation: Recommend(FallbackScore, e.minQuality, e.autoApproval),
		AssessedAt:     e.now(),
	}
}

// Overall is the weighted sum of the rounded dimension scores, clamped and
// rounded to one decimal.
func Overall(technical, relevance, aesthetic, usability float64) float64 {
	sum := models.WeightTechnical*technical +
		models.WeightRelevance*relevance +
		models.WeightAesthetic*aesthetic +
		models.WeightUsability*usability
	return round1(clamp(sum, 0, 10))
}

// Recommend maps an overall score onto a decision. Both bounds are inclusive.
func Recommend(overall, minQuality, autoApproval float64) models.Recommendation {
	switch {
	case overall >= autoApproval:
		return models.RecommendAutoApprove
	case overall >= minQuality:
		return models.RecommendManualReview
	default:
		return models.RecommendReject
	}
}
