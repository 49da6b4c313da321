package quality

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/vocabimg/internal/imaging"
	"github.com/temcen/vocabimg/pkg/models"
)

func newTestEngine() *Engine {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	processor := imaging.NewProcessor(imaging.DefaultOptions(), nil, logger)
	return NewEngine(DefaultThresholds(), 6.0, 8.5, processor, nil, logger)
}

func goodAnalysis() models.ImageAnalysis {
	return models.ImageAnalysis{
		Metadata: models.ImageMetadata{
			Width:     2000,
			Height:    2000,
			Format:    "jpeg",
			SizeBytes: 800 << 10,
		},
		Properties: models.ImageProperties{
			Brightness:     0.55,
			Contrast:       0.4,
			Colorfulness:   0.5,
			Saturation:     0.5,
			DominantColors: []string{"#f82828", "#28a828", "#f8f8f8", "#282828"},
			EdgeDensity:    0.15,
			CenterFocus:    0.7,
		},
		Description: "A red apple on a table",
	}
}

type failingSubject struct{ err error }

func (f failingSubject) Analysis() (models.ImageAnalysis, error) { return models.ImageAnalysis{}, f.err }

type panickingSubject struct{}

func (panickingSubject) Analysis() (models.ImageAnalysis, error) { panic("decoder bug") }

func TestEngine_AssessGoodImage(t *testing.T) {
	engine := newTestEngine()

	score := engine.Assess(Analysis(goodAnalysis()), Context{ItemName: "Apple", Category: "fruits"})

	assert.Equal(t, 10.0, score.Technical)
	assert.Equal(t, 10.0, score.Relevance)
	assert.Equal(t, 8.0, score.Aesthetic)
	assert.Equal(t, 10.0, score.Usability)
	assert.Equal(t, 9.5, score.Overall)
	assert.Equal(t, models.RecommendAutoApprove, score.Recommendation)
	assert.NotEmpty(t, score.Notes)
	assert.False(t, score.AssessedAt.IsZero())
}

func TestEngine_ScoresStayInBoundsAndMatchWeights(t *testing.T) {
	engine := newTestEngine()

	for _, w := range []int{0, 50, 399, 800, 4000} {
		for _, bright := range []float64{0, 0.1, 0.5, 0.95, 1} {
			for _, edge := range []float64{0, 0.2, 0.9} {
				for _, cat := range []string{"animals", "colors", "fruits", "shapes", "letters"} {
					a := goodAnalysis()
					a.Metadata.Width = w
					a.Metadata.Height = w/2 + 1
					a.Metadata.SizeBytes = int64(w) * 10
					a.Properties.Brightness = bright
					a.Properties.Contrast = bright / 2
					a.Properties.Colorfulness = 1 - bright
					a.Properties.Saturation = bright
					a.Properties.EdgeDensity = edge
					a.Properties.CenterFocus = 1 - edge
					a.Description = "nothing relevant"

					s := engine.Assess(Analysis(a), Context{ItemName: "zebra", Category: cat})
					for _, v := range []float64{s.Technical, s.Relevance, s.Aesthetic, s.Usability, s.Overall} {
						require.GreaterOrEqual(t, v, 0.0)
						require.LessOrEqual(t, v, 10.0)
					}
					weighted := 0.25*s.Technical + 0.35*s.Relevance + 0.25*s.Aesthetic + 0.15*s.Usability
					require.InDelta(t, weighted, s.Overall, 0.05+1e-9)
				}
			}
		}
	}
}

func TestEngine_TechnicalDecreasesWithResolutionBelowMinimum(t *testing.T) {
	engine := newTestEngine()

	previous := math.Inf(1)
	for side := 399; side >= 10; side -= 13 {
		a := goodAnalysis()
		a.Metadata.Width = side
		a.Metadata.Height = side
		a.Metadata.SizeBytes = 100 << 10

		s := engine.Assess(Analysis(a), Context{ItemName: "apple"})
		assert.LessOrEqual(t, s.Technical, previous, "side %d", side)
		previous = s.Technical
	}

	big := goodAnalysis()
	big.Metadata.Width, big.Metadata.Height = 399, 399
	tiny := goodAnalysis()
	tiny.Metadata.Width, tiny.Metadata.Height = 40, 40
	assert.Greater(t,
		engine.Assess(Analysis(big), Context{}).Technical,
		engine.Assess(Analysis(tiny), Context{}).Technical)
}

func TestEngine_FallbackOnExtractionError(t *testing.T) {
	engine := newTestEngine()

	score := engine.Assess(failingSubject{err: errors.New("corrupt jpeg")}, Context{ItemName: "cat"})

	assert.Equal(t, FallbackScore, score.Technical)
	assert.Equal(t, FallbackScore, score.Relevance)
	assert.Equal(t, FallbackScore, score.Aesthetic)
	assert.Equal(t, FallbackScore, score.Usability)
	assert.Equal(t, FallbackScore, score.Overall)
	assert.Equal(t, models.RecommendReject, score.Recommendation)
	require.Len(t, score.Notes, 1)
	assert.True(t, strings.HasPrefix(score.Notes[0], "assessment error: "))
}

func TestEngine_FallbackOnPanic(t *testing.T) {
	score := newTestEngine().Assess(panickingSubject{}, Context{})
	assert.Equal(t, FallbackScore, score.Overall)
	assert.Contains(t, score.Notes[0], "decoder bug")
}

func TestEngine_AssessBytes(t *testing.T) {
	engine := newTestEngine()

	img := image.NewRGBA(image.Rect(0, 0, 600, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 600; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x / 3), G: uint8(y / 3), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))

	score := engine.AssessBytes(buf.Bytes(), "gradient", Context{ItemName: "gradient"})
	assert.NotEqual(t, FallbackScore, score.Overall)
	assert.NotContains(t, strings.Join(score.Notes, "|"), "assessment error")

	broken := engine.AssessBytes([]byte("not an image"), "", Context{})
	assert.Equal(t, FallbackScore, broken.Overall)
}

func TestEngine_AssessImagesIsolatesFailures(t *testing.T) {
	engine := newTestEngine()

	scores := engine.AssessImages([]BatchInput{
		{Subject: Analysis(goodAnalysis()), Context: Context{ItemName: "apple", Category: "fruits"}},
		{Subject: failingSubject{err: errors.New("boom")}, Context: Context{ItemName: "apple"}},
		{Subject: panickingSubject{}},
		{Subject: Analysis(goodAnalysis()), Context: Context{ItemName: "apple", Category: "fruits"}},
	})

	require.Len(t, scores, 4)
	assert.Equal(t, 9.5, scores[0].Overall)
	assert.Equal(t, FallbackScore, scores[1].Overall)
	assert.Equal(t, FallbackScore, scores[2].Overall)
	assert.Equal(t, 9.5, scores[3].Overall)
}

func TestEngine_CategoryHeuristics(t *testing.T) {
	engine := newTestEngine()

	dull := goodAnalysis()
	dull.Description = "red"
	dull.Properties.Saturation = 0.1
	vivid := goodAnalysis()
	vivid.Description = "red"
	vivid.Properties.Saturation = 0.8

	ctx := Context{ItemName: "red", Category: "Colors"}
	dullScore := engine.Assess(Analysis(dull), ctx)
	vividScore := engine.Assess(Analysis(vivid), ctx)
	assert.InDelta(t, 4.0, vividScore.Relevance-dullScore.Relevance, 1e-9)

	blurry := goodAnalysis()
	blurry.Description = "zebra"
	blurry.Properties.CenterFocus = 0.2
	animal := engine.Assess(Analysis(blurry), Context{ItemName: "zebra", Category: "animals"})
	other := engine.Assess(Analysis(blurry), Context{ItemName: "zebra", Category: "letters"})
	assert.Less(t, animal.Relevance, other.Relevance)
}

func TestEngine_OverridesApply(t *testing.T) {
	engine := newTestEngine()
	a := goodAnalysis()
	a.Description = "blue"
	a.Properties.Saturation = 0.5

	plain := engine.Assess(Analysis(a), Context{ItemName: "blue", Category: "colors"})
	strict := engine.Assess(Analysis(a), Context{
		ItemName:  "blue",
		Category:  "colors",
		Overrides: &models.QualityOverrides{RequiredSaturation: 0.7},
	})

	assert.Greater(t, plain.Relevance, strict.Relevance)
}

func TestEngine_TextOverlayFromDescription(t *testing.T) {
	engine := newTestEngine()
	a := goodAnalysis()
	a.Description = "apple with motivational quote typography"

	withText := engine.Assess(Analysis(a), Context{ItemName: "apple"})
	without := engine.Assess(Analysis(goodAnalysis()), Context{ItemName: "apple"})
	assert.InDelta(t, 2.0, without.Usability-withText.Usability, 1e-9)
}

func TestRecommend_Boundaries(t *testing.T) {
	assert.Equal(t, models.RecommendAutoApprove, Recommend(8.5, 6.0, 8.5))
	assert.Equal(t, models.RecommendManualReview, Recommend(8.49, 6.0, 8.5))
	assert.Equal(t, models.RecommendManualReview, Recommend(6.0, 6.0, 8.5))
	assert.Equal(t, models.RecommendReject, Recommend(5.99, 6.0, 8.5))
}

func TestOverall(t *testing.T) {
	assert.Equal(t, 9.5, Overall(10, 10, 8, 10))
	assert.Equal(t, 0.0, Overall(0, 0, 0, 0))
	assert.Equal(t, 10.0, Overall(10, 10, 10, 10))
	assert.Equal(t, 6.6, Overall(7.2, 6.1, 6.9, 6.5))
}
